package fetcher

import (
	"fmt"

	"github.com/nucleus/harvest-core/pkg/harvest"
)

// Dependencies are the collaborators strategies may need.
type Dependencies struct {
	Records  RecordService
	Holdings HoldingsStore
}

// New selects the strategy for the configuration's harvester type. Cover
// filtering happens before dispatch, so STANDARD_WITH_COVER fetches like
// STANDARD.
func New(cfg harvest.Config, deps Dependencies, opts Options) (Fetcher, error) {
	if deps.Records == nil {
		return nil, fmt.Errorf("fetcher: record service is required")
	}
	if opts.Format == "" {
		opts.Format = cfg.Content.Format
	}
	switch cfg.Type() {
	case harvest.TypeStandard, harvest.TypeStandardWithCover:
		return NewStandard(deps.Records, opts), nil
	case harvest.TypeStandardWithoutExpansion:
		return NewWithoutExpansion(deps.Records, opts), nil
	case harvest.TypeDailyProofing:
		return NewHierarchy(deps.Records, opts), nil
	case harvest.TypeSubjectProofing:
		return NewCrossRef(deps.Records, opts), nil
	case harvest.TypeStandardWithHoldings:
		if deps.Holdings == nil {
			return nil, fmt.Errorf("fetcher: %s requires a holdings store", cfg.Type())
		}
		return NewHoldingsFiltered(NewStandard(deps.Records, opts), deps.Holdings, cfg.Content.HoldingsFilter, cfg.Content.HoldingsAgencies, opts), nil
	}
	return nil, fmt.Errorf("fetcher: unsupported harvester type %q", cfg.Type())
}
