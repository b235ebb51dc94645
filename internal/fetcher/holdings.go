package fetcher

import (
	"context"

	"github.com/nucleus/harvest-core/pkg/harvest"
)

// HoldingsFiltered only fetches records whose holdings satisfy the filter.
// Records that fail the filter are omitted without a diagnostic.
type HoldingsFiltered struct {
	inner    Fetcher
	holdings HoldingsStore
	filter   harvest.HoldingsFilter
	agencies []int
	opts     Options
}

// NewHoldingsFiltered wraps inner. agencies limits which holding agencies
// count; empty means any.
func NewHoldingsFiltered(inner Fetcher, holdings HoldingsStore, filter harvest.HoldingsFilter, agencies []int, opts Options) *HoldingsFiltered {
	return &HoldingsFiltered{inner: inner, holdings: holdings, filter: filter, agencies: agencies, opts: opts}
}

func (f *HoldingsFiltered) Fetch(ctx context.Context, ref harvest.RecordRef) Outcome {
	held, err := f.holdings.HasHoldings(ctx, ref.BibliographicRecordID, f.agencies)
	if err != nil {
		return f.opts.diagnostic(ref, "holdings lookup for %s failed: %v", ref, err)
	}
	hasHoldings := len(held) > 0
	switch f.filter {
	case harvest.WithHoldings:
		if !hasHoldings {
			return omitted(ref)
		}
	case harvest.WithoutHoldings:
		if hasHoldings {
			return omitted(ref)
		}
	}
	return f.inner.Fetch(ctx, ref)
}
