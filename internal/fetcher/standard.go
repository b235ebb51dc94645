package fetcher

import (
	"context"

	"github.com/nucleus/harvest-core/internal/recordservice"
	"github.com/nucleus/harvest-core/pkg/harvest"
)

// Standard fetches the single requested record.
type Standard struct {
	records RecordService
	params  recordservice.Params
	opts    Options
}

// NewStandard creates the default strategy.
func NewStandard(records RecordService, opts Options) *Standard {
	return &Standard{records: records, params: recordservice.DefaultParams(), opts: opts}
}

// NewWithoutExpansion creates a Standard fetcher that never asks the record
// service to expand references.
func NewWithoutExpansion(records RecordService, opts Options) *Standard {
	params := recordservice.DefaultParams()
	params.Expand = false
	return &Standard{records: records, params: params, opts: opts}
}

func (f *Standard) Fetch(ctx context.Context, ref harvest.RecordRef) Outcome {
	lookup := f.opts.lookupRef(ref)
	coll, err := f.records.Collection(ctx, lookup, f.params)
	if err != nil {
		return f.opts.diagnostic(ref, "harvesting %s failed: %v", lookup, err)
	}
	rec, problem := anchorRecord(coll, lookup)
	if problem != "" {
		return f.opts.diagnostic(ref, "%s", problem)
	}
	return f.opts.build(ref, rec, rec.Content)
}
