package fetcher

import (
	"bytes"
	"context"

	"github.com/nucleus/harvest-core/internal/recordservice"
	"github.com/nucleus/harvest-core/pkg/harvest"
)

// Hierarchy fetches a record together with the records it is part of or
// refers to, using the record service's server side expansion. The result is
// one envelope whose content is every record's content in collection order.
type Hierarchy struct {
	records RecordService
	opts    Options
}

// NewHierarchy creates the proofing strategy.
func NewHierarchy(records RecordService, opts Options) *Hierarchy {
	return &Hierarchy{records: records, opts: opts}
}

func (f *Hierarchy) Fetch(ctx context.Context, ref harvest.RecordRef) Outcome {
	lookup := f.opts.lookupRef(ref)
	params := recordservice.DefaultParams()
	params.UseParentAgency = true

	coll, err := f.records.ExpandedCollection(ctx, lookup, params)
	if err != nil {
		return f.opts.diagnostic(ref, "harvesting %s failed: %v", lookup, err)
	}
	anchor, problem := anchorRecord(coll, lookup)
	if problem != "" {
		return f.opts.diagnostic(ref, "%s", problem)
	}

	var content bytes.Buffer
	for _, rec := range coll.Records() {
		content.Write(rec.Content)
	}
	return f.opts.build(ref, anchor, content.Bytes())
}
