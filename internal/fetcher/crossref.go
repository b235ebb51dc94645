package fetcher

import (
	"bytes"
	"context"

	"github.com/nucleus/harvest-core/internal/recordservice"
	"github.com/nucleus/harvest-core/pkg/harvest"
)

// CrossRef fetches a record and, when its cross-reference field names
// another record, appends that record's content after the anchor's.
type CrossRef struct {
	records RecordService
	opts    Options
}

// NewCrossRef creates the subject proofing strategy.
func NewCrossRef(records RecordService, opts Options) *CrossRef {
	if opts.CrossRefTag == "" {
		opts.CrossRefTag = "015"
	}
	if opts.CrossRefSubfield == "" {
		opts.CrossRefSubfield = "a"
	}
	return &CrossRef{records: records, opts: opts}
}

func (f *CrossRef) Fetch(ctx context.Context, ref harvest.RecordRef) Outcome {
	lookup := f.opts.lookupRef(ref)
	params := recordservice.DefaultParams()

	coll, err := f.records.Collection(ctx, lookup, params)
	if err != nil {
		return f.opts.diagnostic(ref, "harvesting %s failed: %v", lookup, err)
	}
	anchor, problem := anchorRecord(coll, lookup)
	if problem != "" {
		return f.opts.diagnostic(ref, "%s", problem)
	}

	secondaryID, err := FindSubfield(anchor.Content, f.opts.CrossRefTag, f.opts.CrossRefSubfield)
	if err != nil {
		return f.opts.diagnostic(ref, "unable to parse content of %s: %v", lookup, err)
	}
	if secondaryID == "" {
		return f.opts.build(ref, anchor, anchor.Content)
	}

	secondary := harvest.RecordRef{BibliographicRecordID: secondaryID, AgencyID: f.opts.CrossRefAgency}
	secColl, err := f.records.Collection(ctx, secondary, params)
	if err != nil {
		return f.opts.diagnostic(ref, "harvesting referenced record %s failed: %v", secondary, err)
	}
	secRec, ok := secColl.Get(secondaryID)
	if !ok || secRec == nil {
		return f.opts.diagnostic(ref, "referenced record %s was not found in returned collection %v", secondary, secColl.IDs())
	}

	var content bytes.Buffer
	content.Write(anchor.Content)
	content.Write(secRec.Content)
	return f.opts.build(ref, anchor, content.Bytes())
}
