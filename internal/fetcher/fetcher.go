// Package fetcher turns record ids into export envelopes.
//
// Every strategy implements Fetcher. A Fetch never returns an error: a
// failure to fetch or assemble a record becomes an envelope carrying a
// diagnostic, and a record excluded by a filter becomes an Omitted outcome.
package fetcher

import (
	"context"
	"fmt"
	"log"
	"slices"

	"github.com/nucleus/harvest-core/internal/recordservice"
	"github.com/nucleus/harvest-core/pkg/addi"
	"github.com/nucleus/harvest-core/pkg/harvest"
)

// =============================================================================
// OUTCOME
// =============================================================================

// Kind tags an Outcome.
type Kind int

const (
	// KindEnvelope is a successfully assembled record.
	KindEnvelope Kind = iota
	// KindDiagnostic is an envelope describing a per-record failure.
	KindDiagnostic
	// KindOmitted means the record was filtered out; there is no envelope.
	KindOmitted
)

func (k Kind) String() string {
	switch k {
	case KindEnvelope:
		return "ok"
	case KindDiagnostic:
		return "diagnostic"
	case KindOmitted:
		return "omitted"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Outcome is the result of fetching one record.
type Outcome struct {
	Kind     Kind
	Ref      harvest.RecordRef
	Envelope *addi.Envelope
}

// Message returns the diagnostic message of a KindDiagnostic outcome.
func (o Outcome) Message() string {
	if o.Kind != KindDiagnostic || o.Envelope == nil {
		return ""
	}
	meta, err := o.Envelope.Meta()
	if err != nil || meta.Diagnostic == nil {
		return ""
	}
	return meta.Diagnostic.Message
}

func envelopeOutcome(ref harvest.RecordRef, env *addi.Envelope) Outcome {
	return Outcome{Kind: KindEnvelope, Ref: ref, Envelope: env}
}

func omitted(ref harvest.RecordRef) Outcome {
	return Outcome{Kind: KindOmitted, Ref: ref}
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Fetcher assembles the envelope for one record.
type Fetcher interface {
	Fetch(ctx context.Context, ref harvest.RecordRef) Outcome
}

// RecordService is the record retrieval collaborator.
type RecordService interface {
	Collection(ctx context.Context, ref harvest.RecordRef, params recordservice.Params) (*harvest.RecordCollection, error)
	ExpandedCollection(ctx context.Context, ref harvest.RecordRef, params recordservice.Params) (*harvest.RecordCollection, error)
}

// HoldingsStore is the holdings collaborator.
type HoldingsStore interface {
	HasHoldings(ctx context.Context, bibliographicRecordID string, agencies []int) (map[int]struct{}, error)
}

// Options are shared by all strategies.
type Options struct {
	// Format is copied into every envelope's metadata.
	Format string
	// CommonAgencies are looked up under EnrichmentAgency.
	CommonAgencies   []int
	EnrichmentAgency int
	// CrossRefAgency owns the records named by the cross-reference field.
	CrossRefAgency   int
	CrossRefTag      string
	CrossRefSubfield string
	// Logger receives one line per diagnostic. nil uses log.Default().
	Logger *log.Logger
}

// DefaultOptions returns the production agency settings.
func DefaultOptions(format string) Options {
	return Options{
		Format:           format,
		CommonAgencies:   []int{870970},
		EnrichmentAgency: 191919,
		CrossRefAgency:   870979,
		CrossRefTag:      "015",
		CrossRefSubfield: "a",
	}
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

// lookupRef maps a common agency onto the agency hosting its data.
func (o Options) lookupRef(ref harvest.RecordRef) harvest.RecordRef {
	if o.EnrichmentAgency != 0 && slices.Contains(o.CommonAgencies, ref.AgencyID) {
		return harvest.RecordRef{BibliographicRecordID: ref.BibliographicRecordID, AgencyID: o.EnrichmentAgency}
	}
	return ref
}

// diagnostic builds the failure outcome for ref and logs it.
func (o Options) diagnostic(ref harvest.RecordRef, format string, args ...any) Outcome {
	msg := fmt.Sprintf(format, args...)
	o.logger().Printf("harvest %s: %s", ref, msg)
	env := addi.NewDiagnostic(addi.MetaData{
		BibliographicRecordID: ref.BibliographicRecordID,
		SubmitterNumber:       ref.AgencyID,
		Format:                o.Format,
	}, addi.LevelFatal, msg)
	return Outcome{Kind: KindDiagnostic, Ref: ref, Envelope: env}
}

// =============================================================================
// ENVELOPE ASSEMBLY
// =============================================================================

// anchorRecord finds the record for ref in coll, or explains why not.
func anchorRecord(coll *harvest.RecordCollection, ref harvest.RecordRef) (*harvest.RawRecord, string) {
	if coll.Len() == 0 {
		return nil, fmt.Sprintf("record service returned an empty collection for %s", ref)
	}
	rec, ok := coll.Get(ref.BibliographicRecordID)
	if !ok || rec == nil {
		return nil, fmt.Sprintf("record %s was not found in returned collection %v", ref, coll.IDs())
	}
	if rec.Created == nil {
		return nil, fmt.Sprintf("record %s has no creation date", ref)
	}
	return rec, ""
}

// submitter returns the last agency of the enrichment trail, or the agency
// of the requested ref.
func submitter(rec *harvest.RawRecord, ref harvest.RecordRef) int {
	if agency, ok := rec.LastTrailAgency(); ok {
		return agency
	}
	return ref.AgencyID
}

// build assembles an envelope for ref whose metadata derives from anchor.
func (o Options) build(ref harvest.RecordRef, anchor *harvest.RawRecord, content []byte) Outcome {
	sub := submitter(anchor, ref)
	env, err := addi.New(addi.MetaData{
		BibliographicRecordID: ref.BibliographicRecordID,
		SubmitterNumber:       sub,
		EnrichmentTrail:       anchor.EnrichmentTrail,
		Format:                o.Format,
		CreationDate:          anchor.Created,
		TrackingID:            anchor.TrackingID,
		LibraryRules:          &addi.LibraryRules{AgencyID: sub, Rules: map[string]any{}},
	}, content)
	if err != nil {
		return o.diagnostic(ref, "unable to build envelope: %v", err)
	}
	return envelopeOutcome(ref, env)
}
