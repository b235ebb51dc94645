// Package addi implements the export envelope written by the harvester: a
// JSON metadata block paired with raw record content, framed as
//
//	<len(metadata)>\n<metadata>\n<len(content)>\n<content>\n
package addi

import (
	"encoding/json"
	"fmt"
	"time"
)

// Level is the severity of a Diagnostic.
type Level string

const (
	LevelError Level = "ERROR"
	LevelFatal Level = "FATAL"
)

// Diagnostic describes why a record could not be harvested.
type Diagnostic struct {
	Level      Level  `json:"level"`
	Message    string `json:"message"`
	Stacktrace string `json:"stacktrace,omitempty"`
	Tag        string `json:"tag,omitempty"`
	Attribute  string `json:"attribute,omitempty"`
}

// LibraryRules carries agency specific processing rules.
type LibraryRules struct {
	AgencyID   int            `json:"agencyId,omitempty"`
	AgencyType string         `json:"agencyType,omitempty"`
	Rules      map[string]any `json:"libraryRules,omitempty"`
}

// MetaData is the metadata block of an envelope.
type MetaData struct {
	BibliographicRecordID string        `json:"bibliographicRecordId,omitempty"`
	SubmitterNumber       int           `json:"submitterNumber,omitempty"`
	EnrichmentTrail       string        `json:"enrichmentTrail,omitempty"`
	Format                string        `json:"format,omitempty"`
	CreationDate          *time.Time    `json:"creationDate,omitempty"`
	TrackingID            string        `json:"trackingId,omitempty"`
	LibraryRules          *LibraryRules `json:"libraryRules,omitempty"`
	Diagnostic            *Diagnostic   `json:"diagnostic,omitempty"`
}

// Envelope is one export unit.
type Envelope struct {
	Metadata []byte
	Content  []byte
}

// New builds an envelope from metadata and content.
func New(meta MetaData, content []byte) (*Envelope, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal addi metadata: %w", err)
	}
	if content == nil {
		content = []byte{}
	}
	return &Envelope{Metadata: data, Content: content}, nil
}

// NewDiagnostic builds a content-less envelope carrying a diagnostic.
func NewDiagnostic(meta MetaData, level Level, message string) *Envelope {
	meta.Diagnostic = &Diagnostic{Level: level, Message: message}
	env, err := New(meta, nil)
	if err != nil {
		// library rules may hold unencodable values; keep the diagnostic only
		env, _ = New(MetaData{
			BibliographicRecordID: meta.BibliographicRecordID,
			SubmitterNumber:       meta.SubmitterNumber,
			Diagnostic:            meta.Diagnostic,
		}, nil)
	}
	return env
}

// Meta decodes the metadata block.
func (e *Envelope) Meta() (MetaData, error) {
	var meta MetaData
	if err := json.Unmarshal(e.Metadata, &meta); err != nil {
		return MetaData{}, fmt.Errorf("unmarshal addi metadata: %w", err)
	}
	return meta, nil
}

// HasDiagnostic reports whether the envelope represents a failed record.
func (e *Envelope) HasDiagnostic() bool {
	meta, err := e.Meta()
	return err == nil && meta.Diagnostic != nil
}
