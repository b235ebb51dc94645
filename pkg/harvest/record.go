package harvest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RecordRef identifies a bibliographic record within an agency.
type RecordRef struct {
	BibliographicRecordID string `json:"bibliographicRecordId"`
	AgencyID              int    `json:"agencyId"`
}

func (r RecordRef) String() string {
	return r.BibliographicRecordID + ":" + strconv.Itoa(r.AgencyID)
}

// ParseRecordRef parses the "bibliographicRecordId:agencyId" form.
func ParseRecordRef(raw string) (RecordRef, error) {
	raw = strings.TrimSpace(raw)
	idx := strings.LastIndex(raw, ":")
	if idx <= 0 || idx == len(raw)-1 {
		return RecordRef{}, fmt.Errorf("invalid record id %q", raw)
	}
	agency, err := strconv.Atoi(strings.TrimSpace(raw[idx+1:]))
	if err != nil {
		return RecordRef{}, fmt.Errorf("invalid agency in record id %q: %w", raw, err)
	}
	id := strings.TrimSpace(raw[:idx])
	if id == "" {
		return RecordRef{}, fmt.Errorf("invalid record id %q", raw)
	}
	return RecordRef{BibliographicRecordID: id, AgencyID: agency}, nil
}

// RawRecord is a record as returned by the record retrieval service.
type RawRecord struct {
	RecordID        RecordRef  `json:"recordId"`
	Content         []byte     `json:"content"`
	Created         *time.Time `json:"created,omitempty"`
	EnrichmentTrail string     `json:"enrichmentTrail,omitempty"`
	TrackingID      string     `json:"trackingId,omitempty"`
}

// LastTrailAgency returns the last agency of the enrichment trail.
func (r *RawRecord) LastTrailAgency() (int, bool) {
	trail := strings.TrimSpace(r.EnrichmentTrail)
	if trail == "" {
		return 0, false
	}
	parts := strings.Split(trail, ",")
	agency, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1]))
	if err != nil {
		return 0, false
	}
	return agency, true
}

// RecordCollection maps bibliographic record ids to records, remembering
// the order in which ids were first added.
type RecordCollection struct {
	order   []string
	records map[string]*RawRecord
}

// NewRecordCollection creates an empty collection.
func NewRecordCollection() *RecordCollection {
	return &RecordCollection{records: make(map[string]*RawRecord)}
}

// Put adds a record. A record whose id is already present replaces the
// stored value but keeps its original position.
func (c *RecordCollection) Put(id string, rec *RawRecord) {
	if c.records == nil {
		c.records = make(map[string]*RawRecord)
	}
	if _, ok := c.records[id]; !ok {
		c.order = append(c.order, id)
	}
	c.records[id] = rec
}

// Get returns the record stored under id.
func (c *RecordCollection) Get(id string) (*RawRecord, bool) {
	if c == nil {
		return nil, false
	}
	rec, ok := c.records[id]
	return rec, ok
}

// Len returns the number of distinct records.
func (c *RecordCollection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// IDs returns the ids in insertion order.
func (c *RecordCollection) IDs() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// Records returns the records in insertion order.
func (c *RecordCollection) Records() []*RawRecord {
	if c == nil {
		return nil
	}
	out := make([]*RawRecord, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.records[id])
	}
	return out
}

// UnmarshalJSON decodes a JSON object keyed by record id, keeping key order.
func (c *RecordCollection) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = RecordCollection{records: make(map[string]*RawRecord)}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record collection: expected object, got %v", tok)
	}
	out := RecordCollection{records: make(map[string]*RawRecord)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("record collection: unexpected key %v", keyTok)
		}
		var rec RawRecord
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("record collection: %s: %w", key, err)
		}
		out.Put(key, &rec)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// MarshalJSON encodes the collection as an object in insertion order.
func (c RecordCollection) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, id := range c.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.records[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
