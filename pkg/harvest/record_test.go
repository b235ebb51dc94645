package harvest

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestParseRecordRef(t *testing.T) {
	tests := []struct {
		in      string
		want    RecordRef
		wantErr bool
	}{
		{in: "12345678:870970", want: RecordRef{BibliographicRecordID: "12345678", AgencyID: 870970}},
		{in: "  abc:1 ", want: RecordRef{BibliographicRecordID: "abc", AgencyID: 1}},
		{in: "x:y:191919", want: RecordRef{BibliographicRecordID: "x:y", AgencyID: 191919}},
		{in: "12345678", wantErr: true},
		{in: "12345678:", wantErr: true},
		{in: ":870970", wantErr: true},
		{in: "12345678:agency", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRecordRef(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordCollection_KeepsFirstSeenOrder(t *testing.T) {
	c := NewRecordCollection()
	c.Put("b", &RawRecord{Content: []byte("B")})
	c.Put("a", &RawRecord{Content: []byte("A")})
	c.Put("b", &RawRecord{Content: []byte("B2")})

	if got := c.IDs(); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Fatalf("ids = %v", got)
	}
	rec, _ := c.Get("b")
	if string(rec.Content) != "B2" {
		t.Errorf("expected replaced content, got %q", rec.Content)
	}
}

func TestRecordCollection_UnmarshalPreservesKeyOrder(t *testing.T) {
	payload := `{
		"z1": {"recordId": {"bibliographicRecordId": "z1", "agencyId": 870970}, "content": "Wg=="},
		"a1": {"recordId": {"bibliographicRecordId": "a1", "agencyId": 870970}, "content": "QQ==", "enrichmentTrail": "191919,870970"},
		"m1": {"recordId": {"bibliographicRecordId": "m1", "agencyId": 870970}, "content": "TQ=="}
	}`
	var c RecordCollection
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := c.IDs(); !reflect.DeepEqual(got, []string{"z1", "a1", "m1"}) {
		t.Fatalf("ids = %v", got)
	}
	a1, ok := c.Get("a1")
	if !ok || string(a1.Content) != "A" {
		t.Fatalf("a1 = %+v", a1)
	}
	if agency, ok := a1.LastTrailAgency(); !ok || agency != 870970 {
		t.Errorf("last trail agency = %d %v", agency, ok)
	}

	out, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var again RecordCollection
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}
	if !reflect.DeepEqual(again.IDs(), c.IDs()) {
		t.Errorf("order lost: %v", again.IDs())
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("query and file are mutually exclusive", func(t *testing.T) {
		cfg := Config{ID: 1, Content: Content{Query: "q", QueryFileID: "f"}}
		err := cfg.Validate()
		var herr *Error
		if !errors.As(err, &herr) || herr.Code != CodeAmbiguousConfig {
			t.Fatalf("expected %s, got %v", CodeAmbiguousConfig, err)
		}
	})
	t.Run("holdings type requires filter", func(t *testing.T) {
		cfg := Config{ID: 2, Content: Content{Query: "q", HarvesterType: TypeStandardWithHoldings}}
		var herr *Error
		if err := cfg.Validate(); !errors.As(err, &herr) || herr.Code != CodeInvalidConfig {
			t.Fatalf("expected %s, got %v", CodeInvalidConfig, err)
		}
		cfg.Content.HoldingsFilter = WithoutHoldings
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	t.Run("unknown type is invalid", func(t *testing.T) {
		cfg := Config{ID: 4, Content: Content{Query: "q", HarvesterType: "FULL_DUMP"}}
		var herr *Error
		if err := cfg.Validate(); !errors.As(err, &herr) || herr.Code != CodeInvalidConfig {
			t.Fatalf("expected %s, got %v", CodeInvalidConfig, err)
		}
	})
	t.Run("empty type is standard", func(t *testing.T) {
		cfg := Config{ID: 3, Content: Content{QueryFileID: "f"}}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Type() != TypeStandard {
			t.Errorf("type = %s", cfg.Type())
		}
	})
}
