package recordservice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	httpclient "github.com/nucleus/harvest-core/internal/connector/http"
	"github.com/nucleus/harvest-core/pkg/harvest"
)

func TestClient_CollectionKeepsOrder(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/record/191919/12345678/all" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{
			"b": {"recordId": {"bibliographicRecordId": "b", "agencyId": 191919}, "content": "Yg=="},
			"a": {"recordId": {"bibliographicRecordId": "a", "agencyId": 191919}, "content": "YQ==",
			      "created": "2023-06-16T12:00:00Z", "enrichmentTrail": "870970,191919"}
		}`))
	}))
	defer server.Close()

	client := NewClient(httpclient.NewClient(httpclient.DefaultClientConfig(server.URL)))
	ref := harvest.RecordRef{BibliographicRecordID: "12345678", AgencyID: 191919}
	coll, err := client.Collection(context.Background(), ref, DefaultParams())
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	ids := coll.IDs()
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "a" {
		t.Fatalf("ids = %v", ids)
	}
	rec, _ := coll.Get("a")
	if string(rec.Content) != "a" || rec.Created == nil {
		t.Errorf("record a = %+v", rec)
	}
	if agency, ok := rec.LastTrailAgency(); !ok || agency != 191919 {
		t.Errorf("trail agency = %d, %v", agency, ok)
	}
	if gotQuery == "" {
		t.Error("expected fetch params on the request")
	}
}

func TestClient_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := NewClient(httpclient.NewClient(httpclient.DefaultClientConfig(server.URL)))
	_, err := client.ExpandedCollection(context.Background(), harvest.RecordRef{BibliographicRecordID: "x", AgencyID: 1}, DefaultParams())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParamsValues(t *testing.T) {
	q := Params{Mode: ModeExpanded, AllowDeleted: true, UseParentAgency: true}.values()
	if q.Get("mode") != "EXPANDED" || q.Get("allow-deleted") != "true" || q.Get("expand") != "false" || q.Get("use-parent-agency") != "true" {
		t.Errorf("values = %v", q)
	}
}
