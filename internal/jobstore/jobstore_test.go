package jobstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httpclient "github.com/nucleus/harvest-core/internal/connector/http"
	"github.com/nucleus/harvest-core/pkg/harvest"
)

func testConfig() harvest.Config {
	return harvest.Config{
		ID:      7,
		Version: 3,
		Content: harvest.Content{
			Name:            "bibdk-weekly",
			Destination:     "bibdk",
			Format:          "marc2",
			SubmitterNumber: "870970",
			ContentHeader:   "<collection>",
			ContentFooter:   "</collection>",
		},
	}
}

func TestNewSpecification(t *testing.T) {
	spec, err := NewSpecification(testConfig(), "ops@example.org")
	if err != nil {
		t.Fatalf("NewSpecification: %v", err)
	}
	if spec.SubmitterID != 870970 || spec.Packaging != Packaging || spec.Type != TypePeriodic {
		t.Errorf("spec = %+v", spec)
	}
	if spec.MailForNotificationAboutProcessing != "ops@example.org" {
		t.Errorf("mail = %q", spec.MailForNotificationAboutProcessing)
	}
	if spec.Ancestry.ContentHeader != "<collection>" || spec.Ancestry.Source != "bibdk-weekly" {
		t.Errorf("ancestry = %+v", spec.Ancestry)
	}
	withFile := spec.WithDataFile("abc")
	if withFile.DataFile != "urn:dataio-fs:abc" || spec.DataFile != MissingFieldValue {
		t.Errorf("data file = %q / %q", withFile.DataFile, spec.DataFile)
	}

	bad := testConfig()
	bad.Content.SubmitterNumber = "n/a"
	if _, err := NewSpecification(bad, ""); err == nil {
		t.Error("expected error for non-numeric submitter")
	}
}

func TestClient_AddJobAndEmptyJob(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var in InputStream
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || !in.IsEndOfJob {
			http.Error(w, "bad input stream", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Snapshot{JobID: 42, Specification: &in.Specification})
	}))
	defer server.Close()

	client := NewClient(httpclient.NewClient(httpclient.DefaultClientConfig(server.URL)))
	spec, _ := NewSpecification(testConfig(), "")

	snap, err := client.AddJob(context.Background(), spec.WithDataFile("f1"))
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if snap.JobID != 42 || !strings.HasSuffix(snap.Specification.DataFile, "f1") {
		t.Errorf("snapshot = %+v", snap)
	}
	if _, err := client.AddEmptyJob(context.Background(), spec); err != nil {
		t.Fatalf("AddEmptyJob: %v", err)
	}
	if len(paths) != 2 || paths[0] != "/jobs" || paths[1] != "/jobs/empty" {
		t.Errorf("paths = %v", paths)
	}
}
