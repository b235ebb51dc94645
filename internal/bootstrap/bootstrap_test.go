package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nucleus/harvest-core/internal/config"
	"github.com/nucleus/harvest-core/internal/configstore"
)

func testConfig(t *testing.T) *config.HarvesterConfig {
	t.Helper()
	return &config.HarvesterConfig{
		FlowStore:      config.ServiceConfig{URL: "http://flowstore.local"},
		RecordService:  config.ServiceConfig{URL: "http://records.local"},
		JobStore:       config.ServiceConfig{URL: "http://jobs.local", Token: "secret"},
		Solr:           config.ServiceConfig{URL: "http://solr.local/solr"},
		MinIO:          config.MinIOConfig{LocalRoot: t.TempDir()},
		MaxConcurrency: 5,
		TimeZone:       "Europe/Copenhagen",
		CoverBatchSize: 50,
		SearchPageSize: 100,
		ScheduleGuard:  time.Minute,
		StagingDir:     t.TempDir(),
	}
}

func TestBuild(t *testing.T) {
	svc, err := Build(context.Background(), testConfig(t), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer svc.Close()

	if _, ok := svc.Configs.(*configstore.FlowStore); !ok {
		t.Errorf("config store = %T, want flowstore", svc.Configs)
	}
	deps := svc.Runner.Deps
	if deps.Searcher == nil || deps.Records == nil || deps.Jobs == nil || deps.Files == nil || deps.Updater == nil {
		t.Errorf("missing required collaborator: %+v", deps)
	}
	if deps.Holdings != nil || deps.Covers != nil || deps.WeekResolver != nil {
		t.Errorf("optional collaborators should be unset: %+v", deps)
	}
	opts := svc.Runner.Options
	if opts.MaxConcurrency != 5 || opts.Location.String() != "Europe/Copenhagen" || opts.Metrics == nil {
		t.Errorf("options = %+v", opts)
	}
	if opts.Fetch.EnrichmentAgency != 191919 || opts.Fetch.CrossRefTag != "015" {
		t.Errorf("fetch options = %+v", opts.Fetch)
	}
	if svc.Gate == nil {
		t.Error("gate not built")
	}
}

func TestBuild_RequiresCollaborators(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.HarvesterConfig)
	}{
		{"record service", func(c *config.HarvesterConfig) { c.RecordService.URL = "" }},
		{"job store", func(c *config.HarvesterConfig) { c.JobStore.URL = "" }},
		{"file store", func(c *config.HarvesterConfig) { c.MinIO = config.MinIOConfig{EndpointURL: "http://minio.local"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			if _, err := Build(context.Background(), cfg, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
