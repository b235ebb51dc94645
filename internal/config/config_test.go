package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoad_EnvDefaults(t *testing.T) {
	t.Setenv("FLOWSTORE_URL", "http://flowstore")
	t.Setenv("HARVESTER_COMMON_AGENCIES", "870970, 870971")
	t.Setenv("HARVESTER_SCHEDULE_GUARD", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FlowStore.URL != "http://flowstore" {
		t.Errorf("flowstore url = %q", cfg.FlowStore.URL)
	}
	if !reflect.DeepEqual(cfg.CommonAgencies, []int{870970, 870971}) {
		t.Errorf("common agencies = %v", cfg.CommonAgencies)
	}
	if cfg.ScheduleGuard != 90*time.Second {
		t.Errorf("guard = %v", cfg.ScheduleGuard)
	}
	if cfg.EnrichmentAgency != 191919 || cfg.MaxConcurrency != 20 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Location().String() != "Europe/Copenhagen" {
		t.Errorf("location = %s", cfg.Location())
	}
}

func TestLoad_YAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harvester.yaml")
	data := []byte(`
flowStore:
  url: http://from-file
maxConcurrency: 4
commonAgencies: [870970]
minio:
  localRoot: /tmp/files
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FLOWSTORE_URL", "http://from-env")
	t.Setenv("HARVESTER_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FlowStore.URL != "http://from-file" || cfg.MaxConcurrency != 4 {
		t.Errorf("overlay not applied: %+v", cfg)
	}
	if cfg.MinIO.LocalRoot != "/tmp/files" || cfg.MinIO.Bucket != "harvester-files" {
		t.Errorf("minio = %+v", cfg.MinIO)
	}
}

func TestLoad_RequiresConfigStore(t *testing.T) {
	t.Setenv("FLOWSTORE_URL", "")
	t.Setenv("CONFIG_DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without a configuration store")
	}
}
