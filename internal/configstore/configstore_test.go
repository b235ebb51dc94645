package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	httpclient "github.com/nucleus/harvest-core/internal/connector/http"
	"github.com/nucleus/harvest-core/pkg/harvest"
)

func TestFlowStore_GetAndUpdate(t *testing.T) {
	stored := harvest.Config{ID: 5, Version: 2, Content: harvest.Content{Name: "weekly", Schedule: "0 6 * * 1"}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/harvester-configs/5":
			_ = json.NewEncoder(w).Encode(stored)
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/harvester-configs/5/"):
			version, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/harvester-configs/5/"), 10, 64)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if version != stored.Version {
				http.Error(w, "stale version", http.StatusConflict)
				return
			}
			var content harvest.Content
			if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			stored = harvest.Config{ID: 5, Version: stored.Version + 1, Content: content}
			_ = json.NewEncoder(w).Encode(stored)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	store := NewFlowStore(httpclient.NewClient(httpclient.DefaultClientConfig(server.URL)))
	ctx := context.Background()

	cfg, err := store.Get(ctx, 5)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.Version != 2 || cfg.Content.Name != "weekly" {
		t.Errorf("cfg = %+v", cfg)
	}

	updated, err := store.Update(ctx, cfg.WithTimeOfLastHarvest(time.Date(2023, 6, 16, 12, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version != 3 || updated.Content.TimeOfLastHarvest == nil {
		t.Errorf("updated = %+v", updated)
	}

	// the stale version now conflicts
	_, err = store.Update(ctx, cfg)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	_, err = store.Get(ctx, 99)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFlowStore_ServerErrorIsNotConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	defer server.Close()

	store := NewFlowStore(httpclient.NewClient(httpclient.DefaultClientConfig(server.URL)))
	_, err := store.Update(context.Background(), harvest.Config{ID: 1, Version: 1})
	if err == nil || errors.Is(err, ErrConflict) {
		t.Fatalf("expected non-conflict error, got %v", err)
	}
	if httpclient.StatusCode(err) != http.StatusTeapot {
		t.Errorf("status = %d", httpclient.StatusCode(err))
	}
}

func TestPostgresStore_VersionedUpdate(t *testing.T) {
	dsn := os.Getenv("CONFIG_DATABASE_URL")
	if dsn == "" {
		t.Skip("CONFIG_DATABASE_URL not set")
	}
	store, err := OpenPostgresStore(dsn)
	if err != nil {
		t.Fatalf("OpenPostgresStore: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	created, err := store.Create(ctx, harvest.Content{Name: "pg-test", Schedule: "* * * * *", Enabled: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Version != 1 {
		t.Errorf("version = %d", created.Version)
	}

	updated, err := store.Update(ctx, created.WithTimeOfLastHarvest(time.Now()))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("version = %d", updated.Version)
	}

	if _, err := store.Update(ctx, created); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 2 || got.Content.TimeOfLastHarvest == nil {
		t.Errorf("got = %+v", got)
	}
}
