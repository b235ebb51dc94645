package updater

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/nucleus/harvest-core/internal/configstore"
	"github.com/nucleus/harvest-core/pkg/harvest"
)

type fakeStore struct {
	current     harvest.Config
	updateErrs  []error
	getErr      error
	getCalls    int
	updateCalls int
	updatedWith []harvest.Config
}

func (f *fakeStore) Get(_ context.Context, id int64) (harvest.Config, error) {
	f.getCalls++
	if f.getErr != nil {
		return harvest.Config{}, f.getErr
	}
	return f.current, nil
}

func (f *fakeStore) Update(_ context.Context, cfg harvest.Config) (harvest.Config, error) {
	f.updateCalls++
	f.updatedWith = append(f.updatedWith, cfg)
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return harvest.Config{}, err
		}
	}
	cfg.Version++
	f.current = cfg
	return cfg, nil
}

func (f *fakeStore) List(context.Context) ([]harvest.Config, error) {
	return []harvest.Config{f.current}, nil
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func TestPush_Success(t *testing.T) {
	store := &fakeStore{}
	u := New(store, quiet())

	got, err := u.Push(context.Background(), harvest.Config{ID: 1, Version: 4})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if got.Version != 5 || store.updateCalls != 1 || store.getCalls != 0 {
		t.Errorf("version=%d updates=%d gets=%d", got.Version, store.updateCalls, store.getCalls)
	}
}

func TestPush_SingleConflictRetriesOnce(t *testing.T) {
	store := &fakeStore{
		current:    harvest.Config{ID: 1, Version: 9, Content: harvest.Content{Name: "edited elsewhere"}},
		updateErrs: []error{configstore.ErrConflict},
	}
	u := New(store, quiet())

	mine := harvest.Config{ID: 1, Version: 4, Content: harvest.Content{Name: "mine"}}
	got, err := u.Push(context.Background(), mine)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if store.getCalls != 1 || store.updateCalls != 2 {
		t.Fatalf("gets=%d updates=%d, want 1 and 2", store.getCalls, store.updateCalls)
	}
	retried := store.updatedWith[1]
	if retried.Version != 9 || retried.Content.Name != "mine" {
		t.Errorf("retry = %+v, want caller content at refreshed version", retried)
	}
	if got.Version != 10 {
		t.Errorf("version = %d", got.Version)
	}
}

func TestPush_DoubleConflictIsFatal(t *testing.T) {
	store := &fakeStore{
		current:    harvest.Config{ID: 1, Version: 9},
		updateErrs: []error{configstore.ErrConflict, configstore.ErrConflict},
	}
	u := New(store, quiet())

	_, err := u.Push(context.Background(), harvest.Config{ID: 1, Version: 4})
	var herr *harvest.Error
	if !errors.As(err, &herr) {
		t.Fatalf("expected *harvest.Error, got %v", err)
	}
	if herr.Code != harvest.CodeConfigConflict || herr.Retryable {
		t.Errorf("error = %s retryable=%v", herr.Code, herr.Retryable)
	}
	if store.updateCalls != 2 || store.getCalls != 1 {
		t.Errorf("updates=%d gets=%d, want 2 and 1", store.updateCalls, store.getCalls)
	}
}

func TestPush_NonConflictIsFatalWithoutRetry(t *testing.T) {
	store := &fakeStore{updateErrs: []error{errors.New("HTTP 500")}}
	u := New(store, quiet())

	_, err := u.Push(context.Background(), harvest.Config{ID: 1, Version: 4})
	var herr *harvest.Error
	if !errors.As(err, &herr) || herr.Code != harvest.CodeConfigStore {
		t.Fatalf("expected %s, got %v", harvest.CodeConfigStore, err)
	}
	if store.updateCalls != 1 || store.getCalls != 0 {
		t.Errorf("updates=%d gets=%d", store.updateCalls, store.getCalls)
	}
}

func TestPush_RefreshFailureIsFatal(t *testing.T) {
	store := &fakeStore{
		updateErrs: []error{configstore.ErrConflict},
		getErr:     errors.New("flow store down"),
	}
	u := New(store, quiet())

	_, err := u.Push(context.Background(), harvest.Config{ID: 1, Version: 4})
	if err == nil {
		t.Fatal("expected error")
	}
	if store.updateCalls != 1 || store.getCalls != 1 {
		t.Errorf("updates=%d gets=%d", store.updateCalls, store.getCalls)
	}
}
