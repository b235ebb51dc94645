// Package updater pushes modified harvest configurations back to the
// configuration store.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nucleus/harvest-core/internal/configstore"
	"github.com/nucleus/harvest-core/pkg/harvest"
)

// Updater writes configurations with at most one retry on version conflict.
type Updater struct {
	store  configstore.Store
	logger *log.Logger
}

// New creates an Updater. A nil logger uses log.Default().
func New(store configstore.Store, logger *log.Logger) *Updater {
	if logger == nil {
		logger = log.Default()
	}
	return &Updater{store: store, logger: logger}
}

// Push stores cfg and returns it with its new version.
//
// On a version conflict the current version is fetched once and cfg's
// content is written again on top of it. Every other failure, including a
// second conflict, is returned as a non-retryable *harvest.Error.
func (u *Updater) Push(ctx context.Context, cfg harvest.Config) (harvest.Config, error) {
	updated, err := u.store.Update(ctx, cfg)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, configstore.ErrConflict) {
		return harvest.Config{}, harvest.NewError(harvest.CodeConfigStore, false,
			fmt.Errorf("update config %d: %w", cfg.ID, err))
	}

	u.logger.Printf("config %d: version %d is stale, refreshing", cfg.ID, cfg.Version)
	current, err := u.store.Get(ctx, cfg.ID)
	if err != nil {
		return harvest.Config{}, harvest.NewError(harvest.CodeConfigStore, false,
			fmt.Errorf("refresh config %d after conflict: %w", cfg.ID, err))
	}

	retry := cfg
	retry.Version = current.Version
	updated, err = u.store.Update(ctx, retry)
	if err != nil {
		code := harvest.CodeConfigStore
		if errors.Is(err, configstore.ErrConflict) {
			code = harvest.CodeConfigConflict
		}
		return harvest.Config{}, harvest.NewError(code, false,
			fmt.Errorf("retry update of config %d at version %d: %w", cfg.ID, current.Version, err))
	}
	return updated, nil
}
