// Package configstore reads and versions harvest configurations.
package configstore

import (
	"context"
	"errors"

	"github.com/nucleus/harvest-core/pkg/harvest"
)

var (
	// ErrConflict is returned by Update when the stored version differs
	// from the version being updated.
	ErrConflict = errors.New("harvest config version conflict")
	// ErrNotFound is returned when no configuration has the requested id.
	ErrNotFound = errors.New("harvest config not found")
)

// Store is the configuration store collaborator.
type Store interface {
	// Get returns the current version of a configuration.
	Get(ctx context.Context, id int64) (harvest.Config, error)
	// Update stores cfg.Content if cfg.Version is current and returns the
	// configuration with its new version.
	Update(ctx context.Context, cfg harvest.Config) (harvest.Config, error)
	// List returns every periodic harvest configuration.
	List(ctx context.Context) ([]harvest.Config, error)
}
