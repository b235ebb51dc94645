package operation

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/nucleus/harvest-core/pkg/harvest"
)

// Runner builds and executes one Operation per configuration with shared
// collaborators. All runs started through one Runner share a single pool of
// Options.MaxConcurrency fetch slots, however many configurations run at once.
type Runner struct {
	Deps    Dependencies
	Options Options

	once  sync.Once
	slots *semaphore.Weighted
}

// Run harvests cfg once.
func (r *Runner) Run(ctx context.Context, cfg harvest.Config) (*Result, error) {
	opts := r.Options
	if opts.Slots == nil {
		opts.Slots = r.sharedSlots()
	}
	op, err := New(cfg, r.Deps, opts)
	if err != nil {
		return nil, err
	}
	return op.Execute(ctx)
}

func (r *Runner) sharedSlots() *semaphore.Weighted {
	r.once.Do(func() {
		n := r.Options.MaxConcurrency
		if n <= 0 {
			n = 20
		}
		r.slots = semaphore.NewWeighted(int64(n))
	})
	return r.slots
}
