// Package operation runs one harvest of one configuration: resolve the
// query, enumerate record ids, fetch envelopes with bounded concurrency,
// stage and submit the batch, then advance the configuration's watermark.
package operation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nucleus/harvest-core/internal/cover"
	"github.com/nucleus/harvest-core/internal/fetcher"
	"github.com/nucleus/harvest-core/internal/filestore"
	"github.com/nucleus/harvest-core/internal/jobstore"
	"github.com/nucleus/harvest-core/internal/macro"
	"github.com/nucleus/harvest-core/internal/source"
	"github.com/nucleus/harvest-core/internal/staging"
	"github.com/nucleus/harvest-core/pkg/harvest"
)

// =============================================================================
// TYPES
// =============================================================================

// State is a step of a harvest run.
type State string

const (
	StateIdle           State = "IDLE"
	StateResolvingQuery State = "RESOLVING_QUERY"
	StateEnumerating    State = "ENUMERATING"
	StateFetching       State = "FETCHING"
	StateSubmitting     State = "SUBMITTING"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
)

// JobStore is the job tracking collaborator.
type JobStore interface {
	AddJob(ctx context.Context, spec jobstore.Specification) (*jobstore.Snapshot, error)
	AddEmptyJob(ctx context.Context, spec jobstore.Specification) (*jobstore.Snapshot, error)
}

// ConfigPusher persists the advanced watermark.
type ConfigPusher interface {
	Push(ctx context.Context, cfg harvest.Config) (harvest.Config, error)
}

// Dependencies are the collaborators of a harvest run.
type Dependencies struct {
	Searcher     source.Searcher
	Files        filestore.Store
	Jobs         JobStore
	Updater      ConfigPusher
	Records      fetcher.RecordService
	Holdings     fetcher.HoldingsStore
	Covers       cover.Checker
	WeekResolver macro.WeekResolver
}

// Options tune a harvest run. Slots bounds fetch tasks across every run
// sharing it; nil gives the run its own MaxConcurrency slots.
type Options struct {
	MaxConcurrency    int
	Slots             *semaphore.Weighted
	Location          *time.Location
	CoverBatchSize    int
	StagingDir        string
	NotificationEmail string
	Fetch             fetcher.Options
	Logger            *log.Logger
	Metrics           *Metrics
	// Now is the clock; tests replace it.
	Now func() time.Time
}

// Result summarizes a successful run.
type Result struct {
	ConfigID     int64          `json:"configId"`
	TimeOfSearch time.Time      `json:"timeOfSearch"`
	Query        string         `json:"query,omitempty"`
	Identifiers  int            `json:"identifiers"`
	Skipped      int            `json:"skipped"`
	Filtered     int            `json:"filtered"`
	Envelopes    int            `json:"envelopes"`
	Diagnostics  int            `json:"diagnostics"`
	Omitted      int            `json:"omitted"`
	FileID       string         `json:"fileId,omitempty"`
	JobID        int64          `json:"jobId"`
	Empty        bool           `json:"empty"`
	Config       harvest.Config `json:"config"`
}

// Operation is a single harvest run. It is not reusable.
type Operation struct {
	cfg     harvest.Config
	deps    Dependencies
	opts    Options
	fetcher fetcher.Fetcher
	spec    jobstore.Specification
	logger  *log.Logger

	mu       sync.Mutex
	state    State
	inFlight atomic.Int64
}

// New validates cfg and prepares a run. The fetch strategy and the job
// specification are fixed here for the lifetime of the run.
func New(cfg harvest.Config, deps Dependencies, opts Options) (*Operation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Jobs == nil:
		return nil, errors.New("operation: job store is required")
	case deps.Updater == nil:
		return nil, errors.New("operation: config updater is required")
	case deps.Files == nil:
		return nil, errors.New("operation: file store is required")
	case cfg.Content.Query != "" && deps.Searcher == nil:
		return nil, errors.New("operation: searcher is required for query based configs")
	case cfg.Type() == harvest.TypeStandardWithCover && deps.Covers == nil:
		return nil, errors.New("operation: cover checker is required for STANDARD_WITH_COVER")
	}

	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 20
	}
	if opts.Slots == nil {
		opts.Slots = semaphore.NewWeighted(int64(opts.MaxConcurrency))
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.CoverBatchSize <= 0 {
		opts.CoverBatchSize = 100
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.Fetch.Logger == nil {
		opts.Fetch.Logger = logger
	}

	f, err := fetcher.New(cfg, fetcher.Dependencies{Records: deps.Records, Holdings: deps.Holdings}, opts.Fetch)
	if err != nil {
		return nil, err
	}
	spec, err := jobstore.NewSpecification(cfg, opts.NotificationEmail)
	if err != nil {
		return nil, harvest.NewError(harvest.CodeInvalidConfig, false, err)
	}

	return &Operation{
		cfg:     cfg,
		deps:    deps,
		opts:    opts,
		fetcher: f,
		spec:    spec,
		logger:  logger,
		state:   StateIdle,
	}, nil
}

// State returns the current step.
func (o *Operation) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Operation) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.logger.Printf("harvest config %d: %s", o.cfg.ID, s)
}

// =============================================================================
// EXECUTION
// =============================================================================

// Execute runs the harvest. On failure the configuration's watermark is left
// untouched and the error is a *harvest.Error unless ctx was cancelled.
func (o *Operation) Execute(ctx context.Context) (*Result, error) {
	start := time.Now()
	res, err := o.execute(ctx)

	if m := o.opts.Metrics; m != nil {
		m.RunDuration.Observe(time.Since(start).Seconds())
		switch {
		case err != nil:
			m.RunsTotal.WithLabelValues("failure").Inc()
		case res.Empty:
			m.RunsTotal.WithLabelValues("empty").Inc()
		default:
			m.RunsTotal.WithLabelValues("success").Inc()
		}
	}
	if err != nil {
		o.setState(StateFailed)
		return nil, err
	}
	return res, nil
}

func (o *Operation) execute(ctx context.Context) (*Result, error) {
	res := &Result{ConfigID: o.cfg.ID}

	o.setState(StateResolvingQuery)
	// captured before enumeration so records created mid-run are picked up next time
	res.TimeOfSearch = o.opts.Now().UTC()

	enum, err := o.identifiers(ctx, res)
	if err != nil {
		return nil, err
	}
	defer enum.Close()

	o.setState(StateFetching)
	batch, err := staging.NewBatchWriter(o.opts.StagingDir, fmt.Sprintf("harvest-%d", o.cfg.ID))
	if err != nil {
		return nil, harvest.NewError(harvest.CodeStaging, true, err)
	}
	defer staging.Cleanup(batch.Path())

	if err := o.fetchAll(ctx, enum, batch, res); err != nil {
		batch.Close()
		return nil, err
	}
	handle, err := batch.Close()
	if err != nil {
		return nil, harvest.NewError(harvest.CodeStaging, true, err)
	}

	o.setState(StateSubmitting)
	if err := o.submit(ctx, handle, res); err != nil {
		return nil, err
	}

	pushed, err := o.deps.Updater.Push(ctx, o.cfg.WithTimeOfLastHarvest(res.TimeOfSearch))
	if err != nil {
		return nil, err
	}
	res.Config = pushed
	if m := o.opts.Metrics; m != nil {
		m.Watermark.WithLabelValues(fmt.Sprint(o.cfg.ID)).Set(float64(res.TimeOfSearch.Unix()))
	}

	o.setState(StateDone)
	o.logger.Printf("harvest config %d: job %d, %d envelopes, %d diagnostics, %d omitted, %d filtered, %d skipped",
		o.cfg.ID, res.JobID, res.Envelopes, res.Diagnostics, res.Omitted, res.Filtered, res.Skipped)
	return res, nil
}

// identifiers opens the record id source of the configuration.
func (o *Operation) identifiers(ctx context.Context, res *Result) (*source.FileEnumerator, error) {
	if o.cfg.Content.QueryFileID != "" {
		o.setState(StateEnumerating)
		rc, err := o.deps.Files.GetFile(ctx, o.cfg.Content.QueryFileID)
		if err != nil {
			return nil, harvest.NewError(harvest.CodeEnumerate, retryable(err),
				fmt.Errorf("open record id file %s: %w", o.cfg.Content.QueryFileID, err))
		}
		return source.NewFileEnumerator(rc), nil
	}

	sub := macro.NewSubstitutor(o.cfg.Content.TimeOfLastHarvest, o.opts.Location, o.deps.WeekResolver)
	query, err := sub.Replace(ctx, o.cfg.Content.Query, res.TimeOfSearch)
	if err != nil {
		return nil, harvest.NewError(harvest.CodeQuery, true, err)
	}
	res.Query = query

	o.setState(StateEnumerating)
	keys, err := staging.CreateFile(o.opts.StagingDir, fmt.Sprintf("search-keys-%d", o.cfg.ID), "txt")
	if err != nil {
		return nil, harvest.NewError(harvest.CodeStaging, true, err)
	}
	n, err := o.deps.Searcher.Search(ctx, o.cfg.Content.Collection, query, keys)
	if cerr := keys.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		staging.Cleanup(keys.Name())
		return nil, harvest.NewError(harvest.CodeEnumerate, true, fmt.Errorf("search %q: %w", query, err))
	}
	o.logger.Printf("harvest config %d: search %q matched %d records", o.cfg.ID, query, n)

	enum, err := source.OpenFile(keys.Name())
	if err != nil {
		staging.Cleanup(keys.Name())
		return nil, harvest.NewError(harvest.CodeEnumerate, true, err)
	}
	// unlinked while open; the enumerator keeps reading it
	staging.Cleanup(keys.Name())
	return enum, nil
}

// fetchAll dispatches one fetch task per record id, never running more than
// the shared slot count at once. Tasks already started finish even if ctx is
// cancelled.
func (o *Operation) fetchAll(ctx context.Context, enum *source.FileEnumerator, batch *staging.BatchWriter, res *Result) error {
	taskCtx := context.WithoutCancel(ctx)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		writeErr error
	)

	collect := func(out fetcher.Outcome) {
		o.countOutcome(out.Kind)
		if out.Kind == fetcher.KindOmitted {
			mu.Lock()
			res.Omitted++
			mu.Unlock()
			return
		}
		err := batch.Write(out.Envelope)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			if writeErr == nil {
				writeErr = err
			}
			return
		}
		if out.Kind == fetcher.KindDiagnostic {
			res.Diagnostics++
		} else {
			res.Envelopes++
		}
	}

	dispatch := func(ref harvest.RecordRef) bool {
		if err := o.opts.Slots.Acquire(ctx, 1); err != nil {
			return false
		}
		wg.Add(1)
		o.taskStarted()
		go func() {
			defer func() {
				o.taskDone()
				o.opts.Slots.Release(1)
				wg.Done()
			}()
			collect(o.fetcher.Fetch(taskCtx, ref))
		}()
		return true
	}

	coverFilter := o.cfg.Type() == harvest.TypeStandardWithCover
	var pending []harvest.RecordRef
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		kept, err := cover.Filter(ctx, o.deps.Covers, pending, o.opts.CoverBatchSize)
		if err != nil {
			return harvest.NewError(harvest.CodeEnumerate, true, fmt.Errorf("cover filter: %w", err))
		}
		res.Filtered += len(pending) - len(kept)
		pending = pending[:0]
		for _, ref := range kept {
			if !dispatch(ref) {
				break
			}
		}
		return nil
	}

	var loopErr error
	for ctx.Err() == nil && enum.Next() {
		ref := enum.Value()
		if ref == nil {
			res.Skipped++
			o.countOutcome(-1)
			o.logger.Printf("harvest config %d: skipping malformed record id %q at line %d", o.cfg.ID, enum.Line(), enum.LineNumber())
			continue
		}
		res.Identifiers++
		if coverFilter {
			pending = append(pending, *ref)
			if len(pending) >= o.opts.CoverBatchSize {
				if loopErr = flush(); loopErr != nil {
					break
				}
			}
			continue
		}
		if !dispatch(*ref) {
			break
		}
	}
	if loopErr == nil && ctx.Err() == nil {
		loopErr = flush()
	}
	wg.Wait()

	switch {
	case loopErr != nil:
		return loopErr
	case ctx.Err() != nil:
		return fmt.Errorf("harvest config %d aborted: %w", o.cfg.ID, ctx.Err())
	case enum.Err() != nil:
		return harvest.NewError(harvest.CodeEnumerate, true, enum.Err())
	case writeErr != nil:
		return harvest.NewError(harvest.CodeStaging, true, writeErr)
	}
	return nil
}

// submit uploads the batch and creates the job, or an empty job when the run
// produced no envelopes.
func (o *Operation) submit(ctx context.Context, handle *staging.Handle, res *Result) error {
	if handle.Records == 0 {
		snap, err := o.deps.Jobs.AddEmptyJob(ctx, o.spec)
		if err != nil {
			return harvest.NewError(harvest.CodeSubmit, retryable(err), err)
		}
		res.JobID = snap.JobID
		res.Empty = true
		return nil
	}

	f, err := os.Open(handle.Path)
	if err != nil {
		return harvest.NewError(harvest.CodeStaging, true, err)
	}
	defer f.Close()

	fileID, err := o.deps.Files.AddFile(ctx, f, handle.Bytes)
	if err != nil {
		return harvest.NewError(harvest.CodeStaging, retryable(err), fmt.Errorf("upload batch: %w", err))
	}
	snap, err := o.deps.Jobs.AddJob(ctx, o.spec.WithDataFile(fileID))
	if err != nil {
		if derr := o.deps.Files.DeleteFile(context.WithoutCancel(ctx), fileID); derr != nil {
			o.logger.Printf("harvest config %d: unable to remove orphaned file %s: %v", o.cfg.ID, fileID, derr)
		}
		return harvest.NewError(harvest.CodeSubmit, retryable(err), err)
	}
	res.FileID = fileID
	res.JobID = snap.JobID
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// InFlight returns the number of running fetch tasks.
func (o *Operation) InFlight() int64 { return o.inFlight.Load() }

func (o *Operation) taskStarted() {
	o.inFlight.Add(1)
	if m := o.opts.Metrics; m != nil {
		m.TasksInFlight.Inc()
	}
}

func (o *Operation) taskDone() {
	o.inFlight.Add(-1)
	if m := o.opts.Metrics; m != nil {
		m.TasksInFlight.Dec()
	}
}

// countOutcome records a processed record; a negative kind is a skipped line.
func (o *Operation) countOutcome(kind fetcher.Kind) {
	m := o.opts.Metrics
	if m == nil {
		return
	}
	label := "skipped"
	if kind >= 0 {
		label = kind.String()
	}
	m.RecordsTotal.WithLabelValues(label).Inc()
}

// retryable reports whether err is marked retryable. Errors without a hint
// are treated as transient.
func retryable(err error) bool {
	var hinted interface{ RetryableStatus() bool }
	if errors.As(err, &hinted) {
		return hinted.RetryableStatus()
	}
	return true
}
