// Package activities implements the Temporal activities and workflow of the
// periodic harvester.
package activities

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/nucleus/harvest-core/internal/configstore"
	"github.com/nucleus/harvest-core/internal/operation"
	"github.com/nucleus/harvest-core/internal/schedule"
	"github.com/nucleus/harvest-core/pkg/harvest"
)

// Activity names as registered on the worker.
const (
	ListRunnableConfigsActivity = "ListRunnableConfigs"
	RunHarvestActivity          = "RunHarvest"
)

const errConfigNotFound = "CONFIG_NOT_FOUND"

// Harvester runs one configuration. operation.Runner is the production
// implementation.
type Harvester interface {
	Run(ctx context.Context, cfg harvest.Config) (*operation.Result, error)
}

// Activities holds the harvester's Temporal activities.
type Activities struct {
	configs   configstore.Store
	gate      *schedule.Gate
	harvester Harvester
	heartbeat time.Duration

	// config ids with a harvest running in this worker
	running sync.Map
}

// NewActivities creates the activity set.
func NewActivities(configs configstore.Store, gate *schedule.Gate, harvester Harvester) *Activities {
	return &Activities{
		configs:   configs,
		gate:      gate,
		harvester: harvester,
		heartbeat: 30 * time.Second,
	}
}

// =============================================================================
// ACTIVITY 1: ListRunnableConfigs
// =============================================================================

// ListRunnableConfigs returns the enabled configurations whose schedule is due.
func (a *Activities) ListRunnableConfigs(ctx context.Context, req ListRunnableRequest) (*ListRunnableResult, error) {
	logger := activity.GetLogger(ctx)

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	wanted := make(map[int64]bool, len(req.ConfigIDs))
	for _, id := range req.ConfigIDs {
		wanted[id] = true
	}

	configs, err := a.configs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list harvest configs: %w", err)
	}

	result := &ListRunnableResult{ConfigIDs: []int64{}}
	for _, cfg := range configs {
		if len(wanted) > 0 && !wanted[cfg.ID] {
			continue
		}
		if !cfg.Content.Enabled {
			result.Disabled++
			continue
		}
		if _, err := schedule.Parse(cfg.Content.Schedule); err != nil {
			logger.Warn("invalid harvest schedule", "configId", cfg.ID, "schedule", cfg.Content.Schedule, "error", err)
			result.NotDue++
			continue
		}
		if !a.gate.CanRun(cfg, now) {
			result.NotDue++
			continue
		}
		result.ConfigIDs = append(result.ConfigIDs, cfg.ID)
	}
	sort.Slice(result.ConfigIDs, func(i, j int) bool { return result.ConfigIDs[i] < result.ConfigIDs[j] })

	logger.Info("listed runnable harvest configs", "runnable", len(result.ConfigIDs), "disabled", result.Disabled, "notDue", result.NotDue)
	return result, nil
}

// =============================================================================
// ACTIVITY 2: RunHarvest
// =============================================================================

// RunHarvest harvests one configuration. The configuration is read fresh so
// the watermark push starts from the current version. A second request for
// a configuration already running in this worker is skipped.
func (a *Activities) RunHarvest(ctx context.Context, req RunHarvestRequest) (*RunHarvestResult, error) {
	logger := activity.GetLogger(ctx)
	result := &RunHarvestResult{ConfigID: req.ConfigID}

	if _, busy := a.running.LoadOrStore(req.ConfigID, struct{}{}); busy {
		logger.Info("harvest already running", "configId", req.ConfigID)
		result.Status, result.Reason = StatusSkipped, "already running"
		return result, nil
	}
	defer a.running.Delete(req.ConfigID)

	cfg, err := a.configs.Get(ctx, req.ConfigID)
	if err != nil {
		if errors.Is(err, configstore.ErrNotFound) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), errConfigNotFound, err)
		}
		return nil, fmt.Errorf("failed to load harvest config %d: %w", req.ConfigID, err)
	}
	if !cfg.Content.Enabled {
		result.Status, result.Reason = StatusSkipped, "disabled"
		return result, nil
	}

	logger.Info("starting harvest", "configId", cfg.ID, "version", cfg.Version, "name", cfg.Content.Name)
	stop := a.startHeartbeat(ctx, cfg.ID)
	res, err := a.harvester.Run(ctx, cfg)
	stop()
	if err != nil {
		logger.Error("harvest failed", "configId", cfg.ID, "error", err)
		return nil, applicationError(err)
	}

	result.Status = StatusCompleted
	if res.Empty {
		result.Status = StatusEmpty
	}
	result.JobID = res.JobID
	result.FileID = res.FileID
	result.TimeOfSearch = res.TimeOfSearch
	result.Identifiers = res.Identifiers
	result.Envelopes = res.Envelopes
	result.Diagnostics = res.Diagnostics
	result.Omitted = res.Omitted
	result.Filtered = res.Filtered
	result.SkippedLines = res.Skipped

	logger.Info("harvest complete", "configId", cfg.ID, "jobId", res.JobID, "envelopes", res.Envelopes, "diagnostics", res.Diagnostics)
	return result, nil
}

func (a *Activities) startHeartbeat(ctx context.Context, configID int64) func() {
	if a.heartbeat <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(a.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx, configID)
			}
		}
	}()
	return func() { close(done) }
}

// applicationError maps a harvester error onto a Temporal application error
// carrying its code, so the retry policy honours its retryable flag.
func applicationError(err error) error {
	var herr *harvest.Error
	if !errors.As(err, &herr) {
		return err
	}
	if herr.Retryable {
		return temporal.NewApplicationErrorWithCause(herr.Error(), herr.CodeValue(), herr)
	}
	return temporal.NewNonRetryableApplicationError(herr.Error(), herr.CodeValue(), herr)
}
