package activities

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ScheduledHarvestWorkflowName is the registered workflow type.
const ScheduledHarvestWorkflowName = "scheduledHarvestWorkflow"

// =============================================================================
// ACTIVITY OPTIONS
// =============================================================================

var listActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    30 * time.Second,
		MaximumAttempts:    3,
	},
}

var harvestActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 6 * time.Hour,
	HeartbeatTimeout:    2 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    time.Second * 5,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute * 5,
		MaximumAttempts:    3,
	},
}

// =============================================================================
// SCHEDULED HARVEST WORKFLOW
// =============================================================================

// ScheduledHarvestWorkflow is one scheduler tick: it lists the configurations
// that are due and harvests each of them, different configurations in
// parallel. A failed harvest does not fail the tick.
func ScheduledHarvestWorkflow(ctx workflow.Context, input ScheduledHarvestInput) (*ScheduledHarvestResult, error) {
	logger := workflow.GetLogger(ctx)

	listCtx := workflow.WithActivityOptions(ctx, listActivityOptions)
	var runnable ListRunnableResult
	err := workflow.ExecuteActivity(listCtx, ListRunnableConfigsActivity, ListRunnableRequest{
		Now:       workflow.Now(ctx),
		ConfigIDs: input.ConfigIDs,
	}).Get(ctx, &runnable)
	if err != nil {
		return nil, err
	}

	harvestCtx := workflow.WithActivityOptions(ctx, harvestActivityOptions)
	futures := make([]workflow.Future, len(runnable.ConfigIDs))
	for i, id := range runnable.ConfigIDs {
		futures[i] = workflow.ExecuteActivity(harvestCtx, RunHarvestActivity, RunHarvestRequest{ConfigID: id})
	}

	result := &ScheduledHarvestResult{Completed: []int64{}, Skipped: []int64{}, Failed: []int64{}}
	for i, f := range futures {
		id := runnable.ConfigIDs[i]
		var run RunHarvestResult
		if err := f.Get(ctx, &run); err != nil {
			logger.Error("harvest failed", "configId", id, "error", err)
			result.Failed = append(result.Failed, id)
			continue
		}
		if run.Status == StatusSkipped {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		result.Completed = append(result.Completed, id)
	}

	logger.Info("scheduled harvest tick complete",
		"completed", len(result.Completed), "skipped", len(result.Skipped), "failed", len(result.Failed))
	return result, nil
}
