// Package temporal wraps the Temporal client used by the harvester binaries.
package temporal

import (
	"context"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"github.com/nucleus/harvest-core/internal/config"
)

// ScheduleID is the id of the schedule that ticks the harvester.
const ScheduleID = "periodic-harvester"

// Client wraps the Temporal client with schedule helpers.
type Client struct {
	client    client.Client
	taskQueue string
}

// NewClient dials Temporal.
func NewClient(cfg *config.HarvesterConfig) (*Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHost,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}
	return &Client{client: c, taskQueue: cfg.TemporalTaskQueue}, nil
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.client.Close()
}

// Client returns the underlying Temporal client.
func (c *Client) Client() client.Client {
	return c.client
}

// TaskQueue returns the worker task queue.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// =============================================================================
// SCHEDULE HELPERS
// =============================================================================

// EnsureSchedule creates the schedule or, when it exists, replaces its spec
// and action.
func (c *Client) EnsureSchedule(ctx context.Context, scheduleID, cronExpr, timezone string, workflow interface{}, args ...interface{}) error {
	handle := c.client.ScheduleClient().GetHandle(ctx, scheduleID)
	if _, err := handle.Describe(ctx); err == nil {
		return handle.Update(ctx, client.ScheduleUpdateOptions{
			DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
				input.Description.Schedule.Spec = c.spec(cronExpr, timezone)
				input.Description.Schedule.Action = c.action(scheduleID, workflow, args)
				return &client.ScheduleUpdate{Schedule: &input.Description.Schedule}, nil
			},
		})
	}

	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID:      scheduleID,
		Spec:    *c.spec(cronExpr, timezone),
		Action:  c.action(scheduleID, workflow, args),
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
	})
	if err != nil {
		return fmt.Errorf("create schedule %s: %w", scheduleID, err)
	}
	return nil
}

func (c *Client) spec(cronExpr, timezone string) *client.ScheduleSpec {
	return &client.ScheduleSpec{
		CronExpressions: []string{cronExpr},
		TimeZoneName:    timezone,
	}
}

func (c *Client) action(scheduleID string, workflow interface{}, args []interface{}) *client.ScheduleWorkflowAction {
	return &client.ScheduleWorkflowAction{
		ID:        scheduleID + "-tick",
		Workflow:  workflow,
		Args:      args,
		TaskQueue: c.taskQueue,
	}
}
