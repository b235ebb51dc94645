package activities

import "time"

// =============================================================================
// LIST RUNNABLE CONFIGS
// =============================================================================

// ListRunnableRequest asks which configurations are due at Now.
type ListRunnableRequest struct {
	Now time.Time `json:"now"`
	// ConfigIDs restricts the answer to these ids when non-empty.
	ConfigIDs []int64 `json:"configIds,omitempty"`
}

// ListRunnableResult holds the ids of due configurations.
type ListRunnableResult struct {
	ConfigIDs []int64 `json:"configIds"`
	Disabled  int     `json:"disabled"`
	NotDue    int     `json:"notDue"`
}

// =============================================================================
// RUN HARVEST
// =============================================================================

// Run statuses reported by RunHarvest.
const (
	StatusCompleted = "completed"
	StatusEmpty     = "empty"
	StatusSkipped   = "skipped"
)

// RunHarvestRequest names the configuration to harvest.
type RunHarvestRequest struct {
	ConfigID int64 `json:"configId"`
}

// RunHarvestResult summarizes one harvest.
type RunHarvestResult struct {
	ConfigID     int64     `json:"configId"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	JobID        int64     `json:"jobId,omitempty"`
	FileID       string    `json:"fileId,omitempty"`
	TimeOfSearch time.Time `json:"timeOfSearch"`
	Identifiers  int       `json:"identifiers"`
	Envelopes    int       `json:"envelopes"`
	Diagnostics  int       `json:"diagnostics"`
	Omitted      int       `json:"omitted"`
	Filtered     int       `json:"filtered"`
	SkippedLines int       `json:"skippedLines"`
}

// =============================================================================
// SCHEDULED HARVEST WORKFLOW
// =============================================================================

// ScheduledHarvestInput is the input for ScheduledHarvestWorkflow.
type ScheduledHarvestInput struct {
	ConfigIDs []int64 `json:"configIds,omitempty"`
}

// ScheduledHarvestResult lists what one tick did per configuration id.
type ScheduledHarvestResult struct {
	Completed []int64 `json:"completed"`
	Skipped   []int64 `json:"skipped"`
	Failed    []int64 `json:"failed"`
}
