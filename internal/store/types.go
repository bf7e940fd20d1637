package store

import (
	"time"

	"github.com/graphloom/loom/pkg/schema"
)

// Workflow is a stored graph definition that runs are launched from.
type Workflow struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Definition  schema.GraphDefinition `json:"graph_definition"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// Run is the persisted record of one workflow execution.
type Run struct {
	ID             string            `json:"run_id"`
	WorkflowID     string            `json:"workflow_id"`
	Status         schema.RunStatus  `json:"status"`
	CurrentNode    string            `json:"current_node,omitempty"`
	IterationCount int               `json:"iteration_count"`
	State          map[string]any    `json:"state,omitempty"`
	Logs           []schema.LogEntry `json:"logs,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

// RunSnapshot is one append-only entry of a run's state history.
type RunSnapshot struct {
	RunID     string         `json:"run_id"`
	Sequence  int64          `json:"sequence"`
	Label     string         `json:"label"`
	State     map[string]any `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
}

// ScheduledJob launches a stored workflow on a cron expression.
type ScheduledJob struct {
	ID             string         `json:"id"`
	WorkflowID     string         `json:"workflow_id"`
	CronExpression string         `json:"cron_expression"`
	InitialState   map[string]any `json:"initial_state,omitempty"`
	Enabled        bool           `json:"enabled"`
	LastRunAt      *time.Time     `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time     `json:"next_run_at,omitempty"`
	LastRunStatus  string         `json:"last_run_status,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// --- Filter and update types ---

// WorkflowFilter specifies criteria for listing workflows.
type WorkflowFilter struct {
	Name   string `json:"name,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// RunUpdate specifies mutable fields of a run. Nil fields are unchanged;
// State and Logs replace the stored value wholesale when non-nil.
type RunUpdate struct {
	Status         *schema.RunStatus `json:"status,omitempty"`
	CurrentNode    *string           `json:"current_node,omitempty"`
	IterationCount *int              `json:"iteration_count,omitempty"`
	State          map[string]any    `json:"state,omitempty"`
	Logs           []schema.LogEntry `json:"logs,omitempty"`
	ErrorMessage   *string           `json:"error_message,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	WorkflowID string            `json:"workflow_id,omitempty"`
	Status     *schema.RunStatus `json:"status,omitempty"`
	Since      *time.Time        `json:"since,omitempty"`
	Limit      int               `json:"limit,omitempty"`
	Offset     int               `json:"offset,omitempty"`
}

// ScheduledJobUpdate specifies mutable fields of a scheduled job.
type ScheduledJobUpdate struct {
	Enabled       *bool      `json:"enabled,omitempty"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	NextRunAt     *time.Time `json:"next_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
}

// ScheduledJobFilter specifies criteria for listing scheduled jobs.
type ScheduledJobFilter struct {
	WorkflowID string `json:"workflow_id,omitempty"`
	Enabled    *bool  `json:"enabled,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}
