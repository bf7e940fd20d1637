package schema

import "time"

// RunStatus is the lifecycle status of a workflow run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// StepStatus is the outcome of a single node execution.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// LogEntry records the outcome of executing a single node. Entries are
// appended in execution order and are immutable once written.
type LogEntry struct {
	Timestamp  time.Time  `json:"timestamp"`
	Node       string     `json:"node"`
	Status     StepStatus `json:"status"`
	Iteration  int        `json:"iteration,omitempty"` // 1-based; 0 outside a loop
	Message    string     `json:"message,omitempty"`
	DurationMs int64      `json:"duration_ms,omitempty"`
}
