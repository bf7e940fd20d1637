// Package recorder keeps the append-only execution log of one workflow run.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/graphloom/loom/pkg/schema"
)

// Recorder appends per-node outcome entries in execution order. Entries
// are immutable once written; the full list is handed to the run sink
// when the run finishes.
type Recorder struct {
	mu      sync.Mutex
	entries []schema.LogEntry
	logger  *slog.Logger
}

// New creates an empty Recorder. logger may be nil.
func New(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger}
}

// Record appends an entry for a node execution. iteration is 1-based and
// zero outside a loop; duration covers wall-clock execution time.
func (r *Recorder) Record(ctx context.Context, node string, status schema.StepStatus, iteration int, message string, duration time.Duration) schema.LogEntry {
	entry := schema.LogEntry{
		Timestamp:  time.Now().UTC(),
		Node:       node,
		Status:     status,
		Iteration:  iteration,
		Message:    message,
		DurationMs: duration.Milliseconds(),
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()

	level := slog.LevelInfo
	if status == schema.StepFailed {
		level = slog.LevelError
	}
	r.logger.Log(ctx, level, "node "+string(status),
		slog.String("node", node),
		slog.Int("iteration", iteration),
		slog.String("message", message),
		slog.Int64("duration_ms", entry.DurationMs),
	)

	return entry
}

// Entries returns a copy of all entries in append order.
func (r *Recorder) Entries() []schema.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schema.LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of recorded entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
