package store

import (
	"context"
	"log/slog"

	"github.com/graphloom/loom/internal/engine"
)

// EngineSink persists engine progress updates into the run table and,
// on terminal updates, the snapshot history.
type EngineSink struct {
	store  Store
	logger *slog.Logger
}

// NewEngineSink returns a sink that writes run progress to the given store.
func NewEngineSink(st Store, logger *slog.Logger) *EngineSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &EngineSink{store: st, logger: logger}
}

// OnProgress applies a partial run update. Only fields set on the update are
// written; on terminal updates the run's snapshot history is appended too.
func (s *EngineSink) OnProgress(ctx context.Context, runID string, update engine.RunProgress) error {
	ru := RunUpdate{
		Status:         update.Status,
		CurrentNode:    update.CurrentNode,
		IterationCount: update.IterationCount,
		State:          update.State,
		Logs:           update.Logs,
		ErrorMessage:   update.ErrorMessage,
		CompletedAt:    update.CompletedAt,
	}
	if err := s.store.UpdateRun(ctx, runID, ru); err != nil {
		return err
	}

	for _, snap := range update.Snapshots {
		rs := &RunSnapshot{
			RunID:     runID,
			Label:     snap.Label,
			State:     snap.State,
			Timestamp: snap.Timestamp,
		}
		if err := s.store.AppendSnapshot(ctx, rs); err != nil {
			s.logger.Warn("failed to persist run snapshot",
				slog.String("run_id", runID),
				slog.String("label", snap.Label),
				slog.String("error", err.Error()))
		}
	}
	return nil
}
