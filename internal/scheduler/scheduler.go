// Package scheduler runs stored workflows on cron expressions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/graphloom/loom/internal/store"
)

// pollInterval is how often the scheduler scans for due jobs.
const pollInterval = 60 * time.Second

// RunStarter is the interface the scheduler uses to launch workflow runs.
// Satisfied by runs.Launcher.
type RunStarter interface {
	StartRun(ctx context.Context, workflowID string, initial map[string]any) (*store.Run, error)
}

// Scheduler polls the store for due scheduled jobs and launches runs for
// them. A job is due when it has never run or its next_run_at has passed.
type Scheduler struct {
	store   store.Store
	starter RunStarter
	parser  cron.Parser
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// New creates a Scheduler around the given store and run starter.
// The cron parser accepts standard 5-field expressions.
func New(s store.Store, starter RunStarter, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    s,
		starter:  starter,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// Start launches the background polling loop. It ticks once immediately,
// then every pollInterval until Stop or context cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		s.Tick(loopCtx)
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.Tick(loopCtx)
			}
		}
	}()

	s.logger.Info("scheduler started")
	return nil
}

// Tick scans enabled jobs once and launches every due job that is not
// already in flight. Exported so tests and operators can force a scan.
func (s *Scheduler) Tick(ctx context.Context) {
	enabled := true
	jobs, err := s.store.ListScheduledJobs(ctx, store.ScheduledJobFilter{Enabled: &enabled})
	if err != nil {
		s.logger.Error("scheduled job scan failed", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	for _, job := range jobs {
		if !jobDue(job, now) {
			continue
		}
		release, acquired := s.claim(job.ID)
		if !acquired {
			continue
		}
		s.launch(ctx, job, now)
		release()
	}
}

// jobDue reports whether the job should run at instant now.
func jobDue(job *store.ScheduledJob, now time.Time) bool {
	return job.NextRunAt == nil || !job.NextRunAt.After(now)
}

// launch starts a run for the job's workflow and advances its schedule.
// The run itself executes asynchronously, so the recorded status is
// "started" rather than a final outcome.
func (s *Scheduler) launch(ctx context.Context, job *store.ScheduledJob, now time.Time) {
	s.logger.Info("launching scheduled job",
		slog.String("job_id", job.ID),
		slog.String("workflow_id", job.WorkflowID),
	)

	status := "started"
	if _, err := s.starter.StartRun(ctx, job.WorkflowID, job.InitialState); err != nil {
		status = "error"
		s.logger.Error("scheduled job launch failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}

	next, err := s.CalculateNextRun(job.CronExpression, now)
	if err != nil {
		s.logger.Error("scheduled job has unparseable cron expression",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	update := store.ScheduledJobUpdate{
		LastRunAt:     &now,
		NextRunAt:     &next,
		LastRunStatus: status,
	}
	if err := s.store.UpdateScheduledJob(ctx, job.ID, update); err != nil {
		s.logger.Error("scheduled job update failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

// claim marks the job in flight. The second return is false when the job
// is already running, which keeps a slow launch from doubling up on the
// next tick.
func (s *Scheduler) claim(jobID string) (release func(), acquired bool) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()

	if _, running := s.inflight[jobID]; running {
		return nil, false
	}
	s.inflight[jobID] = struct{}{}

	return func() {
		s.inflightMu.Lock()
		defer s.inflightMu.Unlock()
		delete(s.inflight, jobID)
	}, true
}

// CalculateNextRun computes the next fire time of a cron expression after from.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop shuts the polling loop down and waits for it to exit. Safe to call
// when the scheduler never started.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
