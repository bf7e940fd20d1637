package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphloom/loom/internal/store"
)

// mockSchedulerStore satisfies store.Store for scheduler tests.
type mockSchedulerStore struct {
	store.Store
	mu   sync.Mutex
	jobs map[string]*store.ScheduledJob
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{jobs: make(map[string]*store.ScheduledJob)}
}

func (m *mockSchedulerStore) CreateScheduledJob(_ context.Context, job *store.ScheduledJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *mockSchedulerStore) UpdateScheduledJob(_ context.Context, id string, update store.ScheduledJobUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil
	}
	if update.Enabled != nil {
		j.Enabled = *update.Enabled
	}
	if update.LastRunAt != nil {
		j.LastRunAt = update.LastRunAt
	}
	if update.NextRunAt != nil {
		j.NextRunAt = update.NextRunAt
	}
	if update.LastRunStatus != "" {
		j.LastRunStatus = update.LastRunStatus
	}
	return nil
}

func (m *mockSchedulerStore) ListScheduledJobs(_ context.Context, filter store.ScheduledJobFilter) ([]*store.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.ScheduledJob
	for _, j := range m.jobs {
		if filter.Enabled != nil && j.Enabled != *filter.Enabled {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockSchedulerStore) job(id string) *store.ScheduledJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.jobs[id]
	return &cp
}

// mockStarter records StartRun calls.
type mockStarter struct {
	mu    sync.Mutex
	calls []string
}

func (m *mockStarter) StartRun(_ context.Context, workflowID string, _ map[string]any) (*store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, workflowID)
	return &store.Run{ID: "run-1", WorkflowID: workflowID}, nil
}

func (m *mockStarter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestTickRunsDueJobs(t *testing.T) {
	st := newMockSchedulerStore()
	starter := &mockStarter{}
	s := New(st, starter, nil)

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, st.CreateScheduledJob(context.Background(), &store.ScheduledJob{
		ID:             "due",
		WorkflowID:     "wf-1",
		CronExpression: "*/5 * * * *",
		Enabled:        true,
		NextRunAt:      &past,
	}))

	s.Tick(context.Background())

	assert.Equal(t, 1, starter.callCount())
	job := st.job("due")
	assert.Equal(t, "started", job.LastRunStatus)
	require.NotNil(t, job.NextRunAt)
	assert.True(t, job.NextRunAt.After(time.Now().UTC().Add(-time.Second)))
}

func TestTickSkipsFutureAndDisabledJobs(t *testing.T) {
	st := newMockSchedulerStore()
	starter := &mockStarter{}
	s := New(st, starter, nil)
	ctx := context.Background()

	future := time.Now().UTC().Add(time.Hour)
	require.NoError(t, st.CreateScheduledJob(ctx, &store.ScheduledJob{
		ID: "future", WorkflowID: "wf-1", CronExpression: "0 * * * *",
		Enabled: true, NextRunAt: &future,
	}))
	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, st.CreateScheduledJob(ctx, &store.ScheduledJob{
		ID: "disabled", WorkflowID: "wf-2", CronExpression: "0 * * * *",
		Enabled: false, NextRunAt: &past,
	}))

	s.Tick(ctx)
	assert.Equal(t, 0, starter.callCount())
}

func TestTickRunsJobWithNoNextRun(t *testing.T) {
	st := newMockSchedulerStore()
	starter := &mockStarter{}
	s := New(st, starter, nil)

	// A freshly created job has no next_run_at yet; it runs on the first tick.
	require.NoError(t, st.CreateScheduledJob(context.Background(), &store.ScheduledJob{
		ID: "fresh", WorkflowID: "wf-1", CronExpression: "*/5 * * * *", Enabled: true,
	}))

	s.Tick(context.Background())
	assert.Equal(t, 1, starter.callCount())
	require.NotNil(t, st.job("fresh").NextRunAt)
}

func TestCalculateNextRun(t *testing.T) {
	s := New(newMockSchedulerStore(), &mockStarter{}, nil)

	from := time.Date(2026, 8, 26, 10, 2, 0, 0, time.UTC)
	next, err := s.CalculateNextRun("*/5 * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 26, 10, 5, 0, 0, time.UTC), next)

	_, err = s.CalculateNextRun("not-a-cron", from)
	require.Error(t, err)
}

func TestStartStop(t *testing.T) {
	st := newMockSchedulerStore()
	s := New(st, &mockStarter{}, nil)

	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
}
