package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingEnqueuer struct {
	jobs []*Job
	err  error
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, job *Job) error {
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, job)
	return nil
}

func TestSchedulerEveryValidation(t *testing.T) {
	s := NewScheduler(&recordingEnqueuer{}, zap.NewNop())
	assert.Error(t, s.Every("", "t", time.Minute, nil))
	assert.Error(t, s.Every("n", "", time.Minute, nil))
	assert.Error(t, s.Every("n", "t", 0, nil))
}

func TestSchedulerTick(t *testing.T) {
	q := &recordingEnqueuer{}
	s := NewScheduler(q, zap.NewNop())
	now := fixedNow
	s.now = func() time.Time { return now }

	require.NoError(t, s.Every("bench-export", "sync.sheets.bench", time.Hour, map[string]any{"window_days": 14}))

	assert.Equal(t, 0, s.Tick(context.Background()))

	now = now.Add(time.Hour)
	assert.Equal(t, 1, s.Tick(context.Background()))
	require.Len(t, q.jobs, 1)
	assert.Equal(t, "sync.sheets.bench", q.jobs[0].Type)
	assert.Equal(t, "bench-export", q.jobs[0].Payload["schedule"])
	assert.Equal(t, 14, q.jobs[0].Payload["window_days"])

	// not due again until another interval passes
	now = now.Add(30 * time.Minute)
	assert.Equal(t, 0, s.Tick(context.Background()))

	sch := s.Schedules()
	require.Len(t, sch, 1)
	assert.Equal(t, fixedNow.Add(time.Hour), sch[0].LastRun)
	assert.Equal(t, fixedNow.Add(2*time.Hour), sch[0].NextRun)
}

func TestSchedulerDisabledAndRemoved(t *testing.T) {
	q := &recordingEnqueuer{}
	s := NewScheduler(q, nil)
	now := fixedNow
	s.now = func() time.Time { return now }

	require.NoError(t, s.Every("geo", "geocode.projects", time.Minute, nil))
	require.NoError(t, s.SetEnabled("geo", false))
	now = now.Add(time.Hour)
	assert.Equal(t, 0, s.Tick(context.Background()))

	require.NoError(t, s.Remove("geo"))
	assert.Error(t, s.Remove("geo"))
	assert.Error(t, s.SetEnabled("geo", true))
	assert.Empty(t, s.Schedules())
}

func TestSchedulerEnqueueErrorStaysDue(t *testing.T) {
	q := &recordingEnqueuer{err: errors.New("db down")}
	s := NewScheduler(q, zap.NewNop())
	now := fixedNow
	s.now = func() time.Time { return now }

	require.NoError(t, s.Every("geo", "geocode.projects", time.Minute, nil))
	now = now.Add(time.Minute)
	assert.Equal(t, 0, s.Tick(context.Background()))

	q.err = nil
	assert.Equal(t, 1, s.Tick(context.Background()))
}

func TestSchedulerMaxAttempts(t *testing.T) {
	q := &recordingEnqueuer{}
	s := NewScheduler(q, zap.NewNop())
	s.MaxAttempts = 5
	now := fixedNow
	s.now = func() time.Time { return now }

	require.NoError(t, s.Every("jobadder", "sync.jobadder.candidates", time.Minute, nil))
	now = now.Add(time.Minute)
	require.Equal(t, 1, s.Tick(context.Background()))
	assert.Equal(t, 5, q.jobs[0].MaxAttempts)
}
