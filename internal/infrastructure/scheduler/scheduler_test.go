package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defensehub/defensehub/pkg/timeutil"
)

func testSchedulerConfig() SchedulerConfig {
	cfg := DefaultSchedulerConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

// stubJob counts executions and optionally fails.
type stubJob struct {
	name string
	err  error
	runs atomic.Int64
}

func (j *stubJob) Name() string        { return j.name }
func (j *stubJob) Description() string { return "stub job for tests" }

func (j *stubJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestIntervalSchedule(t *testing.T) {
	sched := NewIntervalSchedule(30 * time.Second)

	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, at.Add(30*time.Second), sched.Next(at))
	assert.Equal(t, "@every 30s", sched.String())
}

func TestIntervalSchedule_ClampsNonPositiveIntervals(t *testing.T) {
	sched := NewIntervalSchedule(0)

	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, at.Add(time.Minute), sched.Next(at))
}

func TestScheduler_RegisterValidation(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	job := &stubJob{name: "job"}
	sched := NewIntervalSchedule(time.Minute)

	assert.ErrorIs(t, s.Register(nil, sched), ErrNilJob)
	assert.ErrorIs(t, s.Register(job, nil), ErrNilSchedule)

	require.NoError(t, s.Register(job, sched))
	assert.ErrorIs(t, s.Register(job, sched), ErrJobAlreadyExists)
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	job := &stubJob{name: "job"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "job")
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, int64(1), job.runs.Load())

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(1), jobs[0].Runs)
	require.NotNil(t, jobs[0].LastResult)
	assert.Equal(t, "job", jobs[0].LastResult.Job)
}

func TestScheduler_RunNowRecordsFailure(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	job := &stubJob{name: "job", err: errors.New("boom")}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "job")
	assert.Error(t, err)
	assert.False(t, result.Succeeded())

	snap := s.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalExecutions)
	assert.Equal(t, int64(1), snap.TotalFailures)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(1), jobs[0].Failures)
}

func TestScheduler_EnableDisable(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	job := &stubJob{name: "job"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Disable("job"))
	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.False(t, jobs[0].Enabled)

	require.NoError(t, s.Enable("job"))
	jobs = s.Jobs()
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].Enabled)

	assert.ErrorIs(t, s.Enable("missing"), ErrJobNotFound)
	assert.ErrorIs(t, s.Disable("missing"), ErrJobNotFound)
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	require.NoError(t, s.Register(&stubJob{name: "job"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_JobsAreSortedByName(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	require.NoError(t, s.Register(&stubJob{name: "b"}, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(&stubJob{name: "a"}, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(&stubJob{name: "c"}, NewIntervalSchedule(time.Hour)))

	jobs := s.Jobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "b", jobs[1].Name)
	assert.Equal(t, "c", jobs[2].Name)
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	clock := timeutil.NewFake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	cfg := testSchedulerConfig()
	cfg.Clock = clock
	cfg.TickInterval = time.Millisecond

	s := NewScheduler(cfg)
	due := &stubJob{name: "due"}
	idle := &stubJob{name: "idle"}
	require.NoError(t, s.Register(due, NewIntervalSchedule(time.Minute)))
	require.NoError(t, s.Register(idle, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	clock.Advance(2 * time.Minute)
	require.Eventually(t, func() bool {
		return due.runs.Load() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(0), idle.runs.Load())
}

func TestScheduler_DisabledJobsAreNotDispatched(t *testing.T) {
	clock := timeutil.NewFake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	cfg := testSchedulerConfig()
	cfg.Clock = clock
	cfg.TickInterval = time.Millisecond

	s := NewScheduler(cfg)
	job := &stubJob{name: "job"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	require.NoError(t, s.Disable("job"))

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	clock.Advance(time.Hour)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(0), job.runs.Load())
}
