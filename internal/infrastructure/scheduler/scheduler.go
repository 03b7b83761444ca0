// Package scheduler runs the service's background maintenance jobs:
// autostarting overdue defense sessions, refreshing scoreboard caches and
// rolling metrics windows over. Jobs run on interval schedules; the admin
// API can list them and trigger a run out of band.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/defensehub/defensehub/pkg/timeutil"
)

var (
	// ErrNilJob is returned when registering a nil job.
	ErrNilJob = errors.New("job cannot be nil")

	// ErrNilSchedule is returned when registering a job without a schedule.
	ErrNilSchedule = errors.New("schedule cannot be nil")

	// ErrJobAlreadyExists is returned when a job name is already taken.
	ErrJobAlreadyExists = errors.New("job already exists")

	// ErrJobNotFound is returned when no job carries the given name.
	ErrJobNotFound = errors.New("job not found")

	// ErrSchedulerAlreadyRunning is returned by Start on a running scheduler.
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")

	// ErrSchedulerNotRunning is returned by Stop on a stopped scheduler.
	ErrSchedulerNotRunning = errors.New("scheduler is not running")
)

// Job is one background task. The context passed to Run is cancelled when
// the scheduler stops.
type Job interface {
	Name() string
	Description() string
	Run(ctx context.Context) error
}

// Schedule decides when a job runs next.
type Schedule interface {
	// Next returns the first run time strictly after t.
	Next(t time.Time) time.Time

	// String renders the schedule for job listings.
	String() string
}

// RunResult records one job execution.
type RunResult struct {
	Job        string
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Err        error
}

// Succeeded reports whether the run completed without error.
func (r RunResult) Succeeded() bool { return r.Err == nil }

// SchedulerConfig configures the scheduler.
type SchedulerConfig struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// Clock drives due-time checks and run timestamps.
	Clock timeutil.Clock

	// TickInterval is how often due jobs are checked for.
	TickInterval time.Duration
}

// DefaultSchedulerConfig returns sensible defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Clock:        timeutil.System(),
		TickInterval: time.Second,
	}
}

// entry is one registered job with its schedule and run bookkeeping.
type entry struct {
	job      Job
	schedule Schedule
	enabled  bool
	lastRun  time.Time
	nextRun  time.Time
	runs     int64
	failures int64
	last     *RunResult
}

// Scheduler owns the registered jobs and the loop that runs them when due.
type Scheduler struct {
	mu      sync.RWMutex
	jobs    map[string]*entry
	running bool
	cancel  context.CancelFunc
	ctx     context.Context

	wg      sync.WaitGroup
	clock   timeutil.Clock
	tick    time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.System()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}

	return &Scheduler{
		jobs:    make(map[string]*entry),
		clock:   cfg.Clock,
		tick:    cfg.TickInterval,
		logger:  cfg.Logger,
		metrics: NewMetrics(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Registration
// ─────────────────────────────────────────────────────────────────────────────

// Register adds a job under its own name. Registered jobs start enabled.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, taken := s.jobs[name]; taken {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	s.jobs[name] = &entry{
		job:      job,
		schedule: schedule,
		enabled:  true,
		nextRun:  schedule.Next(s.clock.Now()),
	}

	s.logger.Info("job registered",
		"job", name,
		"schedule", schedule.String(),
	)
	return nil
}

// Enable resumes a disabled job. Its next run is computed from now.
func (s *Scheduler) Enable(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	e.enabled = true
	e.nextRun = e.schedule.Next(s.clock.Now())
	s.logger.Info("job enabled", "job", name)
	return nil
}

// Disable stops scheduling a job. A run already in flight finishes.
func (s *Scheduler) Disable(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	e.enabled = false
	s.logger.Info("job disabled", "job", name)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ─────────────────────────────────────────────────────────────────────────────

// Start launches the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop cancels the loop and waits for in-flight runs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue()
		}
	}
}

// dispatchDue starts a goroutine per due job. The next run time moves
// forward before the job executes, so a slow run never stacks up behind
// itself within one schedule step.
func (s *Scheduler) dispatchDue() {
	now := s.clock.Now()

	s.mu.Lock()
	var due []*entry
	for _, e := range s.jobs {
		if e.enabled && !e.nextRun.IsZero() && now.After(e.nextRun) {
			e.nextRun = e.schedule.Next(now)
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		s.wg.Add(1)
		go func(e *entry) {
			defer s.wg.Done()
			s.execute(s.ctx, e)
		}(e)
	}
}

// execute runs one job and records the outcome on its entry.
func (s *Scheduler) execute(ctx context.Context, e *entry) RunResult {
	name := e.job.Name()
	started := s.clock.Now()

	err := e.job.Run(ctx)

	finished := s.clock.Now()
	result := RunResult{
		Job:        name,
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   finished.Sub(started),
		Err:        err,
	}

	s.metrics.record(result)

	s.mu.Lock()
	e.lastRun = started
	e.runs++
	if err != nil {
		e.failures++
	}
	e.last = &result
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed",
			"job", name,
			"duration", result.Duration.String(),
			"error", err,
		)
	} else {
		s.logger.Info("job completed",
			"job", name,
			"duration", result.Duration.String(),
		)
	}
	return result
}

// ─────────────────────────────────────────────────────────────────────────────
// Manual runs and introspection
// ─────────────────────────────────────────────────────────────────────────────

// RunNow executes a job immediately, regardless of its schedule or enabled
// state. It returns the run's result along with the job's error, if any.
func (s *Scheduler) RunNow(ctx context.Context, name string) (RunResult, error) {
	s.mu.RLock()
	e, ok := s.jobs[name]
	s.mu.RUnlock()

	if !ok {
		return RunResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	s.logger.Info("manual job run", "job", name)
	result := s.execute(ctx, e)
	return result, result.Err
}

// JobInfo describes one registered job for listings.
type JobInfo struct {
	Name        string
	Description string
	Schedule    string
	Enabled     bool
	LastRun     time.Time
	NextRun     time.Time
	Runs        int64
	Failures    int64
	LastResult  *RunResult
}

// Jobs returns every registered job, ordered by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, e := range s.jobs {
		infos = append(infos, JobInfo{
			Name:        name,
			Description: e.job.Description(),
			Schedule:    e.schedule.String(),
			Enabled:     e.enabled,
			LastRun:     e.lastRun,
			NextRun:     e.nextRun,
			Runs:        e.runs,
			Failures:    e.failures,
			LastResult:  e.last,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Metrics returns the cumulative execution counters.
func (s *Scheduler) Metrics() *Metrics {
	return s.metrics
}

// ─────────────────────────────────────────────────────────────────────────────
// Metrics
// ─────────────────────────────────────────────────────────────────────────────

// Metrics aggregates execution counts across all jobs.
type Metrics struct {
	mu sync.RWMutex

	executions    int64
	successes     int64
	failures      int64
	totalDuration time.Duration
	failuresByJob map[string]int64
}

// NewMetrics creates an empty counter set.
func NewMetrics() *Metrics {
	return &Metrics{failuresByJob: make(map[string]int64)}
}

func (m *Metrics) record(r RunResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executions++
	m.totalDuration += r.Duration
	if r.Succeeded() {
		m.successes++
	} else {
		m.failures++
		m.failuresByJob[r.Job]++
	}
}

// MetricsSnapshot is a point-in-time view of the counters.
type MetricsSnapshot struct {
	TotalExecutions int64         `json:"total_executions"`
	TotalSuccesses  int64         `json:"total_successes"`
	TotalFailures   int64         `json:"total_failures"`
	SuccessRate     float64       `json:"success_rate"`
	AverageDuration time.Duration `json:"average_duration_ns"`
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		TotalExecutions: m.executions,
		TotalSuccesses:  m.successes,
		TotalFailures:   m.failures,
	}
	if m.executions > 0 {
		snap.SuccessRate = float64(m.successes) / float64(m.executions)
		snap.AverageDuration = m.totalDuration / time.Duration(m.executions)
	}
	return snap
}
