// Package jobs contains implementations of scheduled background jobs.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/defensehub/defensehub/internal/application/command"
	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION AUTOSTART JOB
// ══════════════════════════════════════════════════════════════════════════════

// SessionAutostartJob moves scheduled defense sessions to in_progress once
// their start time has passed. Committees often forget to press the button;
// the job keeps the live stream and the scoreboard in sync with the calendar.
type SessionAutostartJob struct {
	sessions defense.SessionRepository
	handler  *command.SessionHandler
	logger   *slog.Logger

	config SessionAutostartConfig

	lastRunStats atomic.Value // *SessionAutostartStats
}

// SessionAutostartConfig contains configuration for the autostart job.
type SessionAutostartConfig struct {
	// GracePeriod delays the autostart after the scheduled start time, so a
	// manually started session is not raced by the job.
	GracePeriod time.Duration

	// MaxSessionsPerRun limits how many sessions a single run transitions.
	MaxSessionsPerRun int

	// Timeout is the maximum duration for the job.
	Timeout time.Duration
}

// DefaultSessionAutostartConfig returns sensible defaults.
func DefaultSessionAutostartConfig() SessionAutostartConfig {
	return SessionAutostartConfig{
		GracePeriod:       time.Minute,
		MaxSessionsPerRun: 50,
		Timeout:           time.Minute,
	}
}

// SessionAutostartStats contains statistics from a run.
type SessionAutostartStats struct {
	StartedAt       time.Time
	CompletedAt     time.Time
	SessionsChecked int
	SessionsStarted int
	Failures        int
}

// NewSessionAutostartJob creates a new SessionAutostartJob.
func NewSessionAutostartJob(
	sessions defense.SessionRepository,
	handler *command.SessionHandler,
	config SessionAutostartConfig,
	logger *slog.Logger,
) *SessionAutostartJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxSessionsPerRun <= 0 {
		config.MaxSessionsPerRun = 50
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}

	return &SessionAutostartJob{
		sessions: sessions,
		handler:  handler,
		config:   config,
		logger:   logger,
	}
}

// Name returns the unique name of the job.
func (j *SessionAutostartJob) Name() string {
	return "session_autostart"
}

// Description returns a human-readable description of the job.
func (j *SessionAutostartJob) Description() string {
	return "Starts scheduled defense sessions whose start time has passed"
}

// Run executes the job.
func (j *SessionAutostartJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	stats := &SessionAutostartStats{StartedAt: time.Now()}
	defer func() {
		stats.CompletedAt = time.Now()
		j.lastRunStats.Store(stats)
	}()

	sessions, err := j.sessions.List(ctx, false)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-j.config.GracePeriod)

	for _, session := range sessions {
		if stats.SessionsStarted >= j.config.MaxSessionsPerRun {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		stats.SessionsChecked++

		if session.Status != defense.SessionScheduled {
			continue
		}
		if session.StartsAt.IsZero() || session.StartsAt.After(cutoff) {
			continue
		}

		err := j.handler.Transition(ctx, session.ID, defense.SessionInProgress)
		if err != nil {
			// Someone started or cancelled the session between List and
			// Transition. Not a failure, just a lost race.
			if errors.Is(err, shared.ErrStateTransition) || errors.Is(err, shared.ErrSessionNotFound) {
				continue
			}

			stats.Failures++
			j.logger.Error("session autostart failed",
				"session_id", session.ID,
				"error", err,
			)
			continue
		}

		stats.SessionsStarted++
		j.logger.Info("session autostarted",
			"session_id", session.ID,
			"title", session.Title,
			"scheduled_for", session.StartsAt.Format(time.RFC3339),
		)
	}

	if stats.SessionsStarted > 0 || stats.Failures > 0 {
		j.logger.Info("session autostart run finished",
			"checked", stats.SessionsChecked,
			"started", stats.SessionsStarted,
			"failures", stats.Failures,
		)
	}

	return nil
}

// LastRunStats returns statistics from the most recent run, or nil.
func (j *SessionAutostartJob) LastRunStats() *SessionAutostartStats {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*SessionAutostartStats)
	}
	return nil
}
