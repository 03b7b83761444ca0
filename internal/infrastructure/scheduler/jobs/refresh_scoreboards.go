package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH SCOREBOARDS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RefreshScoreboardsJob rebuilds the cached scoreboard of every in-progress
// defense session from the score store. The cache is already invalidated on
// each score write; the periodic rebuild repairs entries lost to cache
// evictions or a Redis restart so the read path stays warm.
type RefreshScoreboardsJob struct {
	sessions defense.SessionRepository
	scores   defense.ScoreRepository
	cache    *redis.ScoreboardCache
	logger   *slog.Logger

	config RefreshScoreboardsConfig

	lastRunStats atomic.Value // *RefreshScoreboardsStats
}

// RefreshScoreboardsConfig contains configuration for the refresh job.
type RefreshScoreboardsConfig struct {
	// CacheTTL is how long a rebuilt scoreboard entry lives.
	CacheTTL time.Duration

	// Timeout is the maximum duration for the job.
	Timeout time.Duration
}

// DefaultRefreshScoreboardsConfig returns sensible defaults.
func DefaultRefreshScoreboardsConfig() RefreshScoreboardsConfig {
	return RefreshScoreboardsConfig{
		CacheTTL: 10 * time.Minute,
		Timeout:  2 * time.Minute,
	}
}

// RefreshScoreboardsStats contains statistics from a run.
type RefreshScoreboardsStats struct {
	StartedAt         time.Time
	CompletedAt       time.Time
	SessionsRefreshed int
	ScoresCached      int
	Failures          int
}

// NewRefreshScoreboardsJob creates a new RefreshScoreboardsJob.
func NewRefreshScoreboardsJob(
	sessions defense.SessionRepository,
	scores defense.ScoreRepository,
	cache *redis.ScoreboardCache,
	config RefreshScoreboardsConfig,
	logger *slog.Logger,
) *RefreshScoreboardsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 10 * time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}

	return &RefreshScoreboardsJob{
		sessions: sessions,
		scores:   scores,
		cache:    cache,
		config:   config,
		logger:   logger,
	}
}

// Name returns the unique name of the job.
func (j *RefreshScoreboardsJob) Name() string {
	return "refresh_scoreboards"
}

// Description returns a human-readable description of the job.
func (j *RefreshScoreboardsJob) Description() string {
	return "Rebuilds cached scoreboards for in-progress defense sessions"
}

// Run executes the job.
func (j *RefreshScoreboardsJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	stats := &RefreshScoreboardsStats{StartedAt: time.Now()}
	defer func() {
		stats.CompletedAt = time.Now()
		j.lastRunStats.Store(stats)
	}()

	sessions, err := j.sessions.List(ctx, false)
	if err != nil {
		return err
	}

	for _, session := range sessions {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if session.Status != defense.SessionInProgress {
			continue
		}

		if err := j.refreshSession(ctx, session.ID, stats); err != nil {
			stats.Failures++
			j.logger.Error("scoreboard refresh failed",
				"session_id", session.ID,
				"error", err,
			)
		}
	}

	if stats.SessionsRefreshed > 0 || stats.Failures > 0 {
		j.logger.Info("scoreboard refresh run finished",
			"sessions", stats.SessionsRefreshed,
			"scores", stats.ScoresCached,
			"failures", stats.Failures,
		)
	}

	return nil
}

func (j *RefreshScoreboardsJob) refreshSession(ctx context.Context, sessionID int64, stats *RefreshScoreboardsStats) error {
	scores, err := j.scores.ListBySession(ctx, sessionID, false)
	if err != nil {
		return err
	}

	views := make([]defense.ScoreView, 0, len(scores))
	for _, score := range scores {
		views = append(views, score.View())
	}

	if err := j.cache.Set(ctx, sessionID, views, j.config.CacheTTL); err != nil {
		return err
	}

	stats.SessionsRefreshed++
	stats.ScoresCached += len(views)
	return nil
}

// LastRunStats returns statistics from the most recent run, or nil.
func (j *RefreshScoreboardsJob) LastRunStats() *RefreshScoreboardsStats {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*RefreshScoreboardsStats)
	}
	return nil
}
