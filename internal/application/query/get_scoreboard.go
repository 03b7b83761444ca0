package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/defensehub/defensehub/internal/domain/defense"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCOREBOARD QUERY
// Read-through against the cache collaborator: hit serves the projection
// directly, miss loads from the store and repopulates. The cache is opaque
// and optional; losing it costs latency, never correctness.
// ══════════════════════════════════════════════════════════════════════════════

// ScoreboardCache is the cache collaborator for session scoreboards.
// A miss is reported as an error; the reader treats any cache error as a miss.
type ScoreboardCache interface {
	Get(ctx context.Context, sessionID int64) ([]defense.ScoreView, error)
	Set(ctx context.Context, sessionID int64, views []defense.ScoreView, ttl time.Duration) error
}

// GetScoreboardQuery contains the scoreboard request parameters.
type GetScoreboardQuery struct {
	// SessionID identifies the defense session.
	SessionID int64

	// IncludeDeleted widens the view to archived scores. Requests with this
	// flag bypass the cache, which only ever holds the live view.
	IncludeDeleted bool
}

// ScoreboardReader assembles per-session scoreboards.
type ScoreboardReader struct {
	sessions defense.SessionRepository
	scores   defense.ScoreRepository
	cache    ScoreboardCache
	logger   *slog.Logger
}

// NewScoreboardReader creates a new ScoreboardReader. The cache is optional.
func NewScoreboardReader(
	sessions defense.SessionRepository,
	scores defense.ScoreRepository,
	cache ScoreboardCache,
	logger *slog.Logger,
) *ScoreboardReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScoreboardReader{
		sessions: sessions,
		scores:   scores,
		cache:    cache,
		logger:   logger,
	}
}

// Get returns the session's scoreboard, newest score first.
func (r *ScoreboardReader) Get(ctx context.Context, q GetScoreboardQuery) ([]defense.ScoreView, error) {
	if _, err := r.sessions.GetByID(ctx, q.SessionID, q.IncludeDeleted); err != nil {
		return nil, err
	}

	if r.cache != nil && !q.IncludeDeleted {
		views, err := r.cache.Get(ctx, q.SessionID)
		if err == nil {
			return views, nil
		}
	}

	scores, err := r.scores.ListBySession(ctx, q.SessionID, q.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	views := make([]defense.ScoreView, 0, len(scores))
	for _, sc := range scores {
		views = append(views, sc.View())
	}

	if r.cache != nil && !q.IncludeDeleted {
		if err := r.cache.Set(ctx, q.SessionID, views, 0); err != nil {
			r.logger.Warn("scoreboard cache populate failed", "session_id", q.SessionID, "error", err)
		}
	}

	return views, nil
}
