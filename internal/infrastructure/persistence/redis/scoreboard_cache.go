package redis

import (
	"context"
	"errors"
	"time"

	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/pkg/circuitbreaker"
)

// ScoreboardCache keeps per-session score projections hot. Every lookup goes
// through a circuit breaker: when Redis is down the breaker opens and lookups
// degrade to misses instead of stalling the read path.
type ScoreboardCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

// NewScoreboardCache creates a new ScoreboardCache.
func NewScoreboardCache(cache *Cache) *ScoreboardCache {
	return &ScoreboardCache{
		cache:   cache,
		breaker: circuitbreaker.New("scoreboard-cache"),
	}
}

// Get returns the cached scoreboard for a session. Returns ErrCacheMiss when
// the key is absent or the breaker is open.
func (s *ScoreboardCache) Get(ctx context.Context, sessionID int64) ([]defense.ScoreView, error) {
	var views []defense.ScoreView

	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.Get(ctx, ScoreboardKey(sessionID), &views)
	})
	if err != nil {
		if errors.Is(err, ErrCacheMiss) || errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	return views, nil
}

// Set stores the scoreboard for a session.
func (s *ScoreboardCache) Set(ctx context.Context, sessionID int64, views []defense.ScoreView, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLScoreboard
	}

	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.Set(ctx, ScoreboardKey(sessionID), views, ttl)
	})
}

// Invalidate drops the cached scoreboard for a session. Called after every
// committed score mutation; the next read repopulates from the store.
func (s *ScoreboardCache) Invalidate(ctx context.Context, sessionID int64) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.Delete(ctx, ScoreboardKey(sessionID))
	})
}

// InvalidateAll clears every scoreboard key.
func (s *ScoreboardCache) InvalidateAll(ctx context.Context) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.DeleteByPattern(ctx, PrefixScoreboard+"*")
	})
}
