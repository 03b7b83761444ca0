// Package ports declares the interfaces the application layer needs from
// infrastructure: the consistency coordinator, the tx-scoped repositories it
// hands out, and the opaque cache collaborator. Implementations live under
// infrastructure/persistence.
package ports

import (
	"context"
	"time"

	"github.com/defensehub/defensehub/internal/domain/catalog"
	"github.com/defensehub/defensehub/internal/domain/defense"
)

// UnitOfWork is one atomic mutation boundary. Repositories obtained from a
// unit operate inside its transaction; either every mutation queued on the
// unit commits, or none do.
//
// A unit moves Open -> Committed | RolledBack. Both terminal states are
// final: any repository call, Commit or Rollback after that fails with
// shared.ErrInvalidState. Event emission belongs strictly after a successful
// Commit; a unit that rolled back produced nothing to announce.
type UnitOfWork interface {
	Councils() catalog.CouncilRepository
	Majors() catalog.MajorRepository
	Rubrics() catalog.RubricRepository
	Groups() catalog.GroupRepository
	Sessions() defense.SessionRepository
	Scores() defense.ScoreRepository
	Transcripts() defense.TranscriptRepository

	// Commit makes every queued mutation durable.
	Commit(ctx context.Context) error

	// Rollback discards every queued mutation. Rolling back an already
	// rolled-back unit is an error (shared.ErrInvalidState), matching
	// Commit; defer-style cleanup should use the coordinator's Within.
	Rollback(ctx context.Context) error
}

// Coordinator opens units of work.
type Coordinator interface {
	// Begin opens a new unit.
	Begin(ctx context.Context) (UnitOfWork, error)

	// Within runs fn inside a fresh unit: commit on nil return, rollback on
	// error or panic. The triggering error is returned to the caller.
	Within(ctx context.Context, fn func(UnitOfWork) error) error
}

// Cache is the opaque external key-value collaborator with TTL. It is not
// part of the fan-out path; the hub uses it for supplementary read state.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}
