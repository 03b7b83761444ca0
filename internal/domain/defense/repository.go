package defense

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence. Sessions and scores
// list in created-at-descending order; default listings exclude soft-deleted
// rows.
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository stores defense sessions.
type SessionRepository interface {
	// List returns sessions ordered by creation date descending.
	List(ctx context.Context, includeDeleted bool) ([]*DefenseSession, error)

	// GetByID returns a session by id. Returns shared.ErrSessionNotFound when
	// absent, or archived and includeDeleted is false.
	GetByID(ctx context.Context, id int64, includeDeleted bool) (*DefenseSession, error)

	// Create persists a new session and assigns its ID.
	Create(ctx context.Context, s *DefenseSession) error

	// Update applies a field patch. It does not resurrect an archived row.
	Update(ctx context.Context, id int64, patch SessionPatch) error

	// UpdateStatus persists a status transition.
	UpdateStatus(ctx context.Context, id int64, status SessionStatus) error

	SoftDelete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
}

// ScoreRepository stores scores.
type ScoreRepository interface {
	// ListBySession returns the session's scores, newest first.
	ListBySession(ctx context.Context, sessionID int64, includeDeleted bool) ([]*Score, error)

	// GetByID returns a score by its UUID.
	GetByID(ctx context.Context, id string, includeDeleted bool) (*Score, error)

	// Create persists a new score. Returns shared.ErrDuplicateScore when the
	// (session, rubric, student, evaluator) tuple already exists.
	Create(ctx context.Context, s *Score) error

	// Update applies a field patch to a live score.
	Update(ctx context.Context, id string, patch ScorePatch) error

	SoftDelete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
}

// TranscriptRepository stores session transcripts.
type TranscriptRepository interface {
	ListBySession(ctx context.Context, sessionID int64, includeDeleted bool) ([]*Transcript, error)
	GetByID(ctx context.Context, id string, includeDeleted bool) (*Transcript, error)
	Create(ctx context.Context, t *Transcript) error
	SoftDelete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
}
