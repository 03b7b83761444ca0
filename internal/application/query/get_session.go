package query

import (
	"context"

	"github.com/defensehub/defensehub/internal/domain/defense"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// SessionDetail is a session together with its attached transcripts.
type SessionDetail struct {
	Session     *defense.DefenseSession
	Transcripts []*defense.Transcript
}

// SessionQueries reads defense sessions and their attachments.
type SessionQueries struct {
	sessions    defense.SessionRepository
	transcripts defense.TranscriptRepository
}

// NewSessionQueries creates a new SessionQueries.
func NewSessionQueries(
	sessions defense.SessionRepository,
	transcripts defense.TranscriptRepository,
) *SessionQueries {
	return &SessionQueries{
		sessions:    sessions,
		transcripts: transcripts,
	}
}

// List returns sessions, newest first, optionally including archived ones.
func (q *SessionQueries) List(ctx context.Context, includeDeleted bool) ([]*defense.DefenseSession, error) {
	return q.sessions.List(ctx, includeDeleted)
}

// Get returns a session with its transcripts. The include flag applies to
// the session and its transcripts independently; an archived transcript on a
// live session stays hidden by default.
func (q *SessionQueries) Get(ctx context.Context, id int64, includeDeleted bool) (*SessionDetail, error) {
	session, err := q.sessions.GetByID(ctx, id, includeDeleted)
	if err != nil {
		return nil, err
	}

	transcripts, err := q.transcripts.ListBySession(ctx, id, includeDeleted)
	if err != nil {
		return nil, err
	}

	return &SessionDetail{
		Session:     session,
		Transcripts: transcripts,
	}, nil
}
