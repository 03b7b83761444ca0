package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository implements defense.SessionRepository for PostgreSQL.
type SessionRepository struct {
	q Querier
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(q Querier) *SessionRepository {
	return &SessionRepository{q: q}
}

// List returns sessions ordered by creation date descending.
func (r *SessionRepository) List(ctx context.Context, includeDeleted bool) ([]*defense.DefenseSession, error) {
	query := `
		SELECT id, council_id, group_id, title, location, status, starts_at, is_active, created_at
		FROM defense_sessions
	`
	if !includeDeleted {
		query += " WHERE is_active"
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*defense.DefenseSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// GetByID returns a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id int64, includeDeleted bool) (*defense.DefenseSession, error) {
	query := `
		SELECT id, council_id, group_id, title, location, status, starts_at, is_active, created_at
		FROM defense_sessions
		WHERE id = $1
	`
	if !includeDeleted {
		query += " AND is_active"
	}

	s, err := scanSession(r.q.QueryRow(ctx, query, id))
	if IsNoRows(err) {
		return nil, shared.ErrSessionNotFound
	}
	return s, err
}

// Create persists a new session and assigns its ID.
func (r *SessionRepository) Create(ctx context.Context, s *defense.DefenseSession) error {
	if s.Status == "" {
		s.Status = defense.SessionScheduled
	}
	if err := s.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO defense_sessions (council_id, group_id, title, location, status, starts_at, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW())
		RETURNING id, is_active, created_at
	`

	var startsAt *time.Time
	if !s.StartsAt.IsZero() {
		startsAt = &s.StartsAt
	}

	err := r.q.QueryRow(ctx, query,
		s.CouncilID,
		s.GroupID,
		s.Title,
		s.Location,
		string(s.Status),
		startsAt,
	).Scan(&s.ID, &s.IsActive, &s.CreatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: referenced council or group", shared.ErrNotFound)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// Update applies a field patch. The lifecycle flag and status are untouched.
func (r *SessionRepository) Update(ctx context.Context, id int64, patch defense.SessionPatch) error {
	s, err := r.GetByID(ctx, id, true)
	if err != nil {
		return err
	}

	patch.Apply(s)
	if err := s.Validate(); err != nil {
		return err
	}

	var startsAt *time.Time
	if !s.StartsAt.IsZero() {
		startsAt = &s.StartsAt
	}

	query := `UPDATE defense_sessions SET title = $1, location = $2, starts_at = $3 WHERE id = $4`
	result, err := r.q.Exec(ctx, query, s.Title, s.Location, startsAt, id)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrSessionNotFound
	}

	return nil
}

// UpdateStatus persists a status transition after validating it against the
// session's current status.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id int64, status defense.SessionStatus) error {
	s, err := r.GetByID(ctx, id, true)
	if err != nil {
		return err
	}

	if err := s.TransitionTo(status); err != nil {
		return shared.WrapError("defense", "UpdateStatus", shared.ErrStateTransition, "session transition rejected", err)
	}

	result, err := r.q.Exec(ctx,
		"UPDATE defense_sessions SET status = $1 WHERE id = $2",
		string(s.Status), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrSessionNotFound
	}

	return nil
}

// SoftDelete marks the session inactive. Its scores and transcripts are not
// touched.
func (r *SessionRepository) SoftDelete(ctx context.Context, id int64) error {
	result, err := r.q.Exec(ctx,
		"UPDATE defense_sessions SET is_active = FALSE WHERE id = $1",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrSessionNotFound
	}

	return nil
}

// Restore clears the soft-delete flag.
func (r *SessionRepository) Restore(ctx context.Context, id int64) error {
	result, err := r.q.Exec(ctx,
		"UPDATE defense_sessions SET is_active = TRUE WHERE id = $1",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrSessionNotFound
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ScoreRepository implements defense.ScoreRepository for PostgreSQL.
type ScoreRepository struct {
	q Querier
}

// NewScoreRepository creates a new ScoreRepository.
func NewScoreRepository(q Querier) *ScoreRepository {
	return &ScoreRepository{q: q}
}

// ListBySession returns the session's scores, newest first.
func (r *ScoreRepository) ListBySession(ctx context.Context, sessionID int64, includeDeleted bool) ([]*defense.Score, error) {
	query := `
		SELECT id, session_id, rubric_id, student_id, evaluator_id, value, comment, is_active, created_at, updated_at, deleted_at
		FROM scores
		WHERE session_id = $1
	`
	if !includeDeleted {
		query += " AND is_active"
	}
	query += " ORDER BY created_at DESC, id ASC"

	rows, err := r.q.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	defer rows.Close()

	var scores []*defense.Score
	for rows.Next() {
		sc, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, sc)
	}

	return scores, rows.Err()
}

// GetByID returns a score by its UUID.
func (r *ScoreRepository) GetByID(ctx context.Context, id string, includeDeleted bool) (*defense.Score, error) {
	query := `
		SELECT id, session_id, rubric_id, student_id, evaluator_id, value, comment, is_active, created_at, updated_at, deleted_at
		FROM scores
		WHERE id = $1
	`
	if !includeDeleted {
		query += " AND is_active"
	}

	sc, err := scanScore(r.q.QueryRow(ctx, query, id))
	if IsNoRows(err) {
		return nil, shared.ErrScoreNotFound
	}
	return sc, err
}

// Create persists a new score. The (session, rubric, student, evaluator)
// tuple is unique; a second insert for the same tuple is rejected.
func (r *ScoreRepository) Create(ctx context.Context, sc *defense.Score) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}

	query := `
		INSERT INTO scores (id, session_id, rubric_id, student_id, evaluator_id, value, comment, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW(), NOW())
		RETURNING is_active, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		sc.ID,
		sc.SessionID,
		sc.RubricID,
		sc.StudentID,
		sc.EvaluatorID,
		sc.Value,
		sc.Comment,
	).Scan(&sc.IsActive, &sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateScore
		}
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: referenced session or rubric", shared.ErrNotFound)
		}
		return fmt.Errorf("failed to create score: %w", err)
	}

	return nil
}

// Update applies a field patch and touches the updated-at timestamp.
func (r *ScoreRepository) Update(ctx context.Context, id string, patch defense.ScorePatch) error {
	sc, err := r.GetByID(ctx, id, true)
	if err != nil {
		return err
	}

	patch.Apply(sc)
	if err := sc.Validate(); err != nil {
		return err
	}

	query := `UPDATE scores SET value = $1, comment = $2, updated_at = NOW() WHERE id = $3`
	result, err := r.q.Exec(ctx, query, sc.Value, sc.Comment, id)
	if err != nil {
		return fmt.Errorf("failed to update score: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrScoreNotFound
	}

	return nil
}

// SoftDelete marks the score inactive.
func (r *ScoreRepository) SoftDelete(ctx context.Context, id string) error {
	result, err := r.q.Exec(ctx,
		"UPDATE scores SET is_active = FALSE, deleted_at = NOW() WHERE id = $1",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to archive score: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrScoreNotFound
	}

	return nil
}

// Restore clears the soft-delete flag.
func (r *ScoreRepository) Restore(ctx context.Context, id string) error {
	result, err := r.q.Exec(ctx,
		"UPDATE scores SET is_active = TRUE, deleted_at = NULL WHERE id = $1",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to restore score: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrScoreNotFound
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSCRIPT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// TranscriptRepository implements defense.TranscriptRepository for PostgreSQL.
type TranscriptRepository struct {
	q Querier
}

// NewTranscriptRepository creates a new TranscriptRepository.
func NewTranscriptRepository(q Querier) *TranscriptRepository {
	return &TranscriptRepository{q: q}
}

// ListBySession returns the session's transcripts, newest first.
func (r *TranscriptRepository) ListBySession(ctx context.Context, sessionID int64, includeDeleted bool) ([]*defense.Transcript, error) {
	query := `
		SELECT id, session_id, student_id, content, language, is_active, created_at
		FROM transcripts
		WHERE session_id = $1
	`
	if !includeDeleted {
		query += " AND is_active"
	}
	query += " ORDER BY created_at DESC, id ASC"

	rows, err := r.q.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	var transcripts []*defense.Transcript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		transcripts = append(transcripts, t)
	}

	return transcripts, rows.Err()
}

// GetByID returns a transcript by its UUID.
func (r *TranscriptRepository) GetByID(ctx context.Context, id string, includeDeleted bool) (*defense.Transcript, error) {
	query := `
		SELECT id, session_id, student_id, content, language, is_active, created_at
		FROM transcripts
		WHERE id = $1
	`
	if !includeDeleted {
		query += " AND is_active"
	}

	t, err := scanTranscript(r.q.QueryRow(ctx, query, id))
	if IsNoRows(err) {
		return nil, shared.ErrTranscriptNotFound
	}
	return t, err
}

// Create persists a new transcript.
func (r *TranscriptRepository) Create(ctx context.Context, t *defense.Transcript) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	query := `
		INSERT INTO transcripts (id, session_id, student_id, content, language, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW())
		RETURNING is_active, created_at
	`

	err := r.q.QueryRow(ctx, query,
		t.ID,
		t.SessionID,
		t.StudentID,
		t.Content,
		t.Language,
	).Scan(&t.IsActive, &t.CreatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrSessionNotFound
		}
		return fmt.Errorf("failed to create transcript: %w", err)
	}

	return nil
}

// SoftDelete marks the transcript inactive.
func (r *TranscriptRepository) SoftDelete(ctx context.Context, id string) error {
	result, err := r.q.Exec(ctx,
		"UPDATE transcripts SET is_active = FALSE WHERE id = $1",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to archive transcript: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrTranscriptNotFound
	}

	return nil
}

// Restore clears the soft-delete flag.
func (r *TranscriptRepository) Restore(ctx context.Context, id string) error {
	result, err := r.q.Exec(ctx,
		"UPDATE transcripts SET is_active = TRUE WHERE id = $1",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to restore transcript: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrTranscriptNotFound
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCAN HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func scanSession(row pgx.Row) (*defense.DefenseSession, error) {
	var s defense.DefenseSession
	var status string
	var startsAt *time.Time

	err := row.Scan(
		&s.ID,
		&s.CouncilID,
		&s.GroupID,
		&s.Title,
		&s.Location,
		&status,
		&startsAt,
		&s.IsActive,
		&s.CreatedAt,
	)
	if IsNoRows(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	s.Status = defense.SessionStatus(status)
	if startsAt != nil {
		s.StartsAt = *startsAt
	}

	return &s, nil
}

func scanScore(row pgx.Row) (*defense.Score, error) {
	var sc defense.Score
	var deletedAt *time.Time

	err := row.Scan(
		&sc.ID,
		&sc.SessionID,
		&sc.RubricID,
		&sc.StudentID,
		&sc.EvaluatorID,
		&sc.Value,
		&sc.Comment,
		&sc.IsActive,
		&sc.CreatedAt,
		&sc.UpdatedAt,
		&deletedAt,
	)
	if IsNoRows(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan score: %w", err)
	}

	if deletedAt != nil {
		sc.DeletedAt = *deletedAt
	}

	return &sc, nil
}

func scanTranscript(row pgx.Row) (*defense.Transcript, error) {
	var t defense.Transcript

	err := row.Scan(
		&t.ID,
		&t.SessionID,
		&t.StudentID,
		&t.Content,
		&t.Language,
		&t.IsActive,
		&t.CreatedAt,
	)
	if IsNoRows(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transcript: %w", err)
	}

	return &t, nil
}
