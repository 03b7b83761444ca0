package defense

import (
	"errors"
	"time"

	"github.com/defensehub/defensehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE
// ══════════════════════════════════════════════════════════════════════════════

// Score is one evaluator's grade for one student on one rubric within a
// defense session. The (session, rubric, student, evaluator) tuple is unique.
type Score struct {
	// ID is an opaque UUID assigned at creation.
	ID string

	SessionID   int64
	RubricID    int64
	StudentID   string
	EvaluatorID string

	// Value is the grade on a 0..10 scale.
	Value   float64
	Comment string

	// IsActive is false when the score is soft-deleted.
	IsActive  bool
	CreatedAt time.Time

	// UpdatedAt tracks content mutations only; archiving and restoring do
	// not touch it, so a restored score reads exactly as it did before.
	UpdatedAt time.Time

	// DeletedAt is when the score was last soft-deleted (zero if never).
	DeletedAt time.Time
}

// Validate checks score invariants.
func (s *Score) Validate() error {
	if s.SessionID == 0 {
		return errors.New("score: session is required")
	}
	if s.RubricID == 0 {
		return errors.New("score: rubric is required")
	}
	if s.StudentID == "" {
		return errors.New("score: student is required")
	}
	if s.EvaluatorID == "" {
		return errors.New("score: evaluator is required")
	}
	if s.Value < 0 || s.Value > 10 {
		return shared.ErrInvalidScoreValue
	}
	return nil
}

// ScorePatch is a partial update for a score.
type ScorePatch struct {
	Value   *float64
	Comment *string
}

// Apply copies the set fields onto the score.
func (p ScorePatch) Apply(s *Score) {
	if p.Value != nil {
		s.Value = *p.Value
	}
	if p.Comment != nil {
		s.Comment = *p.Comment
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PROJECTION
// ══════════════════════════════════════════════════════════════════════════════

// ScoreView is the full score projection carried by real-time events and the
// read cache. It is assembled explicitly; there is no implicit mapping layer.
type ScoreView struct {
	ID          string    `json:"id"`
	SessionID   int64     `json:"session_id"`
	RubricID    int64     `json:"rubric_id"`
	StudentID   string    `json:"student_id"`
	EvaluatorID string    `json:"evaluator_id"`
	Value       float64   `json:"value"`
	Comment     string    `json:"comment,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// View projects the score for transport. The timestamp is the last mutation
// time, not the creation time.
func (s *Score) View() ScoreView {
	ts := s.UpdatedAt
	if ts.IsZero() {
		ts = s.CreatedAt
	}
	return ScoreView{
		ID:          s.ID,
		SessionID:   s.SessionID,
		RubricID:    s.RubricID,
		StudentID:   s.StudentID,
		EvaluatorID: s.EvaluatorID,
		Value:       s.Value,
		Comment:     s.Comment,
		Timestamp:   ts,
	}
}
