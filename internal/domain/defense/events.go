package defense

import (
	"github.com/defensehub/defensehub/internal/domain/shared"
)

// ScoreEventKind distinguishes the three score mutations.
type ScoreEventKind string

const (
	// ScoreCreated - a new score was recorded.
	ScoreCreated ScoreEventKind = "Created"
	// ScoreUpdated - an existing score was changed.
	ScoreUpdated ScoreEventKind = "Updated"
	// ScoreDeleted - a score was soft-deleted.
	ScoreDeleted ScoreEventKind = "Deleted"
)

// IsValid reports whether the kind is known.
func (k ScoreEventKind) IsValid() bool {
	switch k {
	case ScoreCreated, ScoreUpdated, ScoreDeleted:
		return true
	default:
		return false
	}
}

// eventType maps a kind to its domain event type.
func (k ScoreEventKind) eventType() shared.EventType {
	switch k {
	case ScoreUpdated:
		return shared.EventScoreUpdated
	case ScoreDeleted:
		return shared.EventScoreDeleted
	default:
		return shared.EventScoreCreated
	}
}

// WireName returns the event name used on the wire, kept stable for
// existing clients: ScoreCreated, ScoreUpdated, ScoreDeleted.
func (k ScoreEventKind) WireName() string {
	return "Score" + string(k)
}

// ScoreEvent is the immutable record of one committed score mutation.
// Exactly one event is produced per successful mutation; it is never
// mutated after creation. The broadcaster resolves its recipient groups
// from the Session/Student/Evaluator fields.
type ScoreEvent struct {
	shared.BaseEvent
	Kind        ScoreEventKind `json:"kind"`
	ScoreID     string         `json:"score_id"`
	SessionID   int64          `json:"session_id"`
	StudentID   string         `json:"student_id"`
	EvaluatorID string         `json:"evaluator_id"`
	View        ScoreView      `json:"score"`
}

// Payload implements shared.Event.
func (e ScoreEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"kind":         string(e.Kind),
		"score_id":     e.ScoreID,
		"session_id":   e.SessionID,
		"student_id":   e.StudentID,
		"evaluator_id": e.EvaluatorID,
		"score":        e.View,
	}
}

// NewScoreEvent builds the event for a committed mutation of the given score.
func NewScoreEvent(kind ScoreEventKind, score *Score) ScoreEvent {
	return ScoreEvent{
		BaseEvent:   shared.NewBaseEvent(kind.eventType(), score.ID),
		Kind:        kind,
		ScoreID:     score.ID,
		SessionID:   score.SessionID,
		StudentID:   score.StudentID,
		EvaluatorID: score.EvaluatorID,
		View:        score.View(),
	}
}
