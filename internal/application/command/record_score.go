// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/defensehub/defensehub/internal/application/ports"
	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD SCORE MUTATION
// The single inbound write on the real-time path. The mutation runs inside a
// unit of work; the score event is published strictly after a successful
// commit, and a failed mutation emits nothing.
// ══════════════════════════════════════════════════════════════════════════════

// RecordScoreCommand contains one score mutation.
type RecordScoreCommand struct {
	// Kind selects the mutation: Created, Updated or Deleted.
	Kind defense.ScoreEventKind

	// ScoreID identifies the score for Updated and Deleted.
	ScoreID string

	// Creation fields (Created only).
	SessionID   int64
	RubricID    int64
	StudentID   string
	EvaluatorID string

	// Value and Comment apply to Created, and to Updated when set.
	Value   *float64
	Comment *string
}

// Validate validates the command.
func (c RecordScoreCommand) Validate() error {
	if !c.Kind.IsValid() {
		return fmt.Errorf("record_score: unknown mutation kind: %s", c.Kind)
	}

	switch c.Kind {
	case defense.ScoreCreated:
		if c.SessionID == 0 {
			return errors.New("record_score: session_id is required")
		}
		if c.RubricID == 0 {
			return errors.New("record_score: rubric_id is required")
		}
		if c.StudentID == "" {
			return errors.New("record_score: student_id is required")
		}
		if c.EvaluatorID == "" {
			return errors.New("record_score: evaluator_id is required")
		}
		if c.Value == nil {
			return errors.New("record_score: value is required")
		}
	case defense.ScoreUpdated, defense.ScoreDeleted:
		if c.ScoreID == "" {
			return errors.New("record_score: score_id is required")
		}
	}

	return nil
}

// RecordScoreResult contains the committed mutation outcome.
type RecordScoreResult struct {
	// Score is the score state after the mutation.
	Score defense.ScoreView

	// Event is the committed event handed to the broadcaster.
	Event defense.ScoreEvent
}

// ScoreboardInvalidator drops cached scoreboard state after a committed
// score mutation. Invalidation failures degrade freshness only.
type ScoreboardInvalidator interface {
	Invalidate(ctx context.Context, sessionID int64) error
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordScoreHandler handles the RecordScoreCommand.
type RecordScoreHandler struct {
	coordinator ports.Coordinator
	publisher   shared.EventPublisher
	scoreboard  ScoreboardInvalidator
	logger      *slog.Logger
}

// NewRecordScoreHandler creates a new RecordScoreHandler. The scoreboard
// invalidator is optional.
func NewRecordScoreHandler(
	coordinator ports.Coordinator,
	publisher shared.EventPublisher,
	scoreboard ScoreboardInvalidator,
	logger *slog.Logger,
) *RecordScoreHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &RecordScoreHandler{
		coordinator: coordinator,
		publisher:   publisher,
		scoreboard:  scoreboard,
		logger:      logger,
	}
}

// Handle executes the score mutation. On commit it invalidates the cached
// scoreboard and publishes the score event; notification-path failures are
// logged and never unwind the committed mutation.
func (h *RecordScoreHandler) Handle(ctx context.Context, cmd RecordScoreCommand) (*RecordScoreResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("defense", "RecordScore", shared.ErrValidation, "invalid score mutation", err)
	}

	var committed *defense.Score

	err := h.coordinator.Within(ctx, func(unit ports.UnitOfWork) error {
		scores := unit.Scores()

		switch cmd.Kind {
		case defense.ScoreCreated:
			score := &defense.Score{
				SessionID:   cmd.SessionID,
				RubricID:    cmd.RubricID,
				StudentID:   cmd.StudentID,
				EvaluatorID: cmd.EvaluatorID,
				Value:       *cmd.Value,
			}
			if cmd.Comment != nil {
				score.Comment = *cmd.Comment
			}
			if err := scores.Create(ctx, score); err != nil {
				return err
			}
			committed = score
			return nil

		case defense.ScoreUpdated:
			patch := defense.ScorePatch{Value: cmd.Value, Comment: cmd.Comment}
			if err := scores.Update(ctx, cmd.ScoreID, patch); err != nil {
				return err
			}
			score, err := scores.GetByID(ctx, cmd.ScoreID, true)
			if err != nil {
				return err
			}
			committed = score
			return nil

		default: // defense.ScoreDeleted
			score, err := scores.GetByID(ctx, cmd.ScoreID, false)
			if err != nil {
				return err
			}
			if err := scores.SoftDelete(ctx, cmd.ScoreID); err != nil {
				return err
			}
			score.IsActive = false
			committed = score
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	// Commit succeeded: everything from here is notification-path only.
	if h.scoreboard != nil {
		if err := h.scoreboard.Invalidate(ctx, committed.SessionID); err != nil {
			h.logger.Warn("scoreboard invalidation failed",
				"session_id", committed.SessionID,
				"error", err)
		}
	}

	event := defense.NewScoreEvent(cmd.Kind, committed)
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Error("score event publish failed",
			"score_id", committed.ID,
			"kind", string(cmd.Kind),
			"error", err)
	}

	return &RecordScoreResult{
		Score: committed.View(),
		Event: event,
	}, nil
}
