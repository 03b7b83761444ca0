package command

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/defensehub/defensehub/internal/application/ports"
	"github.com/defensehub/defensehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNIFORM LIFECYCLE OPERATIONS
// Archive and restore behave identically across every entity type: the flag
// flips, nothing cascades, and dependents archived on their own stay archived
// after a restore. Score archival through this path is administrative and
// emits no real-time event; the event-emitting path is RecordScoreHandler
// with the Deleted kind.
// ══════════════════════════════════════════════════════════════════════════════

// EntityKind names an archivable entity type.
type EntityKind string

const (
	EntityCouncil    EntityKind = "council"
	EntityMajor      EntityKind = "major"
	EntityRubric     EntityKind = "rubric"
	EntityGroup      EntityKind = "group"
	EntitySession    EntityKind = "session"
	EntityScore      EntityKind = "score"
	EntityTranscript EntityKind = "transcript"
)

// IsValid reports whether the kind is known.
func (k EntityKind) IsValid() bool {
	switch k {
	case EntityCouncil, EntityMajor, EntityRubric, EntityGroup,
		EntitySession, EntityScore, EntityTranscript:
		return true
	default:
		return false
	}
}

// usesNumericID reports whether the entity is keyed by a serial int64 rather
// than a UUID.
func (k EntityKind) usesNumericID() bool {
	switch k {
	case EntityScore, EntityTranscript:
		return false
	default:
		return true
	}
}

// LifecycleCommand identifies one entity for archive or restore.
type LifecycleCommand struct {
	// Entity is the entity type.
	Entity EntityKind

	// ID is the entity identifier: decimal for serial-keyed entities, UUID
	// for scores and transcripts.
	ID string
}

// Validate validates the command.
func (c LifecycleCommand) Validate() error {
	if !c.Entity.IsValid() {
		return fmt.Errorf("lifecycle: unknown entity kind: %s", c.Entity)
	}
	if c.ID == "" {
		return fmt.Errorf("lifecycle: id is required")
	}
	if c.Entity.usesNumericID() {
		if _, err := strconv.ParseInt(c.ID, 10, 64); err != nil {
			return fmt.Errorf("lifecycle: %s id must be numeric: %s", c.Entity, c.ID)
		}
	}
	return nil
}

func (c LifecycleCommand) numericID() int64 {
	id, _ := strconv.ParseInt(c.ID, 10, 64)
	return id
}

// LifecycleHandler handles archive and restore for every entity type.
type LifecycleHandler struct {
	coordinator ports.Coordinator
	logger      *slog.Logger
}

// NewLifecycleHandler creates a new LifecycleHandler.
func NewLifecycleHandler(coordinator ports.Coordinator, logger *slog.Logger) *LifecycleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LifecycleHandler{coordinator: coordinator, logger: logger}
}

// Archive soft-deletes the entity. Dependents are not touched.
func (h *LifecycleHandler) Archive(ctx context.Context, cmd LifecycleCommand) error {
	if err := cmd.Validate(); err != nil {
		return shared.WrapError("lifecycle", "Archive", shared.ErrValidation, "invalid lifecycle command", err)
	}

	err := h.coordinator.Within(ctx, func(unit ports.UnitOfWork) error {
		return h.apply(ctx, unit, cmd, true)
	})
	if err != nil {
		return err
	}

	h.logger.Info("entity archived", "entity", string(cmd.Entity), "id", cmd.ID)
	return nil
}

// Restore clears the soft-delete flag.
func (h *LifecycleHandler) Restore(ctx context.Context, cmd LifecycleCommand) error {
	if err := cmd.Validate(); err != nil {
		return shared.WrapError("lifecycle", "Restore", shared.ErrValidation, "invalid lifecycle command", err)
	}

	err := h.coordinator.Within(ctx, func(unit ports.UnitOfWork) error {
		return h.apply(ctx, unit, cmd, false)
	})
	if err != nil {
		return err
	}

	h.logger.Info("entity restored", "entity", string(cmd.Entity), "id", cmd.ID)
	return nil
}

func (h *LifecycleHandler) apply(ctx context.Context, unit ports.UnitOfWork, cmd LifecycleCommand, archive bool) error {
	switch cmd.Entity {
	case EntityCouncil:
		if archive {
			return unit.Councils().SoftDelete(ctx, cmd.numericID())
		}
		return unit.Councils().Restore(ctx, cmd.numericID())
	case EntityMajor:
		if archive {
			return unit.Majors().SoftDelete(ctx, cmd.numericID())
		}
		return unit.Majors().Restore(ctx, cmd.numericID())
	case EntityRubric:
		if archive {
			return unit.Rubrics().SoftDelete(ctx, cmd.numericID())
		}
		return unit.Rubrics().Restore(ctx, cmd.numericID())
	case EntityGroup:
		if archive {
			return unit.Groups().SoftDelete(ctx, cmd.numericID())
		}
		return unit.Groups().Restore(ctx, cmd.numericID())
	case EntitySession:
		if archive {
			return unit.Sessions().SoftDelete(ctx, cmd.numericID())
		}
		return unit.Sessions().Restore(ctx, cmd.numericID())
	case EntityScore:
		if archive {
			return unit.Scores().SoftDelete(ctx, cmd.ID)
		}
		return unit.Scores().Restore(ctx, cmd.ID)
	default: // EntityTranscript
		if archive {
			return unit.Transcripts().SoftDelete(ctx, cmd.ID)
		}
		return unit.Transcripts().Restore(ctx, cmd.ID)
	}
}
