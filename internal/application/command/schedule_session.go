package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/defensehub/defensehub/internal/application/ports"
	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION SCHEDULING
// ══════════════════════════════════════════════════════════════════════════════

// ScheduleSessionCommand contains the data to schedule a defense session.
type ScheduleSessionCommand struct {
	CouncilID int64
	GroupID   int64
	Title     string
	Location  string
	StartsAt  time.Time
}

// Validate validates the command.
func (c ScheduleSessionCommand) Validate() error {
	if c.CouncilID == 0 {
		return errors.New("schedule_session: council_id is required")
	}
	if c.GroupID == 0 {
		return errors.New("schedule_session: group_id is required")
	}
	if c.Title == "" {
		return errors.New("schedule_session: title is required")
	}
	return nil
}

// SessionHandler handles defense session write operations.
type SessionHandler struct {
	coordinator ports.Coordinator
	logger      *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(coordinator ports.Coordinator, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{coordinator: coordinator, logger: logger}
}

// Schedule creates a session in the scheduled state. The council and group
// must exist and be live; an archived council cannot take new sessions.
func (h *SessionHandler) Schedule(ctx context.Context, cmd ScheduleSessionCommand) (*defense.DefenseSession, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("defense", "ScheduleSession", shared.ErrValidation, "invalid session", err)
	}

	session := &defense.DefenseSession{
		CouncilID: cmd.CouncilID,
		GroupID:   cmd.GroupID,
		Title:     cmd.Title,
		Location:  cmd.Location,
		StartsAt:  cmd.StartsAt,
	}

	err := h.coordinator.Within(ctx, func(unit ports.UnitOfWork) error {
		if _, err := unit.Councils().GetByID(ctx, cmd.CouncilID, false); err != nil {
			return err
		}
		if _, err := unit.Groups().GetByID(ctx, cmd.GroupID, false); err != nil {
			return err
		}
		return unit.Sessions().Create(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("session scheduled",
		"session_id", session.ID,
		"council_id", session.CouncilID,
		"group_id", session.GroupID)

	return session, nil
}

// Update applies a field patch to a session.
func (h *SessionHandler) Update(ctx context.Context, id int64, patch defense.SessionPatch) error {
	return h.coordinator.Within(ctx, func(unit ports.UnitOfWork) error {
		return unit.Sessions().Update(ctx, id, patch)
	})
}

// Transition moves a session to a new status. Illegal transitions fail with
// shared.ErrStateTransition; terminal states never leave.
func (h *SessionHandler) Transition(ctx context.Context, id int64, status defense.SessionStatus) error {
	if !status.IsValid() {
		return shared.NewDomainError("defense", "TransitionSession", shared.ErrValidation,
			"unknown session status: "+string(status))
	}

	err := h.coordinator.Within(ctx, func(unit ports.UnitOfWork) error {
		return unit.Sessions().UpdateStatus(ctx, id, status)
	})
	if err != nil {
		return err
	}

	h.logger.Info("session transitioned", "session_id", id, "status", string(status))
	return nil
}
