package command

import (
	"context"
	"errors"
	"log/slog"

	"github.com/defensehub/defensehub/internal/application/ports"
	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTACH TRANSCRIPT
// ══════════════════════════════════════════════════════════════════════════════

// AttachTranscriptCommand contains the data to attach a transcript to a
// session. Transcript content is stored verbatim; analysis is out of scope.
type AttachTranscriptCommand struct {
	SessionID int64
	StudentID string
	Content   string
	Language  string
}

// Validate validates the command.
func (c AttachTranscriptCommand) Validate() error {
	if c.SessionID == 0 {
		return errors.New("attach_transcript: session_id is required")
	}
	if c.Content == "" {
		return errors.New("attach_transcript: content is required")
	}
	return nil
}

// TranscriptHandler handles transcript write operations.
type TranscriptHandler struct {
	coordinator ports.Coordinator
	logger      *slog.Logger
}

// NewTranscriptHandler creates a new TranscriptHandler.
func NewTranscriptHandler(coordinator ports.Coordinator, logger *slog.Logger) *TranscriptHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscriptHandler{coordinator: coordinator, logger: logger}
}

// Attach stores a transcript under a live session.
func (h *TranscriptHandler) Attach(ctx context.Context, cmd AttachTranscriptCommand) (*defense.Transcript, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("defense", "AttachTranscript", shared.ErrValidation, "invalid transcript", err)
	}

	transcript := &defense.Transcript{
		SessionID: cmd.SessionID,
		StudentID: cmd.StudentID,
		Content:   cmd.Content,
		Language:  cmd.Language,
	}

	err := h.coordinator.Within(ctx, func(unit ports.UnitOfWork) error {
		if _, err := unit.Sessions().GetByID(ctx, cmd.SessionID, false); err != nil {
			return err
		}
		return unit.Transcripts().Create(ctx, transcript)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("transcript attached", "transcript_id", transcript.ID, "session_id", transcript.SessionID)
	return transcript, nil
}
