// Package eventhandler contains the subscribers wired onto the in-process
// event bus. Handlers run strictly after the unit of work that produced
// the event has committed.
package eventhandler

import (
	"log/slog"

	"github.com/defensehub/defensehub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON SCORE COMMITTED
// Relays committed score events into the real-time fan-out layer.
// ═══════════════════════════════════════════════════════════════════════════

// ScoreFanOut is the slice of the broadcaster the relay needs.
type ScoreFanOut interface {
	Publish(event shared.Event) error
}

// ScoreEventRelay forwards score events from the bus to the broadcaster.
// The broadcaster rejects anything that is not a score event, so the relay
// is only subscribed to the score.* types.
type ScoreEventRelay struct {
	fanout ScoreFanOut
	logger *slog.Logger
}

// NewScoreEventRelay creates a relay targeting the given fan-out.
func NewScoreEventRelay(fanout ScoreFanOut, logger *slog.Logger) *ScoreEventRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScoreEventRelay{fanout: fanout, logger: logger}
}

// Handle delivers one committed event to the real-time layer.
func (r *ScoreEventRelay) Handle(event shared.Event) error {
	if err := r.fanout.Publish(event); err != nil {
		r.logger.Error("score event fan-out failed",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
		return err
	}
	return nil
}

// Register subscribes the relay to every score event type on the bus.
func (r *ScoreEventRelay) Register(bus shared.EventSubscriber) error {
	for _, t := range []shared.EventType{
		shared.EventScoreCreated,
		shared.EventScoreUpdated,
		shared.EventScoreDeleted,
	} {
		if err := bus.Subscribe(t, r.Handle); err != nil {
			return err
		}
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// AUDIT LOG
// ═══════════════════════════════════════════════════════════════════════════

// AuditLogHandler writes every committed event to the structured log.
// It subscribes globally and never fails the bus.
type AuditLogHandler struct {
	logger *slog.Logger
}

// NewAuditLogHandler creates a handler logging to the given logger.
func NewAuditLogHandler(logger *slog.Logger) *AuditLogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogHandler{logger: logger}
}

// Handle logs one event.
func (h *AuditLogHandler) Handle(event shared.Event) error {
	h.logger.Info("domain event",
		"event_type", event.EventType(),
		"aggregate_id", event.AggregateID(),
		"occurred_at", event.OccurredAt(),
	)
	return nil
}

// Register subscribes the handler to all events on the bus.
func (h *AuditLogHandler) Register(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(h.Handle)
}
