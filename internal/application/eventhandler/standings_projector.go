package eventhandler

import (
	"log/slog"

	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/domain/shared"
	"github.com/defensehub/defensehub/internal/infrastructure/persistence/projections"
)

// ═══════════════════════════════════════════════════════════════════════════
// STANDINGS PROJECTOR
// Keeps the in-memory standings view current with committed score events.
// ═══════════════════════════════════════════════════════════════════════════

// StandingsProjector applies score events to the standings view. Projection
// errors never fail the bus; the view can always be rebuilt from the store.
type StandingsProjector struct {
	view   *projections.StandingsView
	logger *slog.Logger
}

// NewStandingsProjector creates a projector targeting the given view.
func NewStandingsProjector(view *projections.StandingsView, logger *slog.Logger) *StandingsProjector {
	if logger == nil {
		logger = slog.Default()
	}
	return &StandingsProjector{view: view, logger: logger}
}

// Handle applies one committed score event to the view.
func (p *StandingsProjector) Handle(event shared.Event) error {
	scoreEvent, ok := event.(defense.ScoreEvent)
	if !ok {
		p.logger.Warn("standings projector got a non-score event",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
		)
		return nil
	}

	switch scoreEvent.Kind {
	case defense.ScoreCreated, defense.ScoreUpdated:
		p.view.ApplyScore(scoreEvent.View)
	case defense.ScoreDeleted:
		p.view.RemoveScore(scoreEvent.ScoreID)
	}

	return nil
}

// Register subscribes the projector to every score event type on the bus.
func (p *StandingsProjector) Register(bus shared.EventSubscriber) error {
	for _, t := range []shared.EventType{
		shared.EventScoreCreated,
		shared.EventScoreUpdated,
		shared.EventScoreDeleted,
	} {
		if err := bus.Subscribe(t, p.Handle); err != nil {
			return err
		}
	}
	return nil
}
