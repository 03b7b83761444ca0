package eventhandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/domain/shared"
	"github.com/defensehub/defensehub/internal/infrastructure/messaging"
	"github.com/defensehub/defensehub/internal/infrastructure/persistence/projections"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBus() *messaging.InMemoryEventBus {
	cfg := messaging.DefaultInMemoryEventBusConfig()
	cfg.Logger = testLogger()
	return messaging.NewInMemoryEventBus(cfg)
}

func committedScore(kind defense.ScoreEventKind, id string, value float64) defense.ScoreEvent {
	return defense.NewScoreEvent(kind, &defense.Score{
		ID:          id,
		SessionID:   7,
		RubricID:    1,
		StudentID:   "S1",
		EvaluatorID: "E1",
		Value:       value,
	})
}

// fanOutStub records published events.
type fanOutStub struct {
	events []shared.Event
	err    error
}

func (f *fanOutStub) Publish(event shared.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func TestScoreEventRelay_ForwardsScoreEvents(t *testing.T) {
	bus := testBus()
	defer bus.Close()

	fanout := &fanOutStub{}
	relay := NewScoreEventRelay(fanout, testLogger())
	require.NoError(t, relay.Register(bus))

	for _, kind := range []defense.ScoreEventKind{defense.ScoreCreated, defense.ScoreUpdated, defense.ScoreDeleted} {
		require.NoError(t, bus.Publish(committedScore(kind, "sc-1", 8)))
	}

	require.Len(t, fanout.events, 3)
	first, ok := fanout.events[0].(defense.ScoreEvent)
	require.True(t, ok)
	assert.Equal(t, defense.ScoreCreated, first.Kind)
}

func TestScoreEventRelay_PropagatesFanOutErrors(t *testing.T) {
	fanout := &fanOutStub{err: errors.New("fan-out down")}
	relay := NewScoreEventRelay(fanout, testLogger())

	err := relay.Handle(committedScore(defense.ScoreCreated, "sc-1", 8))
	assert.Error(t, err)
}

func TestStandingsProjector_MaintainsView(t *testing.T) {
	bus := testBus()
	defer bus.Close()

	view := projections.NewStandingsView()
	projector := NewStandingsProjector(view, testLogger())
	require.NoError(t, projector.Register(bus))

	require.NoError(t, bus.Publish(committedScore(defense.ScoreCreated, "sc-1", 6)))
	require.NoError(t, bus.Publish(committedScore(defense.ScoreUpdated, "sc-1", 9)))

	entry, err := view.GetByStudent(context.Background(), 7, "S1")
	require.NoError(t, err)
	assert.InDelta(t, 9.0, entry.WeightedTotal, 1e-9)

	require.NoError(t, bus.Publish(committedScore(defense.ScoreDeleted, "sc-1", 9)))
	_, err = view.GetByStudent(context.Background(), 7, "S1")
	assert.ErrorIs(t, err, shared.ErrScoreNotFound)
}

type opaqueEvent struct{ shared.BaseEvent }

func (opaqueEvent) Payload() map[string]interface{} { return nil }

func TestStandingsProjector_IgnoresNonScoreEvents(t *testing.T) {
	view := projections.NewStandingsView()
	projector := NewStandingsProjector(view, testLogger())

	event := opaqueEvent{shared.NewBaseEvent(shared.EventScoreCreated, "1")}
	assert.NoError(t, projector.Handle(event))
	assert.Equal(t, int64(0), view.Version())
}

func TestAuditLogHandler_NeverFails(t *testing.T) {
	handler := NewAuditLogHandler(testLogger())
	assert.NoError(t, handler.Handle(committedScore(defense.ScoreCreated, "sc-1", 8)))
}
