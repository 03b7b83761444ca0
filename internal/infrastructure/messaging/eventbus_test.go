package messaging

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/domain/shared"
)

func testBus() *InMemoryEventBus {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewInMemoryEventBus(cfg)
}

func createdEvent() shared.Event {
	return defense.NewScoreEvent(defense.ScoreCreated, &defense.Score{
		ID:          "sc-1",
		SessionID:   7,
		StudentID:   "S1",
		EvaluatorID: "E1",
		Value:       8,
	})
}

func TestEventBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := testBus()
	defer bus.Close()

	var order []string
	require.NoError(t, bus.Subscribe(shared.EventScoreCreated, func(shared.Event) error {
		order = append(order, "first")
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventScoreCreated, func(shared.Event) error {
		order = append(order, "second")
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		order = append(order, "global")
		return nil
	}))

	require.NoError(t, bus.Publish(createdEvent()))
	assert.Equal(t, []string{"first", "second", "global"}, order)
}

func TestEventBus_TypeFilteredDelivery(t *testing.T) {
	bus := testBus()
	defer bus.Close()

	var calls int
	require.NoError(t, bus.Subscribe(shared.EventScoreDeleted, func(shared.Event) error {
		calls++
		return nil
	}))

	require.NoError(t, bus.Publish(createdEvent()))
	assert.Equal(t, 0, calls)
}

func TestEventBus_FailingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := testBus()
	defer bus.Close()

	var reached bool
	require.NoError(t, bus.Subscribe(shared.EventScoreCreated, func(shared.Event) error {
		return errors.New("handler failure")
	}))
	require.NoError(t, bus.Subscribe(shared.EventScoreCreated, func(shared.Event) error {
		reached = true
		return nil
	}))

	require.NoError(t, bus.Publish(createdEvent()))
	assert.True(t, reached)
}

func TestEventBus_PanickingHandlerIsContained(t *testing.T) {
	bus := testBus()
	defer bus.Close()

	var reached bool
	require.NoError(t, bus.Subscribe(shared.EventScoreCreated, func(shared.Event) error {
		panic("handler exploded")
	}))
	require.NoError(t, bus.Subscribe(shared.EventScoreCreated, func(shared.Event) error {
		reached = true
		return nil
	}))

	assert.NotPanics(t, func() {
		require.NoError(t, bus.Publish(createdEvent()))
	})
	assert.True(t, reached)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
	assert.Equal(t, 0.5, snap.HandlerSuccessRate)
}

func TestEventBus_NilArgumentsRejected(t *testing.T) {
	bus := testBus()
	defer bus.Close()

	assert.Error(t, bus.Subscribe(shared.EventScoreCreated, nil))
	assert.Error(t, bus.SubscribeAll(nil))
	assert.Error(t, bus.Publish(nil))
}

func TestEventBus_ClosedBusRejectsOperations(t *testing.T) {
	bus := testBus()
	require.NoError(t, bus.Close())

	noop := func(shared.Event) error { return nil }
	assert.ErrorIs(t, bus.Subscribe(shared.EventScoreCreated, noop), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(noop), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Publish(createdEvent()), ErrEventBusClosed)

	// Closing twice is fine.
	assert.NoError(t, bus.Close())
}

func TestEventBus_MetricsCountPublishes(t *testing.T) {
	bus := testBus()
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventScoreCreated, func(shared.Event) error { return nil }))
	require.NoError(t, bus.Publish(createdEvent()))
	require.NoError(t, bus.Publish(createdEvent()))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
	assert.Equal(t, 1.0, snap.HandlerSuccessRate)
}

func TestEventBusMetrics_ResetKeepsCumulativeCounters(t *testing.T) {
	m := NewEventBusMetrics()
	m.RecordPublish(shared.EventScoreCreated)
	m.RecordHandlerExecution(shared.EventScoreCreated, time.Millisecond, true)

	before := m.Snapshot()
	m.Reset()
	after := m.Snapshot()

	assert.Equal(t, before.TotalPublished, after.TotalPublished)
	assert.Equal(t, before.TotalHandlerExecs, after.TotalHandlerExecs)
	assert.True(t, after.LastReset.After(before.LastReset) || after.LastReset.Equal(before.LastReset))
}
