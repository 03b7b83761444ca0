package command

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
	"github.com/defensehub/defensehub/internal/infrastructure/persistence/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// capturePublisher records published events; an optional error simulates a
// broken notification path.
type capturePublisher struct {
	events []shared.Event
	err    error
}

func (p *capturePublisher) Publish(event shared.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

// captureInvalidator records scoreboard invalidations.
type captureInvalidator struct {
	sessions []int64
	err      error
}

func (i *captureInvalidator) Invalidate(_ context.Context, sessionID int64) error {
	if i.err != nil {
		return i.err
	}
	i.sessions = append(i.sessions, sessionID)
	return nil
}

func ptr[T any](v T) *T { return &v }

func scoreFixture() RecordScoreCommand {
	return RecordScoreCommand{
		Kind:        defense.ScoreCreated,
		SessionID:   7,
		RubricID:    2,
		StudentID:   "S1",
		EvaluatorID: "E1",
		Value:       ptr(8.5),
	}
}

func TestRecordScore_CreatePublishesAfterCommit(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	inv := &captureInvalidator{}
	h := NewRecordScoreHandler(memory.NewCoordinator(store), pub, inv, testLogger())

	result, err := h.Handle(context.Background(), scoreFixture())
	require.NoError(t, err)
	require.NotEmpty(t, result.Score.ID)

	assert.Equal(t, 8.5, result.Score.Value)
	assert.Equal(t, defense.ScoreCreated, result.Event.Kind)

	require.Len(t, pub.events, 1)
	event, ok := pub.events[0].(defense.ScoreEvent)
	require.True(t, ok)
	assert.Equal(t, result.Score.ID, event.ScoreID)
	assert.Equal(t, int64(7), event.SessionID)

	assert.Equal(t, []int64{7}, inv.sessions)

	persisted, err := store.Scores().GetByID(context.Background(), result.Score.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 8.5, persisted.Value)
}

func TestRecordScore_DuplicateEmitsNothing(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	h := NewRecordScoreHandler(memory.NewCoordinator(store), pub, nil, testLogger())

	_, err := h.Handle(context.Background(), scoreFixture())
	require.NoError(t, err)

	_, err = h.Handle(context.Background(), scoreFixture())
	assert.ErrorIs(t, err, shared.ErrDuplicateScore)
	assert.Len(t, pub.events, 1)
}

func TestRecordScore_Update(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	h := NewRecordScoreHandler(memory.NewCoordinator(store), pub, nil, testLogger())

	created, err := h.Handle(context.Background(), scoreFixture())
	require.NoError(t, err)

	updated, err := h.Handle(context.Background(), RecordScoreCommand{
		Kind:    defense.ScoreUpdated,
		ScoreID: created.Score.ID,
		Value:   ptr(9.0),
		Comment: ptr("strong defense"),
	})
	require.NoError(t, err)

	assert.Equal(t, 9.0, updated.Score.Value)
	assert.Equal(t, "strong defense", updated.Score.Comment)
	assert.Equal(t, defense.ScoreUpdated, updated.Event.Kind)
	require.Len(t, pub.events, 2)
}

func TestRecordScore_DeleteSoftDeletes(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	h := NewRecordScoreHandler(memory.NewCoordinator(store), pub, nil, testLogger())

	created, err := h.Handle(context.Background(), scoreFixture())
	require.NoError(t, err)

	deleted, err := h.Handle(context.Background(), RecordScoreCommand{
		Kind:    defense.ScoreDeleted,
		ScoreID: created.Score.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, defense.ScoreDeleted, deleted.Event.Kind)
	assert.Equal(t, created.Score.ID, deleted.Event.ScoreID)

	live, err := store.Scores().ListBySession(context.Background(), 7, false)
	require.NoError(t, err)
	assert.Empty(t, live)

	// Deleting the same score again fails: the live lookup misses.
	_, err = h.Handle(context.Background(), RecordScoreCommand{
		Kind:    defense.ScoreDeleted,
		ScoreID: created.Score.ID,
	})
	assert.ErrorIs(t, err, shared.ErrScoreNotFound)
	assert.Len(t, pub.events, 2)
}

func TestRecordScore_ValidationFailuresEmitNothing(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	h := NewRecordScoreHandler(memory.NewCoordinator(store), pub, nil, testLogger())

	cases := []struct {
		name string
		cmd  RecordScoreCommand
	}{
		{"unknown kind", RecordScoreCommand{Kind: "Upserted"}},
		{"missing value", RecordScoreCommand{Kind: defense.ScoreCreated, SessionID: 7, RubricID: 2, StudentID: "S1", EvaluatorID: "E1"}},
		{"missing student", RecordScoreCommand{Kind: defense.ScoreCreated, SessionID: 7, RubricID: 2, EvaluatorID: "E1", Value: ptr(5.0)}},
		{"update without id", RecordScoreCommand{Kind: defense.ScoreUpdated, Value: ptr(5.0)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Handle(context.Background(), tc.cmd)
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}
	assert.Empty(t, pub.events)
}

func TestRecordScore_OutOfRangeValueRollsBack(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	h := NewRecordScoreHandler(memory.NewCoordinator(store), pub, nil, testLogger())

	cmd := scoreFixture()
	cmd.Value = ptr(10.5)

	_, err := h.Handle(context.Background(), cmd)
	assert.ErrorIs(t, err, shared.ErrInvalidScoreValue)
	assert.Empty(t, pub.events)

	all, err := store.Scores().ListBySession(context.Background(), 7, true)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRecordScore_NotificationFailuresDoNotUnwindCommit(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{err: errors.New("bus down")}
	inv := &captureInvalidator{err: errors.New("cache down")}
	h := NewRecordScoreHandler(memory.NewCoordinator(store), pub, inv, testLogger())

	result, err := h.Handle(context.Background(), scoreFixture())
	require.NoError(t, err)

	persisted, err := store.Scores().GetByID(context.Background(), result.Score.ID, false)
	require.NoError(t, err)
	assert.True(t, persisted.IsActive)
}
