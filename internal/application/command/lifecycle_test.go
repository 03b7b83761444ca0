package command

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defensehub/defensehub/internal/domain/catalog"
	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/domain/shared"
	"github.com/defensehub/defensehub/internal/infrastructure/persistence/memory"
)

func TestLifecycle_ArchiveAndRestoreEveryKind(t *testing.T) {
	store := memory.NewStore()
	h := NewLifecycleHandler(memory.NewCoordinator(store), testLogger())
	ctx := context.Background()

	council := &catalog.Council{Name: "Council"}
	require.NoError(t, store.Councils().Create(ctx, council))
	major := &catalog.Major{Name: "Computer Science", Code: "CS"}
	require.NoError(t, store.Majors().Create(ctx, major))
	rubric := &catalog.Rubric{MajorID: major.ID, Name: "Presentation", MaxScore: 10, Weight: 0.5}
	require.NoError(t, store.Rubrics().Create(ctx, rubric))
	group := &catalog.Group{MajorID: major.ID, Name: "SE-2201"}
	require.NoError(t, store.Groups().Create(ctx, group))
	session := &defense.DefenseSession{CouncilID: council.ID, GroupID: group.ID, Title: "Spring defenses"}
	require.NoError(t, store.Sessions().Create(ctx, session))
	score := &defense.Score{SessionID: session.ID, RubricID: rubric.ID, StudentID: "S1", EvaluatorID: "E1", Value: 8}
	require.NoError(t, store.Scores().Create(ctx, score))
	transcript := &defense.Transcript{SessionID: session.ID, StudentID: "S1", Content: "Opening remarks"}
	require.NoError(t, store.Transcripts().Create(ctx, transcript))

	cases := []struct {
		entity EntityKind
		id     string
		gone   func() bool
	}{
		{EntityCouncil, strconv.FormatInt(council.ID, 10), func() bool {
			_, err := store.Councils().GetByID(ctx, council.ID, false)
			return err != nil
		}},
		{EntityMajor, strconv.FormatInt(major.ID, 10), func() bool {
			_, err := store.Majors().GetByID(ctx, major.ID, false)
			return err != nil
		}},
		{EntityRubric, strconv.FormatInt(rubric.ID, 10), func() bool {
			_, err := store.Rubrics().GetByID(ctx, rubric.ID, false)
			return err != nil
		}},
		{EntityGroup, strconv.FormatInt(group.ID, 10), func() bool {
			_, err := store.Groups().GetByID(ctx, group.ID, false)
			return err != nil
		}},
		{EntitySession, strconv.FormatInt(session.ID, 10), func() bool {
			_, err := store.Sessions().GetByID(ctx, session.ID, false)
			return err != nil
		}},
		{EntityScore, score.ID, func() bool {
			_, err := store.Scores().GetByID(ctx, score.ID, false)
			return err != nil
		}},
		{EntityTranscript, transcript.ID, func() bool {
			_, err := store.Transcripts().GetByID(ctx, transcript.ID, false)
			return err != nil
		}},
	}

	for _, tc := range cases {
		t.Run(string(tc.entity), func(t *testing.T) {
			cmd := LifecycleCommand{Entity: tc.entity, ID: tc.id}

			require.NoError(t, h.Archive(ctx, cmd))
			assert.True(t, tc.gone())

			require.NoError(t, h.Restore(ctx, cmd))
			assert.False(t, tc.gone())
		})
	}
}

func TestLifecycle_ArchiveDoesNotCascade(t *testing.T) {
	store := memory.NewStore()
	h := NewLifecycleHandler(memory.NewCoordinator(store), testLogger())
	ctx := context.Background()

	council := &catalog.Council{Name: "Council"}
	require.NoError(t, store.Councils().Create(ctx, council))
	session := &defense.DefenseSession{CouncilID: council.ID, GroupID: 1, Title: "Spring defenses"}
	require.NoError(t, store.Sessions().Create(ctx, session))
	score := &defense.Score{SessionID: session.ID, RubricID: 1, StudentID: "S1", EvaluatorID: "E1", Value: 8}
	require.NoError(t, store.Scores().Create(ctx, score))

	cmd := LifecycleCommand{Entity: EntityCouncil, ID: strconv.FormatInt(council.ID, 10)}
	require.NoError(t, h.Archive(ctx, cmd))

	// Dependents keep their own flags.
	sessions, err := store.Sessions().List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	scores, err := store.Scores().ListBySession(ctx, session.ID, false)
	require.NoError(t, err)
	assert.Len(t, scores, 1)
}

func TestLifecycle_RestoreDoesNotResurrectDependents(t *testing.T) {
	store := memory.NewStore()
	h := NewLifecycleHandler(memory.NewCoordinator(store), testLogger())
	ctx := context.Background()

	council := &catalog.Council{Name: "Council"}
	require.NoError(t, store.Councils().Create(ctx, council))
	session := &defense.DefenseSession{CouncilID: council.ID, GroupID: 1, Title: "Spring defenses"}
	require.NoError(t, store.Sessions().Create(ctx, session))

	councilCmd := LifecycleCommand{Entity: EntityCouncil, ID: strconv.FormatInt(council.ID, 10)}
	sessionCmd := LifecycleCommand{Entity: EntitySession, ID: strconv.FormatInt(session.ID, 10)}

	require.NoError(t, h.Archive(ctx, sessionCmd))
	require.NoError(t, h.Archive(ctx, councilCmd))
	require.NoError(t, h.Restore(ctx, councilCmd))

	// The session was archived on its own and stays archived.
	_, err := store.Sessions().GetByID(ctx, session.ID, false)
	assert.ErrorIs(t, err, shared.ErrSessionNotFound)
}

func TestLifecycle_Validation(t *testing.T) {
	store := memory.NewStore()
	h := NewLifecycleHandler(memory.NewCoordinator(store), testLogger())
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  LifecycleCommand
	}{
		{"unknown kind", LifecycleCommand{Entity: "student", ID: "1"}},
		{"missing id", LifecycleCommand{Entity: EntityCouncil}},
		{"non-numeric id for serial entity", LifecycleCommand{Entity: EntitySession, ID: "abc"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, h.Archive(ctx, tc.cmd), shared.ErrValidation)
			assert.ErrorIs(t, h.Restore(ctx, tc.cmd), shared.ErrValidation)
		})
	}
}

func TestLifecycle_ArchiveMissingEntity(t *testing.T) {
	store := memory.NewStore()
	h := NewLifecycleHandler(memory.NewCoordinator(store), testLogger())

	cmd := LifecycleCommand{Entity: EntityCouncil, ID: "99"}
	err := h.Archive(context.Background(), cmd)
	assert.ErrorIs(t, err, shared.ErrCouncilNotFound)
}
