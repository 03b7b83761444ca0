package projections

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/domain/shared"
)

func sv(id string, session int64, rubric int64, student, evaluator string, value float64) defense.ScoreView {
	return defense.ScoreView{
		ID:          id,
		SessionID:   session,
		RubricID:    rubric,
		StudentID:   student,
		EvaluatorID: evaluator,
		Value:       value,
		Timestamp:   time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestStandingsView_MeanPerRubricAndWeightedTotal(t *testing.T) {
	view := NewStandingsView()
	view.SetRubricWeights(map[int64]float64{1: 0.6, 2: 0.4})

	// Rubric 1: two evaluators, mean 8. Rubric 2: one evaluator, 6.
	view.Rebuild([]defense.ScoreView{
		sv("a", 7, 1, "S1", "E1", 7),
		sv("b", 7, 1, "S1", "E2", 9),
		sv("c", 7, 2, "S1", "E1", 6),
	})

	entries, err := view.GetStandings(context.Background(), 7, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "S1", entry.StudentID)
	assert.Equal(t, 1, entry.Rank)
	assert.InDelta(t, 8.0, entry.ByRubric[1], 1e-9)
	assert.InDelta(t, 6.0, entry.ByRubric[2], 1e-9)
	assert.InDelta(t, 8*0.6+6*0.4, entry.WeightedTotal, 1e-9)
	assert.InDelta(t, 22.0, entry.RawTotal, 1e-9)
	assert.Equal(t, 3, entry.ScoreCount)
	assert.Equal(t, 2, entry.Evaluators)
}

func TestStandingsView_UnknownRubricWeighsOne(t *testing.T) {
	view := NewStandingsView()

	view.ApplyScore(sv("a", 7, 99, "S1", "E1", 5))

	entries, err := view.GetStandings(context.Background(), 7, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.InDelta(t, 5.0, entries[0].WeightedTotal, 1e-9)
}

func TestStandingsView_RankingAndTies(t *testing.T) {
	view := NewStandingsView()

	view.Rebuild([]defense.ScoreView{
		sv("a", 7, 1, "S1", "E1", 9),
		sv("b", 7, 1, "S2", "E1", 7),
		sv("c", 7, 1, "S3", "E1", 9),
		sv("d", 7, 1, "S4", "E1", 6),
	})

	entries, err := view.GetStandings(context.Background(), 7, 0)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// Tied totals share a rank; the next distinct total resumes at its
	// positional rank. Ties order by student id.
	assert.Equal(t, "S1", entries[0].StudentID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "S3", entries[1].StudentID)
	assert.Equal(t, 1, entries[1].Rank)
	assert.Equal(t, "S2", entries[2].StudentID)
	assert.Equal(t, 3, entries[2].Rank)
	assert.Equal(t, "S4", entries[3].StudentID)
	assert.Equal(t, 4, entries[3].Rank)
}

func TestStandingsView_LimitTruncates(t *testing.T) {
	view := NewStandingsView()

	view.Rebuild([]defense.ScoreView{
		sv("a", 7, 1, "S1", "E1", 9),
		sv("b", 7, 1, "S2", "E1", 7),
		sv("c", 7, 1, "S3", "E1", 5),
	})

	entries, err := view.GetStandings(context.Background(), 7, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "S1", entries[0].StudentID)
	assert.Equal(t, "S2", entries[1].StudentID)
}

func TestStandingsView_ApplyAndRemove(t *testing.T) {
	view := NewStandingsView()

	view.ApplyScore(sv("a", 7, 1, "S1", "E1", 6))
	view.ApplyScore(sv("b", 7, 1, "S2", "E1", 8))

	// Upsert of the same score id replaces its value.
	view.ApplyScore(sv("a", 7, 1, "S1", "E1", 9))

	entries, err := view.GetStandings(context.Background(), 7, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "S1", entries[0].StudentID)

	view.RemoveScore("a")
	entries, err = view.GetStandings(context.Background(), 7, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "S2", entries[0].StudentID)

	// Removing an unknown id keeps the view as is.
	before := view.Version()
	view.RemoveScore("missing")
	assert.Equal(t, before, view.Version())
}

func TestStandingsView_SessionsAreIndependent(t *testing.T) {
	view := NewStandingsView()

	view.ApplyScore(sv("a", 7, 1, "S1", "E1", 9))
	view.ApplyScore(sv("b", 8, 1, "S1", "E1", 4))

	seven, err := view.GetStandings(context.Background(), 7, 0)
	require.NoError(t, err)
	eight, err := view.GetStandings(context.Background(), 8, 0)
	require.NoError(t, err)

	require.Len(t, seven, 1)
	require.Len(t, eight, 1)
	assert.InDelta(t, 9.0, seven[0].WeightedTotal, 1e-9)
	assert.InDelta(t, 4.0, eight[0].WeightedTotal, 1e-9)
}

func TestStandingsView_GetByStudent(t *testing.T) {
	view := NewStandingsView()
	view.ApplyScore(sv("a", 7, 1, "S1", "E1", 9))

	entry, err := view.GetByStudent(context.Background(), 7, "S1")
	require.NoError(t, err)
	assert.Equal(t, "S1", entry.StudentID)

	_, err = view.GetByStudent(context.Background(), 7, "S2")
	assert.ErrorIs(t, err, shared.ErrScoreNotFound)
}

func TestStandingsView_ReadsReturnCopies(t *testing.T) {
	view := NewStandingsView()
	view.ApplyScore(sv("a", 7, 1, "S1", "E1", 9))

	entries, err := view.GetStandings(context.Background(), 7, 0)
	require.NoError(t, err)
	entries[0].ByRubric[1] = 0
	entries[0].StudentID = "tampered"

	again, err := view.GetStandings(context.Background(), 7, 0)
	require.NoError(t, err)
	assert.Equal(t, "S1", again[0].StudentID)
	assert.InDelta(t, 9.0, again[0].ByRubric[1], 1e-9)
}

func TestStandingsView_Metadata(t *testing.T) {
	view := NewStandingsView()
	view.ApplyScore(sv("a", 7, 1, "S1", "E1", 9))
	view.ApplyScore(sv("b", 8, 1, "S2", "E1", 7))

	meta := view.Metadata()
	assert.Equal(t, 2, meta.Sessions)
	assert.Equal(t, 2, meta.Students)
	assert.Equal(t, 2, meta.Scores)
	assert.Positive(t, meta.Version)
}
