package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defensehub/defensehub/internal/domain/defense"
)

func TestGroup_Descriptor(t *testing.T) {
	assert.Equal(t, "all_scores", AllScores().Descriptor())
	assert.Equal(t, "session_7", SessionGroup(7).Descriptor())
	assert.Equal(t, "student_S1", StudentGroup("S1").Descriptor())
	assert.Equal(t, "evaluator_E1", EvaluatorGroup("E1").Descriptor())
}

func TestParseGroup_RoundTrip(t *testing.T) {
	groups := []Group{
		AllScores(),
		SessionGroup(42),
		StudentGroup("S1"),
		EvaluatorGroup("E1"),
	}

	for _, g := range groups {
		parsed, err := ParseGroup(g.Descriptor())
		require.NoError(t, err, g.Descriptor())
		assert.Equal(t, g, parsed)
	}
}

func TestParseGroup_Malformed(t *testing.T) {
	cases := []string{
		"",
		"all",
		"session_",
		"session_abc",
		"cohort_7",
		"student",
	}

	for _, descriptor := range cases {
		_, err := ParseGroup(descriptor)
		assert.Error(t, err, descriptor)
	}
}

func TestGroupsFor_CoversAllFourGroups(t *testing.T) {
	event := defense.NewScoreEvent(defense.ScoreCreated, &defense.Score{
		ID:          "sc-1",
		SessionID:   7,
		StudentID:   "S1",
		EvaluatorID: "E1",
		Value:       8,
	})

	groups := GroupsFor(event)
	require.Len(t, groups, 4)
	assert.Equal(t, AllScores(), groups[0])
	assert.Equal(t, SessionGroup(7), groups[1])
	assert.Equal(t, StudentGroup("S1"), groups[2])
	assert.Equal(t, EvaluatorGroup("E1"), groups[3])
}
