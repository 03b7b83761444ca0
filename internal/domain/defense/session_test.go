package defense

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from    SessionStatus
		to      SessionStatus
		allowed bool
	}{
		{SessionScheduled, SessionInProgress, true},
		{SessionScheduled, SessionCancelled, true},
		{SessionScheduled, SessionCompleted, false},
		{SessionScheduled, SessionScheduled, false},
		{SessionInProgress, SessionCompleted, true},
		{SessionInProgress, SessionCancelled, true},
		{SessionInProgress, SessionScheduled, false},
		{SessionCompleted, SessionInProgress, false},
		{SessionCompleted, SessionCancelled, false},
		{SessionCancelled, SessionScheduled, false},
		{SessionCancelled, SessionInProgress, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestSessionStatus_IsTerminal(t *testing.T) {
	assert.False(t, SessionScheduled.IsTerminal())
	assert.False(t, SessionInProgress.IsTerminal())
	assert.True(t, SessionCompleted.IsTerminal())
	assert.True(t, SessionCancelled.IsTerminal())
}

func TestDefenseSession_TransitionTo(t *testing.T) {
	s := &DefenseSession{Title: "Defense", CouncilID: 1, Status: SessionScheduled}

	assert.NoError(t, s.TransitionTo(SessionInProgress))
	assert.Equal(t, SessionInProgress, s.Status)

	assert.NoError(t, s.TransitionTo(SessionCompleted))
	assert.Equal(t, SessionCompleted, s.Status)

	// Terminal states never leave.
	err := s.TransitionTo(SessionInProgress)
	assert.Error(t, err)
	assert.Equal(t, SessionCompleted, s.Status)
}

func TestDefenseSession_TransitionTo_UnknownStatus(t *testing.T) {
	s := &DefenseSession{Title: "Defense", CouncilID: 1, Status: SessionScheduled}

	err := s.TransitionTo(SessionStatus("paused"))
	assert.Error(t, err)
	assert.Equal(t, SessionScheduled, s.Status)
}

func TestDefenseSession_Validate(t *testing.T) {
	valid := &DefenseSession{Title: "Spring defenses", CouncilID: 3, Status: SessionScheduled}
	assert.NoError(t, valid.Validate())

	noTitle := &DefenseSession{Title: "   ", CouncilID: 3, Status: SessionScheduled}
	assert.Error(t, noTitle.Validate())

	noCouncil := &DefenseSession{Title: "Spring defenses", Status: SessionScheduled}
	assert.Error(t, noCouncil.Validate())

	badStatus := &DefenseSession{Title: "Spring defenses", CouncilID: 3, Status: "draft"}
	assert.Error(t, badStatus.Validate())
}

func TestSessionPatch_Apply(t *testing.T) {
	startsAt := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s := &DefenseSession{Title: "Old", Location: "Room 101", StartsAt: startsAt}

	title := "New"
	SessionPatch{Title: &title}.Apply(s)

	assert.Equal(t, "New", s.Title)
	assert.Equal(t, "Room 101", s.Location)
	assert.True(t, s.StartsAt.Equal(startsAt))
}
