// Package defense contains the defense-session aggregate: sessions, scores
// and transcripts. Scores are the only entities whose mutations produce
// real-time events.
package defense

import (
	"errors"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION STATUS
// ══════════════════════════════════════════════════════════════════════════════

// SessionStatus is the lifecycle state of a defense session.
type SessionStatus string

const (
	// SessionScheduled - the session is planned but has not started.
	SessionScheduled SessionStatus = "scheduled"
	// SessionInProgress - the defense is currently running.
	SessionInProgress SessionStatus = "in_progress"
	// SessionCompleted - the defense finished normally.
	SessionCompleted SessionStatus = "completed"
	// SessionCancelled - the defense was called off.
	SessionCancelled SessionStatus = "cancelled"
)

// IsValid reports whether the status is a known value.
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionScheduled, SessionInProgress, SessionCompleted, SessionCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status permits no further transitions.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// CanTransitionTo reports whether the transition is allowed.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionScheduled:
		return next == SessionInProgress || next == SessionCancelled
	case SessionInProgress:
		return next == SessionCompleted || next == SessionCancelled
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFENSE SESSION
// ══════════════════════════════════════════════════════════════════════════════

// DefenseSession is one thesis-defense sitting: a council evaluating the
// students of a group on a given date.
type DefenseSession struct {
	ID        int64
	CouncilID int64
	GroupID   int64
	Title     string
	Location  string
	Status    SessionStatus
	StartsAt  time.Time

	// IsActive is false when the session is soft-deleted.
	IsActive  bool
	CreatedAt time.Time
}

// Validate checks session invariants.
func (s *DefenseSession) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return errors.New("session: title is required")
	}
	if s.CouncilID == 0 {
		return errors.New("session: council is required")
	}
	if !s.Status.IsValid() {
		return errors.New("session: unknown status")
	}
	return nil
}

// TransitionTo moves the session to the next status, enforcing the
// scheduled -> in_progress -> completed|cancelled machine.
func (s *DefenseSession) TransitionTo(next SessionStatus) error {
	if !next.IsValid() {
		return errors.New("session: unknown status")
	}
	if !s.Status.CanTransitionTo(next) {
		return errors.New("session: transition " + string(s.Status) + " -> " + string(next) + " not allowed")
	}
	s.Status = next
	return nil
}

// SessionPatch is a partial update for a session. Status changes go through
// TransitionTo, not through patches.
type SessionPatch struct {
	Title    *string
	Location *string
	StartsAt *time.Time
}

// Apply copies the set fields onto the session.
func (p SessionPatch) Apply(s *DefenseSession) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Location != nil {
		s.Location = *p.Location
	}
	if p.StartsAt != nil {
		s.StartsAt = *p.StartsAt
	}
}
