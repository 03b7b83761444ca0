// Package realtime implements the score-event fan-out layer: the
// subscription registry tracking which connections belong to which broadcast
// groups, bounded per-connection send queues, and the broadcaster that
// resolves a committed score event to its recipient groups.
package realtime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/defensehub/defensehub/internal/domain/defense"
)

// GroupKind identifies the category of a subscription group.
type GroupKind string

const (
	// GroupAll receives every score event.
	GroupAll GroupKind = "all"
	// GroupSession receives events of one defense session.
	GroupSession GroupKind = "session"
	// GroupStudent receives events about one student.
	GroupStudent GroupKind = "student"
	// GroupEvaluator receives events recorded by one evaluator.
	GroupEvaluator GroupKind = "evaluator"
)

// Group is one subscription group. A connection may belong to any number of
// groups at once; membership lives only for the lifetime of the process.
type Group struct {
	Kind GroupKind
	ID   string
}

// AllScores returns the global group.
func AllScores() Group {
	return Group{Kind: GroupAll}
}

// SessionGroup returns the group for one defense session.
func SessionGroup(id int64) Group {
	return Group{Kind: GroupSession, ID: strconv.FormatInt(id, 10)}
}

// StudentGroup returns the group for one student.
func StudentGroup(id string) Group {
	return Group{Kind: GroupStudent, ID: id}
}

// EvaluatorGroup returns the group for one evaluator.
func EvaluatorGroup(id string) Group {
	return Group{Kind: GroupEvaluator, ID: id}
}

// Descriptor returns the wire name of the group, kept stable for existing
// clients: all_scores, session_{id}, student_{id}, evaluator_{id}.
func (g Group) Descriptor() string {
	if g.Kind == GroupAll {
		return "all_scores"
	}
	return string(g.Kind) + "_" + g.ID
}

// String implements fmt.Stringer.
func (g Group) String() string {
	return g.Descriptor()
}

// ParseGroup parses a client-supplied group descriptor.
func ParseGroup(descriptor string) (Group, error) {
	if descriptor == "all_scores" {
		return AllScores(), nil
	}

	kind, id, ok := strings.Cut(descriptor, "_")
	if !ok || id == "" {
		return Group{}, fmt.Errorf("realtime: malformed group descriptor %q", descriptor)
	}

	switch GroupKind(kind) {
	case GroupSession:
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			return Group{}, fmt.Errorf("realtime: session descriptor %q: %w", descriptor, err)
		}
		return Group{Kind: GroupSession, ID: id}, nil
	case GroupStudent:
		return Group{Kind: GroupStudent, ID: id}, nil
	case GroupEvaluator:
		return Group{Kind: GroupEvaluator, ID: id}, nil
	default:
		return Group{}, fmt.Errorf("realtime: unknown group kind %q", kind)
	}
}

// GroupsFor resolves the recipient groups of a committed score event, in a
// deterministic order. Fan-out is per-group: a connection subscribed to more
// than one matching group receives one delivery per membership.
func GroupsFor(event defense.ScoreEvent) []Group {
	return []Group{
		AllScores(),
		SessionGroup(event.SessionID),
		StudentGroup(event.StudentID),
		EvaluatorGroup(event.EvaluatorID),
	}
}
