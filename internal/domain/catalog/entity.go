// Package catalog contains the reference entities of the defense hub:
// councils, majors, rubrics and student groups. These entities share a
// uniform soft-delete lifecycle: archiving hides an entity from default
// listings without removing it, restoring brings it back unchanged, and
// neither operation cascades to dependents.
package catalog

import (
	"errors"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Lifecycle carries the soft-delete state shared by all catalog entities.
type Lifecycle struct {
	// IsActive is false when the entity is soft-deleted.
	IsActive bool

	// CreatedAt is when the entity was first persisted.
	CreatedAt time.Time

	// DeletedAt is when the entity was last soft-deleted (zero if never).
	DeletedAt time.Time
}

// NewLifecycle returns the lifecycle state of a freshly created entity.
func NewLifecycle(now time.Time) Lifecycle {
	return Lifecycle{IsActive: true, CreatedAt: now}
}

// Archive marks the entity as soft-deleted. Archiving an already archived
// entity is a no-op.
func (l *Lifecycle) Archive(now time.Time) {
	if !l.IsActive {
		return
	}
	l.IsActive = false
	l.DeletedAt = now
}

// Restore clears the soft-delete flag. Dependents archived independently
// stay archived.
func (l *Lifecycle) Restore() {
	l.IsActive = true
	l.DeletedAt = time.Time{}
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Council is a thesis-defense council.
type Council struct {
	ID          int64
	Name        string
	Description string
	Lifecycle
}

// Validate checks council invariants.
func (c *Council) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("council: name is required")
	}
	return nil
}

// Major is an academic major that defense sessions belong to.
type Major struct {
	ID   int64
	Name string
	Code string
	Lifecycle
}

// Validate checks major invariants.
func (m *Major) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("major: name is required")
	}
	return nil
}

// Rubric is a grading criterion. A rubric belongs to a major but its
// lifecycle is independent: archiving the major does not archive its rubrics.
type Rubric struct {
	ID       int64
	MajorID  int64
	Name     string
	MaxScore float64
	Weight   float64
	Lifecycle
}

// Validate checks rubric invariants.
func (r *Rubric) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("rubric: name is required")
	}
	if r.MaxScore <= 0 {
		return errors.New("rubric: max score must be positive")
	}
	if r.Weight < 0 || r.Weight > 1 {
		return errors.New("rubric: weight must be within [0, 1]")
	}
	return nil
}

// Group is a student group within a major.
type Group struct {
	ID      int64
	MajorID int64
	Name    string
	Lifecycle
}

// Validate checks group invariants.
func (g *Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return errors.New("group: name is required")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PATCHES
// ══════════════════════════════════════════════════════════════════════════════
// Updates are field-level patches: nil fields are left untouched. A patch
// never resurrects a soft-deleted entity; only Restore does that.

// CouncilPatch is a partial update for a council.
type CouncilPatch struct {
	Name        *string
	Description *string
}

// Apply copies the set fields onto the council.
func (p CouncilPatch) Apply(c *Council) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
}

// MajorPatch is a partial update for a major.
type MajorPatch struct {
	Name *string
	Code *string
}

// Apply copies the set fields onto the major.
func (p MajorPatch) Apply(m *Major) {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Code != nil {
		m.Code = *p.Code
	}
}

// RubricPatch is a partial update for a rubric.
type RubricPatch struct {
	Name     *string
	MaxScore *float64
	Weight   *float64
}

// Apply copies the set fields onto the rubric.
func (p RubricPatch) Apply(r *Rubric) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.MaxScore != nil {
		r.MaxScore = *p.MaxScore
	}
	if p.Weight != nil {
		r.Weight = *p.Weight
	}
}

// GroupPatch is a partial update for a group.
type GroupPatch struct {
	Name    *string
	MajorID *int64
}

// Apply copies the set fields onto the group.
func (p GroupPatch) Apply(g *Group) {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.MajorID != nil {
		g.MajorID = *p.MajorID
	}
}
