package catalog

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// These interfaces define the entity lifecycle store contract. Implementations
// live in infrastructure/persistence. Default listings exclude soft-deleted
// rows; List(ctx, true) is always a superset of List(ctx, false), with a
// deterministic name-ascending order.
// ══════════════════════════════════════════════════════════════════════════════

// CouncilRepository stores councils.
type CouncilRepository interface {
	// List returns councils ordered by name ascending.
	List(ctx context.Context, includeDeleted bool) ([]*Council, error)

	// GetByID returns a council. Returns shared.ErrCouncilNotFound when the
	// id is unknown, or when the council is archived and includeDeleted is
	// false. With includeDeleted=true the council is retrievable regardless
	// of its flag.
	GetByID(ctx context.Context, id int64, includeDeleted bool) (*Council, error)

	// Create persists a new council and assigns its ID.
	// Returns shared.ErrDuplicateName when the name is taken.
	Create(ctx context.Context, c *Council) error

	// Update applies a field patch. It does not resurrect an archived row.
	Update(ctx context.Context, id int64, patch CouncilPatch) error

	// SoftDelete marks the council inactive. Dependents are not touched.
	SoftDelete(ctx context.Context, id int64) error

	// Restore clears the soft-delete flag.
	Restore(ctx context.Context, id int64) error
}

// MajorRepository stores majors.
type MajorRepository interface {
	List(ctx context.Context, includeDeleted bool) ([]*Major, error)
	GetByID(ctx context.Context, id int64, includeDeleted bool) (*Major, error)
	Create(ctx context.Context, m *Major) error
	Update(ctx context.Context, id int64, patch MajorPatch) error
	SoftDelete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
}

// RubricRepository stores rubrics.
type RubricRepository interface {
	List(ctx context.Context, includeDeleted bool) ([]*Rubric, error)

	// ListByMajor returns rubrics of one major. Archiving the major does not
	// filter its rubrics; each rubric is filtered by its own flag only.
	ListByMajor(ctx context.Context, majorID int64, includeDeleted bool) ([]*Rubric, error)

	GetByID(ctx context.Context, id int64, includeDeleted bool) (*Rubric, error)
	Create(ctx context.Context, r *Rubric) error
	Update(ctx context.Context, id int64, patch RubricPatch) error
	SoftDelete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
}

// GroupRepository stores student groups.
type GroupRepository interface {
	List(ctx context.Context, includeDeleted bool) ([]*Group, error)
	GetByID(ctx context.Context, id int64, includeDeleted bool) (*Group, error)
	Create(ctx context.Context, g *Group) error
	Update(ctx context.Context, id int64, patch GroupPatch) error
	SoftDelete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
}
