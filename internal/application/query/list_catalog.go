// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
package query

import (
	"context"

	"github.com/defensehub/defensehub/internal/domain/catalog"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG QUERIES
// Listings are deterministic: name ascending, id as tiebreak. The default
// view excludes archived rows; includeDeleted widens it to a superset.
// ══════════════════════════════════════════════════════════════════════════════

// CatalogQueries reads catalog entities.
type CatalogQueries struct {
	councils catalog.CouncilRepository
	majors   catalog.MajorRepository
	rubrics  catalog.RubricRepository
	groups   catalog.GroupRepository
}

// NewCatalogQueries creates a new CatalogQueries.
func NewCatalogQueries(
	councils catalog.CouncilRepository,
	majors catalog.MajorRepository,
	rubrics catalog.RubricRepository,
	groups catalog.GroupRepository,
) *CatalogQueries {
	return &CatalogQueries{
		councils: councils,
		majors:   majors,
		rubrics:  rubrics,
		groups:   groups,
	}
}

// ListCouncils returns councils, optionally including archived ones.
func (q *CatalogQueries) ListCouncils(ctx context.Context, includeDeleted bool) ([]*catalog.Council, error) {
	return q.councils.List(ctx, includeDeleted)
}

// GetCouncil returns one council.
func (q *CatalogQueries) GetCouncil(ctx context.Context, id int64, includeDeleted bool) (*catalog.Council, error) {
	return q.councils.GetByID(ctx, id, includeDeleted)
}

// ListMajors returns majors, optionally including archived ones.
func (q *CatalogQueries) ListMajors(ctx context.Context, includeDeleted bool) ([]*catalog.Major, error) {
	return q.majors.List(ctx, includeDeleted)
}

// GetMajor returns one major.
func (q *CatalogQueries) GetMajor(ctx context.Context, id int64, includeDeleted bool) (*catalog.Major, error) {
	return q.majors.GetByID(ctx, id, includeDeleted)
}

// ListRubrics returns all rubrics, optionally including archived ones.
func (q *CatalogQueries) ListRubrics(ctx context.Context, includeDeleted bool) ([]*catalog.Rubric, error) {
	return q.rubrics.List(ctx, includeDeleted)
}

// ListRubricsByMajor returns a major's rubrics. An archived major still
// lists its live rubrics; each rubric is filtered by its own flag.
func (q *CatalogQueries) ListRubricsByMajor(ctx context.Context, majorID int64, includeDeleted bool) ([]*catalog.Rubric, error) {
	return q.rubrics.ListByMajor(ctx, majorID, includeDeleted)
}

// GetRubric returns one rubric.
func (q *CatalogQueries) GetRubric(ctx context.Context, id int64, includeDeleted bool) (*catalog.Rubric, error) {
	return q.rubrics.GetByID(ctx, id, includeDeleted)
}

// ListGroups returns groups, optionally including archived ones.
func (q *CatalogQueries) ListGroups(ctx context.Context, includeDeleted bool) ([]*catalog.Group, error) {
	return q.groups.List(ctx, includeDeleted)
}

// GetGroup returns one group.
func (q *CatalogQueries) GetGroup(ctx context.Context, id int64, includeDeleted bool) (*catalog.Group, error) {
	return q.groups.GetByID(ctx, id, includeDeleted)
}
