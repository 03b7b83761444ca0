package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/defensehub/defensehub/internal/domain/catalog"
	"github.com/defensehub/defensehub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// Catalog repositories are written against Querier, so the same code serves
// direct pool access and tx-scoped access inside a unit of work. Default
// listings exclude archived rows; uniqueness spans archived rows too (a name
// stays reserved while its entity is archived).

// ══════════════════════════════════════════════════════════════════════════════
// COUNCIL REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CouncilRepository implements catalog.CouncilRepository for PostgreSQL.
type CouncilRepository struct {
	q Querier
}

// NewCouncilRepository creates a new CouncilRepository.
func NewCouncilRepository(q Querier) *CouncilRepository {
	return &CouncilRepository{q: q}
}

// List returns councils ordered by name ascending.
func (r *CouncilRepository) List(ctx context.Context, includeDeleted bool) ([]*catalog.Council, error) {
	query := `
		SELECT id, name, description, is_active, created_at, deleted_at
		FROM councils
	`
	if !includeDeleted {
		query += " WHERE is_active"
	}
	query += " ORDER BY name ASC, id ASC"

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list councils: %w", err)
	}
	defer rows.Close()

	var councils []*catalog.Council
	for rows.Next() {
		c, err := scanCouncil(rows)
		if err != nil {
			return nil, err
		}
		councils = append(councils, c)
	}

	return councils, rows.Err()
}

// GetByID returns a council by ID.
func (r *CouncilRepository) GetByID(ctx context.Context, id int64, includeDeleted bool) (*catalog.Council, error) {
	query := `
		SELECT id, name, description, is_active, created_at, deleted_at
		FROM councils
		WHERE id = $1
	`
	if !includeDeleted {
		query += " AND is_active"
	}

	c, err := scanCouncil(r.q.QueryRow(ctx, query, id))
	if IsNoRows(err) {
		return nil, shared.ErrCouncilNotFound
	}
	return c, err
}

// Create persists a new council and assigns its ID.
func (r *CouncilRepository) Create(ctx context.Context, c *catalog.Council) error {
	if err := c.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO councils (name, description, is_active, created_at)
		VALUES ($1, $2, TRUE, NOW())
		RETURNING id, is_active, created_at
	`

	err := r.q.QueryRow(ctx, query, c.Name, c.Description).
		Scan(&c.ID, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateName
		}
		return fmt.Errorf("failed to create council: %w", err)
	}

	return nil
}

// Update applies a field patch. The lifecycle flag is left untouched.
func (r *CouncilRepository) Update(ctx context.Context, id int64, patch catalog.CouncilPatch) error {
	c, err := r.GetByID(ctx, id, true)
	if err != nil {
		return err
	}

	patch.Apply(c)
	if err := c.Validate(); err != nil {
		return err
	}

	query := `UPDATE councils SET name = $1, description = $2 WHERE id = $3`
	result, err := r.q.Exec(ctx, query, c.Name, c.Description, id)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateName
		}
		return fmt.Errorf("failed to update council: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrCouncilNotFound
	}

	return nil
}

// SoftDelete marks the council inactive. Dependents are not touched.
func (r *CouncilRepository) SoftDelete(ctx context.Context, id int64) error {
	result, err := r.q.Exec(ctx,
		"UPDATE councils SET is_active = FALSE, deleted_at = NOW() WHERE id = $1 AND is_active",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to archive council: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Archiving an already archived row is a no-op, not an error.
		var exists bool
		if err := r.q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM councils WHERE id = $1)", id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check council existence: %w", err)
		}
		if !exists {
			return shared.ErrCouncilNotFound
		}
	}

	return nil
}

// Restore clears the soft-delete flag.
func (r *CouncilRepository) Restore(ctx context.Context, id int64) error {
	result, err := r.q.Exec(ctx,
		"UPDATE councils SET is_active = TRUE, deleted_at = NULL WHERE id = $1",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to restore council: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrCouncilNotFound
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MAJOR REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// MajorRepository implements catalog.MajorRepository for PostgreSQL.
type MajorRepository struct {
	q Querier
}

// NewMajorRepository creates a new MajorRepository.
func NewMajorRepository(q Querier) *MajorRepository {
	return &MajorRepository{q: q}
}

// List returns majors ordered by name ascending.
func (r *MajorRepository) List(ctx context.Context, includeDeleted bool) ([]*catalog.Major, error) {
	query := `
		SELECT id, name, code, is_active, created_at, deleted_at
		FROM majors
	`
	if !includeDeleted {
		query += " WHERE is_active"
	}
	query += " ORDER BY name ASC, id ASC"

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list majors: %w", err)
	}
	defer rows.Close()

	var majors []*catalog.Major
	for rows.Next() {
		m, err := scanMajor(rows)
		if err != nil {
			return nil, err
		}
		majors = append(majors, m)
	}

	return majors, rows.Err()
}

// GetByID returns a major by ID.
func (r *MajorRepository) GetByID(ctx context.Context, id int64, includeDeleted bool) (*catalog.Major, error) {
	query := `
		SELECT id, name, code, is_active, created_at, deleted_at
		FROM majors
		WHERE id = $1
	`
	if !includeDeleted {
		query += " AND is_active"
	}

	m, err := scanMajor(r.q.QueryRow(ctx, query, id))
	if IsNoRows(err) {
		return nil, shared.ErrMajorNotFound
	}
	return m, err
}

// Create persists a new major and assigns its ID.
func (r *MajorRepository) Create(ctx context.Context, m *catalog.Major) error {
	if err := m.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO majors (name, code, is_active, created_at)
		VALUES ($1, $2, TRUE, NOW())
		RETURNING id, is_active, created_at
	`

	err := r.q.QueryRow(ctx, query, m.Name, m.Code).
		Scan(&m.ID, &m.IsActive, &m.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateName
		}
		return fmt.Errorf("failed to create major: %w", err)
	}

	return nil
}

// Update applies a field patch.
func (r *MajorRepository) Update(ctx context.Context, id int64, patch catalog.MajorPatch) error {
	m, err := r.GetByID(ctx, id, true)
	if err != nil {
		return err
	}

	patch.Apply(m)
	if err := m.Validate(); err != nil {
		return err
	}

	query := `UPDATE majors SET name = $1, code = $2 WHERE id = $3`
	result, err := r.q.Exec(ctx, query, m.Name, m.Code, id)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateName
		}
		return fmt.Errorf("failed to update major: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrMajorNotFound
	}

	return nil
}

// SoftDelete marks the major inactive. Its rubrics and groups are not touched.
func (r *MajorRepository) SoftDelete(ctx context.Context, id int64) error {
	result, err := r.q.Exec(ctx,
		"UPDATE majors SET is_active = FALSE, deleted_at = NOW() WHERE id = $1 AND is_active",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to archive major: %w", err)
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM majors WHERE id = $1)", id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check major existence: %w", err)
		}
		if !exists {
			return shared.ErrMajorNotFound
		}
	}

	return nil
}

// Restore clears the soft-delete flag.
func (r *MajorRepository) Restore(ctx context.Context, id int64) error {
	result, err := r.q.Exec(ctx,
		"UPDATE majors SET is_active = TRUE, deleted_at = NULL WHERE id = $1",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to restore major: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrMajorNotFound
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RUBRIC REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// RubricRepository implements catalog.RubricRepository for PostgreSQL.
type RubricRepository struct {
	q Querier
}

// NewRubricRepository creates a new RubricRepository.
func NewRubricRepository(q Querier) *RubricRepository {
	return &RubricRepository{q: q}
}

// List returns rubrics ordered by name ascending.
func (r *RubricRepository) List(ctx context.Context, includeDeleted bool) ([]*catalog.Rubric, error) {
	query := `
		SELECT id, major_id, name, max_score, weight, is_active, created_at, deleted_at
		FROM rubrics
	`
	if !includeDeleted {
		query += " WHERE is_active"
	}
	query += " ORDER BY name ASC, id ASC"

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rubrics: %w", err)
	}
	defer rows.Close()

	return scanRubrics(rows)
}

// ListByMajor returns rubrics of one major. Each rubric is filtered by its
// own flag only; the major's flag is not consulted.
func (r *RubricRepository) ListByMajor(ctx context.Context, majorID int64, includeDeleted bool) ([]*catalog.Rubric, error) {
	query := `
		SELECT id, major_id, name, max_score, weight, is_active, created_at, deleted_at
		FROM rubrics
		WHERE major_id = $1
	`
	if !includeDeleted {
		query += " AND is_active"
	}
	query += " ORDER BY name ASC, id ASC"

	rows, err := r.q.Query(ctx, query, majorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rubrics by major: %w", err)
	}
	defer rows.Close()

	return scanRubrics(rows)
}

// GetByID returns a rubric by ID.
func (r *RubricRepository) GetByID(ctx context.Context, id int64, includeDeleted bool) (*catalog.Rubric, error) {
	query := `
		SELECT id, major_id, name, max_score, weight, is_active, created_at, deleted_at
		FROM rubrics
		WHERE id = $1
	`
	if !includeDeleted {
		query += " AND is_active"
	}

	rb, err := scanRubric(r.q.QueryRow(ctx, query, id))
	if IsNoRows(err) {
		return nil, shared.ErrRubricNotFound
	}
	return rb, err
}

// Create persists a new rubric and assigns its ID. Names are unique per major.
func (r *RubricRepository) Create(ctx context.Context, rb *catalog.Rubric) error {
	if err := rb.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO rubrics (major_id, name, max_score, weight, is_active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())
		RETURNING id, is_active, created_at
	`

	err := r.q.QueryRow(ctx, query, rb.MajorID, rb.Name, rb.MaxScore, rb.Weight).
		Scan(&rb.ID, &rb.IsActive, &rb.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateName
		}
		if IsForeignKeyViolation(err) {
			return shared.ErrMajorNotFound
		}
		return fmt.Errorf("failed to create rubric: %w", err)
	}

	return nil
}

// Update applies a field patch.
func (r *RubricRepository) Update(ctx context.Context, id int64, patch catalog.RubricPatch) error {
	rb, err := r.GetByID(ctx, id, true)
	if err != nil {
		return err
	}

	patch.Apply(rb)
	if err := rb.Validate(); err != nil {
		return err
	}

	query := `UPDATE rubrics SET name = $1, max_score = $2, weight = $3 WHERE id = $4`
	result, err := r.q.Exec(ctx, query, rb.Name, rb.MaxScore, rb.Weight, id)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateName
		}
		return fmt.Errorf("failed to update rubric: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrRubricNotFound
	}

	return nil
}

// SoftDelete marks the rubric inactive.
func (r *RubricRepository) SoftDelete(ctx context.Context, id int64) error {
	result, err := r.q.Exec(ctx,
		"UPDATE rubrics SET is_active = FALSE, deleted_at = NOW() WHERE id = $1 AND is_active",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to archive rubric: %w", err)
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM rubrics WHERE id = $1)", id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check rubric existence: %w", err)
		}
		if !exists {
			return shared.ErrRubricNotFound
		}
	}

	return nil
}

// Restore clears the soft-delete flag.
func (r *RubricRepository) Restore(ctx context.Context, id int64) error {
	result, err := r.q.Exec(ctx,
		"UPDATE rubrics SET is_active = TRUE, deleted_at = NULL WHERE id = $1",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to restore rubric: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrRubricNotFound
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GROUP REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// GroupRepository implements catalog.GroupRepository for PostgreSQL.
type GroupRepository struct {
	q Querier
}

// NewGroupRepository creates a new GroupRepository.
func NewGroupRepository(q Querier) *GroupRepository {
	return &GroupRepository{q: q}
}

// List returns groups ordered by name ascending.
func (r *GroupRepository) List(ctx context.Context, includeDeleted bool) ([]*catalog.Group, error) {
	query := `
		SELECT id, major_id, name, is_active, created_at, deleted_at
		FROM groups
	`
	if !includeDeleted {
		query += " WHERE is_active"
	}
	query += " ORDER BY name ASC, id ASC"

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*catalog.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

// GetByID returns a group by ID.
func (r *GroupRepository) GetByID(ctx context.Context, id int64, includeDeleted bool) (*catalog.Group, error) {
	query := `
		SELECT id, major_id, name, is_active, created_at, deleted_at
		FROM groups
		WHERE id = $1
	`
	if !includeDeleted {
		query += " AND is_active"
	}

	g, err := scanGroup(r.q.QueryRow(ctx, query, id))
	if IsNoRows(err) {
		return nil, shared.ErrGroupNotFound
	}
	return g, err
}

// Create persists a new group and assigns its ID.
func (r *GroupRepository) Create(ctx context.Context, g *catalog.Group) error {
	if err := g.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO groups (major_id, name, is_active, created_at)
		VALUES ($1, $2, TRUE, NOW())
		RETURNING id, is_active, created_at
	`

	err := r.q.QueryRow(ctx, query, g.MajorID, g.Name).
		Scan(&g.ID, &g.IsActive, &g.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateName
		}
		if IsForeignKeyViolation(err) {
			return shared.ErrMajorNotFound
		}
		return fmt.Errorf("failed to create group: %w", err)
	}

	return nil
}

// Update applies a field patch.
func (r *GroupRepository) Update(ctx context.Context, id int64, patch catalog.GroupPatch) error {
	g, err := r.GetByID(ctx, id, true)
	if err != nil {
		return err
	}

	patch.Apply(g)
	if err := g.Validate(); err != nil {
		return err
	}

	query := `UPDATE groups SET name = $1, major_id = $2 WHERE id = $3`
	result, err := r.q.Exec(ctx, query, g.Name, g.MajorID, id)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateName
		}
		if IsForeignKeyViolation(err) {
			return shared.ErrMajorNotFound
		}
		return fmt.Errorf("failed to update group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrGroupNotFound
	}

	return nil
}

// SoftDelete marks the group inactive. Its sessions are not touched.
func (r *GroupRepository) SoftDelete(ctx context.Context, id int64) error {
	result, err := r.q.Exec(ctx,
		"UPDATE groups SET is_active = FALSE, deleted_at = NOW() WHERE id = $1 AND is_active",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to archive group: %w", err)
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM groups WHERE id = $1)", id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check group existence: %w", err)
		}
		if !exists {
			return shared.ErrGroupNotFound
		}
	}

	return nil
}

// Restore clears the soft-delete flag.
func (r *GroupRepository) Restore(ctx context.Context, id int64) error {
	result, err := r.q.Exec(ctx,
		"UPDATE groups SET is_active = TRUE, deleted_at = NULL WHERE id = $1",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to restore group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrGroupNotFound
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCAN HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func scanCouncil(row pgx.Row) (*catalog.Council, error) {
	var c catalog.Council
	var deletedAt *time.Time

	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.IsActive, &c.CreatedAt, &deletedAt)
	if IsNoRows(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan council: %w", err)
	}

	if deletedAt != nil {
		c.DeletedAt = *deletedAt
	}

	return &c, nil
}

func scanMajor(row pgx.Row) (*catalog.Major, error) {
	var m catalog.Major
	var deletedAt *time.Time

	err := row.Scan(&m.ID, &m.Name, &m.Code, &m.IsActive, &m.CreatedAt, &deletedAt)
	if IsNoRows(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan major: %w", err)
	}

	if deletedAt != nil {
		m.DeletedAt = *deletedAt
	}

	return &m, nil
}

func scanRubric(row pgx.Row) (*catalog.Rubric, error) {
	var rb catalog.Rubric
	var deletedAt *time.Time

	err := row.Scan(&rb.ID, &rb.MajorID, &rb.Name, &rb.MaxScore, &rb.Weight, &rb.IsActive, &rb.CreatedAt, &deletedAt)
	if IsNoRows(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rubric: %w", err)
	}

	if deletedAt != nil {
		rb.DeletedAt = *deletedAt
	}

	return &rb, nil
}

func scanRubrics(rows pgx.Rows) ([]*catalog.Rubric, error) {
	var rubrics []*catalog.Rubric
	for rows.Next() {
		rb, err := scanRubric(rows)
		if err != nil {
			return nil, err
		}
		rubrics = append(rubrics, rb)
	}
	return rubrics, rows.Err()
}

func scanGroup(row pgx.Row) (*catalog.Group, error) {
	var g catalog.Group
	var deletedAt *time.Time

	err := row.Scan(&g.ID, &g.MajorID, &g.Name, &g.IsActive, &g.CreatedAt, &deletedAt)
	if IsNoRows(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan group: %w", err)
	}

	if deletedAt != nil {
		g.DeletedAt = *deletedAt
	}

	return &g, nil
}
