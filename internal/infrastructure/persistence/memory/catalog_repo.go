package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/defensehub/defensehub/internal/domain/catalog"
	"github.com/defensehub/defensehub/internal/domain/shared"
)

// Catalog repositories share the same lifecycle discipline: default listings
// exclude archived rows, ordering is name ascending with id as tiebreak,
// uniqueness checks span archived rows too (a name stays reserved while its
// entity is archived).

// ─────────────────────────────────────────────────────────────────────────────
// Councils
// ─────────────────────────────────────────────────────────────────────────────

type councilRepo struct{ v view }

func (r *councilRepo) List(_ context.Context, includeDeleted bool) ([]*catalog.Council, error) {
	var out []*catalog.Council
	err := r.v.read(func(st *state) error {
		for _, c := range st.councils {
			if !includeDeleted && !c.IsActive {
				continue
			}
			c := c
			out = append(out, &c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *councilRepo) GetByID(_ context.Context, id int64, includeDeleted bool) (*catalog.Council, error) {
	var out *catalog.Council
	err := r.v.read(func(st *state) error {
		c, ok := st.councils[id]
		if !ok || (!includeDeleted && !c.IsActive) {
			return shared.ErrCouncilNotFound
		}
		out = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *councilRepo) Create(_ context.Context, c *catalog.Council) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		for _, existing := range st.councils {
			if strings.EqualFold(existing.Name, c.Name) {
				return shared.ErrDuplicateName
			}
		}
		if c.ID == 0 {
			c.ID = st.seqs.council.Add(1)
		}
		c.Lifecycle = catalog.NewLifecycle(r.v.now())
		st.councils[c.ID] = *c
		return nil
	})
}

func (r *councilRepo) Update(_ context.Context, id int64, patch catalog.CouncilPatch) error {
	return r.v.write(func(st *state) error {
		c, ok := st.councils[id]
		if !ok {
			return shared.ErrCouncilNotFound
		}
		patch.Apply(&c)
		if err := c.Validate(); err != nil {
			return err
		}
		st.councils[id] = c
		return nil
	})
}

func (r *councilRepo) SoftDelete(_ context.Context, id int64) error {
	return r.v.write(func(st *state) error {
		c, ok := st.councils[id]
		if !ok {
			return shared.ErrCouncilNotFound
		}
		c.Archive(r.v.now())
		st.councils[id] = c
		return nil
	})
}

func (r *councilRepo) Restore(_ context.Context, id int64) error {
	return r.v.write(func(st *state) error {
		c, ok := st.councils[id]
		if !ok {
			return shared.ErrCouncilNotFound
		}
		c.Lifecycle.Restore()
		st.councils[id] = c
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Majors
// ─────────────────────────────────────────────────────────────────────────────

type majorRepo struct{ v view }

func (r *majorRepo) List(_ context.Context, includeDeleted bool) ([]*catalog.Major, error) {
	var out []*catalog.Major
	err := r.v.read(func(st *state) error {
		for _, m := range st.majors {
			if !includeDeleted && !m.IsActive {
				continue
			}
			m := m
			out = append(out, &m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *majorRepo) GetByID(_ context.Context, id int64, includeDeleted bool) (*catalog.Major, error) {
	var out *catalog.Major
	err := r.v.read(func(st *state) error {
		m, ok := st.majors[id]
		if !ok || (!includeDeleted && !m.IsActive) {
			return shared.ErrMajorNotFound
		}
		out = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *majorRepo) Create(_ context.Context, m *catalog.Major) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		for _, existing := range st.majors {
			if strings.EqualFold(existing.Name, m.Name) {
				return shared.ErrDuplicateName
			}
		}
		if m.ID == 0 {
			m.ID = st.seqs.major.Add(1)
		}
		m.Lifecycle = catalog.NewLifecycle(r.v.now())
		st.majors[m.ID] = *m
		return nil
	})
}

func (r *majorRepo) Update(_ context.Context, id int64, patch catalog.MajorPatch) error {
	return r.v.write(func(st *state) error {
		m, ok := st.majors[id]
		if !ok {
			return shared.ErrMajorNotFound
		}
		patch.Apply(&m)
		if err := m.Validate(); err != nil {
			return err
		}
		st.majors[id] = m
		return nil
	})
}

func (r *majorRepo) SoftDelete(_ context.Context, id int64) error {
	return r.v.write(func(st *state) error {
		m, ok := st.majors[id]
		if !ok {
			return shared.ErrMajorNotFound
		}
		// No cascade: the major's rubrics and groups keep their own flags.
		m.Archive(r.v.now())
		st.majors[id] = m
		return nil
	})
}

func (r *majorRepo) Restore(_ context.Context, id int64) error {
	return r.v.write(func(st *state) error {
		m, ok := st.majors[id]
		if !ok {
			return shared.ErrMajorNotFound
		}
		m.Lifecycle.Restore()
		st.majors[id] = m
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Rubrics
// ─────────────────────────────────────────────────────────────────────────────

type rubricRepo struct{ v view }

func (r *rubricRepo) List(_ context.Context, includeDeleted bool) ([]*catalog.Rubric, error) {
	return r.list(includeDeleted, func(catalog.Rubric) bool { return true })
}

func (r *rubricRepo) ListByMajor(_ context.Context, majorID int64, includeDeleted bool) ([]*catalog.Rubric, error) {
	return r.list(includeDeleted, func(rb catalog.Rubric) bool { return rb.MajorID == majorID })
}

func (r *rubricRepo) list(includeDeleted bool, match func(catalog.Rubric) bool) ([]*catalog.Rubric, error) {
	var out []*catalog.Rubric
	err := r.v.read(func(st *state) error {
		for _, rb := range st.rubrics {
			if !match(rb) {
				continue
			}
			if !includeDeleted && !rb.IsActive {
				continue
			}
			rb := rb
			out = append(out, &rb)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *rubricRepo) GetByID(_ context.Context, id int64, includeDeleted bool) (*catalog.Rubric, error) {
	var out *catalog.Rubric
	err := r.v.read(func(st *state) error {
		rb, ok := st.rubrics[id]
		if !ok || (!includeDeleted && !rb.IsActive) {
			return shared.ErrRubricNotFound
		}
		out = &rb
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *rubricRepo) Create(_ context.Context, rb *catalog.Rubric) error {
	if err := rb.Validate(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		for _, existing := range st.rubrics {
			if existing.MajorID == rb.MajorID && strings.EqualFold(existing.Name, rb.Name) {
				return shared.ErrDuplicateName
			}
		}
		if rb.ID == 0 {
			rb.ID = st.seqs.rubric.Add(1)
		}
		rb.Lifecycle = catalog.NewLifecycle(r.v.now())
		st.rubrics[rb.ID] = *rb
		return nil
	})
}

func (r *rubricRepo) Update(_ context.Context, id int64, patch catalog.RubricPatch) error {
	return r.v.write(func(st *state) error {
		rb, ok := st.rubrics[id]
		if !ok {
			return shared.ErrRubricNotFound
		}
		patch.Apply(&rb)
		if err := rb.Validate(); err != nil {
			return err
		}
		st.rubrics[id] = rb
		return nil
	})
}

func (r *rubricRepo) SoftDelete(_ context.Context, id int64) error {
	return r.v.write(func(st *state) error {
		rb, ok := st.rubrics[id]
		if !ok {
			return shared.ErrRubricNotFound
		}
		rb.Archive(r.v.now())
		st.rubrics[id] = rb
		return nil
	})
}

func (r *rubricRepo) Restore(_ context.Context, id int64) error {
	return r.v.write(func(st *state) error {
		rb, ok := st.rubrics[id]
		if !ok {
			return shared.ErrRubricNotFound
		}
		rb.Lifecycle.Restore()
		st.rubrics[id] = rb
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Groups
// ─────────────────────────────────────────────────────────────────────────────

type groupRepo struct{ v view }

func (r *groupRepo) List(_ context.Context, includeDeleted bool) ([]*catalog.Group, error) {
	var out []*catalog.Group
	err := r.v.read(func(st *state) error {
		for _, g := range st.groups {
			if !includeDeleted && !g.IsActive {
				continue
			}
			g := g
			out = append(out, &g)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *groupRepo) GetByID(_ context.Context, id int64, includeDeleted bool) (*catalog.Group, error) {
	var out *catalog.Group
	err := r.v.read(func(st *state) error {
		g, ok := st.groups[id]
		if !ok || (!includeDeleted && !g.IsActive) {
			return shared.ErrGroupNotFound
		}
		out = &g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *groupRepo) Create(_ context.Context, g *catalog.Group) error {
	if err := g.Validate(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		for _, existing := range st.groups {
			if strings.EqualFold(existing.Name, g.Name) {
				return shared.ErrDuplicateName
			}
		}
		if g.ID == 0 {
			g.ID = st.seqs.group.Add(1)
		}
		g.Lifecycle = catalog.NewLifecycle(r.v.now())
		st.groups[g.ID] = *g
		return nil
	})
}

func (r *groupRepo) Update(_ context.Context, id int64, patch catalog.GroupPatch) error {
	return r.v.write(func(st *state) error {
		g, ok := st.groups[id]
		if !ok {
			return shared.ErrGroupNotFound
		}
		patch.Apply(&g)
		if err := g.Validate(); err != nil {
			return err
		}
		st.groups[id] = g
		return nil
	})
}

func (r *groupRepo) SoftDelete(_ context.Context, id int64) error {
	return r.v.write(func(st *state) error {
		g, ok := st.groups[id]
		if !ok {
			return shared.ErrGroupNotFound
		}
		g.Archive(r.v.now())
		st.groups[id] = g
		return nil
	})
}

func (r *groupRepo) Restore(_ context.Context, id int64) error {
	return r.v.write(func(st *state) error {
		g, ok := st.groups[id]
		if !ok {
			return shared.ErrGroupNotFound
		}
		g.Lifecycle.Restore()
		st.groups[id] = g
		return nil
	})
}
