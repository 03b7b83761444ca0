package command

import (
	"context"
	"errors"
	"log/slog"

	"github.com/defensehub/defensehub/internal/application/ports"
	"github.com/defensehub/defensehub/internal/domain/catalog"
	"github.com/defensehub/defensehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG ADMINISTRATION
// Create and update for councils, majors, rubrics and groups. Each mutation
// runs in its own unit of work. Catalog mutations emit no real-time events;
// only score mutations fan out.
// ══════════════════════════════════════════════════════════════════════════════

// CatalogHandler handles catalog write operations.
type CatalogHandler struct {
	coordinator ports.Coordinator
	logger      *slog.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(coordinator ports.Coordinator, logger *slog.Logger) *CatalogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogHandler{coordinator: coordinator, logger: logger}
}

// ─────────────────────────────────────────────────────────────────────────────
// Councils
// ─────────────────────────────────────────────────────────────────────────────

// CreateCouncilCommand contains the data to create a council.
type CreateCouncilCommand struct {
	Name        string
	Description string
}

// Validate validates the command.
func (c CreateCouncilCommand) Validate() error {
	if c.Name == "" {
		return errors.New("create_council: name is required")
	}
	return nil
}

// CreateCouncil creates a council and returns it with its assigned ID.
func (h *CatalogHandler) CreateCouncil(ctx context.Context, cmd CreateCouncilCommand) (*catalog.Council, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("catalog", "CreateCouncil", shared.ErrValidation, "invalid council", err)
	}

	council := &catalog.Council{Name: cmd.Name, Description: cmd.Description}
	err := h.coordinator.Within(ctx, func(unit ports.UnitOfWork) error {
		return unit.Councils().Create(ctx, council)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("council created", "council_id", council.ID, "name", council.Name)
	return council, nil
}

// UpdateCouncil applies a field patch to a council.
func (h *CatalogHandler) UpdateCouncil(ctx context.Context, id int64, patch catalog.CouncilPatch) error {
	return h.coordinator.Within(ctx, func(unit ports.UnitOfWork) error {
		return unit.Councils().Update(ctx, id, patch)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Majors
// ─────────────────────────────────────────────────────────────────────────────

// CreateMajorCommand contains the data to create a major.
type CreateMajorCommand struct {
	Name string
	Code string
}

// Validate validates the command.
func (c CreateMajorCommand) Validate() error {
	if c.Name == "" {
		return errors.New("create_major: name is required")
	}
	return nil
}

// CreateMajor creates a major and returns it with its assigned ID.
func (h *CatalogHandler) CreateMajor(ctx context.Context, cmd CreateMajorCommand) (*catalog.Major, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("catalog", "CreateMajor", shared.ErrValidation, "invalid major", err)
	}

	major := &catalog.Major{Name: cmd.Name, Code: cmd.Code}
	err := h.coordinator.Within(ctx, func(unit ports.UnitOfWork) error {
		return unit.Majors().Create(ctx, major)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("major created", "major_id", major.ID, "name", major.Name)
	return major, nil
}

// UpdateMajor applies a field patch to a major.
func (h *CatalogHandler) UpdateMajor(ctx context.Context, id int64, patch catalog.MajorPatch) error {
	return h.coordinator.Within(ctx, func(unit ports.UnitOfWork) error {
		return unit.Majors().Update(ctx, id, patch)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Rubrics
// ─────────────────────────────────────────────────────────────────────────────

// CreateRubricCommand contains the data to create a rubric.
type CreateRubricCommand struct {
	MajorID  int64
	Name     string
	MaxScore float64
	Weight   float64
}

// Validate validates the command.
func (c CreateRubricCommand) Validate() error {
	if c.MajorID == 0 {
		return errors.New("create_rubric: major_id is required")
	}
	if c.Name == "" {
		return errors.New("create_rubric: name is required")
	}
	if c.MaxScore <= 0 {
		return errors.New("create_rubric: max_score must be positive")
	}
	return nil
}

// CreateRubric creates a rubric under a major. The major must exist but may
// be archived; rubric lifecycle is independent of its major's.
func (h *CatalogHandler) CreateRubric(ctx context.Context, cmd CreateRubricCommand) (*catalog.Rubric, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("catalog", "CreateRubric", shared.ErrValidation, "invalid rubric", err)
	}

	rubric := &catalog.Rubric{
		MajorID:  cmd.MajorID,
		Name:     cmd.Name,
		MaxScore: cmd.MaxScore,
		Weight:   cmd.Weight,
	}
	err := h.coordinator.Within(ctx, func(unit ports.UnitOfWork) error {
		if _, err := unit.Majors().GetByID(ctx, cmd.MajorID, true); err != nil {
			return err
		}
		return unit.Rubrics().Create(ctx, rubric)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("rubric created", "rubric_id", rubric.ID, "major_id", rubric.MajorID, "name", rubric.Name)
	return rubric, nil
}

// UpdateRubric applies a field patch to a rubric.
func (h *CatalogHandler) UpdateRubric(ctx context.Context, id int64, patch catalog.RubricPatch) error {
	return h.coordinator.Within(ctx, func(unit ports.UnitOfWork) error {
		return unit.Rubrics().Update(ctx, id, patch)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Groups
// ─────────────────────────────────────────────────────────────────────────────

// CreateGroupCommand contains the data to create a student group.
type CreateGroupCommand struct {
	MajorID int64
	Name    string
}

// Validate validates the command.
func (c CreateGroupCommand) Validate() error {
	if c.MajorID == 0 {
		return errors.New("create_group: major_id is required")
	}
	if c.Name == "" {
		return errors.New("create_group: name is required")
	}
	return nil
}

// CreateGroup creates a student group under a major.
func (h *CatalogHandler) CreateGroup(ctx context.Context, cmd CreateGroupCommand) (*catalog.Group, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("catalog", "CreateGroup", shared.ErrValidation, "invalid group", err)
	}

	group := &catalog.Group{MajorID: cmd.MajorID, Name: cmd.Name}
	err := h.coordinator.Within(ctx, func(unit ports.UnitOfWork) error {
		if _, err := unit.Majors().GetByID(ctx, cmd.MajorID, true); err != nil {
			return err
		}
		return unit.Groups().Create(ctx, group)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("group created", "group_id", group.ID, "major_id", group.MajorID, "name", group.Name)
	return group, nil
}

// UpdateGroup applies a field patch to a group.
func (h *CatalogHandler) UpdateGroup(ctx context.Context, id int64, patch catalog.GroupPatch) error {
	return h.coordinator.Within(ctx, func(unit ports.UnitOfWork) error {
		return unit.Groups().Update(ctx, id, patch)
	})
}
