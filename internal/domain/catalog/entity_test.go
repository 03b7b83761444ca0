package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLifecycle_ArchiveAndRestore(t *testing.T) {
	created := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	deleted := created.Add(24 * time.Hour)

	l := NewLifecycle(created)
	assert.True(t, l.IsActive)
	assert.True(t, l.CreatedAt.Equal(created))
	assert.True(t, l.DeletedAt.IsZero())

	l.Archive(deleted)
	assert.False(t, l.IsActive)
	assert.True(t, l.DeletedAt.Equal(deleted))

	// Archiving an archived entity keeps the original deletion time.
	l.Archive(deleted.Add(time.Hour))
	assert.True(t, l.DeletedAt.Equal(deleted))

	l.Restore()
	assert.True(t, l.IsActive)
	assert.True(t, l.DeletedAt.IsZero())
	assert.True(t, l.CreatedAt.Equal(created))
}

func TestRubric_Validate(t *testing.T) {
	valid := &Rubric{Name: "Presentation", MaxScore: 10, Weight: 0.3}
	assert.NoError(t, valid.Validate())

	assert.Error(t, (&Rubric{Name: " ", MaxScore: 10, Weight: 0.3}).Validate())
	assert.Error(t, (&Rubric{Name: "Presentation", MaxScore: 0, Weight: 0.3}).Validate())
	assert.Error(t, (&Rubric{Name: "Presentation", MaxScore: 10, Weight: 1.2}).Validate())
	assert.Error(t, (&Rubric{Name: "Presentation", MaxScore: 10, Weight: -0.1}).Validate())
}

func TestPatches_NilFieldsLeaveEntityUntouched(t *testing.T) {
	c := &Council{Name: "Council A", Description: "desc"}
	CouncilPatch{}.Apply(c)
	assert.Equal(t, "Council A", c.Name)
	assert.Equal(t, "desc", c.Description)

	name := "Council B"
	CouncilPatch{Name: &name}.Apply(c)
	assert.Equal(t, "Council B", c.Name)
	assert.Equal(t, "desc", c.Description)

	r := &Rubric{Name: "Defense", MaxScore: 10, Weight: 0.5}
	weight := 0.7
	RubricPatch{Weight: &weight}.Apply(r)
	assert.Equal(t, 0.7, r.Weight)
	assert.Equal(t, 10.0, r.MaxScore)
}
