package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defensehub/defensehub/internal/application/ports"
	"github.com/defensehub/defensehub/internal/domain/catalog"
	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/domain/shared"
)

func TestUnit_CommitPublishesStagedState(t *testing.T) {
	store, _ := testStore()
	coord := NewCoordinator(store)
	ctx := context.Background()

	unit, err := coord.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, unit.Councils().Create(ctx, &catalog.Council{Name: "Council"}))

	// Staged writes are invisible until the unit commits.
	before, err := store.Councils().List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, before)

	require.NoError(t, unit.Commit(ctx))

	after, err := store.Councils().List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, after, 1)
}

func TestUnit_RollbackDiscardsStagedState(t *testing.T) {
	store, _ := testStore()
	coord := NewCoordinator(store)
	ctx := context.Background()

	unit, err := coord.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, unit.Councils().Create(ctx, &catalog.Council{Name: "Council"}))
	require.NoError(t, unit.Rollback(ctx))

	out, err := store.Councils().List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestUnit_TerminalReuseRejected(t *testing.T) {
	store, _ := testStore()
	coord := NewCoordinator(store)
	ctx := context.Background()

	cases := []struct {
		name   string
		finish func(ports.UnitOfWork) error
	}{
		{"after commit", func(u ports.UnitOfWork) error { return u.Commit(ctx) }},
		{"after rollback", func(u ports.UnitOfWork) error { return u.Rollback(ctx) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			unit, err := coord.Begin(ctx)
			require.NoError(t, err)
			require.NoError(t, tc.finish(unit))

			assert.ErrorIs(t, unit.Commit(ctx), shared.ErrUnitTerminal)
			assert.ErrorIs(t, unit.Rollback(ctx), shared.ErrUnitTerminal)
			assert.ErrorIs(t, unit.Councils().Create(ctx, &catalog.Council{Name: "Late"}), shared.ErrUnitTerminal)
			_, err = unit.Sessions().List(ctx, false)
			assert.ErrorIs(t, err, shared.ErrUnitTerminal)
		})
	}
}

func TestCoordinator_WithinCommitsOnNil(t *testing.T) {
	store, _ := testStore()
	coord := NewCoordinator(store)
	ctx := context.Background()

	err := coord.Within(ctx, func(u ports.UnitOfWork) error {
		return u.Sessions().Create(ctx, &defense.DefenseSession{CouncilID: 1, GroupID: 1, Title: "Defense day"})
	})
	require.NoError(t, err)

	out, err := store.Sessions().List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestCoordinator_WithinRollsBackOnError(t *testing.T) {
	store, _ := testStore()
	coord := NewCoordinator(store)
	ctx := context.Background()

	boom := errors.New("boom")
	err := coord.Within(ctx, func(u ports.UnitOfWork) error {
		if err := u.Councils().Create(ctx, &catalog.Council{Name: "Council"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	out, err := store.Councils().List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCoordinator_WithinRollsBackOnPanic(t *testing.T) {
	store, _ := testStore()
	coord := NewCoordinator(store)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = coord.Within(ctx, func(u ports.UnitOfWork) error {
			_ = u.Councils().Create(ctx, &catalog.Council{Name: "Council"})
			panic("boom")
		})
	})

	out, err := store.Councils().List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestUnit_IsolatedFromConcurrentCommits(t *testing.T) {
	store, _ := testStore()
	coord := NewCoordinator(store)
	ctx := context.Background()

	first, err := coord.Begin(ctx)
	require.NoError(t, err)
	second, err := coord.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, first.Councils().Create(ctx, &catalog.Council{Name: "First"}))
	require.NoError(t, first.Commit(ctx))

	// The second unit was cloned before the first committed and cannot
	// see its writes.
	out, err := second.Councils().List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestUnit_OverlappingCommitsBothSurvive(t *testing.T) {
	store, _ := testStore()
	coord := NewCoordinator(store)
	ctx := context.Background()

	first, err := coord.Begin(ctx)
	require.NoError(t, err)
	second, err := coord.Begin(ctx)
	require.NoError(t, err)

	council := catalog.Council{Name: "Dissertation Board"}
	require.NoError(t, first.Councils().Create(ctx, &council))
	major := catalog.Major{Name: "Software Engineering", Code: "SE"}
	require.NoError(t, second.Majors().Create(ctx, &major))

	require.NoError(t, first.Commit(ctx))
	require.NoError(t, second.Commit(ctx))

	// The later commit must layer on top of the earlier one, not erase it.
	councils, err := store.Councils().List(ctx, true)
	require.NoError(t, err)
	require.Len(t, councils, 1)
	assert.Equal(t, council.ID, councils[0].ID)

	majors, err := store.Majors().List(ctx, true)
	require.NoError(t, err)
	require.Len(t, majors, 1)
	assert.Equal(t, major.ID, majors[0].ID)
}

func TestUnit_OverlappingCommitsKeepAssignedIDs(t *testing.T) {
	store, _ := testStore()
	coord := NewCoordinator(store)
	ctx := context.Background()

	first, err := coord.Begin(ctx)
	require.NoError(t, err)
	second, err := coord.Begin(ctx)
	require.NoError(t, err)

	a := catalog.Council{Name: "Board A"}
	require.NoError(t, first.Councils().Create(ctx, &a))
	b := catalog.Council{Name: "Board B"}
	require.NoError(t, second.Councils().Create(ctx, &b))

	// Identifiers come from a shared sequence, so concurrent units never
	// stage the same one.
	assert.NotEqual(t, a.ID, b.ID)

	require.NoError(t, first.Commit(ctx))
	require.NoError(t, second.Commit(ctx))

	councils, err := store.Councils().List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, councils, 2)
}

func TestUnit_ConflictingCommitFailsInsteadOfOverwriting(t *testing.T) {
	store, _ := testStore()
	coord := NewCoordinator(store)
	ctx := context.Background()

	first, err := coord.Begin(ctx)
	require.NoError(t, err)
	second, err := coord.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, first.Councils().Create(ctx, &catalog.Council{Name: "Dissertation Board"}))
	require.NoError(t, second.Councils().Create(ctx, &catalog.Council{Name: "Dissertation Board"}))

	require.NoError(t, first.Commit(ctx))

	err = second.Commit(ctx)
	assert.ErrorIs(t, err, shared.ErrDuplicateName)

	// The failed unit is terminal and the first commit is untouched.
	assert.ErrorIs(t, second.Commit(ctx), shared.ErrUnitTerminal)
	councils, err := store.Councils().List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, councils, 1)
}
