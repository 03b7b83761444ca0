package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/defensehub/defensehub/internal/application/ports"
	"github.com/defensehub/defensehub/internal/domain/catalog"
	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSISTENCY COORDINATOR (in-memory)
// ══════════════════════════════════════════════════════════════════════════════

// unitStatus is the unit-of-work state machine.
type unitStatus int

const (
	unitOpen unitStatus = iota
	unitCommitted
	unitRolledBack
)

func (s unitStatus) String() string {
	switch s {
	case unitOpen:
		return "open"
	case unitCommitted:
		return "committed"
	case unitRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Coordinator opens units of work over the in-memory store. A unit stages
// its mutations on a cloned state and keeps them as an operation log;
// Commit publishes the clone atomically, replaying the log on top of any
// state committed by concurrent units, Rollback discards it.
type Coordinator struct {
	store  *Store
	logger *slog.Logger
}

// NewCoordinator creates a coordinator over the store.
func NewCoordinator(store *Store) *Coordinator {
	return &Coordinator{store: store, logger: store.logger}
}

// Begin implements ports.Coordinator.
func (c *Coordinator) Begin(_ context.Context) (ports.UnitOfWork, error) {
	c.store.mu.RLock()
	base := c.store.st
	staged := base.clone()
	c.store.mu.RUnlock()

	return &Unit{store: c.store, base: base, staged: staged}, nil
}

// Within implements ports.Coordinator: commit on nil return, rollback on
// error or panic.
func (c *Coordinator) Within(ctx context.Context, fn func(ports.UnitOfWork) error) error {
	unit, err := c.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = unit.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(unit); err != nil {
		if rbErr := unit.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("unit error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	return unit.Commit(ctx)
}

// Unit is one open unit of work.
type Unit struct {
	store *Store

	mu     sync.Mutex
	status unitStatus
	base   *state
	staged *state
	ops    []func(*state) error
}

// read/write/now implement the view interface for tx-scoped repositories.

func (u *Unit) read(fn func(*state) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.status != unitOpen {
		return shared.ErrUnitTerminal
	}
	return fn(u.staged)
}

func (u *Unit) write(fn func(*state) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.status != unitOpen {
		return shared.ErrUnitTerminal
	}
	if err := fn(u.staged); err != nil {
		return err
	}
	// Repository write closures leave the state untouched on error, so only
	// successful mutations enter the log Commit replays.
	u.ops = append(u.ops, fn)
	return nil
}

func (u *Unit) now() time.Time {
	return u.store.clock.Now()
}

// Councils implements ports.UnitOfWork.
func (u *Unit) Councils() catalog.CouncilRepository { return &councilRepo{v: u} }

// Majors implements ports.UnitOfWork.
func (u *Unit) Majors() catalog.MajorRepository { return &majorRepo{v: u} }

// Rubrics implements ports.UnitOfWork.
func (u *Unit) Rubrics() catalog.RubricRepository { return &rubricRepo{v: u} }

// Groups implements ports.UnitOfWork.
func (u *Unit) Groups() catalog.GroupRepository { return &groupRepo{v: u} }

// Sessions implements ports.UnitOfWork.
func (u *Unit) Sessions() defense.SessionRepository { return &sessionRepo{v: u} }

// Scores implements ports.UnitOfWork.
func (u *Unit) Scores() defense.ScoreRepository { return &scoreRepo{v: u} }

// Transcripts implements ports.UnitOfWork.
func (u *Unit) Transcripts() defense.TranscriptRepository { return &transcriptRepo{v: u} }

// Commit publishes the staged state. The unit becomes terminal.
//
// When no other unit committed since Begin, the staged clone is published
// as-is. Otherwise the operation log is replayed onto the current state, so
// mutations committed by concurrent units are never overwritten; a replayed
// operation that no longer applies (a key another unit took, a row another
// unit removed) fails the commit with that operation's error and the unit
// rolls back.
func (u *Unit) Commit(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.status != unitOpen {
		return shared.ErrUnitTerminal
	}

	u.store.mu.Lock()
	if u.store.st == u.base {
		u.store.st = u.staged
	} else {
		next := u.store.st.clone()
		for _, op := range u.ops {
			if err := op(next); err != nil {
				u.store.mu.Unlock()
				u.status = unitRolledBack
				u.base, u.staged, u.ops = nil, nil, nil
				return fmt.Errorf("commit conflicts with a concurrent unit: %w", err)
			}
		}
		u.store.st = next
	}
	u.store.mu.Unlock()

	u.status = unitCommitted
	u.base, u.staged, u.ops = nil, nil, nil
	return nil
}

// Rollback discards the staged state. The unit becomes terminal.
func (u *Unit) Rollback(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.status != unitOpen {
		return shared.ErrUnitTerminal
	}

	u.status = unitRolledBack
	u.base, u.staged, u.ops = nil, nil, nil
	return nil
}
