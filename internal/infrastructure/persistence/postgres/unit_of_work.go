package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/defensehub/defensehub/internal/application/ports"
	"github.com/defensehub/defensehub/internal/domain/catalog"
	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSISTENCY COORDINATOR (PostgreSQL)
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

// Coordinator opens units of work backed by pgx transactions.
type Coordinator struct {
	conn   *Connection
	logger *slog.Logger
}

// NewCoordinator creates a coordinator over the connection.
func NewCoordinator(conn *Connection, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{conn: conn, logger: logger}
}

// Begin implements ports.Coordinator.
func (c *Coordinator) Begin(ctx context.Context) (ports.UnitOfWork, error) {
	tx, err := c.conn.BeginTx(ctx, DefaultTxOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}

	return &Unit{tx: tx, logger: c.logger}, nil
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
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	return unit.Commit(ctx)
}

// Unit is one transaction-scoped unit of work. Repositories obtained from it
// run inside the transaction; after Commit or Rollback every further call
// fails with shared.ErrInvalidState.
type Unit struct {
	tx     pgx.Tx
	logger *slog.Logger

	mu     sync.Mutex
	status unitStatus
}

// guard wraps the transaction so repository calls made after the unit
// reached a terminal state fail instead of touching a dead transaction.
type guard struct {
	unit *Unit
}

func (g guard) check() error {
	g.unit.mu.Lock()
	defer g.unit.mu.Unlock()
	if g.unit.status != unitOpen {
		return fmt.Errorf("%w: unit is %s", shared.ErrUnitTerminal, g.unit.status)
	}
	return nil
}

func (g guard) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if err := g.check(); err != nil {
		return pgconn.CommandTag{}, err
	}
	return g.unit.tx.Exec(ctx, sql, args...)
}

func (g guard) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	if err := g.check(); err != nil {
		return nil, err
	}
	return g.unit.tx.Query(ctx, sql, args...)
}

func (g guard) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	if err := g.check(); err != nil {
		return errRow{err: err}
	}
	return g.unit.tx.QueryRow(ctx, sql, args...)
}

// errRow surfaces a guard failure through the pgx.Row contract.
type errRow struct{ err error }

func (r errRow) Scan(...interface{}) error { return r.err }

// Councils implements ports.UnitOfWork.
func (u *Unit) Councils() catalog.CouncilRepository { return NewCouncilRepository(guard{unit: u}) }

// Majors implements ports.UnitOfWork.
func (u *Unit) Majors() catalog.MajorRepository { return NewMajorRepository(guard{unit: u}) }

// Rubrics implements ports.UnitOfWork.
func (u *Unit) Rubrics() catalog.RubricRepository { return NewRubricRepository(guard{unit: u}) }

// Groups implements ports.UnitOfWork.
func (u *Unit) Groups() catalog.GroupRepository { return NewGroupRepository(guard{unit: u}) }

// Sessions implements ports.UnitOfWork.
func (u *Unit) Sessions() defense.SessionRepository { return NewSessionRepository(guard{unit: u}) }

// Scores implements ports.UnitOfWork.
func (u *Unit) Scores() defense.ScoreRepository { return NewScoreRepository(guard{unit: u}) }

// Transcripts implements ports.UnitOfWork.
func (u *Unit) Transcripts() defense.TranscriptRepository {
	return NewTranscriptRepository(guard{unit: u})
}

// Commit makes every queued mutation durable. The unit becomes terminal.
func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	if u.status != unitOpen {
		status := u.status
		u.mu.Unlock()
		return fmt.Errorf("%w: cannot commit, unit is %s", shared.ErrUnitTerminal, status)
	}
	u.status = unitCommitted
	u.mu.Unlock()

	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}

	return nil
}

// Rollback discards every queued mutation. The unit becomes terminal.
func (u *Unit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	if u.status != unitOpen {
		status := u.status
		u.mu.Unlock()
		return fmt.Errorf("%w: cannot roll back, unit is %s", shared.ErrUnitTerminal, status)
	}
	u.status = unitRolledBack
	u.mu.Unlock()

	if err := u.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}

	return nil
}
