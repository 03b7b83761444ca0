// Package memory implements the entity lifecycle stores and the consistency
// coordinator on plain in-process maps. It backs tests and database-less
// runs; the postgres package provides the durable implementation of the same
// contracts.
package memory

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/defensehub/defensehub/internal/domain/catalog"
	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/pkg/timeutil"
)

// sequences issues generated identifiers. They are shared by the live state
// and every unit-of-work clone, like a database sequence: an identifier
// handed to one unit is never handed to another, so replaying a unit's
// mutations at commit keeps the identifiers it already assigned.
type sequences struct {
	council atomic.Int64
	major   atomic.Int64
	rubric  atomic.Int64
	group   atomic.Int64
	session atomic.Int64
}

// state holds every table. Entities are stored by value so that cloning the
// state for a unit of work is a map copy.
type state struct {
	councils    map[int64]catalog.Council
	majors      map[int64]catalog.Major
	rubrics     map[int64]catalog.Rubric
	groups      map[int64]catalog.Group
	sessions    map[int64]defense.DefenseSession
	scores      map[string]defense.Score
	transcripts map[string]defense.Transcript

	seqs *sequences
}

func newState() *state {
	return &state{
		councils:    make(map[int64]catalog.Council),
		majors:      make(map[int64]catalog.Major),
		rubrics:     make(map[int64]catalog.Rubric),
		groups:      make(map[int64]catalog.Group),
		sessions:    make(map[int64]defense.DefenseSession),
		scores:      make(map[string]defense.Score),
		transcripts: make(map[string]defense.Transcript),
		seqs:        &sequences{},
	}
}

// clone returns a deep copy of the tables. Entity structs hold no reference
// types, so copying map values is sufficient. Sequences stay shared.
func (s *state) clone() *state {
	c := &state{
		councils:    make(map[int64]catalog.Council, len(s.councils)),
		majors:      make(map[int64]catalog.Major, len(s.majors)),
		rubrics:     make(map[int64]catalog.Rubric, len(s.rubrics)),
		groups:      make(map[int64]catalog.Group, len(s.groups)),
		sessions:    make(map[int64]defense.DefenseSession, len(s.sessions)),
		scores:      make(map[string]defense.Score, len(s.scores)),
		transcripts: make(map[string]defense.Transcript, len(s.transcripts)),
		seqs:        s.seqs,
	}
	for k, v := range s.councils {
		c.councils[k] = v
	}
	for k, v := range s.majors {
		c.majors[k] = v
	}
	for k, v := range s.rubrics {
		c.rubrics[k] = v
	}
	for k, v := range s.groups {
		c.groups[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.scores {
		c.scores[k] = v
	}
	for k, v := range s.transcripts {
		c.transcripts[k] = v
	}
	return c
}

// Store is the in-memory database.
type Store struct {
	mu     sync.RWMutex
	st     *state
	clock  timeutil.Clock
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock sets the clock used for created/deleted timestamps.
func WithClock(c timeutil.Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		st:     newState(),
		clock:  timeutil.System(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// view abstracts where repository calls land: directly on the store (each
// call is its own committed mutation) or on a unit of work's staged state.
type view interface {
	read(fn func(*state) error) error
	write(fn func(*state) error) error
	now() time.Time
}

// storeView binds repositories to the live state.
type storeView struct{ s *Store }

func (v storeView) read(fn func(*state) error) error {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return fn(v.s.st)
}

func (v storeView) write(fn func(*state) error) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return fn(v.s.st)
}

func (v storeView) now() time.Time {
	return v.s.clock.Now()
}

// Direct repositories. Each call commits on its own; multi-repository
// mutations that must be atomic go through the Coordinator instead.

// Councils returns the council repository.
func (s *Store) Councils() catalog.CouncilRepository { return &councilRepo{v: storeView{s}} }

// Majors returns the major repository.
func (s *Store) Majors() catalog.MajorRepository { return &majorRepo{v: storeView{s}} }

// Rubrics returns the rubric repository.
func (s *Store) Rubrics() catalog.RubricRepository { return &rubricRepo{v: storeView{s}} }

// Groups returns the group repository.
func (s *Store) Groups() catalog.GroupRepository { return &groupRepo{v: storeView{s}} }

// Sessions returns the defense session repository.
func (s *Store) Sessions() defense.SessionRepository { return &sessionRepo{v: storeView{s}} }

// Scores returns the score repository.
func (s *Store) Scores() defense.ScoreRepository { return &scoreRepo{v: storeView{s}} }

// Transcripts returns the transcript repository.
func (s *Store) Transcripts() defense.TranscriptRepository {
	return &transcriptRepo{v: storeView{s}}
}
