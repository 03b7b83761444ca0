// Package projections contains in-memory read models maintained from
// committed domain events. They are denormalized for reads and can be
// rebuilt from the store at any time.
package projections

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS VIEW
// ══════════════════════════════════════════════════════════════════════════════

// StandingsView is a materialized per-session ranking of students by
// weighted score. A student's standing is the sum over rubrics of the
// mean evaluator value times the rubric weight; unknown rubrics weigh 1.
//
// The view is fed incrementally from score events and can be rebuilt in
// full from the score store. All reads return copies.
type StandingsView struct {
	mu sync.RWMutex

	// scores holds the raw live score rows the standings derive from,
	// keyed by score id.
	scores map[string]defense.ScoreView

	// weights maps rubric id to its weight.
	weights map[int64]float64

	// standings holds the computed entries per session, sorted by
	// weighted total descending.
	standings map[int64][]*StandingsEntry

	version     int64
	lastUpdated time.Time
}

// StandingsEntry is one student's row in a session's standings.
type StandingsEntry struct {
	SessionID int64  `json:"session_id"`
	StudentID string `json:"student_id"`
	Rank      int    `json:"rank"`

	// WeightedTotal is the ranking key.
	WeightedTotal float64 `json:"weighted_total"`

	// RawTotal is the unweighted sum of all evaluator values.
	RawTotal float64 `json:"raw_total"`

	// ByRubric holds the mean evaluator value per rubric.
	ByRubric map[int64]float64 `json:"by_rubric"`

	ScoreCount   int       `json:"score_count"`
	Evaluators   int       `json:"evaluators"`
	LastScoredAt time.Time `json:"last_scored_at"`
}

// StandingsMetadata describes the state of the view.
type StandingsMetadata struct {
	Sessions    int       `json:"sessions"`
	Students    int       `json:"students"`
	Scores      int       `json:"scores"`
	Version     int64     `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewStandingsView creates an empty StandingsView.
func NewStandingsView() *StandingsView {
	return &StandingsView{
		scores:    make(map[string]defense.ScoreView),
		weights:   make(map[int64]float64),
		standings: make(map[int64][]*StandingsEntry),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Writes
// ──────────────────────────────────────────────────────────────────────────────

// SetRubricWeights replaces the rubric weight table and recomputes all
// standings. Weights at or below zero fall back to 1.
func (v *StandingsView) SetRubricWeights(weights map[int64]float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.weights = make(map[int64]float64, len(weights))
	for id, w := range weights {
		v.weights[id] = w
	}
	v.recomputeAll()
}

// Rebuild replaces the view's score rows wholesale. Used at startup and
// after the event stream and the store are known to have diverged.
func (v *StandingsView) Rebuild(views []defense.ScoreView) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.scores = make(map[string]defense.ScoreView, len(views))
	for _, sv := range views {
		v.scores[sv.ID] = sv
	}
	v.recomputeAll()
}

// ApplyScore upserts one score row and recomputes its session's standings.
func (v *StandingsView) ApplyScore(sv defense.ScoreView) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.scores[sv.ID] = sv
	v.recomputeSession(sv.SessionID)
}

// RemoveScore drops a score row and recomputes its session's standings.
// Unknown ids are ignored.
func (v *StandingsView) RemoveScore(scoreID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	sv, ok := v.scores[scoreID]
	if !ok {
		return
	}
	delete(v.scores, scoreID)
	v.recomputeSession(sv.SessionID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Recomputation
// ──────────────────────────────────────────────────────────────────────────────

// recomputeAll rebuilds standings for every session. Caller holds the lock.
func (v *StandingsView) recomputeAll() {
	sessions := make(map[int64]struct{})
	for _, sv := range v.scores {
		sessions[sv.SessionID] = struct{}{}
	}

	v.standings = make(map[int64][]*StandingsEntry, len(sessions))
	for id := range sessions {
		v.standings[id] = v.computeSession(id)
	}
	v.bump()
}

// recomputeSession rebuilds one session's standings. Caller holds the lock.
func (v *StandingsView) recomputeSession(sessionID int64) {
	entries := v.computeSession(sessionID)
	if len(entries) == 0 {
		delete(v.standings, sessionID)
	} else {
		v.standings[sessionID] = entries
	}
	v.bump()
}

// computeSession derives sorted, ranked entries for one session.
func (v *StandingsView) computeSession(sessionID int64) []*StandingsEntry {
	type rubricAcc struct {
		sum   float64
		count int
	}
	type studentAcc struct {
		byRubric   map[int64]*rubricAcc
		rawTotal   float64
		scoreCount int
		evaluators map[string]struct{}
		lastScored time.Time
	}

	students := make(map[string]*studentAcc)
	for _, sv := range v.scores {
		if sv.SessionID != sessionID {
			continue
		}

		acc, ok := students[sv.StudentID]
		if !ok {
			acc = &studentAcc{
				byRubric:   make(map[int64]*rubricAcc),
				evaluators: make(map[string]struct{}),
			}
			students[sv.StudentID] = acc
		}

		ra, ok := acc.byRubric[sv.RubricID]
		if !ok {
			ra = &rubricAcc{}
			acc.byRubric[sv.RubricID] = ra
		}
		ra.sum += sv.Value
		ra.count++

		acc.rawTotal += sv.Value
		acc.scoreCount++
		acc.evaluators[sv.EvaluatorID] = struct{}{}
		if sv.Timestamp.After(acc.lastScored) {
			acc.lastScored = sv.Timestamp
		}
	}

	entries := make([]*StandingsEntry, 0, len(students))
	for studentID, acc := range students {
		entry := &StandingsEntry{
			SessionID:    sessionID,
			StudentID:    studentID,
			ByRubric:     make(map[int64]float64, len(acc.byRubric)),
			RawTotal:     acc.rawTotal,
			ScoreCount:   acc.scoreCount,
			Evaluators:   len(acc.evaluators),
			LastScoredAt: acc.lastScored,
		}
		for rubricID, ra := range acc.byRubric {
			mean := ra.sum / float64(ra.count)
			entry.ByRubric[rubricID] = mean

			weight := v.weights[rubricID]
			if weight <= 0 {
				weight = 1
			}
			entry.WeightedTotal += mean * weight
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].WeightedTotal != entries[j].WeightedTotal {
			return entries[i].WeightedTotal > entries[j].WeightedTotal
		}
		return entries[i].StudentID < entries[j].StudentID
	})

	// Equal totals share a rank.
	for i, entry := range entries {
		if i > 0 && entry.WeightedTotal == entries[i-1].WeightedTotal {
			entry.Rank = entries[i-1].Rank
		} else {
			entry.Rank = i + 1
		}
	}

	return entries
}

// bump advances the version. Caller holds the lock.
func (v *StandingsView) bump() {
	v.version++
	v.lastUpdated = time.Now()
}

// ──────────────────────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────────────────────

// GetStandings returns a session's entries, best first. A limit of zero or
// less returns everything.
func (v *StandingsView) GetStandings(ctx context.Context, sessionID int64, limit int) ([]*StandingsEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	entries := v.standings[sessionID]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}

	out := make([]*StandingsEntry, 0, limit)
	for _, entry := range entries[:limit] {
		out = append(out, entry.clone())
	}
	return out, nil
}

// GetByStudent returns one student's entry in a session's standings.
func (v *StandingsView) GetByStudent(ctx context.Context, sessionID int64, studentID string) (*StandingsEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	for _, entry := range v.standings[sessionID] {
		if entry.StudentID == studentID {
			return entry.clone(), nil
		}
	}
	return nil, shared.ErrScoreNotFound
}

// Metadata returns the state of the view.
func (v *StandingsView) Metadata() StandingsMetadata {
	v.mu.RLock()
	defer v.mu.RUnlock()

	students := 0
	for _, entries := range v.standings {
		students += len(entries)
	}

	return StandingsMetadata{
		Sessions:    len(v.standings),
		Students:    students,
		Scores:      len(v.scores),
		Version:     v.version,
		LastUpdated: v.lastUpdated,
	}
}

// Version returns the view's monotonic version.
func (v *StandingsView) Version() int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

func (e *StandingsEntry) clone() *StandingsEntry {
	c := *e
	c.ByRubric = make(map[int64]float64, len(e.ByRubric))
	for k, val := range e.ByRubric {
		c.ByRubric[k] = val
	}
	return &c
}
