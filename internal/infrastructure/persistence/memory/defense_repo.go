package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Defense sessions
// ─────────────────────────────────────────────────────────────────────────────

type sessionRepo struct{ v view }

func (r *sessionRepo) List(_ context.Context, includeDeleted bool) ([]*defense.DefenseSession, error) {
	var out []*defense.DefenseSession
	err := r.v.read(func(st *state) error {
		for _, s := range st.sessions {
			if !includeDeleted && !s.IsActive {
				continue
			}
			s := s
			out = append(out, &s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *sessionRepo) GetByID(_ context.Context, id int64, includeDeleted bool) (*defense.DefenseSession, error) {
	var out *defense.DefenseSession
	err := r.v.read(func(st *state) error {
		s, ok := st.sessions[id]
		if !ok || (!includeDeleted && !s.IsActive) {
			return shared.ErrSessionNotFound
		}
		out = &s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepo) Create(_ context.Context, s *defense.DefenseSession) error {
	if s.Status == "" {
		s.Status = defense.SessionScheduled
	}
	if err := s.Validate(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		if s.ID == 0 {
			s.ID = st.seqs.session.Add(1)
		}
		s.IsActive = true
		s.CreatedAt = r.v.now()
		st.sessions[s.ID] = *s
		return nil
	})
}

func (r *sessionRepo) Update(_ context.Context, id int64, patch defense.SessionPatch) error {
	return r.v.write(func(st *state) error {
		s, ok := st.sessions[id]
		if !ok {
			return shared.ErrSessionNotFound
		}
		patch.Apply(&s)
		if err := s.Validate(); err != nil {
			return err
		}
		st.sessions[id] = s
		return nil
	})
}

func (r *sessionRepo) UpdateStatus(_ context.Context, id int64, status defense.SessionStatus) error {
	return r.v.write(func(st *state) error {
		s, ok := st.sessions[id]
		if !ok {
			return shared.ErrSessionNotFound
		}
		if err := s.TransitionTo(status); err != nil {
			return shared.WrapError("defense", "UpdateStatus", shared.ErrStateTransition, "session transition rejected", err)
		}
		st.sessions[id] = s
		return nil
	})
}

func (r *sessionRepo) SoftDelete(_ context.Context, id int64) error {
	return r.v.write(func(st *state) error {
		s, ok := st.sessions[id]
		if !ok {
			return shared.ErrSessionNotFound
		}
		s.IsActive = false
		st.sessions[id] = s
		return nil
	})
}

func (r *sessionRepo) Restore(_ context.Context, id int64) error {
	return r.v.write(func(st *state) error {
		s, ok := st.sessions[id]
		if !ok {
			return shared.ErrSessionNotFound
		}
		s.IsActive = true
		st.sessions[id] = s
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Scores
// ─────────────────────────────────────────────────────────────────────────────

type scoreRepo struct{ v view }

func (r *scoreRepo) ListBySession(_ context.Context, sessionID int64, includeDeleted bool) ([]*defense.Score, error) {
	var out []*defense.Score
	err := r.v.read(func(st *state) error {
		for _, sc := range st.scores {
			if sc.SessionID != sessionID {
				continue
			}
			if !includeDeleted && !sc.IsActive {
				continue
			}
			sc := sc
			out = append(out, &sc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *scoreRepo) GetByID(_ context.Context, id string, includeDeleted bool) (*defense.Score, error) {
	var out *defense.Score
	err := r.v.read(func(st *state) error {
		sc, ok := st.scores[id]
		if !ok || (!includeDeleted && !sc.IsActive) {
			return shared.ErrScoreNotFound
		}
		out = &sc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *scoreRepo) Create(_ context.Context, sc *defense.Score) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		for _, existing := range st.scores {
			if existing.SessionID == sc.SessionID &&
				existing.RubricID == sc.RubricID &&
				existing.StudentID == sc.StudentID &&
				existing.EvaluatorID == sc.EvaluatorID {
				return shared.ErrDuplicateScore
			}
		}
		if sc.ID == "" {
			sc.ID = uuid.NewString()
		}
		now := r.v.now()
		sc.IsActive = true
		sc.CreatedAt = now
		sc.UpdatedAt = now
		st.scores[sc.ID] = *sc
		return nil
	})
}

func (r *scoreRepo) Update(_ context.Context, id string, patch defense.ScorePatch) error {
	return r.v.write(func(st *state) error {
		sc, ok := st.scores[id]
		if !ok {
			return shared.ErrScoreNotFound
		}
		patch.Apply(&sc)
		if err := sc.Validate(); err != nil {
			return err
		}
		sc.UpdatedAt = r.v.now()
		st.scores[id] = sc
		return nil
	})
}

func (r *scoreRepo) SoftDelete(_ context.Context, id string) error {
	return r.v.write(func(st *state) error {
		sc, ok := st.scores[id]
		if !ok {
			return shared.ErrScoreNotFound
		}
		sc.IsActive = false
		sc.DeletedAt = r.v.now()
		st.scores[id] = sc
		return nil
	})
}

func (r *scoreRepo) Restore(_ context.Context, id string) error {
	return r.v.write(func(st *state) error {
		sc, ok := st.scores[id]
		if !ok {
			return shared.ErrScoreNotFound
		}
		sc.IsActive = true
		sc.DeletedAt = time.Time{}
		st.scores[id] = sc
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Transcripts
// ─────────────────────────────────────────────────────────────────────────────

type transcriptRepo struct{ v view }

func (r *transcriptRepo) ListBySession(_ context.Context, sessionID int64, includeDeleted bool) ([]*defense.Transcript, error) {
	var out []*defense.Transcript
	err := r.v.read(func(st *state) error {
		for _, t := range st.transcripts {
			if t.SessionID != sessionID {
				continue
			}
			if !includeDeleted && !t.IsActive {
				continue
			}
			t := t
			out = append(out, &t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *transcriptRepo) GetByID(_ context.Context, id string, includeDeleted bool) (*defense.Transcript, error) {
	var out *defense.Transcript
	err := r.v.read(func(st *state) error {
		t, ok := st.transcripts[id]
		if !ok || (!includeDeleted && !t.IsActive) {
			return shared.ErrTranscriptNotFound
		}
		out = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *transcriptRepo) Create(_ context.Context, t *defense.Transcript) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		t.IsActive = true
		t.CreatedAt = r.v.now()
		st.transcripts[t.ID] = *t
		return nil
	})
}

func (r *transcriptRepo) SoftDelete(_ context.Context, id string) error {
	return r.v.write(func(st *state) error {
		t, ok := st.transcripts[id]
		if !ok {
			return shared.ErrTranscriptNotFound
		}
		t.IsActive = false
		st.transcripts[id] = t
		return nil
	})
}

func (r *transcriptRepo) Restore(_ context.Context, id string) error {
	return r.v.write(func(st *state) error {
		t, ok := st.transcripts[id]
		if !ok {
			return shared.ErrTranscriptNotFound
		}
		t.IsActive = true
		st.transcripts[id] = t
		return nil
	})
}
