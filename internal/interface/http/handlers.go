package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/defensehub/defensehub/internal/application/command"
	"github.com/defensehub/defensehub/internal/application/query"
	"github.com/defensehub/defensehub/internal/domain/catalog"
	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/domain/shared"
	"github.com/defensehub/defensehub/internal/infrastructure/scheduler"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Endpoint not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "defensehub",
		"status":  "running",
		"uptime":  s.Uptime().String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.IsRunning() {
		writeJSONError(w, http.StatusServiceUnavailable, "not_ready", "Server is not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": int64(s.Uptime().Seconds()),
	}

	if s.deps.BusMetrics != nil {
		metrics["event_bus"] = s.deps.BusMetrics.Snapshot()
	}
	if s.deps.Registry != nil {
		metrics["realtime"] = s.deps.Registry.Stats()
	}
	if s.deps.Jobs != nil {
		metrics["scheduler"] = s.deps.Jobs.Metrics().Snapshot()
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError translates domain errors into HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, shared.ErrDuplicateKey):
		writeJSONError(w, http.StatusConflict, "duplicate", err.Error())
	case errors.Is(err, shared.ErrStateTransition), errors.Is(err, shared.ErrInvalidState):
		writeJSONError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidID),
		errors.Is(err, shared.ErrEmptyValue),
		errors.Is(err, shared.ErrValueOutOfRange):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return false
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListCouncils(w http.ResponseWriter, r *http.Request) {
	councils, err := s.deps.CatalogQueries.ListCouncils(r.Context(), getQueryParamBool(r, "include_deleted"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, councils)
}

func (s *Server) handleCreateCouncil(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateCouncilCommand
	if !decodeBody(w, r, &cmd) {
		return
	}

	council, err := s.deps.Catalog.CreateCouncil(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, council)
}

func (s *Server) handleGetCouncil(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "Council ID must be numeric")
		return
	}

	council, err := s.deps.CatalogQueries.GetCouncil(r.Context(), id, getQueryParamBool(r, "include_deleted"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, council)
}

func (s *Server) handleUpdateCouncil(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "Council ID must be numeric")
		return
	}

	var patch catalog.CouncilPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	if err := s.deps.Catalog.UpdateCouncil(r.Context(), id, patch); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleListMajors(w http.ResponseWriter, r *http.Request) {
	majors, err := s.deps.CatalogQueries.ListMajors(r.Context(), getQueryParamBool(r, "include_deleted"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, majors)
}

func (s *Server) handleCreateMajor(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateMajorCommand
	if !decodeBody(w, r, &cmd) {
		return
	}

	major, err := s.deps.Catalog.CreateMajor(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, major)
}

func (s *Server) handleGetMajor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "Major ID must be numeric")
		return
	}

	major, err := s.deps.CatalogQueries.GetMajor(r.Context(), id, getQueryParamBool(r, "include_deleted"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, major)
}

func (s *Server) handleUpdateMajor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "Major ID must be numeric")
		return
	}

	var patch catalog.MajorPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	if err := s.deps.Catalog.UpdateMajor(r.Context(), id, patch); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleListRubricsByMajor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "Major ID must be numeric")
		return
	}

	rubrics, err := s.deps.CatalogQueries.ListRubricsByMajor(r.Context(), id, getQueryParamBool(r, "include_deleted"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rubrics)
}

func (s *Server) handleListRubrics(w http.ResponseWriter, r *http.Request) {
	rubrics, err := s.deps.CatalogQueries.ListRubrics(r.Context(), getQueryParamBool(r, "include_deleted"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rubrics)
}

func (s *Server) handleCreateRubric(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateRubricCommand
	if !decodeBody(w, r, &cmd) {
		return
	}

	rubric, err := s.deps.Catalog.CreateRubric(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rubric)
}

func (s *Server) handleGetRubric(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "Rubric ID must be numeric")
		return
	}

	rubric, err := s.deps.CatalogQueries.GetRubric(r.Context(), id, getQueryParamBool(r, "include_deleted"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rubric)
}

func (s *Server) handleUpdateRubric(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "Rubric ID must be numeric")
		return
	}

	var patch catalog.RubricPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	if err := s.deps.Catalog.UpdateRubric(r.Context(), id, patch); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.deps.CatalogQueries.ListGroups(r.Context(), getQueryParamBool(r, "include_deleted"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateGroupCommand
	if !decodeBody(w, r, &cmd) {
		return
	}

	group, err := s.deps.Catalog.CreateGroup(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "Group ID must be numeric")
		return
	}

	group, err := s.deps.CatalogQueries.GetGroup(r.Context(), id, getQueryParamBool(r, "include_deleted"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "Group ID must be numeric")
		return
	}

	var patch catalog.GroupPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	if err := s.deps.Catalog.UpdateGroup(r.Context(), id, patch); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	cmd := command.LifecycleCommand{
		Entity: command.EntityKind(r.PathValue("entity")),
		ID:     r.PathValue("id"),
	}

	if err := s.deps.Lifecycle.Archive(r.Context(), cmd); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	cmd := command.LifecycleCommand{
		Entity: command.EntityKind(r.PathValue("entity")),
		ID:     r.PathValue("id"),
	}

	if err := s.deps.Lifecycle.Restore(r.Context(), cmd); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.deps.SessionQueries.List(r.Context(), getQueryParamBool(r, "include_deleted"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleScheduleSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CouncilID int64      `json:"council_id"`
		GroupID   int64      `json:"group_id"`
		Title     string     `json:"title"`
		Location  string     `json:"location"`
		StartsAt  *time.Time `json:"starts_at"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	cmd := command.ScheduleSessionCommand{
		CouncilID: body.CouncilID,
		GroupID:   body.GroupID,
		Title:     body.Title,
		Location:  body.Location,
	}
	if body.StartsAt != nil {
		cmd.StartsAt = *body.StartsAt
	}

	session, err := s.deps.Sessions.Schedule(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "Session ID must be numeric")
		return
	}

	detail, err := s.deps.SessionQueries.Get(r.Context(), id, getQueryParamBool(r, "include_deleted"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "Session ID must be numeric")
		return
	}

	var patch defense.SessionPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	if err := s.deps.Sessions.Update(r.Context(), id, patch); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "Session ID must be numeric")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := s.deps.Sessions.Transition(r.Context(), id, defense.SessionStatus(body.Status)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": body.Status})
}

func (s *Server) handleGetScoreboard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "Session ID must be numeric")
		return
	}

	views, err := s.deps.Scoreboard.Get(r.Context(), query.GetScoreboardQuery{
		SessionID:      id,
		IncludeDeleted: getQueryParamBool(r, "include_deleted"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetStandings(w http.ResponseWriter, r *http.Request) {
	if s.deps.Standings == nil {
		writeJSONError(w, http.StatusNotFound, "not_available", "Standings are not enabled")
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "Session ID must be numeric")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid_limit", "Limit must be a non-negative integer")
			return
		}
	}

	entries, err := s.deps.Standings.GetStandings(r.Context(), id, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAttachTranscript(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "Session ID must be numeric")
		return
	}

	var body struct {
		StudentID string `json:"student_id"`
		Content   string `json:"content"`
		Language  string `json:"language"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	transcript, err := s.deps.Transcripts.Attach(r.Context(), command.AttachTranscriptCommand{
		SessionID: id,
		StudentID: body.StudentID,
		Content:   body.Content,
		Language:  body.Language,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, transcript)
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleCreateScore(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID   int64    `json:"session_id"`
		RubricID    int64    `json:"rubric_id"`
		StudentID   string   `json:"student_id"`
		EvaluatorID string   `json:"evaluator_id"`
		Value       *float64 `json:"value"`
		Comment     *string  `json:"comment"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := s.deps.Scores.Handle(r.Context(), command.RecordScoreCommand{
		Kind:        defense.ScoreCreated,
		SessionID:   body.SessionID,
		RubricID:    body.RubricID,
		StudentID:   body.StudentID,
		EvaluatorID: body.EvaluatorID,
		Value:       body.Value,
		Comment:     body.Comment,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result.Score)
}

func (s *Server) handleUpdateScore(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value   *float64 `json:"value"`
		Comment *string  `json:"comment"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := s.deps.Scores.Handle(r.Context(), command.RecordScoreCommand{
		Kind:    defense.ScoreUpdated,
		ScoreID: r.PathValue("id"),
		Value:   body.Value,
		Comment: body.Comment,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Score)
}

func (s *Server) handleDeleteScore(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Scores.Handle(r.Context(), command.RecordScoreCommand{
		Kind:    defense.ScoreDeleted,
		ScoreID: r.PathValue("id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Score)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN - BACKGROUND JOBS
// ══════════════════════════════════════════════════════════════════════════════

// jobView is the listing shape for one registered background job.
type jobView struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Schedule    string     `json:"schedule"`
	Enabled     bool       `json:"enabled"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     time.Time  `json:"next_run"`
	Runs        int64      `json:"runs"`
	Failures    int64      `json:"failures"`
	LastError   string     `json:"last_error,omitempty"`
}

// jobRunView reports the outcome of a manually triggered run.
type jobRunView struct {
	Job        string    `json:"job"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
	Succeeded  bool      `json:"succeeded"`
	Error      string    `json:"error,omitempty"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	infos := s.deps.Jobs.Jobs()

	views := make([]jobView, 0, len(infos))
	for _, info := range infos {
		v := jobView{
			Name:        info.Name,
			Description: info.Description,
			Schedule:    info.Schedule,
			Enabled:     info.Enabled,
			NextRun:     info.NextRun,
			Runs:        info.Runs,
			Failures:    info.Failures,
		}
		if !info.LastRun.IsZero() {
			last := info.LastRun
			v.LastRun = &last
		}
		if info.LastResult != nil && info.LastResult.Err != nil {
			v.LastError = info.LastResult.Err.Error()
		}
		views = append(views, v)
	}

	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	result, err := s.deps.Jobs.RunNow(r.Context(), name)
	if errors.Is(err, scheduler.ErrJobNotFound) {
		writeJSONError(w, http.StatusNotFound, "job_not_found", "No job registered under that name")
		return
	}

	// A job failure is a valid outcome of a manual run, reported in the
	// body rather than as a transport error.
	view := jobRunView{
		Job:        result.Job,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		DurationMS: result.Duration.Milliseconds(),
		Succeeded:  result.Succeeded(),
	}
	if result.Err != nil {
		view.Error = result.Err.Error()
	}

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleEnableJob(w http.ResponseWriter, r *http.Request) {
	s.setJobEnabled(w, r, true)
}

func (s *Server) handleDisableJob(w http.ResponseWriter, r *http.Request) {
	s.setJobEnabled(w, r, false)
}

func (s *Server) setJobEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	name := r.PathValue("name")

	var err error
	if enabled {
		err = s.deps.Jobs.Enable(name)
	} else {
		err = s.deps.Jobs.Disable(name)
	}

	if errors.Is(err, scheduler.ErrJobNotFound) {
		writeJSONError(w, http.StatusNotFound, "job_not_found", "No job registered under that name")
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    name,
		"enabled": enabled,
	})
}
