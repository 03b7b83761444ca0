package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defensehub/defensehub/internal/infrastructure/scheduler"
)

// stubAdminJob counts executions and optionally fails.
type stubAdminJob struct {
	name string
	err  error
	runs atomic.Int64
}

func (j *stubAdminJob) Name() string        { return j.name }
func (j *stubAdminJob) Description() string { return "stub job for tests" }

func (j *stubAdminJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

// envelope mirrors the JSONResponse shape for decoding in tests.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func newJobsTestServer(t *testing.T, jobs ...*stubAdminJob) *Server {
	t.Helper()

	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := scheduler.NewScheduler(schedCfg)

	for _, job := range jobs {
		require.NoError(t, sched.Register(job, scheduler.NewIntervalSchedule(time.Hour)))
	}

	cfg := DefaultConfig()
	cfg.EnableCORS = false
	cfg.RateLimitPerMinute = 0

	return NewServer(cfg, Dependencies{
		Jobs:   sched,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func doRequest(s *Server, method, path string) (*httptest.ResponseRecorder, envelope) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.router.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestAdminJobs_ListIsSortedByName(t *testing.T) {
	s := newJobsTestServer(t,
		&stubAdminJob{name: "rollover"},
		&stubAdminJob{name: "autostart"},
	)

	rec, env := doRequest(s, http.MethodGet, "/admin/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	var views []jobView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 2)
	assert.Equal(t, "autostart", views[0].Name)
	assert.Equal(t, "rollover", views[1].Name)
	assert.True(t, views[0].Enabled)
	assert.Nil(t, views[0].LastRun)
}

func TestAdminJobs_RunExecutesTheJob(t *testing.T) {
	job := &stubAdminJob{name: "rollover"}
	s := newJobsTestServer(t, job)

	rec, env := doRequest(s, http.MethodPost, "/admin/jobs/rollover/run")
	require.Equal(t, http.StatusOK, rec.Code)

	var view jobRunView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "rollover", view.Job)
	assert.True(t, view.Succeeded)
	assert.Empty(t, view.Error)
	assert.Equal(t, int64(1), job.runs.Load())
}

func TestAdminJobs_RunReportsJobFailureInBody(t *testing.T) {
	job := &stubAdminJob{name: "rollover", err: errors.New("cache unavailable")}
	s := newJobsTestServer(t, job)

	rec, env := doRequest(s, http.MethodPost, "/admin/jobs/rollover/run")
	require.Equal(t, http.StatusOK, rec.Code)

	var view jobRunView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.False(t, view.Succeeded)
	assert.Equal(t, "cache unavailable", view.Error)
}

func TestAdminJobs_UnknownJobIsNotFound(t *testing.T) {
	s := newJobsTestServer(t, &stubAdminJob{name: "rollover"})

	for _, path := range []string{
		"/admin/jobs/ghost/run",
		"/admin/jobs/ghost/enable",
		"/admin/jobs/ghost/disable",
	} {
		rec, env := doRequest(s, http.MethodPost, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		require.NotNil(t, env.Error, path)
		assert.Equal(t, "job_not_found", env.Error.Code, path)
	}
}

func TestAdminJobs_EnableDisableRoundTrip(t *testing.T) {
	s := newJobsTestServer(t, &stubAdminJob{name: "rollover"})

	rec, _ := doRequest(s, http.MethodPost, "/admin/jobs/rollover/disable")
	require.Equal(t, http.StatusOK, rec.Code)

	_, env := doRequest(s, http.MethodGet, "/admin/jobs")
	var views []jobView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 1)
	assert.False(t, views[0].Enabled)

	rec, _ = doRequest(s, http.MethodPost, "/admin/jobs/rollover/enable")
	require.Equal(t, http.StatusOK, rec.Code)

	_, env = doRequest(s, http.MethodGet, "/admin/jobs")
	views = nil
	require.NoError(t, json.Unmarshal(env.Data, &views))
	assert.True(t, views[0].Enabled)
}

func TestAdminJobs_RoutesHiddenWithoutScheduler(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableCORS = false
	cfg.RateLimitPerMinute = 0

	s := NewServer(cfg, Dependencies{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	rec, _ := doRequest(s, http.MethodGet, "/admin/jobs")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
