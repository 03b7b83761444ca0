package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defensehub/defensehub/internal/application/command"
	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/infrastructure/persistence/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSessionAutostart_StartsOverdueSessions(t *testing.T) {
	store := memory.NewStore()
	handler := command.NewSessionHandler(memory.NewCoordinator(store), testLogger())
	ctx := context.Background()

	overdue := &defense.DefenseSession{
		CouncilID: 1, GroupID: 1, Title: "Overdue",
		StartsAt: time.Now().Add(-10 * time.Minute),
	}
	require.NoError(t, store.Sessions().Create(ctx, overdue))

	upcoming := &defense.DefenseSession{
		CouncilID: 1, GroupID: 1, Title: "Upcoming",
		StartsAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Sessions().Create(ctx, upcoming))

	unscheduled := &defense.DefenseSession{CouncilID: 1, GroupID: 1, Title: "No start time"}
	require.NoError(t, store.Sessions().Create(ctx, unscheduled))

	job := NewSessionAutostartJob(store.Sessions(), handler, DefaultSessionAutostartConfig(), testLogger())
	require.NoError(t, job.Run(ctx))

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.SessionsChecked)
	assert.Equal(t, 1, stats.SessionsStarted)
	assert.Equal(t, 0, stats.Failures)

	started, err := store.Sessions().GetByID(ctx, overdue.ID, false)
	require.NoError(t, err)
	assert.Equal(t, defense.SessionInProgress, started.Status)

	untouched, err := store.Sessions().GetByID(ctx, upcoming.ID, false)
	require.NoError(t, err)
	assert.Equal(t, defense.SessionScheduled, untouched.Status)
}

func TestSessionAutostart_GracePeriodDefersStart(t *testing.T) {
	store := memory.NewStore()
	handler := command.NewSessionHandler(memory.NewCoordinator(store), testLogger())
	ctx := context.Background()

	justStarted := &defense.DefenseSession{
		CouncilID: 1, GroupID: 1, Title: "Just past start",
		StartsAt: time.Now().Add(-10 * time.Second),
	}
	require.NoError(t, store.Sessions().Create(ctx, justStarted))

	cfg := DefaultSessionAutostartConfig()
	cfg.GracePeriod = time.Minute

	job := NewSessionAutostartJob(store.Sessions(), handler, cfg, testLogger())
	require.NoError(t, job.Run(ctx))

	session, err := store.Sessions().GetByID(ctx, justStarted.ID, false)
	require.NoError(t, err)
	assert.Equal(t, defense.SessionScheduled, session.Status)
	assert.Equal(t, 0, job.LastRunStats().SessionsStarted)
}

func TestSessionAutostart_SkipsAlreadyRunningSessions(t *testing.T) {
	store := memory.NewStore()
	handler := command.NewSessionHandler(memory.NewCoordinator(store), testLogger())
	ctx := context.Background()

	running := &defense.DefenseSession{
		CouncilID: 1, GroupID: 1, Title: "Already running",
		StartsAt: time.Now().Add(-10 * time.Minute),
	}
	require.NoError(t, store.Sessions().Create(ctx, running))
	require.NoError(t, store.Sessions().UpdateStatus(ctx, running.ID, defense.SessionInProgress))

	job := NewSessionAutostartJob(store.Sessions(), handler, DefaultSessionAutostartConfig(), testLogger())
	require.NoError(t, job.Run(ctx))

	stats := job.LastRunStats()
	assert.Equal(t, 0, stats.SessionsStarted)
	assert.Equal(t, 0, stats.Failures)
}

func TestSessionAutostart_MaxSessionsPerRun(t *testing.T) {
	store := memory.NewStore()
	handler := command.NewSessionHandler(memory.NewCoordinator(store), testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s := &defense.DefenseSession{
			CouncilID: 1, GroupID: 1, Title: "Overdue",
			StartsAt: time.Now().Add(-time.Hour),
		}
		require.NoError(t, store.Sessions().Create(ctx, s))
	}

	cfg := DefaultSessionAutostartConfig()
	cfg.MaxSessionsPerRun = 2

	job := NewSessionAutostartJob(store.Sessions(), handler, cfg, testLogger())
	require.NoError(t, job.Run(ctx))

	assert.Equal(t, 2, job.LastRunStats().SessionsStarted)
}
