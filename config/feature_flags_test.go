package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureRealtimeGlobalStream, nil))
	assert.True(t, ff.IsEnabled(FeatureScoreboardCache, nil))
	assert.True(t, ff.IsEnabled(FeatureLifecycleRestore, nil))

	// Experimental features ship disabled.
	assert.False(t, ff.IsEnabled(FeatureExperimentalTranscripts, nil))

	// Unknown flags are off.
	assert.False(t, ff.IsEnabled("nope.unknown", nil))
}

func TestFeatureFlags_EnvironmentOverrides(t *testing.T) {
	t.Setenv("FEATURE_REALTIME_GLOBAL_STREAM", "false")
	t.Setenv("FEATURE_SCOREBOARD_CACHE_ROLLOUT", "0")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureRealtimeGlobalStream, nil))
	assert.False(t, ff.IsEnabled(FeatureScoreboardCache, &FeatureContext{UserID: "E1"}))
}

func TestFeatureFlags_RolloutIsDeterministic(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureScoreboardWeighted, 50))

	ctx := &FeatureContext{UserID: "E1"}
	first := ff.IsEnabled(FeatureScoreboardWeighted, ctx)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureScoreboardWeighted, ctx))
	}

	// Anonymous users never join a partial rollout.
	assert.False(t, ff.IsEnabled(FeatureScoreboardWeighted, nil))
	assert.False(t, ff.IsEnabled(FeatureScoreboardWeighted, &FeatureContext{}))
}

func TestFeatureFlags_RolloutBoundaries(t *testing.T) {
	ff := LoadFeatureFlags()
	ctx := &FeatureContext{UserID: "E1"}

	require.NoError(t, ff.SetRolloutPercent(FeatureScoreboardWeighted, 100))
	assert.True(t, ff.IsEnabled(FeatureScoreboardWeighted, ctx))

	require.NoError(t, ff.SetRolloutPercent(FeatureScoreboardWeighted, 0))
	assert.False(t, ff.IsEnabled(FeatureScoreboardWeighted, ctx))

	assert.Error(t, ff.SetRolloutPercent(FeatureScoreboardWeighted, 101))
	assert.Error(t, ff.SetRolloutPercent("nope.unknown", 10))
}

func TestFeatureFlags_UserOverridesWin(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureRealtimeStudentStream))

	ctx := &FeatureContext{UserID: "E1"}
	assert.False(t, ff.IsEnabled(FeatureRealtimeStudentStream, ctx))

	ff.SetUserOverride("E1", FeatureRealtimeStudentStream, true)
	assert.True(t, ff.IsEnabled(FeatureRealtimeStudentStream, ctx))
	assert.False(t, ff.IsEnabled(FeatureRealtimeStudentStream, &FeatureContext{UserID: "E2"}))

	ff.ClearUserOverrides("E1")
	assert.False(t, ff.IsEnabled(FeatureRealtimeStudentStream, ctx))
}

func TestFeatureFlags_AdminBypassesRollout(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureScoreboardWeighted, 0))

	admin := &FeatureContext{UserID: "A1", IsAdmin: true}
	assert.True(t, ff.IsEnabled(FeatureScoreboardWeighted, admin))

	// A hard-disabled feature stays off even for admins.
	require.NoError(t, ff.DisableFeature(FeatureScoreboardWeighted))
	assert.False(t, ff.IsEnabled(FeatureScoreboardWeighted, admin))
}

func TestFeatureFlags_TimeWindow(t *testing.T) {
	ff := LoadFeatureFlags()

	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	features := ff.GetAllFeatures()
	require.Contains(t, features, FeatureRealtimeGlobalStream)

	// Snapshot copies do not leak back into the live flags.
	features[FeatureRealtimeGlobalStream].Enabled = false
	assert.True(t, ff.IsEnabled(FeatureRealtimeGlobalStream, nil))

	ff.mu.Lock()
	ff.features[FeatureRealtimeGlobalStream].EnabledFrom = &future
	ff.mu.Unlock()
	assert.False(t, ff.IsEnabled(FeatureRealtimeGlobalStream, nil))

	ff.mu.Lock()
	ff.features[FeatureRealtimeGlobalStream].EnabledFrom = &past
	ff.features[FeatureRealtimeGlobalStream].EnabledUntil = &past
	ff.mu.Unlock()
	assert.False(t, ff.IsEnabled(FeatureRealtimeGlobalStream, nil))
}
