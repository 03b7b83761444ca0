package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles with gradual rollout and
// per-user overrides. Rollout assignment hashes the user identifier so
// an evaluator keeps the same variant across sessions.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID  string // evaluator or student identifier
	IsAdmin bool
}

// Predefined feature flag names.
const (
	// === Real-time features ===
	FeatureRealtimeSessionStream   = "realtime.session_stream"   // per-session score stream
	FeatureRealtimeStudentStream   = "realtime.student_stream"   // per-student score stream
	FeatureRealtimeEvaluatorStream = "realtime.evaluator_stream" // per-evaluator score stream
	FeatureRealtimeGlobalStream    = "realtime.global_stream"    // firehose of all score events

	// === Scoreboard features ===
	FeatureScoreboardCache    = "scoreboard.cache"    // redis-backed scoreboard reads
	FeatureScoreboardWeighted = "scoreboard.weighted" // rubric-weighted standings

	// === Lifecycle features ===
	FeatureLifecycleRestore         = "lifecycle.restore"          // expose restore over the API
	FeatureLifecycleIncludeArchived = "lifecycle.include_archived" // allow include_deleted reads

	// === Experimental Features ===
	FeatureExperimentalTranscripts = "experimental.transcripts" // transcript attachments
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	on := func(name, desc string) *Feature {
		return &Feature{Name: name, Description: desc, Enabled: true, RolloutPercent: 100}
	}

	ff.features[FeatureRealtimeSessionStream] = on(FeatureRealtimeSessionStream, "Per-session score stream")
	ff.features[FeatureRealtimeStudentStream] = on(FeatureRealtimeStudentStream, "Per-student score stream")
	ff.features[FeatureRealtimeEvaluatorStream] = on(FeatureRealtimeEvaluatorStream, "Per-evaluator score stream")
	ff.features[FeatureRealtimeGlobalStream] = on(FeatureRealtimeGlobalStream, "Global score firehose")

	ff.features[FeatureScoreboardCache] = on(FeatureScoreboardCache, "Cache scoreboard reads in Redis")
	ff.features[FeatureScoreboardWeighted] = on(FeatureScoreboardWeighted, "Rubric-weighted standings")

	ff.features[FeatureLifecycleRestore] = on(FeatureLifecycleRestore, "Restore archived entities over the API")
	ff.features[FeatureLifecycleIncludeArchived] = on(FeatureLifecycleIncludeArchived, "Allow include_deleted reads")

	// Experimental features ship disabled.
	ff.features[FeatureExperimentalTranscripts] = &Feature{
		Name:        FeatureExperimentalTranscripts,
		Description: "Transcript attachments for sessions",
	}
}

// loadFromEnvironment reads FEATURE_* environment overrides.
// Example: FEATURE_REALTIME_GLOBAL_STREAM=false
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)

		if val := os.Getenv(envKey); val != "" {
			if enabled, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = enabled
			}
		}

		if val := os.Getenv(envKey + "_ROLLOUT"); val != "" {
			if percent, err := strconv.Atoi(val); err == nil && percent >= 0 && percent <= 100 {
				feature.RolloutPercent = percent
			}
		}
	}
}

// featureNameToEnvKey converts "realtime.session_stream" to
// "FEATURE_REALTIME_SESSION_STREAM".
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, exists := ff.features[featureName]
	if !exists {
		return false
	}

	// User override wins
	if ctx != nil && ctx.UserID != "" {
		if overrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	// Admins see everything that is not hard-disabled
	if ctx != nil && ctx.IsAdmin && feature.Enabled {
		return true
	}

	if !feature.Enabled {
		return false
	}

	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	if feature.RolloutPercent >= 100 {
		return true
	}
	if feature.RolloutPercent <= 0 {
		return false
	}

	if ctx == nil || ctx.UserID == "" {
		return false
	}
	return ff.isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
}

// isInRollout deterministically assigns a user to the rollout bucket.
func (ff *FeatureFlags) isInRollout(userID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(userID))
	h.Write([]byte(featureName))
	bucket := h.Sum32() % 100
	return int(bucket) < percent
}

// SetUserOverride forces a feature on or off for a specific user.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.userOverrides[userID] == nil {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent adjusts the rollout percentage of a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	if percent < 0 || percent > 100 {
		return &FeatureFlagError{Feature: featureName, Message: "rollout percent must be 0-100"}
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, exists := ff.features[featureName]
	if !exists {
		return &FeatureFlagError{Feature: featureName, Message: "unknown feature"}
	}

	feature.RolloutPercent = percent
	return nil
}

// EnableFeature turns a feature on.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.setEnabled(featureName, true)
}

// DisableFeature turns a feature off.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.setEnabled(featureName, false)
}

func (ff *FeatureFlags) setEnabled(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, exists := ff.features[featureName]
	if !exists {
		return &FeatureFlagError{Feature: featureName, Message: "unknown feature"}
	}

	feature.Enabled = enabled
	return nil
}

// GetAllFeatures returns a snapshot of all features.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for name, feature := range ff.features {
		copied := *feature
		result[name] = &copied
	}
	return result
}

// FeatureFlagError describes a feature flag operation failure.
type FeatureFlagError struct {
	Feature string
	Message string
}

func (e *FeatureFlagError) Error() string {
	return "feature flag " + e.Feature + ": " + e.Message
}
