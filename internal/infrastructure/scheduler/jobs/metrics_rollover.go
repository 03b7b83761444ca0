package jobs

import (
	"context"
	"log/slog"

	"github.com/defensehub/defensehub/internal/infrastructure/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS ROLLOVER JOB
// ══════════════════════════════════════════════════════════════════════════════

// MetricsRolloverJob snapshots the event bus counters into the log and resets
// them, so the hourly figures on /metrics describe the current window instead
// of the whole process lifetime.
type MetricsRolloverJob struct {
	metrics *messaging.EventBusMetrics
	logger  *slog.Logger
}

// NewMetricsRolloverJob creates a new MetricsRolloverJob.
func NewMetricsRolloverJob(metrics *messaging.EventBusMetrics, logger *slog.Logger) *MetricsRolloverJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricsRolloverJob{metrics: metrics, logger: logger}
}

// Name returns the unique name of the job.
func (j *MetricsRolloverJob) Name() string {
	return "metrics_rollover"
}

// Description returns a human-readable description of the job.
func (j *MetricsRolloverJob) Description() string {
	return "Logs and resets event bus counters for the next metrics window"
}

// Run executes the job.
func (j *MetricsRolloverJob) Run(ctx context.Context) error {
	if j.metrics == nil {
		return nil
	}

	snapshot := j.metrics.Snapshot()
	j.logger.Info("event bus metrics window closed",
		"published_total", snapshot.TotalPublished,
		"handler_executions", snapshot.TotalHandlerExecs,
		"success_rate", snapshot.HandlerSuccessRate,
		"avg_handler_duration", snapshot.AverageHandlerDuration.String(),
	)

	j.metrics.Reset()
	return nil
}
