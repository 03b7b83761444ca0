// Package logger builds the structured slog loggers used across the
// service. It centralizes level parsing, output format selection, and the
// field helpers shared by the HTTP layer and the background jobs.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Format selects the handler encoding.
type Format string

const (
	// FormatJSON emits one JSON object per line. Production default.
	FormatJSON Format = "json"
	// FormatText emits key=value pairs. Easier on the eyes in development.
	FormatText Format = "text"
)

// Options configures the logger.
type Options struct {
	Output    io.Writer
	Level     slog.Level
	Format    Format
	AddSource bool
}

// DefaultOptions returns sensible defaults for the logger.
func DefaultOptions() Options {
	return Options{
		Output: os.Stdout,
		Level:  slog.LevelInfo,
		Format: FormatJSON,
	}
}

// ParseLevel parses a string into a slog.Level. Unknown values map to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger with the given options.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     opts.Level,
		AddSource: opts.AddSource,
	}

	var handler slog.Handler
	switch opts.Format {
	case FormatText:
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	default:
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	}

	return slog.New(handler)
}

// Default creates a logger with default options.
func Default() *slog.Logger {
	return New(DefaultOptions())
}

// Setup builds a logger and installs it as the process default so that
// components falling back to slog.Default share the same handler.
func Setup(opts Options) *slog.Logger {
	l := New(opts)
	slog.SetDefault(l)
	return l
}

// RequestIDKey is the common attribute key for request tracing.
const RequestIDKey = "request_id"

// Domain field helpers shared by handlers and jobs.
func SessionID(id int64) slog.Attr        { return slog.Int64("session_id", id) }
func ScoreID(id string) slog.Attr         { return slog.String("score_id", id) }
func StudentID(id string) slog.Attr       { return slog.String("student_id", id) }
func EvaluatorID(id string) slog.Attr     { return slog.String("evaluator_id", id) }
func RubricID(id int64) slog.Attr         { return slog.Int64("rubric_id", id) }
func Component(name string) slog.Attr     { return slog.String("component", name) }
func Operation(name string) slog.Attr     { return slog.String("operation", name) }
func Latency(d time.Duration) slog.Attr   { return slog.Duration("latency", d) }
func RequestID(id string) slog.Attr       { return slog.String(RequestIDKey, id) }
func Err(err error) slog.Attr             { return slog.Any("error", err) }
