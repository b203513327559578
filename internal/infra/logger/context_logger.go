package logger

import (
	"context"
	"log/slog"
	"os"
)

type ContextKey string

const (
	// Ingestion context keys propagated through job contexts.
	// Named with a 'selfrag.' prefix following OTel semantic conventions.
	SourceKey   ContextKey = "selfrag.document.source"
	JobIDKey    ContextKey = "selfrag.job.id"
	PipelineKey ContextKey = "selfrag.pipeline.stage"
)

// ContextLogger decorates a base logger with identifiers carried in the
// context, so every record emitted while a job runs names the job and the
// document it touches.
type ContextLogger struct {
	logger      *slog.Logger
	serviceName string
}

// NewContextLogger wraps base. A nil base falls back to a JSON handler on
// stdout honoring LOG_LEVEL.
func NewContextLogger(serviceName string, base *slog.Logger) *ContextLogger {
	if base == nil {
		opts := &slog.HandlerOptions{
			Level: parseLevel(os.Getenv("LOG_LEVEL")),
		}
		base = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}

	return &ContextLogger{
		logger:      base,
		serviceName: serviceName,
	}
}

// WithContext returns a logger with context values extracted and added as fields
func (cl *ContextLogger) WithContext(ctx context.Context) *slog.Logger {
	logger := cl.logger.With("service", cl.serviceName)

	var fields []any

	if source := ctx.Value(SourceKey); source != nil {
		fields = append(fields, string(SourceKey), source)
	}
	if jobID := ctx.Value(JobIDKey); jobID != nil {
		fields = append(fields, string(JobIDKey), jobID)
	}
	if stage := ctx.Value(PipelineKey); stage != nil {
		fields = append(fields, string(PipelineKey), stage)
	}

	if len(fields) > 0 {
		logger = logger.With(fields...)
	}

	return logger
}

// Context helper functions

// WithSource adds the document source to context for observability
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, SourceKey, source)
}

// WithJobID adds the ingestion job ID to context for observability
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

// WithPipelineStage adds the pipeline stage name to context for observability
func WithPipelineStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, PipelineKey, stage)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN", "warning", "WARNING":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
