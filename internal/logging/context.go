package logging

import (
	"context"
	"log/slog"

	"mashup/internal/services"
)

// Standard attribute keys shared by every component.
const (
	FieldComponent     = "component"
	FieldJobID         = "job_id"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"

	// FieldEventType, FieldErrorHint and FieldImpact annotate warnings and
	// errors so operators can filter them and know what to do next.
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
)

// contextKeys maps log keys to the services accessor that reads them.
var contextKeys = []struct {
	field string
	read  func(context.Context) (string, bool)
}{
	{FieldJobID, services.JobIDFromContext},
	{FieldStage, services.StageFromContext},
	{FieldCorrelationID, services.RequestIDFromContext},
}

// WithContext returns logger with the job, stage and request identifiers
// carried by ctx attached.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var args []any
	for _, key := range contextKeys {
		if value, ok := key.read(ctx); ok {
			args = append(args, slog.String(key.field, value))
		}
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}
