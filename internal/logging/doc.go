// Package logging assembles structured slog loggers and formatting helpers used
// across the mashup CLI and service.
//
// It owns the console and JSON handlers, picks a format automatically from the
// terminal state when asked to, and exposes context-aware helpers so pipeline
// code tags log lines with job IDs, stages, and correlation IDs. The service
// variant tees every record into a JSON log file under the state directory.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// records with the same shape as the rest of the system.
package logging
