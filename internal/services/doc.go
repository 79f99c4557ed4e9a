// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the taxonomy the job status record exposes (validation,
//     acquisition, empty input, encode, delivery).
//   - Details, which recovers the human-readable message for a failed job
//     without leaking tool output or stack traces.
//
// Integrations with external services (YouTube search, yt-dlp) live in
// subpackages.
package services
