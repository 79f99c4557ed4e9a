// Package notifications delivers finished mashups and operator alerts.
//
// Email delivery goes through go-mail over SMTP and carries the zipped
// artifact as an attachment. When no SMTP host is configured a disabled
// notifier is returned and every delivery reports ErrDelivery so the workflow
// can record why nothing was sent.
//
// Operator alerts publish job completions and failures to ntfy using the
// topic URL in config.toml, degrading to a no-op when no topic is set. Alerts
// are best-effort; callers log and move on.
package notifications
