// Package config loads, normalizes, and validates mashup configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// YOUTUBE_API_KEY and SMTP_PASSWORD. The Config type centralizes every knob the
// CLI, the job runner, and the HTTP service need so they can be constructed
// once at process start and passed around as a read-only value.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
