// Package acquire resolves a singer name to an ordered set of locally
// materialized, probed media files.
//
// Acquirer wraps a Provider (search plus per-item fetch) and tolerates
// per-item failures: a candidate that cannot be downloaded or probed becomes
// an ItemError in Result.Skipped and the batch carries on. Only an empty
// result is fatal. Handles keep discovery order regardless of which download
// finished first.
package acquire
