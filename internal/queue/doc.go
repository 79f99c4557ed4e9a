// Package queue persists mashup jobs in SQLite and exposes the status record
// the presentation layer polls.
//
// The Store manages the database connection, schema initialization, stats
// queries, interrupted-job recovery, and phase transitions. Every write is a
// single-statement whole-record replacement guarded by the allowed predecessor
// phases, so concurrent readers never see a torn record and a phase that was
// left is never revisited.
//
// Job records are retained for the life of the database; artifact cleanup is
// an operational concern. Schema changes bump the user_version stamp in
// schema.go; users clear the database to adopt the new schema.
package queue
