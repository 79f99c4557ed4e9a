// Package preflight provides readiness checks for the directories, binaries,
// and remote services the mashup pipeline depends on.
//
// The service runs RunAll at startup and logs failures; the CLI "mashup check"
// command prints every result. Network checks (YouTube search, SMTP) are only
// run when requested because they spend quota or open connections.
package preflight
