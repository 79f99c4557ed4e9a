// Package daemon coordinates the long-running mashup service.
//
// It wires configuration, job storage, the workflow runner, and the HTTP
// front end into a single lifecycle with flock-based locking to prevent
// multiple instances sharing one state directory. On start it fails jobs a
// previous process left behind; on stop it closes the listener first so no
// new work arrives, then waits for background jobs to settle.
package daemon
