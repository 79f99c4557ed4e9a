// Package workflow runs mashup jobs through the pipeline state machine.
//
// A Runner validates incoming requests, records each job as queued, and
// dispatches it onto a bounded worker pool. Each job then walks
// acquiring, trimming, merging, encoding, packaging, and notifying in strict
// order, persisting phase and detail together before every stage so pollers
// never see a torn or stale record. Acquisition, merge, and encode failures
// end the job as failed; delivery failures are recorded in the detail and the
// job still completes.
//
// Every job owns a workspace under work_dir that is removed on every exit
// path. The artifact and its zip bundle are moved into results_dir first.
package workflow
