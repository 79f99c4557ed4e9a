// Package httpapi is the web front end for mashup jobs.
//
// It serves the request form, per-job status pages that refresh until the job
// is terminal, a small JSON API for the same operations, and the finished
// artifact download. Handlers only submit jobs and read the status store;
// pipeline work never runs on a request goroutine.
package httpapi
