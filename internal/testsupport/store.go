package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"mashup/internal/config"
	"mashup/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob inserts a queued service job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, query string) *queue.Job {
	t.Helper()
	return NewJobWithOrigin(t, store, query, queue.OriginService)
}

// NewJobWithOrigin inserts a queued job owned by origin.
func NewJobWithOrigin(t testing.TB, store *queue.Store, query string, origin queue.Origin) *queue.Job {
	t.Helper()

	job := &queue.Job{
		ID:             uuid.NewString(),
		Query:          query,
		RequestedCount: 11,
		ClipSeconds:    21,
		Destination:    "user@example.com",
		OutputKind:     "audio",
		Origin:         origin,
	}
	if err := store.Create(context.Background(), job); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}

// Advance walks a job forward through each phase up to and including target.
func Advance(t testing.TB, store *queue.Store, job *queue.Job, target queue.Phase) {
	t.Helper()

	for _, phase := range queue.AllPhases() {
		if job.Phase == target {
			return
		}
		if !queue.CanTransition(job.Phase, phase) || phase == queue.PhaseFailed {
			continue
		}
		job.Phase = phase
		if err := store.Update(context.Background(), job); err != nil {
			t.Fatalf("advance to %s: %v", phase, err)
		}
	}
	if job.Phase != target {
		t.Fatalf("could not advance job to %s (stuck at %s)", target, job.Phase)
	}
}
