package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"mashup/internal/config"
	"mashup/internal/encoding"
	"mashup/internal/logging"
	"mashup/internal/queue"
	"mashup/internal/services"
)

// JobStore is the persistence surface the runner needs.
type JobStore interface {
	Create(ctx context.Context, job *queue.Job) error
	Update(ctx context.Context, job *queue.Job) error
	Get(ctx context.Context, id string) (*queue.Job, error)
	List(ctx context.Context, phases ...queue.Phase) ([]*queue.Job, error)
	FailInterrupted(ctx context.Context, reason string) (int64, error)
}

// Runner owns job intake and the background worker pool.
type Runner struct {
	cfg    *config.Config
	store  JobStore
	stages Stages
	logger *slog.Logger
	policy Policy

	baseCtx context.Context
	slots   *semaphore.Weighted
	wg      sync.WaitGroup

	newID func() (string, error)
}

// NewRunner constructs a Runner. Background jobs run on ctx; cancelling it
// stops in-flight external tools and leaves those jobs failed.
func NewRunner(ctx context.Context, cfg *config.Config, store JobStore, stages Stages, logger *slog.Logger) *Runner {
	if ctx == nil {
		ctx = context.Background()
	}
	limit := int64(cfg.Workflow.MaxConcurrentJobs)
	if limit <= 0 {
		limit = 1
	}
	return &Runner{
		cfg:     cfg,
		store:   store,
		stages:  stages,
		logger:  logging.NewComponentLogger(logger, "workflow"),
		policy:  PolicyFromConfig(cfg),
		baseCtx: ctx,
		slots:   semaphore.NewWeighted(limit),
		newID:   newJobID,
	}
}

func newJobID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Submit validates req, records it as queued, and dispatches it onto the
// worker pool. It returns as soon as the queued record exists.
func (r *Runner) Submit(ctx context.Context, req Request) (queue.Status, error) {
	req.Normalize()
	policy := r.policy
	policy.RequireDestination = true
	if err := req.Validate(policy); err != nil {
		return queue.Status{}, err
	}

	id, err := r.newID()
	if err != nil {
		return queue.Status{}, fmt.Errorf("generate job id: %w", err)
	}
	job, err := r.create(ctx, id, req, queue.OriginService)
	if err != nil {
		return queue.Status{}, err
	}
	status := job.Status()

	r.wg.Add(1)
	go r.dispatch(job)
	return status, nil
}

// Run executes req synchronously and copies the artifact to outputPath. The
// returned job reflects the terminal record; a failed job also returns its
// pipeline error. The job's run lock is held until Run returns so a service
// starting meanwhile leaves the job alone.
func (r *Runner) Run(ctx context.Context, req Request, outputPath string) (*queue.Job, error) {
	req.Normalize()
	if err := req.Validate(r.policy); err != nil {
		return nil, err
	}
	id, err := r.newID()
	if err != nil {
		return nil, fmt.Errorf("generate job id: %w", err)
	}
	lock, ok, err := tryRunLock(r.cfg.RunLockPath(id))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "queued", "run lock", "could not lock the job for this run", err)
	}
	if !ok {
		return nil, fmt.Errorf("run lock for job %s is already held", id)
	}
	defer func() {
		if err := lock.release(); err != nil {
			r.logger.Warn("failed to release run lock", logging.String(logging.FieldJobID, id), logging.Error(err))
		}
	}()

	job, err := r.create(ctx, id, req, queue.OriginCLI)
	if err != nil {
		return nil, err
	}
	err = r.process(ctx, job, outputPath)
	return job, err
}

// Wait blocks until every dispatched job has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Recover fails jobs left in a non-terminal phase by a previous process:
// every unfinished service job, and each command-line job whose run lock is
// no longer held.
func (r *Runner) Recover(ctx context.Context) (int64, error) {
	count, err := r.store.FailInterrupted(ctx, queue.InterruptedReason)
	if err != nil {
		return 0, err
	}
	abandoned, err := r.failAbandonedRuns(ctx)
	count += abandoned
	if err != nil {
		return count, err
	}
	if count > 0 {
		logging.WarnWithContext(r.logger, "interrupted jobs marked failed", "jobs_recovered",
			logging.Int64("count", count),
			logging.String(logging.FieldImpact, "those jobs will not resume"),
			logging.String(logging.FieldErrorHint, "resubmit the affected requests"),
		)
	}
	return count, nil
}

func (r *Runner) failAbandonedRuns(ctx context.Context) (int64, error) {
	var open []queue.Phase
	for _, phase := range queue.AllPhases() {
		if !phase.Terminal() {
			open = append(open, phase)
		}
	}
	jobs, err := r.store.List(ctx, open...)
	if err != nil {
		return 0, err
	}

	var count int64
	for _, job := range jobs {
		if job.Origin != queue.OriginCLI {
			continue
		}
		lock, ok, err := tryRunLock(r.cfg.RunLockPath(job.ID))
		if err != nil {
			r.logger.Warn("run lock unavailable", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
			continue
		}
		if !ok {
			continue
		}
		job.SetFailed("interrupted", queue.AbandonedReason)
		updateErr := r.store.Update(ctx, job)
		if releaseErr := lock.release(); releaseErr != nil {
			r.logger.Warn("failed to release run lock", logging.String(logging.FieldJobID, job.ID), logging.Error(releaseErr))
		}
		switch {
		case updateErr == nil:
			count++
		case errors.Is(updateErr, queue.ErrInvalidTransition):
			// The run finished between listing and locking.
		default:
			return count, updateErr
		}
	}
	return count, nil
}

func (r *Runner) create(ctx context.Context, id string, req Request, origin queue.Origin) (*queue.Job, error) {
	job := &queue.Job{
		ID:             id,
		Query:          req.Query,
		RequestedCount: req.Count,
		ClipSeconds:    req.ClipSeconds,
		Destination:    req.Destination,
		OutputKind:     req.OutputKind.String(),
		Origin:         origin,
		Detail:         "Waiting for a worker",
	}
	if err := r.store.Create(ctx, job); err != nil {
		return nil, err
	}
	logging.WithContext(services.WithJobID(ctx, id), r.logger).Info("job queued",
		logging.String("query", job.Query),
		logging.Int("requested_count", job.RequestedCount),
		logging.Int("clip_seconds", job.ClipSeconds),
		logging.String("output_kind", job.OutputKind),
		logging.String("origin", string(job.Origin)),
	)
	return job, nil
}

func (r *Runner) dispatch(job *queue.Job) {
	defer r.wg.Done()
	ctx := services.WithJobID(r.baseCtx, job.ID)
	if err := r.slots.Acquire(ctx, 1); err != nil {
		r.fail(ctx, job, services.Wrap(services.ErrTransient, "queued", "dispatch", queue.InterruptedReason, err))
		return
	}
	defer r.slots.Release(1)
	_ = r.process(ctx, job, "")
}

func (r *Runner) outputKind(job *queue.Job) encoding.OutputKind {
	kind, err := encoding.ParseKind(job.OutputKind)
	if err != nil {
		return encoding.KindAudio
	}
	return kind
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
