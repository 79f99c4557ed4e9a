package workflow

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mashup/internal/audio"
	"mashup/internal/fileutil"
	"mashup/internal/logging"
	"mashup/internal/notifications"
	"mashup/internal/queue"
	"mashup/internal/services"
	"mashup/internal/textutil"
)

// process walks job through every stage. Stage failures end the job as
// failed and are returned; the workspace is removed on every path.
func (r *Runner) process(ctx context.Context, job *queue.Job, outputPath string) (err error) {
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, r.logger)

	workspace := filepath.Join(r.cfg.Paths.WorkDir, job.ID)
	defer func() {
		if removeErr := os.RemoveAll(workspace); removeErr != nil {
			logging.WarnWithContext(logger, "workspace cleanup failed", "workspace_cleanup_failed",
				logging.String("workspace", workspace),
				logging.Error(removeErr),
				logging.String(logging.FieldImpact, "temporary files remain on disk"),
				logging.String(logging.FieldErrorHint, "remove the directory manually"),
			)
		}
	}()
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("pipeline panic", logging.Any("panic", recovered))
			err = r.fail(ctx, job, services.Wrap(nil, string(job.Phase), "panic", "", fmt.Errorf("panic: %v", recovered)))
		}
	}()

	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return r.fail(ctx, job, services.Wrap(services.ErrTransient, "queued", "workspace", "could not create job workspace", err))
	}

	// Acquiring
	if err := r.advance(ctx, job, queue.PhaseAcquiring, fmt.Sprintf("Searching for %d videos of %s", job.RequestedCount, job.Query)); err != nil {
		return r.fail(ctx, job, err)
	}
	acquired, err := r.stages.Acquirer.Acquire(stageContext(ctx, queue.PhaseAcquiring), job.Query, job.RequestedCount, filepath.Join(workspace, "sources"))
	if err != nil {
		acquired.Release()
		return r.fail(ctx, job, err)
	}
	defer acquired.Release()
	job.SourceCount = len(acquired.Handles)

	var notes []string
	if warning := acquired.Warning(); warning != "" {
		notes = append(notes, warning)
	}

	// Trimming
	if err := r.advance(ctx, job, queue.PhaseTrimming, fmt.Sprintf("Trimming %d-second clips from %d sources", job.ClipSeconds, job.SourceCount)); err != nil {
		return r.fail(ctx, job, err)
	}
	segments := r.stages.Trimmer.TrimAll(stageContext(ctx, queue.PhaseTrimming), acquired.Handles, job.ClipSeconds)
	defer audio.ReleaseAll(segments)
	acquired.Release()
	job.SegmentCount = len(segments)

	// Merging
	if err := r.advance(ctx, job, queue.PhaseMerging, fmt.Sprintf("Merging %d clips", job.SegmentCount)); err != nil {
		return r.fail(ctx, job, err)
	}
	track, err := r.stages.Concatenator.Concatenate(stageContext(ctx, queue.PhaseMerging), segments, filepath.Join(workspace, "merged.wav"))
	if err != nil {
		return r.fail(ctx, job, err)
	}
	defer func() { _ = track.Release() }()
	audio.ReleaseAll(segments)
	job.DurationSeconds = track.Duration

	// Encoding
	kind := r.outputKind(job)
	if err := r.advance(ctx, job, queue.PhaseEncoding, fmt.Sprintf("Encoding %s of %s", pluralSeconds(track.Duration), kind)); err != nil {
		return r.fail(ctx, job, err)
	}
	name := textutil.ArtifactName(job.Query, kind.Extension())
	encoded := filepath.Join(workspace, name)
	if err := r.stages.Encoder.Encode(stageContext(ctx, queue.PhaseEncoding), track, kind, encoded); err != nil {
		return r.fail(ctx, job, err)
	}
	_ = track.Release()

	// Packaging
	if err := r.advance(ctx, job, queue.PhasePackaging, "Packaging the mashup"); err != nil {
		return r.fail(ctx, job, err)
	}
	if err := r.relocate(job, encoded, name, outputPath); err != nil {
		return r.fail(ctx, job, err)
	}

	// Notifying
	if err := r.advance(ctx, job, queue.PhaseNotifying, notifyingDetail(job)); err != nil {
		return r.fail(ctx, job, err)
	}
	if note := r.deliver(stageContext(ctx, queue.PhaseNotifying), job); note != "" {
		notes = append(notes, note)
	}

	return r.complete(ctx, job, notes)
}

// relocate moves the encoded file into the results area, bundles it, and
// copies it to outputPath when the caller asked for one.
func (r *Runner) relocate(job *queue.Job, encoded, name, outputPath string) error {
	resultDir := filepath.Join(r.cfg.Paths.ResultsDir, job.ID)
	artifact := filepath.Join(resultDir, name)
	if err := fileutil.Move(encoded, artifact); err != nil {
		return services.Wrap(services.ErrTransient, "packaging", "relocate", "could not store the artifact", err)
	}
	job.ArtifactPath = artifact

	bundlePath := strings.TrimSuffix(artifact, filepath.Ext(artifact)) + ".zip"
	bundle, err := r.stages.Packager.Package(artifact, bundlePath)
	if err != nil {
		return err
	}
	job.BundlePath = bundle.Path

	if strings.TrimSpace(outputPath) != "" {
		if err := fileutil.CopyFile(artifact, outputPath); err != nil {
			return services.Wrap(services.ErrEncode, "packaging", "write output", "could not write the output file", err)
		}
	}
	return nil
}

func notifyingDetail(job *queue.Job) string {
	if job.Destination == "" {
		return "Finishing up"
	}
	return fmt.Sprintf("Emailing the mashup to %s", job.Destination)
}

// deliver sends the bundle and returns a note for the final detail when
// delivery did not happen. Delivery never fails the job.
func (r *Runner) deliver(ctx context.Context, job *queue.Job) string {
	if job.Destination == "" || r.stages.Notifier == nil {
		return ""
	}
	err := r.stages.Notifier.Deliver(ctx, notifications.Delivery{
		To:          job.Destination,
		Query:       job.Query,
		Count:       job.RequestedCount,
		ClipSeconds: job.ClipSeconds,
		BundlePath:  job.BundlePath,
	})
	if err == nil {
		logging.WithContext(ctx, r.logger).Info("mashup delivered", logging.String("destination", job.Destination))
		return ""
	}
	details := services.Details(err)
	logging.WarnWithContext(logging.WithContext(ctx, r.logger), "delivery failed", "delivery_failed",
		logging.String("destination", job.Destination),
		logging.String("error_kind", details.Kind),
		logging.Error(err),
		logging.String(logging.FieldImpact, "the mashup is still available for download"),
		logging.String(logging.FieldErrorHint, "check the [smtp] settings"),
	)
	return fmt.Sprintf("email to %s not sent: %s", job.Destination, details.Message)
}

func (r *Runner) complete(ctx context.Context, job *queue.Job, notes []string) error {
	detail := fmt.Sprintf("Mashup ready: %d clips, %s", job.SegmentCount, pluralSeconds(job.DurationSeconds))
	if len(notes) > 0 {
		detail = detail + "; " + strings.Join(notes, "; ")
	}
	if err := r.advance(ctx, job, queue.PhaseDone, detail); err != nil {
		return r.fail(ctx, job, err)
	}
	logging.WithContext(ctx, r.logger).Info("job completed",
		logging.String("artifact", job.ArtifactPath),
		logging.Int("segments", job.SegmentCount),
		logging.Float64("duration_seconds", job.DurationSeconds),
	)
	r.alert(ctx, notifications.EventJobCompleted, job)
	return nil
}

// advance persists phase and detail together before the stage runs.
func (r *Runner) advance(ctx context.Context, job *queue.Job, phase queue.Phase, detail string) error {
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrTransient, string(job.Phase), "advance", queue.InterruptedReason, err)
	}
	previous, previousDetail := job.Phase, job.Detail
	job.Phase = phase
	job.Detail = detail
	if err := r.store.Update(context.WithoutCancel(ctx), job); err != nil {
		job.Phase, job.Detail = previous, previousDetail
		return services.Wrap(services.ErrTransient, string(phase), "persist status", "", err)
	}
	logging.WithContext(stageContext(ctx, phase), r.logger).Info("phase changed",
		logging.String("phase", string(phase)),
		logging.String("detail", detail),
	)
	return nil
}

// fail records stageErr as the terminal state and returns it.
func (r *Runner) fail(ctx context.Context, job *queue.Job, stageErr error) error {
	details := services.Details(stageErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = fmt.Sprintf("%s failed", job.Phase)
	}
	failedIn := job.Phase
	job.SetFailed(details.Kind, message)

	logger := logging.WithContext(stageContext(ctx, failedIn), r.logger)
	attrs := []logging.Attr{
		logging.String("failed_phase", string(failedIn)),
		logging.String("error_kind", details.Kind),
		logging.String("error_operation", details.Operation),
		logging.String("error_message", message),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else {
		attrs = append(attrs, logging.Error(stageErr))
	}
	logging.ErrorWithContext(logger, "job failed", "job_failed", attrs...)

	persistCtx := context.WithoutCancel(ctx)
	if err := r.store.Update(persistCtx, job); err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
		// Callers see the record as stored, e.g. a job another process
		// already ended.
		if stored, getErr := r.store.Get(persistCtx, job.ID); getErr == nil && stored != nil {
			*job = *stored
		}
	}
	r.alert(ctx, notifications.EventJobFailed, job)
	return stageErr
}

func (r *Runner) alert(ctx context.Context, event notifications.Event, job *queue.Job) {
	if r.stages.Alerts == nil {
		return
	}
	err := r.stages.Alerts.Publish(context.WithoutCancel(ctx), event, notifications.Payload{
		"jobID":    job.ID,
		"query":    job.Query,
		"detail":   job.Detail,
		"artifact": job.ArtifactPath,
	})
	if err != nil {
		logger := logging.WithContext(ctx, r.logger)
		if isShutdown(err) {
			logger.Debug("daemon shutting down, could not send alert")
			return
		}
		logger.Debug("alert notification failed", logging.Error(err))
	}
}

func stageContext(ctx context.Context, phase queue.Phase) context.Context {
	return services.WithStage(ctx, string(phase))
}

// pluralSeconds renders a duration like "21 seconds" or "12.5 seconds".
func pluralSeconds(value float64) string {
	rounded := math.Round(value*10) / 10
	text := strconv.FormatFloat(rounded, 'f', -1, 64)
	if rounded == 1 {
		return text + " second"
	}
	return text + " seconds"
}
