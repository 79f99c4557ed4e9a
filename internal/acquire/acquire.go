package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"mashup/internal/logging"
	"mashup/internal/services"
)

// Candidate is one search hit that may be fetched.
type Candidate struct {
	ID    string
	Title string
	URL   string
}

// Provider resolves queries to candidates and materializes them locally.
type Provider interface {
	Search(ctx context.Context, query string, count int) ([]Candidate, error)
	Fetch(ctx context.Context, candidate Candidate, dir string) (string, error)
}

// MediaHandle is a locally materialized source file plus its derived audio
// duration. It belongs to the job workspace that created it.
type MediaHandle struct {
	ID            string
	Title         string
	Path          string
	HasAudio      bool
	AudioDuration float64
}

// Release deletes the underlying file.
func (h MediaHandle) Release() error {
	if h.Path == "" {
		return nil
	}
	if err := os.Remove(h.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ItemError records why a single candidate was skipped.
type ItemError struct {
	Candidate Candidate
	Step      string
	Err       error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Step, e.Candidate.ID, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// Result is the outcome of one acquisition.
type Result struct {
	Handles   []MediaHandle
	Skipped   []ItemError
	Requested int
	Found     int
}

// Partial reports whether fewer sources than requested were acquired.
func (r Result) Partial() bool {
	return len(r.Handles) < r.Requested
}

// Warning returns the partial-acquisition note, or "" when the request was met.
func (r Result) Warning() string {
	if !r.Partial() {
		return ""
	}
	return fmt.Sprintf("only %d of %d requested sources acquired", len(r.Handles), r.Requested)
}

// Release deletes every acquired file.
func (r Result) Release() {
	for _, handle := range r.Handles {
		_ = handle.Release()
	}
}

// Options configures an Acquirer.
type Options struct {
	FFprobeBinary string
	Parallelism   int
	Logger        *slog.Logger
}

// Acquirer wraps a Provider with per-item failure isolation.
type Acquirer struct {
	provider    Provider
	ffprobe     string
	parallelism int
	logger      *slog.Logger
}

// New constructs an Acquirer.
func New(provider Provider, opts Options) *Acquirer {
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Acquirer{
		provider:    provider,
		ffprobe:     opts.FFprobeBinary,
		parallelism: parallelism,
		logger:      logging.NewComponentLogger(opts.Logger, "acquire"),
	}
}

type outcome struct {
	handle *MediaHandle
	err    *ItemError
}

// Acquire searches for query, then fetches and probes up to count candidates
// into dir. It fails with services.ErrAcquisition only when nothing usable was
// materialized.
func (a *Acquirer) Acquire(ctx context.Context, query string, count int, dir string) (Result, error) {
	logger := logging.WithContext(ctx, a.logger)
	result := Result{Requested: count}

	candidates, err := a.provider.Search(ctx, query, count)
	if err != nil && len(candidates) == 0 {
		return result, services.Wrap(services.ErrAcquisition, "acquiring", "search",
			fmt.Sprintf("search for %q failed", query), err)
	}
	if len(candidates) > count {
		candidates = candidates[:count]
	}
	result.Found = len(candidates)
	logger.Info("search complete",
		logging.String("query", query),
		logging.Int("requested", count),
		logging.Int("found", len(candidates)),
	)
	if len(candidates) == 0 {
		return result, services.Wrap(services.ErrAcquisition, "acquiring", "search",
			fmt.Sprintf("no videos found for %q", query), nil)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return result, services.Wrap(services.ErrAcquisition, "acquiring", "prepare", "could not create download directory", err)
	}

	outcomes := make([]outcome, len(candidates))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.parallelism)
	for i, candidate := range candidates {
		group.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = outcome{err: &ItemError{Candidate: candidate, Step: "fetch", Err: fmt.Errorf("panic: %v", r)}}
				}
			}()
			outcomes[i] = a.materialize(groupCtx, candidate, dir)
			return nil
		})
	}
	_ = group.Wait()

	for _, out := range outcomes {
		if out.err != nil {
			result.Skipped = append(result.Skipped, *out.err)
			logging.WarnWithContext(logger, "source skipped", "acquire_item_failed",
				logging.String("video_id", out.err.Candidate.ID),
				logging.String("step", out.err.Step),
				logging.Error(out.err.Err),
				logging.String(logging.FieldImpact, "mashup will use fewer clips"),
				logging.String(logging.FieldErrorHint, "check yt-dlp and ffprobe output for this video"),
			)
			continue
		}
		result.Handles = append(result.Handles, *out.handle)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.Release()
		result.Handles = nil
		return result, services.Wrap(services.ErrAcquisition, "acquiring", "fetch", "acquisition was cancelled", ctxErr)
	}
	if len(result.Handles) == 0 {
		return result, services.Wrap(services.ErrAcquisition, "acquiring", "fetch",
			fmt.Sprintf("none of the %d videos found for %q could be downloaded", len(candidates), query), nil)
	}
	if result.Partial() {
		logging.WarnWithContext(logger, "partial acquisition", "acquire_partial",
			logging.Int("acquired", len(result.Handles)),
			logging.Int("requested", count),
			logging.String(logging.FieldImpact, "mashup continues with fewer clips"),
			logging.String(logging.FieldErrorHint, "request fewer videos or try a more popular query"),
		)
	}
	return result, nil
}

func (a *Acquirer) materialize(ctx context.Context, candidate Candidate, dir string) outcome {
	path, err := a.provider.Fetch(ctx, candidate, dir)
	if err != nil {
		return outcome{err: &ItemError{Candidate: candidate, Step: "fetch", Err: err}}
	}
	probe, err := inspectMedia(ctx, a.ffprobe, path)
	if err != nil {
		_ = os.Remove(path)
		return outcome{err: &ItemError{Candidate: candidate, Step: "probe", Err: err}}
	}
	return outcome{handle: &MediaHandle{
		ID:            candidate.ID,
		Title:         candidate.Title,
		Path:          path,
		HasAudio:      probe.HasAudio(),
		AudioDuration: probe.AudioDurationSeconds(),
	}}
}
