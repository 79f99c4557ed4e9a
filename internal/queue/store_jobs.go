package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Create inserts a new job in the queued phase. The job's ID must be set.
func (s *Store) Create(ctx context.Context, job *Job) error {
	if job == nil || strings.TrimSpace(job.ID) == "" {
		return errors.New("create job: id is required")
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	job.Phase = PhaseQueued
	if job.Origin == "" {
		job.Origin = OriginService
	}

	_, err := s.execWithRetry(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Query,
		job.RequestedCount,
		job.ClipSeconds,
		nullableString(job.Destination),
		job.OutputKind,
		job.Origin,
		job.Phase,
		nullableString(job.Detail),
		job.SourceCount,
		job.SegmentCount,
		job.DurationSeconds,
		nullableString(job.ArtifactPath),
		nullableString(job.BundlePath),
		nullableString(job.ErrorKind),
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get fetches a job by identifier. It returns nil, nil when the job is unknown.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	var row jobRow
	err := s.db.GetContext(ensureContext(ctx), &row, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return row.job(), nil
}

// Update replaces the mutable part of a job record in one statement. The write
// only lands when the stored phase is a valid predecessor of job.Phase.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("update job: nil job")
	}
	allowed := predecessors(job.Phase)
	if len(allowed) == 0 {
		return fmt.Errorf("%w: nothing may move to %q", ErrInvalidTransition, job.Phase)
	}
	job.UpdatedAt = time.Now().UTC()

	query, args, err := sqlx.In(
		`UPDATE jobs SET phase = ?, detail = ?, source_count = ?, segment_count = ?,
            duration_seconds = ?, artifact_path = ?, bundle_path = ?, error_kind = ?, updated_at = ?
        WHERE id = ? AND phase IN (?)`,
		job.Phase,
		nullableString(job.Detail),
		job.SourceCount,
		job.SegmentCount,
		job.DurationSeconds,
		nullableString(job.ArtifactPath),
		nullableString(job.BundlePath),
		nullableString(job.ErrorKind),
		formatTime(job.UpdatedAt),
		job.ID,
		allowed,
	)
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	affected, err := s.execWithRetry(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if affected > 0 {
		return nil
	}

	current, err := s.Get(ctx, job.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Phase, job.Phase)
}

// Status returns the observable state of a job. Unknown identifiers yield a
// not_found status rather than an error.
func (s *Store) Status(ctx context.Context, id string) (Status, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return Status{}, err
	}
	if job == nil {
		return NotFoundStatus(id), nil
	}
	return job.Status(), nil
}

// List returns jobs newest first, optionally filtered by phase.
func (s *Store) List(ctx context.Context, phases ...Phase) ([]*Job, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if len(phases) > 0 {
		inQuery, inArgs, err := sqlx.In(query+` WHERE phase IN (?)`, phases)
		if err != nil {
			return nil, fmt.Errorf("build list: %w", err)
		}
		query = s.db.Rebind(inQuery)
		args = inArgs
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	jobs := make([]*Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, row.job())
	}
	return jobs, nil
}

// Stats returns a count of jobs grouped by phase.
func (s *Store) Stats(ctx context.Context) (map[Phase]int, error) {
	var rows []struct {
		Phase string `db:"phase"`
		Count int    `db:"count"`
	}
	if err := s.db.SelectContext(ensureContext(ctx), &rows, `SELECT phase, COUNT(1) AS count FROM jobs GROUP BY phase`); err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	stats := make(map[Phase]int, len(rows))
	for _, row := range rows {
		stats[Phase(row.Phase)] = row.Count
	}
	return stats, nil
}

// FailInterrupted marks every non-terminal service job as failed with the
// supplied reason. It runs at service start, when no background unit owns
// those jobs. Command-line jobs are left to their own process.
func (s *Store) FailInterrupted(ctx context.Context, reason string) (int64, error) {
	if strings.TrimSpace(reason) == "" {
		reason = InterruptedReason
	}
	affected, err := s.execWithRetry(ctx,
		`UPDATE jobs SET phase = ?, detail = ?, error_kind = ?, updated_at = ?
        WHERE origin = ? AND phase NOT IN (?, ?)`,
		PhaseFailed,
		reason,
		"interrupted",
		formatTime(time.Now()),
		OriginService,
		PhaseDone,
		PhaseFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return affected, nil
}
