package queue

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, query, requested_count, clip_seconds, destination, output_kind, origin, phase, detail, source_count, segment_count, duration_seconds, artifact_path, bundle_path, error_kind, created_at, updated_at"

type jobRow struct {
	ID              string          `db:"id"`
	Query           string          `db:"query"`
	RequestedCount  int             `db:"requested_count"`
	ClipSeconds     int             `db:"clip_seconds"`
	Destination     sql.NullString  `db:"destination"`
	OutputKind      string          `db:"output_kind"`
	Origin          string          `db:"origin"`
	Phase           string          `db:"phase"`
	Detail          sql.NullString  `db:"detail"`
	SourceCount     int             `db:"source_count"`
	SegmentCount    int             `db:"segment_count"`
	DurationSeconds sql.NullFloat64 `db:"duration_seconds"`
	ArtifactPath    sql.NullString  `db:"artifact_path"`
	BundlePath      sql.NullString  `db:"bundle_path"`
	ErrorKind       sql.NullString  `db:"error_kind"`
	CreatedAt       string          `db:"created_at"`
	UpdatedAt       string          `db:"updated_at"`
}

func (r jobRow) job() *Job {
	job := &Job{
		ID:              r.ID,
		Query:           r.Query,
		RequestedCount:  r.RequestedCount,
		ClipSeconds:     r.ClipSeconds,
		Destination:     r.Destination.String,
		OutputKind:      r.OutputKind,
		Origin:          Origin(r.Origin),
		Phase:           Phase(r.Phase),
		Detail:          r.Detail.String,
		SourceCount:     r.SourceCount,
		SegmentCount:    r.SegmentCount,
		DurationSeconds: r.DurationSeconds.Float64,
		ArtifactPath:    r.ArtifactPath.String,
		BundlePath:      r.BundlePath.String,
		ErrorKind:       r.ErrorKind.String,
	}
	if created, err := parseTimeString(r.CreatedAt); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(r.UpdatedAt); err == nil {
		job.UpdatedAt = updated
	}
	return job
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
