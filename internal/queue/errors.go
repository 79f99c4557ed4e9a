package queue

import "errors"

var (
	// ErrJobNotFound is returned by writes that target an unknown job.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when a write would revisit or skip a phase.
	ErrInvalidTransition = errors.New("invalid phase transition")
	// ErrDuplicateJob is returned when a job identifier is already taken.
	ErrDuplicateJob = errors.New("duplicate job id")
)
