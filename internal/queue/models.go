package queue

import (
	"strings"
	"time"
)

// Phase is the job's current pipeline stage.
type Phase string

const (
	PhaseQueued    Phase = "queued"
	PhaseAcquiring Phase = "acquiring"
	PhaseTrimming  Phase = "trimming"
	PhaseMerging   Phase = "merging"
	PhaseEncoding  Phase = "encoding"
	PhasePackaging Phase = "packaging"
	PhaseNotifying Phase = "notifying"
	PhaseDone      Phase = "done"
	PhaseFailed    Phase = "failed"
	PhaseNotFound  Phase = "not_found"
)

// InterruptedReason is the detail recorded for jobs that were running when the
// service stopped.
const InterruptedReason = "interrupted by service restart"

// AbandonedReason is the detail recorded for command-line jobs whose process
// exited before the job finished.
const AbandonedReason = "command-line run ended before finishing"

// Origin names the process kind that owns a job while it runs.
type Origin string

const (
	// OriginService jobs belong to the background service; whichever
	// service instance starts next fails the ones left unfinished.
	OriginService Origin = "service"
	// OriginCLI jobs belong to a one-shot command that holds the job's run
	// lock until it returns.
	OriginCLI Origin = "cli"
)

// pipeline lists the forward phases in execution order.
var pipeline = []Phase{
	PhaseQueued,
	PhaseAcquiring,
	PhaseTrimming,
	PhaseMerging,
	PhaseEncoding,
	PhasePackaging,
	PhaseNotifying,
	PhaseDone,
}

var pipelineIndex = func() map[Phase]int {
	index := make(map[Phase]int, len(pipeline))
	for i, phase := range pipeline {
		index[phase] = i
	}
	return index
}()

// AllPhases returns every persisted phase in display order.
func AllPhases() []Phase {
	out := make([]Phase, 0, len(pipeline)+1)
	out = append(out, pipeline...)
	return append(out, PhaseFailed)
}

// ParsePhase normalizes a textual phase into a known Phase.
func ParsePhase(value string) (Phase, bool) {
	phase := Phase(strings.ToLower(strings.TrimSpace(value)))
	if phase == PhaseFailed {
		return phase, true
	}
	if _, ok := pipelineIndex[phase]; ok {
		return phase, true
	}
	return "", false
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Processing reports whether a background unit is actively working the job.
func (p Phase) Processing() bool {
	_, known := pipelineIndex[p]
	return known && p != PhaseQueued && p != PhaseDone
}

// CanTransition reports whether a job may move from one phase to another.
// Forward moves advance exactly one stage; any non-terminal phase may fail.
func CanTransition(from, to Phase) bool {
	if from.Terminal() {
		return false
	}
	if to == PhaseFailed {
		_, known := pipelineIndex[from]
		return known
	}
	fromIdx, okFrom := pipelineIndex[from]
	toIdx, okTo := pipelineIndex[to]
	return okFrom && okTo && toIdx == fromIdx+1
}

// predecessors returns the phases a record may hold before being written with
// phase to: the valid transition sources plus the same phase when it is not
// terminal (detail refreshes).
func predecessors(to Phase) []Phase {
	var out []Phase
	for _, from := range AllPhases() {
		if CanTransition(from, to) || (from == to && !to.Terminal()) {
			out = append(out, from)
		}
	}
	return out
}

// Job is the persisted record for one mashup request.
type Job struct {
	ID              string
	Query           string
	RequestedCount  int
	ClipSeconds     int
	Destination     string
	OutputKind      string
	Origin          Origin
	Phase           Phase
	Detail          string
	SourceCount     int
	SegmentCount    int
	DurationSeconds float64
	ArtifactPath    string
	BundlePath      string
	ErrorKind       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Status is the observable state of a job.
type Status struct {
	JobID    string `json:"job_id"`
	Phase    Phase  `json:"phase"`
	Detail   string `json:"detail"`
	Terminal bool   `json:"terminal"`
}

// Status projects the record onto its observable state.
func (j *Job) Status() Status {
	return Status{JobID: j.ID, Phase: j.Phase, Detail: j.Detail, Terminal: j.Phase.Terminal()}
}

// SetFailed records a terminal failure with a user-facing detail.
func (j *Job) SetFailed(kind, detail string) {
	j.Phase = PhaseFailed
	j.ErrorKind = kind
	j.Detail = detail
}

// NotFoundStatus is returned for unknown job identifiers.
func NotFoundStatus(id string) Status {
	return Status{JobID: id, Phase: PhaseNotFound, Detail: "job not found", Terminal: true}
}
