package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mashup/internal/queue"
)

type jobView struct {
	ID              string      `json:"id"`
	Phase           queue.Phase `json:"phase"`
	Detail          string      `json:"detail"`
	Query           string      `json:"query"`
	RequestedCount  int         `json:"requested_count"`
	ClipSeconds     int         `json:"clip_seconds"`
	Destination     string      `json:"destination,omitempty"`
	OutputKind      string      `json:"output_kind"`
	SourceCount     int         `json:"source_count"`
	SegmentCount    int         `json:"segment_count"`
	DurationSeconds float64     `json:"duration_seconds"`
	ArtifactPath    string      `json:"artifact_path,omitempty"`
	BundlePath      string      `json:"bundle_path,omitempty"`
	ErrorKind       string      `json:"error_kind,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func viewOf(job *queue.Job) jobView {
	return jobView{
		ID:              job.ID,
		Phase:           job.Phase,
		Detail:          job.Detail,
		Query:           job.Query,
		RequestedCount:  job.RequestedCount,
		ClipSeconds:     job.ClipSeconds,
		Destination:     job.Destination,
		OutputKind:      job.OutputKind,
		SourceCount:     job.SourceCount,
		SegmentCount:    job.SegmentCount,
		DurationSeconds: job.DurationSeconds,
		ArtifactPath:    job.ArtifactPath,
		BundlePath:      job.BundlePath,
		ErrorKind:       job.ErrorKind,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show one job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withStore(func(store *queue.Store) error {
				job, err := store.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job == nil {
					if asJSON {
						_ = writeJSON(cmd, queue.NotFoundStatus(id))
					}
					return fmt.Errorf("job %s not found", id)
				}
				if asJSON {
					return writeJSON(cmd, viewOf(job))
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Field", "Value"},
					jobRows(job),
					nil,
					isTerminal(cmd),
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the record as JSON")
	return cmd
}

func jobRows(job *queue.Job) [][]string {
	rows := [][]string{
		{"Job", job.ID},
		{"Phase", string(job.Phase)},
		{"Detail", job.Detail},
		{"Singer", job.Query},
		{"Videos requested", strconv.Itoa(job.RequestedCount)},
		{"Clip seconds", strconv.Itoa(job.ClipSeconds)},
		{"Output", job.OutputKind},
	}
	if job.Destination != "" {
		rows = append(rows, []string{"Email", job.Destination})
	}
	if job.SourceCount > 0 {
		rows = append(rows,
			[]string{"Sources", strconv.Itoa(job.SourceCount)},
			[]string{"Clips", strconv.Itoa(job.SegmentCount)},
			[]string{"Duration", strconv.FormatFloat(job.DurationSeconds, 'f', -1, 64) + "s"},
		)
	}
	if job.ArtifactPath != "" {
		rows = append(rows, []string{"Artifact", job.ArtifactPath})
	}
	if job.BundlePath != "" {
		rows = append(rows, []string{"Bundle", job.BundlePath})
	}
	if job.ErrorKind != "" {
		rows = append(rows, []string{"Error kind", job.ErrorKind})
	}
	return append(rows,
		[]string{"Created", formatTime(job.CreatedAt)},
		[]string{"Updated", formatTime(job.UpdatedAt)},
	)
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var phaseFlags []string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			phases, err := parsePhases(phaseFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				jobs, err := store.List(cmd.Context(), phases...)
				if err != nil {
					return err
				}
				if asJSON {
					views := make([]jobView, 0, len(jobs))
					for _, job := range jobs {
						views = append(views, viewOf(job))
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.ID,
						string(job.Phase),
						job.Query,
						job.OutputKind,
						formatTime(job.UpdatedAt),
						job.Detail,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Phase", "Singer", "Output", "Updated", "Detail"},
					rows,
					nil,
					isTerminal(cmd),
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&phaseFlags, "phase", "p", nil, "Only show jobs in these phases (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the jobs as JSON")
	return cmd
}

func parsePhases(values []string) ([]queue.Phase, error) {
	phases := make([]queue.Phase, 0, len(values))
	for _, value := range values {
		phase, ok := queue.ParsePhase(value)
		if !ok {
			names := make([]string, 0, len(queue.AllPhases()))
			for _, p := range queue.AllPhases() {
				names = append(names, string(p))
			}
			return nil, fmt.Errorf("unknown phase %q (valid: %s)", value, strings.Join(names, ", "))
		}
		phases = append(phases, phase)
	}
	return phases, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
