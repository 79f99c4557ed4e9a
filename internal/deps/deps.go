package deps

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"mashup/internal/config"
)

// Requirement names an external binary the pipeline shells out to.
type Requirement struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
}

// Status is a Requirement after PATH lookup.
type Status struct {
	Requirement
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Requirements lists the binaries configured for cfg.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{
		{Name: "yt-dlp", Command: cfg.Search.YtdlpBinary, Description: "Downloads source audio"},
		{Name: "FFmpeg", Command: cfg.Media.FFmpegBinary, Description: "Trims, merges, and encodes clips"},
		{Name: "FFprobe", Command: cfg.Media.FFprobeBinary, Description: "Measures source and output durations"},
	}
}

// CheckBinaries resolves each requirement against PATH.
func CheckBinaries(requirements []Requirement) []Status {
	out := make([]Status, len(requirements))
	for i, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		out[i] = lookup(req)
	}
	return out
}

func lookup(req Requirement) Status {
	s := Status{Requirement: req}
	if req.Command == "" {
		s.Detail = "command not configured"
		return s
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		s.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return s
	}
	s.Available, s.Path = true, path
	return s
}

// Missing joins every unavailable required dependency into one error, or
// returns nil when all are present.
func Missing(statuses []Status) error {
	var errs []error
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			errs = append(errs, fmt.Errorf("%s: %s", s.Name, s.Detail))
		}
	}
	return errors.Join(errs...)
}
