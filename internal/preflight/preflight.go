package preflight

import (
	"context"

	"mashup/internal/config"
)

// MinFreeBytes is the free space a job workspace needs before work starts.
const MinFreeBytes uint64 = 512 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the local checks for cfg: directory access, free space in
// the work and results directories, and configured credentials.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Results directory", cfg.Paths.ResultsDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, MinFreeBytes),
		CheckFreeSpace("Results directory space", cfg.Paths.ResultsDir, MinFreeBytes),
		CheckSearchCredentials(cfg),
	}
	if cfg.EmailEnabled() {
		results = append(results, Result{Name: "Email", Passed: true, Detail: "SMTP " + cfg.SMTP.Host})
	} else {
		results = append(results, Result{Name: "Email", Detail: "SMTP host not configured; jobs will complete without delivery"})
	}
	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		if status.Available {
			result.Detail = status.Path
		}
		results = append(results, result)
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
