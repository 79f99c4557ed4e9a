package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mashup/internal/config"
	"mashup/internal/queue"
	"mashup/internal/testsupport"
)

type cliResult struct {
	stdout string
	stderr string
	err    error
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// writeTestConfig writes a config file pointing at cfg's temp directories.
func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	content := fmt.Sprintf(`[paths]
work_dir = %q
results_dir = %q
state_dir = %q
api_bind = "127.0.0.1:0"

[search]
youtube_api_key = %q

[logging]
format = "json"
level = "error"
`, cfg.Paths.WorkDir, cfg.Paths.ResultsDir, cfg.Paths.StateDir, cfg.Search.YouTubeAPIKey)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunRejectsInvalidInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)
	outDir := filepath.Join(testsupport.BaseDir(cfg), "out")

	cases := []struct {
		name string
		args []string
		want string
	}{
		{name: "too few videos", args: []string{"Sharry Maan", "5", "25", filepath.Join(outDir, "a.mp3")}, want: "NumberOfVideos must be greater than 10."},
		{name: "short clips", args: []string{"Sharry Maan", "11", "20", filepath.Join(outDir, "a.mp3")}, want: "AudioDuration must be greater than 20 seconds."},
		{name: "count not a number", args: []string{"Sharry Maan", "ten", "25", filepath.Join(outDir, "a.mp3")}, want: "NumberOfVideos must be an integer."},
		{name: "duration not a number", args: []string{"Sharry Maan", "11", "2.5", filepath.Join(outDir, "a.mp3")}, want: "AudioDuration must be an integer."},
		{name: "bad extension", args: []string{"Sharry Maan", "11", "25", filepath.Join(outDir, "a.wav")}, want: "OutputFileName must end with .mp3 or .mp4."},
		{name: "blank singer", args: []string{"   ", "11", "25", filepath.Join(outDir, "a.mp3")}, want: "Singer name must not be empty."},
		{name: "missing argument", args: []string{"Sharry Maan", "11", "25"}, want: "expected 4 arguments, got 3."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := runCLI(t, append([]string{"--config", configPath}, tc.args...)...)
			if !errors.Is(res.err, errReported) {
				t.Fatalf("expected reported error, got %v", res.err)
			}
			if !strings.Contains(res.stderr, "Input error: "+tc.want) {
				t.Fatalf("stderr %q does not contain %q", res.stderr, tc.want)
			}
			if !strings.Contains(res.stderr, "Usage: "+usageLine) {
				t.Fatalf("expected usage line, got %q", res.stderr)
			}
			if res.stdout != "" {
				t.Fatalf("expected no stdout, got %q", res.stdout)
			}
		})
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Fatalf("input errors must not create the output directory, stat err=%v", err)
	}
}

func TestRunWithoutSearchKeyIsExecutionError(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "")
	cfg := testsupport.NewConfig(t, testsupport.WithYouTubeKey(""))
	configPath := writeTestConfig(t, cfg)
	output := filepath.Join(testsupport.BaseDir(cfg), "out", "nested", "mashup.mp4")

	res := runCLI(t, "--config", configPath, "Sharry Maan", "11", "25", output)
	if !errors.Is(res.err, errReported) {
		t.Fatalf("expected reported error, got %v", res.err)
	}
	if !strings.HasPrefix(res.stderr, "Execution error: ") || !strings.Contains(res.stderr, "youtube_api_key") {
		t.Fatalf("unexpected stderr: %q", res.stderr)
	}
	if strings.Contains(res.stderr, "Usage:") {
		t.Fatalf("execution errors should not print usage: %q", res.stderr)
	}
	if info, err := os.Stat(filepath.Dir(output)); err != nil || !info.IsDir() {
		t.Fatalf("expected output directory to be created, err=%v", err)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatalf("expected no output file, err=%v", err)
	}
}

func TestNoArgumentsPrintsHelp(t *testing.T) {
	res := runCLI(t)
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if !strings.Contains(res.stdout, usageLine) {
		t.Fatalf("expected usage in help, got %q", res.stdout)
	}
}

func seedJobs(t *testing.T, cfg *config.Config) (*queue.Job, *queue.Job) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	running := testsupport.NewJob(t, store, "Sharry Maan")
	testsupport.Advance(t, store, running, queue.PhaseTrimming)
	done := testsupport.NewJob(t, store, "Diljit Dosanjh")
	testsupport.Advance(t, store, done, queue.PhaseDone)
	return running, done
}

func TestStatusCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)
	running, _ := seedJobs(t, cfg)

	res := runCLI(t, "--config", configPath, "status", running.ID)
	if res.err != nil {
		t.Fatalf("status failed: %v (%s)", res.err, res.stderr)
	}
	for _, want := range []string{running.ID, "trimming", "Sharry Maan", "user@example.com"} {
		if !strings.Contains(res.stdout, want) {
			t.Fatalf("status output missing %q:\n%s", want, res.stdout)
		}
	}
	if strings.Contains(res.stdout, "╭") {
		t.Fatalf("expected plain output off a terminal:\n%s", res.stdout)
	}

	res = runCLI(t, "--config", configPath, "status", running.ID, "--json")
	if res.err != nil || !strings.Contains(res.stdout, `"phase": "trimming"`) {
		t.Fatalf("unexpected json status: %v\n%s", res.err, res.stdout)
	}

	res = runCLI(t, "--config", configPath, "status", "missing-id")
	if res.err == nil || !strings.Contains(res.err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", res.err)
	}
}

func TestListCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)
	running, done := seedJobs(t, cfg)

	res := runCLI(t, "--config", configPath, "list")
	if res.err != nil {
		t.Fatalf("list failed: %v", res.err)
	}
	if !strings.Contains(res.stdout, running.ID) || !strings.Contains(res.stdout, done.ID) {
		t.Fatalf("list output missing jobs:\n%s", res.stdout)
	}

	res = runCLI(t, "--config", configPath, "list", "--phase", "done")
	if res.err != nil {
		t.Fatalf("list --phase failed: %v", res.err)
	}
	if strings.Contains(res.stdout, running.ID) || !strings.Contains(res.stdout, done.ID) {
		t.Fatalf("phase filter not applied:\n%s", res.stdout)
	}

	res = runCLI(t, "--config", configPath, "list", "--phase", "bogus")
	if res.err == nil || !strings.Contains(res.err.Error(), "unknown phase") {
		t.Fatalf("expected unknown phase error, got %v", res.err)
	}
}

func TestListCommandEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	res := runCLI(t, "--config", configPath, "list")
	if res.err != nil || strings.TrimSpace(res.stdout) != "No jobs" {
		t.Fatalf("unexpected empty list output: %v %q", res.err, res.stdout)
	}
}

func TestCheckCommandReportsFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Search.YouTubeAPIKey = ""
	t.Setenv("YOUTUBE_API_KEY", "")
	configPath := writeTestConfig(t, cfg)

	res := runCLI(t, "--config", configPath, "check")
	if res.err == nil || !strings.Contains(res.err.Error(), "checks failed") {
		t.Fatalf("expected failed checks, got %v", res.err)
	}
	if !strings.Contains(res.stdout, "YouTube API key") || !strings.Contains(res.stdout, "FAIL") {
		t.Fatalf("unexpected check output:\n%s", res.stdout)
	}
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	res := runCLI(t, "config", "init", "--path", target)
	if res.err != nil {
		t.Fatalf("config init failed: %v", res.err)
	}
	if !strings.Contains(res.stdout, target) {
		t.Fatalf("expected target in output, got %q", res.stdout)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file: %v", err)
	}

	res = runCLI(t, "config", "init", "--path", target)
	if res.err == nil || !strings.Contains(res.err.Error(), "already exists") {
		t.Fatalf("expected exists error, got %v", res.err)
	}

	res = runCLI(t, "config", "init", "--path", target, "--overwrite")
	if res.err != nil {
		t.Fatalf("overwrite failed: %v", res.err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	res := runCLI(t, "--config", configPath, "config", "validate")
	if res.err != nil {
		t.Fatalf("validate failed: %v", res.err)
	}
	if !strings.Contains(res.stdout, "Config path: "+configPath) || !strings.Contains(res.stdout, "Configuration valid") {
		t.Fatalf("unexpected validate output:\n%s", res.stdout)
	}
	if !strings.Contains(res.stdout, "smtp.host is not set") {
		t.Fatalf("expected smtp warning:\n%s", res.stdout)
	}
}

func TestRenderTablePlain(t *testing.T) {
	got := renderTable([]string{"A", "B"}, [][]string{{"1", "2"}, {"3"}}, nil, false)
	if got != "A\tB\n1\t2\n3" {
		t.Fatalf("unexpected plain table %q", got)
	}
	if pretty := renderTable([]string{"A"}, [][]string{{"1"}}, []columnAlignment{alignRight}, true); !strings.Contains(pretty, "╭") {
		t.Fatalf("expected rounded table, got %q", pretty)
	}
}
