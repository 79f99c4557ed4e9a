// Package ffmpeg runs ffmpeg invocations for the trimming, merging, and
// encoding stages through a swappable command runner.
package ffmpeg

import (
	"context"
	"fmt"
	"strings"

	"mashup/internal/services"
)

// Tool binds an ffmpeg binary to a command runner.
type Tool struct {
	Binary string
	Runner services.CommandRunner
}

// New returns a Tool using os/exec.
func New(binary string) *Tool {
	return &Tool{Binary: binary, Runner: services.ExecRunner{}}
}

// Run executes ffmpeg with quiet, non-interactive defaults followed by args.
// Failures carry the last stderr line rather than the full log.
func (t *Tool) Run(ctx context.Context, args ...string) error {
	binary := strings.TrimSpace(t.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	runner := t.Runner
	if runner == nil {
		runner = services.ExecRunner{}
	}
	full := append([]string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}, args...)
	result, err := runner.Run(ctx, binary, full...)
	if err != nil {
		if tail := result.StderrTail(); tail != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, tail)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

// Seconds formats a duration in seconds for ffmpeg time arguments.
func Seconds(value float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", value), "0"), ".")
}
