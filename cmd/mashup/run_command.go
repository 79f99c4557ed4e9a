package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"mashup/internal/config"
	"mashup/internal/encoding"
	"mashup/internal/queue"
	"mashup/internal/services"
	"mashup/internal/workflow"
)

// runMashup executes one job in the foreground and reports the outcome the
// way the one-shot command always has: a single line on stdout or stderr.
func runMashup(cmd *cobra.Command, cmdCtx *commandContext, args []string) error {
	req, outputPath, err := parseRunArgs(args)
	if err != nil {
		return inputError(cmd, err)
	}
	req.Normalize()
	if err := req.Validate(workflow.Policy{}); err != nil {
		return inputError(cmd, err)
	}

	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return executionError(cmd, err)
	}
	// Configured upper bounds.
	if err := req.Validate(workflow.PolicyFromConfig(cfg)); err != nil {
		return inputError(cmd, err)
	}

	outputPath, err = prepareOutputPath(outputPath)
	if err != nil {
		return executionError(cmd, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job, err := runJob(ctx, cfg, cmdCtx, req, outputPath)
	if err != nil {
		if job != nil && job.Phase == queue.PhaseFailed && job.Detail != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Execution error: %s\n", job.Detail)
			return errReported
		}
		return executionError(cmd, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Mashup created successfully: %s\n", outputPath)
	return nil
}

func runJob(ctx context.Context, cfg *config.Config, cmdCtx *commandContext, req workflow.Request, outputPath string) (*queue.Job, error) {
	logger := cmdCtx.logger()
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	stages, err := workflow.NewStages(cfg, logger)
	if err != nil {
		return nil, err
	}
	runner := workflow.NewRunner(ctx, cfg, store, stages, logger)
	return runner.Run(ctx, req, outputPath)
}

// parseRunArgs turns the four positional arguments into a request. Range
// checks are left to Request.Validate.
func parseRunArgs(args []string) (workflow.Request, string, error) {
	if len(args) != 4 {
		return workflow.Request{}, "", invalidInput(fmt.Sprintf("expected 4 arguments, got %d.", len(args)))
	}
	count, err := strconv.Atoi(strings.TrimSpace(args[1]))
	if err != nil {
		return workflow.Request{}, "", invalidInput("NumberOfVideos must be an integer.")
	}
	duration, err := strconv.Atoi(strings.TrimSpace(args[2]))
	if err != nil {
		return workflow.Request{}, "", invalidInput("AudioDuration must be an integer.")
	}
	outputPath := strings.TrimSpace(args[3])
	kind, err := encoding.KindFromPath(outputPath)
	if err != nil {
		return workflow.Request{}, "", err
	}
	return workflow.Request{
		Query:       args[0],
		Count:       count,
		ClipSeconds: duration,
		OutputKind:  kind,
	}, outputPath, nil
}

func prepareOutputPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve output path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return abs, nil
}

func invalidInput(message string) error {
	return services.Wrap(services.ErrValidation, "intake", "parse arguments", message, nil)
}

func inputError(cmd *cobra.Command, err error) error {
	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "Input error: %s\n", userMessage(err))
	fmt.Fprintf(out, "Usage: %s\n", usageLine)
	return errReported
}

func executionError(cmd *cobra.Command, err error) error {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Execution error: interrupted")
		return errReported
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Execution error: %s\n", userMessage(err))
	return errReported
}

// userMessage prefers the classified message and falls back to the raw
// error for failures raised outside the pipeline (config, filesystem).
func userMessage(err error) string {
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		return services.Details(err).Message
	}
	return err.Error()
}
