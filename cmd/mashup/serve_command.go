package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mashup/internal/daemon"
	"mashup/internal/httpapi"
	"mashup/internal/logging"
	"mashup/internal/queue"
	"mashup/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web form and background job service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewServiceFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open job store: %w", err)
			}
			stages, err := workflow.NewStages(cfg, logger)
			if err != nil {
				store.Close()
				return err
			}
			runner := workflow.NewRunner(runCtx, cfg, store, stages, logger)
			srv, err := httpapi.New(runner, store, logger)
			if err != nil {
				store.Close()
				return fmt.Errorf("build http server: %w", err)
			}
			d, err := daemon.New(cfg, store, runner, srv.Handler(), logger)
			if err != nil {
				store.Close()
				return err
			}
			defer d.Close()
			return d.Serve(runCtx)
		},
	}
}
