package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mashup/internal/daemon"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Publish a test alert to the configured ntfy topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sent, message, err := daemon.TestNotification(cmd.Context(), cfg)
			switch {
			case err != nil:
				return err
			case !sent && message == "":
				message = "No alert sent"
			}
			if message != "" {
				fmt.Fprintln(cmd.OutOrStdout(), message)
			}
			return nil
		},
	}
}
