package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mashup/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var network bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report binaries, directories, free space, and credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			if network {
				results = append(results,
					preflight.CheckSearch(cmd.Context(), cfg),
					preflight.CheckSMTP(cmd.Context(), cfg),
				)
			}

			if asJSON {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{r.Name, passLabel(r.Passed), r.Detail})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Status", "Detail"}, rows, nil, isTerminal(cmd)))
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&network, "network", false, "Also contact YouTube (spends search quota) and the SMTP server")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func passLabel(passed bool) string {
	if passed {
		return "ok"
	}
	return "FAIL"
}
