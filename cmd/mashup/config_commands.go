package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mashup/internal/config"
)

var skipConfig = map[string]string{skipConfigLoad: "true"}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the service configuration",
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample config.toml",
		Args:        cobra.NoArgs,
		Annotations: skipConfig,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				_, statErr := os.Stat(target)
				switch {
				case statErr == nil:
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				case !errors.Is(statErr, fs.ErrNotExist):
					return fmt.Errorf("check config path: %w", statErr)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n"+
				"Fill in search.youtube_api_key (or export YOUTUBE_API_KEY) and [smtp] before serving.\n", target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Where to write the file (default: user config dir)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func initTarget(flagValue string) (string, error) {
	if v := strings.TrimSpace(flagValue); v != "" {
		path, err := config.ExpandPath(v)
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		return path, nil
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return path, nil
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and report problems",
		Args:        cobra.NoArgs,
		Annotations: skipConfig,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flagPath, _ := cmd.Flags().GetString("config")
			cfg, path, exists, err := config.Load(strings.TrimSpace(flagPath))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			reportConfig(cmd.OutOrStdout(), cfg, path, exists)
			return nil
		},
	}
}

func reportConfig(out io.Writer, cfg *config.Config, path string, exists bool) {
	fmt.Fprintf(out, "Config path: %s\n", path)
	if !exists {
		fmt.Fprintln(out, "No file at that path; built-in defaults apply")
	}
	var warnings []string
	if err := cfg.RequireSearchCredentials(); err != nil {
		warnings = append(warnings, err.Error())
	}
	if !cfg.EmailEnabled() {
		warnings = append(warnings, "smtp.host is not set; finished mashups will not be emailed")
	}
	for _, w := range warnings {
		fmt.Fprintf(out, "Warning: %s\n", w)
	}
	fmt.Fprintln(out, "Configuration valid")
}
