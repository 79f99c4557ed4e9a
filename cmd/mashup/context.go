package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mashup/internal/config"
	"mashup/internal/logging"
	"mashup/internal/queue"
)

// skipConfigLoad marks commands that must run without a loadable config.
const skipConfigLoad = "skipConfigLoad"

// commandContext is shared by every subcommand. The config is resolved
// lazily, once, from the --config flag.
type commandContext struct {
	configFlag *string
	load       func() (*config.Config, error)
}

func newCommandContext(configFlag *string) *commandContext {
	c := &commandContext{configFlag: configFlag}
	c.load = sync.OnceValues(c.loadConfig)
	return c
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	return c.load()
}

func (c *commandContext) loadConfig() (*config.Config, error) {
	cfg, _, _, err := config.Load(c.configPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// logger builds the configured logger, or a no-op one when configuration
// is unusable so callers can still report the underlying error.
func (c *commandContext) logger() *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.NewNop()
	}
	if logger, err := logging.NewFromConfig(cfg); err == nil {
		return logger
	}
	return logging.NewNop()
}

func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations[skipConfigLoad] == "true" {
			return true
		}
	}
	return false
}
