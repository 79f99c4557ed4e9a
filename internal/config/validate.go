package config

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateSMTP(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// RequireSearchCredentials reports a descriptive error when the YouTube API key
// is missing. Acquisition calls it lazily so offline commands keep working.
func (c *Config) RequireSearchCredentials() error {
	if strings.TrimSpace(c.Search.YouTubeAPIKey) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/mashup/config.toml"
	}
	return fmt.Errorf("search.youtube_api_key is required. Set YOUTUBE_API_KEY env var or edit %s (create with 'mashup config init')", defaultPath)
}

func (c *Config) validateSearch() error {
	if c.Search.Retries < 0 {
		return errors.New("search.retries must be >= 0")
	}
	if !strings.HasPrefix(c.Search.BaseURL, "http://") && !strings.HasPrefix(c.Search.BaseURL, "https://") {
		return fmt.Errorf("search.base_url must be an http(s) URL, got %q", c.Search.BaseURL)
	}
	return nil
}

func (c *Config) validateMedia() error {
	if c.Media.SampleRate <= 0 {
		return errors.New("media.sample_rate must be positive")
	}
	if c.Media.VideoWidth <= 0 || c.Media.VideoHeight <= 0 {
		return errors.New("media.video_width and media.video_height must be positive")
	}
	if c.Media.VideoWidth%2 != 0 || c.Media.VideoHeight%2 != 0 {
		return errors.New("media.video_width and media.video_height must be even")
	}
	if c.Media.VideoFPS <= 0 {
		return errors.New("media.video_fps must be positive")
	}
	if !strings.HasSuffix(c.Media.AudioBitrate, "k") {
		return fmt.Errorf("media.audio_bitrate must be expressed in kbit/s (e.g. 192k), got %q", c.Media.AudioBitrate)
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.MaxCount < 0 {
		return errors.New("limits.max_count must be >= 0")
	}
	if c.Limits.MaxCount > 0 && c.Limits.MaxCount <= 10 {
		return errors.New("limits.max_count must exceed the minimum count of 10")
	}
	if c.Limits.MaxClipSeconds < 0 {
		return errors.New("limits.max_clip_seconds must be >= 0")
	}
	if c.Limits.MaxClipSeconds > 0 && c.Limits.MaxClipSeconds <= 20 {
		return errors.New("limits.max_clip_seconds must exceed the minimum clip length of 20")
	}
	return nil
}

func (c *Config) validateSMTP() error {
	if c.SMTP.Host == "" {
		return nil
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("smtp.port must be between 1 and 65535, got %d", c.SMTP.Port)
	}
	if c.SMTP.From == "" {
		return errors.New("smtp.from is required when smtp.host is set")
	}
	if _, err := mail.ParseAddress(c.SMTP.From); err != nil {
		return fmt.Errorf("smtp.from: %w", err)
	}
	switch c.SMTP.TLSPolicy {
	case "mandatory", "opportunistic", "none":
	default:
		return fmt.Errorf("smtp.tls_policy must be one of mandatory, opportunistic, none, got %q", c.SMTP.TLSPolicy)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxConcurrentJobs <= 0 {
		return errors.New("workflow.max_concurrent_jobs must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be one of auto, console, json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}
