package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSearch()
	if err := c.normalizeMedia(); err != nil {
		return err
	}
	c.normalizeSMTP()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = ExpandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.ResultsDir, err = ExpandPath(c.Paths.ResultsDir); err != nil {
		return fmt.Errorf("paths.results_dir: %w", err)
	}
	if c.Paths.StateDir, err = ExpandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeSearch() {
	if c.Search.YouTubeAPIKey == "" {
		if value, ok := os.LookupEnv("YOUTUBE_API_KEY"); ok {
			c.Search.YouTubeAPIKey = strings.TrimSpace(value)
		}
	}
	c.Search.BaseURL = strings.TrimRight(strings.TrimSpace(c.Search.BaseURL), "/")
	if c.Search.BaseURL == "" {
		c.Search.BaseURL = defaultYouTubeBaseURL
	}
	c.Search.RelevanceLanguage = strings.TrimSpace(c.Search.RelevanceLanguage)
	c.Search.YtdlpBinary = strings.TrimSpace(c.Search.YtdlpBinary)
	if c.Search.YtdlpBinary == "" {
		c.Search.YtdlpBinary = defaultYtdlpBinary
	}
	c.Search.YtdlpFormat = strings.TrimSpace(c.Search.YtdlpFormat)
	if c.Search.YtdlpFormat == "" {
		c.Search.YtdlpFormat = defaultYtdlpFormat
	}
	if c.Search.RequestTimeout <= 0 {
		c.Search.RequestTimeout = defaultSearchTimeout
	}
	if c.Search.DownloadTimeout <= 0 {
		c.Search.DownloadTimeout = defaultDownloadTimeout
	}
	if c.Search.SocketTimeout <= 0 {
		c.Search.SocketTimeout = defaultSocketTimeout
	}
	if c.Search.ParallelDownloads <= 0 {
		c.Search.ParallelDownloads = defaultParallelDownloads
	}
}

func (c *Config) normalizeMedia() error {
	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
	c.Media.AudioCodec = strings.TrimSpace(c.Media.AudioCodec)
	if c.Media.AudioCodec == "" {
		c.Media.AudioCodec = defaultAudioCodec
	}
	c.Media.AudioBitrate = strings.ToLower(strings.TrimSpace(c.Media.AudioBitrate))
	if c.Media.AudioBitrate == "" {
		c.Media.AudioBitrate = defaultAudioBitrate
	}
	c.Media.BackgroundColor = strings.TrimSpace(c.Media.BackgroundColor)
	if c.Media.BackgroundColor == "" {
		c.Media.BackgroundColor = defaultBackgroundColor
	}
	if strings.TrimSpace(c.Media.BackgroundImage) != "" {
		expanded, err := ExpandPath(strings.TrimSpace(c.Media.BackgroundImage))
		if err != nil {
			return fmt.Errorf("media.background_image: %w", err)
		}
		c.Media.BackgroundImage = expanded
	}
	return nil
}

func (c *Config) normalizeSMTP() {
	c.SMTP.Host = strings.TrimSpace(c.SMTP.Host)
	if c.SMTP.Username == "" {
		if value, ok := os.LookupEnv("SMTP_USERNAME"); ok {
			c.SMTP.Username = strings.TrimSpace(value)
		}
	}
	if c.SMTP.Password == "" {
		if value, ok := os.LookupEnv("SMTP_PASSWORD"); ok {
			c.SMTP.Password = value
		}
	}
	c.SMTP.From = strings.TrimSpace(c.SMTP.From)
	if c.SMTP.From == "" {
		c.SMTP.From = c.SMTP.Username
	}
	c.SMTP.TLSPolicy = strings.ToLower(strings.TrimSpace(c.SMTP.TLSPolicy))
	if c.SMTP.TLSPolicy == "" {
		c.SMTP.TLSPolicy = defaultSMTPTLSPolicy
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = defaultSMTPPort
	}
	if c.SMTP.Timeout <= 0 {
		c.SMTP.Timeout = defaultSMTPTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("MASHUP_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
