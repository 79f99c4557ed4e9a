package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkDir    string `toml:"work_dir"`
	ResultsDir string `toml:"results_dir"`
	StateDir   string `toml:"state_dir"`
	APIBind    string `toml:"api_bind"`
}

// Search contains configuration for the YouTube source provider.
type Search struct {
	YouTubeAPIKey     string `toml:"youtube_api_key"`
	BaseURL           string `toml:"base_url"`
	RelevanceLanguage string `toml:"relevance_language"`
	RequestTimeout    int    `toml:"request_timeout"`
	YtdlpBinary       string `toml:"ytdlp_binary"`
	YtdlpFormat       string `toml:"ytdlp_format"`
	DownloadTimeout   int    `toml:"download_timeout"`
	SocketTimeout     int    `toml:"socket_timeout"`
	Retries           int    `toml:"retries"`
	ParallelDownloads int    `toml:"parallel_downloads"`
}

// Media contains ffmpeg/ffprobe settings and output encoding parameters.
type Media struct {
	FFmpegBinary    string `toml:"ffmpeg_binary"`
	FFprobeBinary   string `toml:"ffprobe_binary"`
	AudioCodec      string `toml:"audio_codec"`
	AudioBitrate    string `toml:"audio_bitrate"`
	SampleRate      int    `toml:"sample_rate"`
	VideoWidth      int    `toml:"video_width"`
	VideoHeight     int    `toml:"video_height"`
	VideoFPS        int    `toml:"video_fps"`
	BackgroundColor string `toml:"background_color"`
	BackgroundImage string `toml:"background_image"`
}

// Limits bounds request sizes. A zero value disables the bound.
type Limits struct {
	MaxCount       int `toml:"max_count"`
	MaxClipSeconds int `toml:"max_clip_seconds"`
}

// SMTP contains configuration for email delivery of finished bundles.
type SMTP struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	From      string `toml:"from"`
	TLSPolicy string `toml:"tls_policy"`
	Timeout   int    `toml:"timeout"`
}

// Notifications contains configuration for ntfy operator alerts.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Workflow contains configuration for the background job runner.
type Workflow struct {
	MaxConcurrentJobs int `toml:"max_concurrent_jobs"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the mashup service.
//
// Configuration sections by subsystem:
//   - Paths: job workspaces, durable results, state (database, lock, log) and API bind address
//   - Search: YouTube Data API search and yt-dlp downloads
//   - Media: ffmpeg/ffprobe binaries and output encoding parameters
//   - Limits: upper bounds on requested count and clip length
//   - SMTP: email delivery of finished bundles
//   - Notifications: ntfy operator alerts
//   - Workflow: background job concurrency
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Search        Search        `toml:"search"`
	Media         Media         `toml:"media"`
	Limits        Limits        `toml:"limits"`
	SMTP          SMTP          `toml:"smtp"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

const (
	defaultConfigFile = "~/.config/mashup/config.toml"
	projectConfigFile = "mashup.toml"
)

// DefaultConfigPath is ~/.config/mashup/config.toml, expanded.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigFile)
}

// Load reads the config at path, or the first of the default location and
// ./mashup.toml that exists when path is empty. Missing files yield
// defaults. It also returns the resolved path and whether a file was read.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := locate(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			var derr *toml.DecodeError
			if errors.As(err, &derr) {
				row, col := derr.Position()
				return nil, "", false, fmt.Errorf("parse config %s:%d:%d: %w", resolved, row, col, err)
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func locate(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		switch _, err := os.Stat(expanded); {
		case err == nil:
			return expanded, true, nil
		case errors.Is(err, fs.ErrNotExist):
			return expanded, false, nil
		default:
			return "", false, fmt.Errorf("stat config: %w", err)
		}
	}

	fallback, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	project, err := filepath.Abs(projectConfigFile)
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{fallback, project} {
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, true, nil
		}
	}
	return fallback, false, nil
}

// EnsureDirectories creates the work, results and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.ResultsDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// State directory files.
func (c *Config) DatabasePath() string { return filepath.Join(c.Paths.StateDir, "mashup.db") }
func (c *Config) LockPath() string     { return filepath.Join(c.Paths.StateDir, "mashup.lock") }
func (c *Config) LogPath() string      { return filepath.Join(c.Paths.StateDir, "mashup.log") }

// RunLockPath is held by a command-line run for the lifetime of job id.
func (c *Config) RunLockPath(id string) string {
	return filepath.Join(c.Paths.StateDir, "runs", id+".lock")
}

// Timeouts are configured in whole seconds.
func (c *Config) SearchRequestTimeout() time.Duration { return seconds(c.Search.RequestTimeout) }
func (c *Config) DownloadTimeout() time.Duration      { return seconds(c.Search.DownloadTimeout) }
func (c *Config) SMTPTimeout() time.Duration          { return seconds(c.SMTP.Timeout) }
func (c *Config) NtfyTimeout() time.Duration          { return seconds(c.Notifications.RequestTimeout) }

// EmailEnabled reports whether SMTP delivery is configured.
func (c *Config) EmailEnabled() bool {
	return strings.TrimSpace(c.SMTP.Host) != ""
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// ExpandPath resolves a leading "~" or "~/" against the home directory and
// returns an absolute, cleaned path. Empty input stays empty.
func ExpandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, strings.TrimPrefix(value, "~"))
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return abs, nil
}

// CreateSample writes the commented sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
