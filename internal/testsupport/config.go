package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mashup/internal/config"
)

// ConfigOption adjusts the config built by NewConfig.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// NewConfig returns a default config whose work, results and state
// directories live under a fresh t.TempDir. The API binds an ephemeral port
// and a placeholder YouTube key is set.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.ResultsDir = filepath.Join(base, "results")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Search.YouTubeAPIKey = "test"
	cfg.Logging.Format = "json"
	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	return &cfg
}

func WithYouTubeKey(key string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) { cfg.Search.YouTubeAPIKey = key }
}

// WithSearchBaseURL points the YouTube client at an httptest server.
func WithSearchBaseURL(url string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) { cfg.Search.BaseURL = url }
}

func WithLimits(maxCount, maxClipSeconds int) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Limits.MaxCount, cfg.Limits.MaxClipSeconds = maxCount, maxClipSeconds
	}
}

// WithStubbedBinaries puts do-nothing executables named after names (ffmpeg,
// ffprobe and yt-dlp by default) first on PATH for the test's lifetime.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, base string, _ *config.Config) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "yt-dlp"}
		}
		bin := filepath.Join(base, "bin")
		if err := os.MkdirAll(bin, 0o755); err != nil {
			t.Fatalf("create stub dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the temp directory NewConfig created for cfg.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
