package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"mashup/internal/config"
	"mashup/internal/deps"
	"mashup/internal/services/youtube"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least min
// bytes available to unprivileged users.
func CheckFreeSpace(name, path string, min uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s (%s free)", path, formatBytes(free))
	if free < min {
		return Result{Name: name, Detail: detail + fmt.Sprintf(", need %s", formatBytes(min))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSearchCredentials reports whether a YouTube API key is configured.
func CheckSearchCredentials(cfg *config.Config) Result {
	const name = "YouTube API key"
	if err := cfg.RequireSearchCredentials(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckSearch runs a one-result search against the YouTube Data API. It spends
// search quota, so callers opt in.
func CheckSearch(ctx context.Context, cfg *config.Config) Result {
	const name = "YouTube search"
	if cfg.Search.YouTubeAPIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	client, err := youtube.New(youtube.Config{
		APIKey:            cfg.Search.YouTubeAPIKey,
		BaseURL:           cfg.Search.BaseURL,
		RelevanceLanguage: cfg.Search.RelevanceLanguage,
		HTTPClient:        &http.Client{Timeout: cfg.SearchRequestTimeout()},
	})
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := client.Search(checkCtx, "music", 1); err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckSMTP opens and closes a TCP connection to the configured mail server.
func CheckSMTP(ctx context.Context, cfg *config.Config) Result {
	const name = "SMTP"
	host := strings.TrimSpace(cfg.SMTP.Host)
	if host == "" {
		return Result{Name: name, Detail: "host not configured"}
	}
	addr := net.JoinHostPort(host, strconv.Itoa(cfg.SMTP.Port))

	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s unreachable (%s)", addr, summarizeNetError(err))}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: addr + " reachable"}
}

// CheckSystemDeps evaluates the external binaries for the given config.
// Both the service and the CLI check command use this.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	return err.Error()
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
