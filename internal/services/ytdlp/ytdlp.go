// Package ytdlp downloads the audio of a single video through the yt-dlp
// command-line tool.
package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mashup/internal/services"
)

// Options configures a Downloader.
type Options struct {
	Binary        string
	Format        string
	SocketTimeout int
	Retries       int
	Timeout       time.Duration
	Runner        services.CommandRunner
}

// Downloader runs yt-dlp for one video at a time.
type Downloader struct {
	binary        string
	format        string
	socketTimeout int
	retries       int
	timeout       time.Duration
	runner        services.CommandRunner
}

// New constructs a Downloader, filling unset options with yt-dlp friendly defaults.
func New(opts Options) *Downloader {
	d := &Downloader{
		binary:        strings.TrimSpace(opts.Binary),
		format:        strings.TrimSpace(opts.Format),
		socketTimeout: opts.SocketTimeout,
		retries:       opts.Retries,
		timeout:       opts.Timeout,
		runner:        opts.Runner,
	}
	if d.binary == "" {
		d.binary = "yt-dlp"
	}
	if d.format == "" {
		d.format = "bestaudio[ext=m4a]/bestaudio/best"
	}
	if d.socketTimeout <= 0 {
		d.socketTimeout = 10
	}
	if d.retries < 0 {
		d.retries = 0
	}
	if d.runner == nil {
		d.runner = services.ExecRunner{}
	}
	return d
}

// Args returns the yt-dlp arguments used to fetch url into dir as <id>.<ext>.
func (d *Downloader) Args(videoID, url, dir string) []string {
	return []string{
		"--format", d.format,
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"--socket-timeout", strconv.Itoa(d.socketTimeout),
		"--retries", strconv.Itoa(d.retries),
		"--output", filepath.Join(dir, videoID+".%(ext)s"),
		"--print", "after_move:filepath",
		url,
	}
}

// Download fetches the audio for videoID from url into dir and returns the
// local file path. The call is bounded by the configured timeout.
func (d *Downloader) Download(ctx context.Context, videoID, url, dir string) (string, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" || strings.ContainsAny(videoID, `/\`) {
		return "", fmt.Errorf("ytdlp: invalid video id %q", videoID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ytdlp: create download dir: %w", err)
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	result, err := d.runner.Run(ctx, d.binary, d.Args(videoID, url, dir)...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTransient, "acquiring", "yt-dlp", fmt.Sprintf("download of %s timed out", videoID), err)
		}
		message := fmt.Sprintf("download of %s failed", videoID)
		if tail := result.StderrTail(); tail != "" {
			err = fmt.Errorf("%w: %s", err, tail)
		}
		return "", services.Wrap(services.ErrExternalTool, "acquiring", "yt-dlp", message, err)
	}

	path := lastLine(result.Stdout)
	if path == "" {
		return "", services.Wrap(services.ErrExternalTool, "acquiring", "yt-dlp", fmt.Sprintf("download of %s reported no file", videoID), nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "acquiring", "yt-dlp", fmt.Sprintf("downloaded file for %s is missing", videoID), err)
	}
	if info.IsDir() || info.Size() == 0 {
		return "", services.Wrap(services.ErrExternalTool, "acquiring", "yt-dlp", fmt.Sprintf("downloaded file for %s is empty", videoID), nil)
	}
	return path, nil
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
