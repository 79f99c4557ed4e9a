package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"mashup/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string // "console", "json" or "auto"
	Output      io.Writer
	FilePath    string // when set, JSON records are appended here as well
	Development bool
}

// New builds a logger from opts.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	addSource := opts.Development || level.Level() <= slog.LevelDebug

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	var handler slog.Handler
	switch format := resolveFormat(opts.Format, out); format {
	case "json":
		handler = newJSONHandler(out, level, addSource)
	case "console":
		handler = newConsoleHandler(out, level, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	if path := strings.TrimSpace(opts.FilePath); path != "" {
		file, err := openLogFile(path)
		if err != nil {
			return nil, err
		}
		handler = fanout{handler, newJSONHandler(file, level, addSource)}
	}
	return slog.New(handler), nil
}

// NewFromConfig builds the stderr logger used by one-shot CLI commands.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}
	return New(Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
}

// NewServiceFromConfig builds the long-running service logger: stdout plus
// a JSON log file in the state directory.
func NewServiceFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return NewFromConfig(nil)
	}
	return New(Options{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		Output:   os.Stdout,
		FilePath: cfg.LogPath(),
	})
}

func resolveFormat(format string, w io.Writer) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "" && format != "auto" {
		return format
	}
	if f, ok := w.(*os.File); ok {
		if fd := f.Fd(); isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			return "console"
		}
	}
	return "json"
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	switch v := strings.ToLower(strings.TrimSpace(level)); v {
	case "warning":
		return slog.LevelWarn
	default:
		if err := l.UnmarshalText([]byte(v)); err != nil {
			return slog.LevelInfo
		}
	}
	return l
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

// newJSONHandler writes records with "ts" in RFC 3339 UTC, lower-case
// levels and a short file:line source.
func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	replace := func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.TimeKey:
			if a.Value.Kind() != slog.KindTime {
				return a
			}
			return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339))
		case slog.LevelKey:
			a.Value = slog.StringValue(strings.ToLower(a.Value.String()))
		case slog.SourceKey:
			if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
				a.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
			}
		}
		return a
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, AddSource: addSource, ReplaceAttr: replace})
}

// fanout hands every record to each handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = fn(h)
	}
	return next
}
