package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders one human-readable line per record:
//
//	2026-01-02T15:04:05Z INFO acquire: [9a1c2f3e download] fetched source=abc
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	addSource bool
	prefix    []string
	preset    []field
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: new(sync.Mutex), w: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = slices.Clone(h.preset)
	for _, a := range attrs {
		next.preset = appendField(next.preset, h.prefix, a)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = append(slices.Clone(h.prefix), name)
	return &next
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	if !h.Enabled(context.Background(), r.Level) {
		return nil
	}

	fields := slices.Clone(h.preset)
	r.Attrs(func(a slog.Attr) bool {
		fields = appendField(fields, h.prefix, a)
		return true
	})
	tags := map[string]string{FieldComponent: "", FieldJobID: "", FieldStage: ""}
	rest := fields[:0:0]
	for _, f := range fields {
		if seen, ok := tags[f.key]; ok {
			if seen == "" {
				tags[f.key] = plain(f.value)
			}
			continue
		}
		rest = append(rest, f)
	}

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s ", ts.UTC().Format(time.RFC3339), levelLabel(r.Level))
	if c := tags[FieldComponent]; c != "" {
		b.WriteString(c + ": ")
	}
	if label := strings.TrimSpace(shortJobID(tags[FieldJobID]) + " " + tags[FieldStage]); label != "" {
		b.WriteString("[" + label + "] ")
	}
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(msg)
	if h.addSource && r.PC != 0 {
		if src := r.Source(); src != nil {
			fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range lastWins(rest) {
		b.WriteString(" " + f.key + "=" + quoted(f.value))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// appendField flattens groups into dotted keys.
func appendField(dst []field, prefix []string, a slog.Attr) []field {
	if a.Equal(slog.Attr{}) {
		return dst
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = append(slices.Clone(prefix), a.Key)
		}
		for _, member := range v.Group() {
			dst = appendField(dst, inner, member)
		}
		return dst
	}
	key := a.Key
	if len(prefix) > 0 {
		key = strings.Join(prefix, ".") + "." + key
	}
	return append(dst, field{key: key, value: v})
}

// lastWins drops earlier duplicates of a key while keeping its first position.
func lastWins(fields []field) []field {
	pos := make(map[string]int, len(fields))
	out := make([]field, 0, len(fields))
	for _, f := range fields {
		if f.key == "" {
			continue
		}
		if i, ok := pos[f.key]; ok {
			out[i] = f
			continue
		}
		pos[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

// shortJobID keeps console lines readable; JSON output carries the full ID.
func shortJobID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}

func plain(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func quoted(v slog.Value) string {
	s := plain(v)
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}
