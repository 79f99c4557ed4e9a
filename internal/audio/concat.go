package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mashup/internal/media/ffmpeg"
	"mashup/internal/services"
)

// Placement locates one segment inside a merged track.
type Placement struct {
	Source   string
	Offset   float64
	Duration float64
}

// Track is one continuous audio file built from ordered segments.
type Track struct {
	Path     string
	ListPath string
	Duration float64
	Parts    []Placement
}

// Release deletes the track and its concat list.
func (t *Track) Release() error {
	if t == nil {
		return nil
	}
	var errs []error
	for _, path := range []string{t.Path, t.ListPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Concatenator joins segments with ffmpeg's concat demuxer.
type Concatenator struct {
	tool *ffmpeg.Tool
}

// NewConcatenator constructs a Concatenator.
func NewConcatenator(tool *ffmpeg.Tool) *Concatenator {
	return &Concatenator{tool: tool}
}

// Layout filters out empty segments and computes each placement. Offsets are
// prefix sums in input order; the returned total is their exact sum.
func Layout(segments []*Segment) ([]*Segment, []Placement, float64) {
	kept := make([]*Segment, 0, len(segments))
	parts := make([]Placement, 0, len(segments))
	var offset float64
	for _, segment := range segments {
		if segment == nil || segment.Duration <= 0 {
			continue
		}
		kept = append(kept, segment)
		parts = append(parts, Placement{Source: segment.Source, Offset: offset, Duration: segment.Duration})
		offset += segment.Duration
	}
	return kept, parts, offset
}

// Concatenate merges segments into outPath preserving order. It fails with
// services.ErrEmptyInput when no non-empty segment remains.
func (c *Concatenator) Concatenate(ctx context.Context, segments []*Segment, outPath string) (*Track, error) {
	kept, parts, total := Layout(segments)
	if len(kept) == 0 {
		return nil, services.Wrap(services.ErrEmptyInput, "merging", "concatenate", "no valid audio clips to merge", nil)
	}

	listPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".ffconcat"
	if err := os.WriteFile(listPath, []byte(concatList(kept)), 0o644); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "merging", "concatenate", "could not write concat list", err)
	}

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	}
	if err := c.tool.Run(ctx, args...); err != nil {
		_ = os.Remove(outPath)
		_ = os.Remove(listPath)
		return nil, services.Wrap(services.ErrExternalTool, "merging", "ffmpeg", "merging clips failed", err)
	}
	return &Track{Path: outPath, ListPath: listPath, Duration: total, Parts: parts}, nil
}

func concatList(segments []*Segment) string {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, segment := range segments {
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(segment.Path, "'", `'\''`))
		fmt.Fprintf(&b, "duration %s\n", ffmpeg.Seconds(segment.Duration))
	}
	return b.String()
}
