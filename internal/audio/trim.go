package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mashup/internal/acquire"
	"mashup/internal/logging"
	"mashup/internal/media/ffmpeg"
	"mashup/internal/services"
)

const segmentSuffix = ".clip.wav"

// Segment is a bounded slice [0, Duration) of one source's audio, stored as PCM WAV.
type Segment struct {
	Source   string
	Path     string
	Duration float64
}

// Release deletes the segment file.
func (s *Segment) Release() error {
	if s == nil || s.Path == "" {
		return nil
	}
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ReleaseAll deletes every segment file, ignoring nil entries.
func ReleaseAll(segments []*Segment) {
	for _, segment := range segments {
		_ = segment.Release()
	}
}

// Trimmer extracts leading clips with ffmpeg.
type Trimmer struct {
	tool       *ffmpeg.Tool
	sampleRate int
	logger     *slog.Logger
}

// NewTrimmer constructs a Trimmer producing stereo PCM at sampleRate.
func NewTrimmer(tool *ffmpeg.Tool, sampleRate int, logger *slog.Logger) *Trimmer {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &Trimmer{tool: tool, sampleRate: sampleRate, logger: logging.NewComponentLogger(logger, "trimmer")}
}

// EffectiveEnd returns min(clipSeconds, available), clamped at zero.
func EffectiveEnd(clipSeconds int, available float64) float64 {
	if clipSeconds <= 0 || available <= 0 || math.IsNaN(available) {
		return 0
	}
	return math.Min(float64(clipSeconds), available)
}

// Trim extracts [0, min(clipSeconds, audio duration)) from handle. It returns
// nil, nil when the source has no usable audio. The segment is written next
// to the source inside the job workspace.
func (t *Trimmer) Trim(ctx context.Context, handle acquire.MediaHandle, clipSeconds int) (*Segment, error) {
	if !handle.HasAudio {
		return nil, nil
	}
	end := EffectiveEnd(clipSeconds, handle.AudioDuration)
	if end <= 0 {
		return nil, nil
	}

	out := strings.TrimSuffix(handle.Path, filepath.Ext(handle.Path)) + segmentSuffix
	args := []string{
		"-i", handle.Path,
		"-vn",
		"-t", ffmpeg.Seconds(end),
		"-ac", "2",
		"-ar", strconv.Itoa(t.sampleRate),
		"-c:a", "pcm_s16le",
		out,
	}
	if err := t.tool.Run(ctx, args...); err != nil {
		_ = os.Remove(out)
		return nil, services.Wrap(services.ErrExternalTool, "trimming", "ffmpeg",
			fmt.Sprintf("could not trim %s", handle.ID), err)
	}
	return &Segment{Source: handle.ID, Path: out, Duration: end}, nil
}

// TrimAll trims every handle in order and returns the non-empty segments.
// It never fails; per-item errors are logged and the item is skipped.
func (t *Trimmer) TrimAll(ctx context.Context, handles []acquire.MediaHandle, clipSeconds int) []*Segment {
	logger := logging.WithContext(ctx, t.logger)
	segments := make([]*Segment, 0, len(handles))
	for _, handle := range handles {
		if ctx.Err() != nil {
			break
		}
		segment, err := t.Trim(ctx, handle, clipSeconds)
		if err != nil {
			logging.WarnWithContext(logger, "clip skipped", "trim_item_failed",
				logging.String("video_id", handle.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "mashup will use fewer clips"),
			)
			continue
		}
		if segment == nil {
			logger.Info("source has no usable audio", logging.String("video_id", handle.ID))
			continue
		}
		segments = append(segments, segment)
	}
	return segments
}
