package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

const defaultBinary = "ffprobe"

// Result is the subset of `ffprobe -show_format -show_streams` we rely on.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// InspectFunc matches Inspect; packages hold one so tests can swap it.
type InspectFunc func(ctx context.Context, binary, path string) (Result, error)

// Inspect runs binary (ffprobe when empty) against path.
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("ffprobe: no input path")
	}
	if binary = strings.TrimSpace(binary); binary == "" {
		binary = defaultBinary
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary,
		"-v", "error", "-hide_banner",
		"-show_format", "-show_streams",
		"-of", "json", "--", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return Result{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, msg)
		}
		return Result{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return Parse(stdout.Bytes())
}

// Parse decodes ffprobe's JSON writer output.
func Parse(data []byte) (Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("ffprobe: decode output: %w", err)
	}
	return r, nil
}

func (r Result) audioStreams() []Stream {
	var out []Stream
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, "audio") {
			out = append(out, s)
		}
	}
	return out
}

func (r Result) AudioStreamCount() int { return len(r.audioStreams()) }

func (r Result) HasAudio() bool { return r.AudioStreamCount() > 0 }

// DurationSeconds is the container duration, 0 when unknown.
func (r Result) DurationSeconds() float64 { return number(r.Format.Duration) }

// AudioDurationSeconds is the first audio stream's duration. Streams that
// do not report one inherit the container duration; no audio means 0.
func (r Result) AudioDurationSeconds() float64 {
	streams := r.audioStreams()
	if len(streams) == 0 {
		return 0
	}
	if d := number(streams[0].Duration); d > 0 {
		return d
	}
	return r.DurationSeconds()
}

// SizeBytes is the container size, 0 when unknown.
func (r Result) SizeBytes() int64 { return int64(number(r.Format.Size)) }

// number parses an ffprobe numeric field. "N/A", garbage, negatives and
// non-finite values all read as 0.
func number(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
