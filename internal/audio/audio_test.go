package audio_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"mashup/internal/acquire"
	"mashup/internal/audio"
	"mashup/internal/media/ffmpeg"
	"mashup/internal/services"
)

type recordingRunner struct {
	mu    sync.Mutex
	calls [][]string
	fail  func(args []string) bool
}

func (r *recordingRunner) Run(_ context.Context, _ string, args ...string) (services.CommandResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, args)
	r.mu.Unlock()
	if r.fail != nil && r.fail(args) {
		return services.CommandResult{Stderr: "Invalid data found when processing input"}, errors.New("exit status 1")
	}
	out := args[len(args)-1]
	if err := os.WriteFile(out, []byte("pcm"), 0o644); err != nil {
		return services.CommandResult{}, err
	}
	return services.CommandResult{}, nil
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func handle(t *testing.T, dir, id string, hasAudio bool, duration float64) acquire.MediaHandle {
	t.Helper()
	path := filepath.Join(dir, id+".m4a")
	if err := os.WriteFile(path, []byte(id), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return acquire.MediaHandle{ID: id, Path: path, HasAudio: hasAudio, AudioDuration: duration}
}

func TestEffectiveEnd(t *testing.T) {
	cases := []struct {
		clip      int
		available float64
		want      float64
	}{
		{21, 180, 21},
		{21, 12.5, 12.5},
		{21, 0, 0},
		{0, 180, 0},
		{21, -1, 0},
	}
	for _, tc := range cases {
		if got := audio.EffectiveEnd(tc.clip, tc.available); got != tc.want {
			t.Fatalf("EffectiveEnd(%d, %v) = %v, want %v", tc.clip, tc.available, got, tc.want)
		}
	}
}

func TestTrimUsesEffectiveEnd(t *testing.T) {
	dir := t.TempDir()
	runner := &recordingRunner{}
	trimmer := audio.NewTrimmer(&ffmpeg.Tool{Runner: runner}, 44100, nil)

	segment, err := trimmer.Trim(context.Background(), handle(t, dir, "short", true, 12.5), 21)
	if err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if segment == nil || segment.Duration != 12.5 || segment.Source != "short" {
		t.Fatalf("unexpected segment: %#v", segment)
	}
	if got := argValue(runner.calls[0], "-t"); got != "12.5" {
		t.Fatalf("expected -t 12.5, got %q", got)
	}
	if got := argValue(runner.calls[0], "-c:a"); got != "pcm_s16le" {
		t.Fatalf("expected pcm output, got %q", got)
	}
	if filepath.Dir(segment.Path) != dir || !strings.HasSuffix(segment.Path, ".clip.wav") {
		t.Fatalf("unexpected segment path %q", segment.Path)
	}
	if err := segment.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(segment.Path); !os.IsNotExist(err) {
		t.Fatalf("expected segment removed, err=%v", err)
	}
}

func TestTrimEmptyForSilentSources(t *testing.T) {
	dir := t.TempDir()
	runner := &recordingRunner{}
	trimmer := audio.NewTrimmer(&ffmpeg.Tool{Runner: runner}, 0, nil)

	for _, h := range []acquire.MediaHandle{
		handle(t, dir, "noaudio", false, 100),
		handle(t, dir, "zero", true, 0),
	} {
		segment, err := trimmer.Trim(context.Background(), h, 21)
		if err != nil || segment != nil {
			t.Fatalf("expected empty result for %s, got %#v err=%v", h.ID, segment, err)
		}
	}
	if len(runner.calls) != 0 {
		t.Fatalf("expected no ffmpeg calls, got %d", len(runner.calls))
	}
}

func TestTrimAllSkipsFailuresAndKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	runner := &recordingRunner{fail: func(args []string) bool {
		return strings.Contains(argValue(args, "-i"), "corrupt")
	}}
	trimmer := audio.NewTrimmer(&ffmpeg.Tool{Runner: runner}, 44100, nil)

	handles := []acquire.MediaHandle{
		handle(t, dir, "a", true, 100),
		handle(t, dir, "corrupt", true, 100),
		handle(t, dir, "silent", false, 0),
		handle(t, dir, "b", true, 10),
	}
	segments := trimmer.TrimAll(context.Background(), handles, 21)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Source != "a" || segments[1].Source != "b" {
		t.Fatalf("unexpected order: %s, %s", segments[0].Source, segments[1].Source)
	}
	if segments[0].Duration != 21 || segments[1].Duration != 10 {
		t.Fatalf("unexpected durations: %v, %v", segments[0].Duration, segments[1].Duration)
	}
	if _, err := os.Stat(filepath.Join(dir, "corrupt.clip.wav")); !os.IsNotExist(err) {
		t.Fatalf("expected failed clip output removed, err=%v", err)
	}
}

func TestConcatenatePreservesOrderAndSumsDurations(t *testing.T) {
	dir := t.TempDir()
	runner := &recordingRunner{}
	concat := audio.NewConcatenator(&ffmpeg.Tool{Runner: runner})

	segments := []*audio.Segment{
		{Source: "A", Path: filepath.Join(dir, "A.clip.wav"), Duration: 5},
		nil,
		{Source: "B", Path: filepath.Join(dir, "B.clip.wav"), Duration: 7},
		{Source: "C", Path: filepath.Join(dir, "C's.clip.wav"), Duration: 3},
	}
	track, err := concat.Concatenate(context.Background(), segments, filepath.Join(dir, "merged.wav"))
	if err != nil {
		t.Fatalf("Concatenate: %v", err)
	}
	if track.Duration != 15 {
		t.Fatalf("expected 15 seconds, got %v", track.Duration)
	}
	if len(track.Parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(track.Parts))
	}
	if c := track.Parts[2]; c.Source != "C" || c.Offset != 12 || c.Duration != 3 {
		t.Fatalf("unexpected placement for C: %#v", c)
	}

	list, err := os.ReadFile(track.ListPath)
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	content := string(list)
	ia := strings.Index(content, "A.clip.wav")
	ib := strings.Index(content, "B.clip.wav")
	ic := strings.Index(content, `C'\''s.clip.wav`)
	if ia < 0 || ib < 0 || ic < 0 || !(ia < ib && ib < ic) {
		t.Fatalf("unexpected concat list:\n%s", content)
	}
	args := strings.Join(runner.calls[0], " ")
	if !strings.Contains(args, "-f concat -safe 0") || !strings.Contains(args, "-c copy") {
		t.Fatalf("unexpected ffmpeg args %q", args)
	}

	if err := track.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(track.Path); !os.IsNotExist(err) {
		t.Fatalf("expected track removed, err=%v", err)
	}
}

func TestConcatenateEmptyInput(t *testing.T) {
	concat := audio.NewConcatenator(&ffmpeg.Tool{Runner: &recordingRunner{}})
	_, err := concat.Concatenate(context.Background(), []*audio.Segment{nil, {Source: "z", Duration: 0}}, filepath.Join(t.TempDir(), "m.wav"))
	if !errors.Is(err, services.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if msg := services.Details(err).Message; msg != "no valid audio clips to merge" {
		t.Fatalf("unexpected detail %q", msg)
	}
}

func TestConcatenateToolFailureCleansUp(t *testing.T) {
	dir := t.TempDir()
	concat := audio.NewConcatenator(&ffmpeg.Tool{Runner: &recordingRunner{fail: func([]string) bool { return true }}})
	out := filepath.Join(dir, "merged.wav")
	_, err := concat.Concatenate(context.Background(), []*audio.Segment{{Source: "a", Path: "a.wav", Duration: 3}}, out)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no leftovers, found %d entries", len(entries))
	}
}
