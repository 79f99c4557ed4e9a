package encoding

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mashup/internal/audio"
	"mashup/internal/config"
	"mashup/internal/logging"
	"mashup/internal/media/ffmpeg"
	"mashup/internal/services"
)

const stageName = "encoding"

// Settings carries the media section values the encoder needs.
type Settings struct {
	FFprobeBinary   string
	AudioCodec      string
	AudioBitrate    string
	SampleRate      int
	VideoWidth      int
	VideoHeight     int
	VideoFPS        int
	BackgroundColor string
	BackgroundImage string
}

// SettingsFromConfig copies the encoder settings out of cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		FFprobeBinary:   cfg.Media.FFprobeBinary,
		AudioCodec:      cfg.Media.AudioCodec,
		AudioBitrate:    cfg.Media.AudioBitrate,
		SampleRate:      cfg.Media.SampleRate,
		VideoWidth:      cfg.Media.VideoWidth,
		VideoHeight:     cfg.Media.VideoHeight,
		VideoFPS:        cfg.Media.VideoFPS,
		BackgroundColor: cfg.Media.BackgroundColor,
		BackgroundImage: cfg.Media.BackgroundImage,
	}
}

// Encoder turns a merged track into the final artifact.
type Encoder struct {
	tool     *ffmpeg.Tool
	settings Settings
	logger   *slog.Logger
}

// New constructs an Encoder.
func New(tool *ffmpeg.Tool, settings Settings, logger *slog.Logger) *Encoder {
	return &Encoder{tool: tool, settings: settings, logger: logging.NewComponentLogger(logger, "encoder")}
}

// Encode writes track to dest as kind. On any failure the partial output is
// removed and the error carries services.ErrEncode.
func (e *Encoder) Encode(ctx context.Context, track *audio.Track, kind OutputKind, dest string) error {
	if track == nil || strings.TrimSpace(track.Path) == "" {
		return services.Wrap(services.ErrEncode, stageName, "encode", "no merged track to encode", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrEncode, stageName, "prepare output", "could not create output directory", err)
	}

	args, err := e.Args(track.Path, kind, dest)
	if err != nil {
		return err
	}

	logger := logging.WithContext(ctx, e.logger)
	logger.Info("encoding artifact",
		logging.String("kind", kind.String()),
		logging.String("output", dest),
		logging.Float64("duration_seconds", track.Duration),
	)
	if err := e.tool.Run(ctx, args...); err != nil {
		removePartial(dest)
		return services.Wrap(services.ErrEncode, stageName, "ffmpeg", "writing the output file failed", err)
	}
	if err := e.verify(ctx, dest); err != nil {
		removePartial(dest)
		return err
	}
	return nil
}

// Args builds the ffmpeg arguments for one encode.
func (e *Encoder) Args(input string, kind OutputKind, dest string) ([]string, error) {
	bitrate := strings.TrimSpace(e.settings.AudioBitrate)
	if bitrate == "" {
		bitrate = "192k"
	}
	sampleRate := e.settings.SampleRate
	if sampleRate <= 0 {
		sampleRate = 44100
	}

	switch kind {
	case KindAudio:
		codec := strings.TrimSpace(e.settings.AudioCodec)
		if codec == "" {
			codec = "libmp3lame"
		}
		return []string{
			"-i", input,
			"-vn",
			"-c:a", codec,
			"-b:a", bitrate,
			"-ar", strconv.Itoa(sampleRate),
			dest,
		}, nil
	case KindVideo:
		fps := e.settings.VideoFPS
		if fps <= 0 {
			fps = 1
		}
		args, filter := e.backgroundInput(fps)
		args = append(args,
			"-i", input,
			"-map", "0:v:0",
			"-map", "1:a:0",
		)
		if filter != "" {
			args = append(args, "-vf", filter)
		}
		args = append(args,
			"-c:v", "libx264",
			"-tune", "stillimage",
			"-preset", "veryfast",
			"-r", strconv.Itoa(fps),
			"-pix_fmt", "yuv420p",
			"-c:a", "aac",
			"-b:a", bitrate,
			"-ar", strconv.Itoa(sampleRate),
			"-shortest",
			"-movflags", "+faststart",
			dest,
		)
		return args, nil
	default:
		return nil, services.Wrap(services.ErrEncode, stageName, "encode",
			fmt.Sprintf("unsupported output kind %q", kind), nil)
	}
}

// backgroundInput returns the visual input arguments and, for images, the
// scale/pad filter that fits the image into the frame.
func (e *Encoder) backgroundInput(fps int) ([]string, string) {
	width, height := e.settings.VideoWidth, e.settings.VideoHeight
	if width <= 0 || height <= 0 {
		width, height = 1280, 720
	}
	if image := strings.TrimSpace(e.settings.BackgroundImage); image != "" {
		filter := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2", width, height, width, height)
		return []string{"-loop", "1", "-framerate", strconv.Itoa(fps), "-i", image}, filter
	}
	color := strings.TrimSpace(e.settings.BackgroundColor)
	if color == "" {
		color = "0x0EA5E9"
	}
	return []string{
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=%dx%d:r=%d", color, width, height, fps),
	}, ""
}

func (e *Encoder) verify(ctx context.Context, dest string) error {
	info, err := os.Stat(dest)
	if err != nil {
		return services.Wrap(services.ErrEncode, stageName, "verify", "output file was not written", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrEncode, stageName, "verify", "output file is empty", nil)
	}
	result, err := encodeProbe(ctx, e.settings.FFprobeBinary, dest)
	if err != nil {
		return services.Wrap(services.ErrEncode, stageName, "verify", "output file is unreadable", err)
	}
	if !result.HasAudio() || result.AudioDurationSeconds() <= 0 {
		return services.Wrap(services.ErrEncode, stageName, "verify", "output file has no audio", nil)
	}
	return nil
}

func removePartial(path string) {
	_ = os.Remove(path)
}
