package workflow

import (
	"context"
	"log/slog"

	"mashup/internal/acquire"
	"mashup/internal/audio"
	"mashup/internal/config"
	"mashup/internal/encoding"
	"mashup/internal/media/ffmpeg"
	"mashup/internal/notifications"
	"mashup/internal/packaging"
	"mashup/internal/services"
)

// Acquirer resolves a query into local media handles.
type Acquirer interface {
	Acquire(ctx context.Context, query string, count int, dir string) (acquire.Result, error)
}

// Trimmer cuts the leading clip out of each handle.
type Trimmer interface {
	TrimAll(ctx context.Context, handles []acquire.MediaHandle, clipSeconds int) []*audio.Segment
}

// Concatenator merges ordered segments into one track.
type Concatenator interface {
	Concatenate(ctx context.Context, segments []*audio.Segment, outPath string) (*audio.Track, error)
}

// Encoder writes the merged track in its delivery format.
type Encoder interface {
	Encode(ctx context.Context, track *audio.Track, kind encoding.OutputKind, dest string) error
}

// Packager bundles an artifact for delivery.
type Packager interface {
	Package(artifactPath, bundlePath string) (packaging.Bundle, error)
}

// Stages bundles the concrete pipeline collaborators a Runner drives.
type Stages struct {
	Acquirer     Acquirer
	Trimmer      Trimmer
	Concatenator Concatenator
	Encoder      Encoder
	Packager     Packager
	Notifier     notifications.Notifier
	Alerts       notifications.Alerts
}

// NewStages wires the production collaborators from configuration. It fails
// with services.ErrConfiguration when search credentials are missing.
func NewStages(cfg *config.Config, logger *slog.Logger) (Stages, error) {
	if err := cfg.RequireSearchCredentials(); err != nil {
		return Stages{}, services.Wrap(services.ErrConfiguration, "startup", "search credentials", err.Error(), err)
	}
	provider, err := acquire.NewYouTubeProvider(cfg)
	if err != nil {
		return Stages{}, err
	}
	tool := ffmpeg.New(cfg.Media.FFmpegBinary)
	return Stages{
		Acquirer: acquire.New(provider, acquire.Options{
			FFprobeBinary: cfg.Media.FFprobeBinary,
			Parallelism:   cfg.Search.ParallelDownloads,
			Logger:        logger,
		}),
		Trimmer:      audio.NewTrimmer(tool, cfg.Media.SampleRate, logger),
		Concatenator: audio.NewConcatenator(tool),
		Encoder:      encoding.New(tool, encoding.SettingsFromConfig(cfg), logger),
		Packager:     packaging.New(),
		Notifier:     notifications.NewNotifier(cfg),
		Alerts:       notifications.NewAlerts(cfg),
	}, nil
}
