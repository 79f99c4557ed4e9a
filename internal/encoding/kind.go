package encoding

import (
	"fmt"
	"path/filepath"
	"strings"

	"mashup/internal/services"
)

// OutputKind selects the artifact container.
type OutputKind string

const (
	KindAudio OutputKind = "audio"
	KindVideo OutputKind = "video"
)

// Extension returns the file extension including the leading dot.
func (k OutputKind) Extension() string {
	if k == KindVideo {
		return ".mp4"
	}
	return ".mp3"
}

func (k OutputKind) String() string { return string(k) }

// ParseKind accepts the form/API spellings of an output kind.
func ParseKind(value string) (OutputKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "audio", "mp3":
		return KindAudio, nil
	case "video", "audio+video", "mp4":
		return KindVideo, nil
	default:
		return "", services.Wrap(services.ErrValidation, "intake", "output kind",
			fmt.Sprintf("Output kind must be audio or video, got %q.", value), nil)
	}
}

// KindFromPath derives the output kind from a file name's extension.
func KindFromPath(path string) (OutputKind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return KindAudio, nil
	case ".mp4":
		return KindVideo, nil
	default:
		return "", services.Wrap(services.ErrValidation, "intake", "output file",
			"OutputFileName must end with .mp3 or .mp4.", nil)
	}
}
