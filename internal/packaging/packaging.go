// Package packaging bundles the encoded artifact into a single-file zip for
// email delivery.
package packaging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"mashup/internal/services"
)

const stageName = "packaging"

// Bundle is a written zip archive.
type Bundle struct {
	Path string
	Size int64
}

// Packager writes single-entry deflate archives.
type Packager struct {
	level int
}

// New returns a Packager using the default compression level.
func New() *Packager {
	return &Packager{level: flate.DefaultCompression}
}

// Package compresses artifactPath into bundlePath. The archive holds one
// entry named after the artifact. A failed write leaves no bundle behind.
func (p *Packager) Package(artifactPath, bundlePath string) (Bundle, error) {
	src, err := os.Open(artifactPath)
	if err != nil {
		return Bundle{}, services.Wrap(services.ErrTransient, stageName, "open artifact", "artifact is missing", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return Bundle{}, services.Wrap(services.ErrTransient, stageName, "stat artifact", "artifact is unreadable", err)
	}

	if err := os.MkdirAll(filepath.Dir(bundlePath), 0o755); err != nil {
		return Bundle{}, services.Wrap(services.ErrTransient, stageName, "prepare bundle", "could not create bundle directory", err)
	}
	out, err := os.Create(bundlePath)
	if err != nil {
		return Bundle{}, services.Wrap(services.ErrTransient, stageName, "create bundle", "could not create bundle", err)
	}

	size, writeErr := p.write(out, src, info)
	closeErr := out.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(bundlePath)
		return Bundle{}, services.Wrap(services.ErrTransient, stageName, "write bundle", "could not write bundle", err)
	}
	return Bundle{Path: bundlePath, Size: size}, nil
}

func (p *Packager) write(out *os.File, src io.Reader, info os.FileInfo) (int64, error) {
	zw := zip.NewWriter(out)
	level := p.level
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	header.Name = filepath.Base(info.Name())
	header.Method = zip.Deflate
	header.Modified = info.ModTime()

	entry, err := zw.CreateHeader(header)
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(entry, src); err != nil {
		return 0, fmt.Errorf("compress %s: %w", header.Name, err)
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	stat, err := out.Stat()
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}
