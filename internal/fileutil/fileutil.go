// Package fileutil moves finished artifacts between the job workspace and
// the results area, which may live on different filesystems.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// rename is swapped in tests to simulate cross-device moves.
var rename = os.Rename

const partialSuffix = ".partial"

// CopyFile writes a copy of src at dst. The bytes land in a sibling
// ".partial" file first, so dst is either absent or complete.
func CopyFile(src, dst string) error {
	tmp := dst + partialSuffix
	if _, _, err := stream(src, tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// CopyFileVerified copies src to dst and then reads dst back, comparing
// length and SHA-256 against what was read from src. dst is removed when
// they disagree.
func CopyFileVerified(src, dst string) error {
	size, want, err := stream(src, dst)
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	gotSize, got, err := digest(dst)
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("verify copy: %w", err)
	}
	switch {
	case gotSize != size:
		_ = os.Remove(dst)
		return fmt.Errorf("verify copy: wrote %d bytes, found %d", size, gotSize)
	case !bytes.Equal(got, want):
		_ = os.Remove(dst)
		return errors.New("verify copy: checksum differs from source")
	}
	return nil
}

// Move relocates src to dst. A rename is tried first; across filesystems the
// file is copied with verification and the source removed.
func Move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	err := rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return err
	}
	if err := CopyFileVerified(src, dst); err != nil {
		return fmt.Errorf("cross-device move: %w", err)
	}
	return os.Remove(src)
}

// stream copies src into a freshly truncated dst and returns the byte count
// and SHA-256 of the source bytes.
func stream(src, dst string) (int64, []byte, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, nil, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, nil, err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, nil, err
	}
	sum := sha256.New()
	n, copyErr := io.Copy(out, io.TeeReader(in, sum))
	syncErr := out.Sync()
	closeErr := out.Close()
	if err := errors.Join(copyErr, syncErr, closeErr); err != nil {
		return 0, nil, err
	}
	return n, sum.Sum(nil), nil
}

func digest(path string) (int64, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()
	sum := sha256.New()
	n, err := io.Copy(sum, f)
	if err != nil {
		return 0, nil, err
	}
	return n, sum.Sum(nil), nil
}
