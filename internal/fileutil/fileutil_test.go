package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func TestCopyFileCreatesParent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "nested", "out", "dst.txt")

	content := []byte("hello world")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := []byte("verified copy content")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerified_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFileVerified(filepath.Join(dir, "nonexistent"), filepath.Join(dir, "dst.bin")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestMoveRenamesWithinFilesystem(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "work", "mix.mp3")
	dst := filepath.Join(dir, "results", "job", "mix.mp3")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("mp3"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Move(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source gone, err=%v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("expected destination: %v", err)
	}
}

func TestMoveFallsBackToCopyAcrossDevices(t *testing.T) {
	previous := rename
	rename = func(string, string) error {
		return &os.LinkError{Op: "rename", Err: unix.EXDEV}
	}
	t.Cleanup(func() { rename = previous })

	dir := t.TempDir()
	src := filepath.Join(dir, "mix.mp4")
	dst := filepath.Join(dir, "other", "mix.mp4")
	if err := os.WriteFile(src, []byte("mp4 bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Move(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "mp4 bytes" {
		t.Fatalf("unexpected destination content %q err=%v", got, err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source removed, err=%v", err)
	}
}

func TestMovePropagatesOtherErrors(t *testing.T) {
	dir := t.TempDir()
	if err := Move(filepath.Join(dir, "missing"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyFileLeavesNoPartial(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "mix.mp3")
	dst := filepath.Join(dir, "out", "Mix.mp3")
	if err := os.WriteFile(src, []byte("mp3"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dst + partialSuffix); !os.IsNotExist(err) {
		t.Fatalf("expected no partial file, err=%v", err)
	}
}

func TestCopyFileMissingSourceCreatesNothing(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "Mix.mp3")
	if err := CopyFile(filepath.Join(dir, "missing"), dst); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("expected no destination, err=%v", err)
	}
}
