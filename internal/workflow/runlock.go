package workflow

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// runLock marks a command-line job as owned by a live process. The service
// only fails a command-line job once it can take the job's lock itself.
type runLock struct {
	lock *flock.Flock
}

// tryRunLock takes the lock at path without blocking. ok is false when
// another process holds it.
func tryRunLock(path string) (*runLock, bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, fmt.Errorf("create run lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &runLock{lock: lock}, true, nil
}

// release unlocks and removes the lock file.
func (l *runLock) release() error {
	if l == nil {
		return nil
	}
	unlockErr := l.lock.Unlock()
	removeErr := os.Remove(l.lock.Path())
	if errors.Is(removeErr, fs.ErrNotExist) {
		removeErr = nil
	}
	return errors.Join(unlockErr, removeErr)
}
