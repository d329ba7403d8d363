package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/neocities-go/neocities/internal/config"
)

// ErrProjectLocked is returned when another process is syncing the project.
var ErrProjectLocked = errors.New("project is locked by another sync")

// ProjectLock keeps two syncs of one project directory from interleaving.
type ProjectLock struct {
	flock *flock.Flock
}

// NewProjectLock returns the lock of projectDir. It is not taken yet.
func NewProjectLock(projectDir string) *ProjectLock {
	return &ProjectLock{flock: flock.New(filepath.Join(projectDir, config.LockName))}
}

// Lock takes the lock without waiting.
func (l *ProjectLock) Lock() error {
	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock project: %w", err)
	}
	if !locked {
		return ErrProjectLocked
	}
	return nil
}

// Unlock releases the lock and removes the lock file.
func (l *ProjectLock) Unlock() error {
	// if this process hasn't locked the project, then don't delete the lock file
	if !l.flock.Locked() {
		return nil
	}

	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock project: %w", err)
	}

	return os.Remove(l.flock.Path())
}
