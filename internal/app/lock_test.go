package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestProjectLock(t *testing.T) {
	dir := t.TempDir()

	first := NewProjectLock(dir)
	if err := first.Lock(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := NewProjectLock(dir)
	if err := second.Lock(); !errors.Is(err, ErrProjectLocked) {
		t.Fatalf("expected ErrProjectLocked, got %v", err)
	}

	// Unlocking a lock that was never taken leaves the holder alone.
	if err := second.Unlock(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".neocities.lock")); err != nil {
		t.Fatalf("expected lock file to survive: %v", err)
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".neocities.lock")); !os.IsNotExist(err) {
		t.Errorf("expected lock file to be removed, got %v", err)
	}

	third := NewProjectLock(dir)
	if err := third.Lock(); err != nil {
		t.Fatalf("expected lock to be free again: %v", err)
	}
	third.Unlock()
}

func TestProjectLockUnlockReportsRemoveError(t *testing.T) {
	dir := t.TempDir()

	lock := NewProjectLock(dir)
	if err := lock.Lock(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, ".neocities.lock")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := lock.Unlock(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected the missing lock file to be reported, got %v", err)
	}
}
