//go:build !windows

package store

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FileLock is an advisory exclusive lock on a file, used to enforce the
// single-owner rule on an open vault. The lock must be released before the
// locked file is replaced by rename on platforms that require it.
type FileLock struct {
	f *os.File
}

// AcquireLock takes a non-blocking exclusive flock on path, creating the
// file if needed. A second caller gets an error instead of blocking. Lock a
// dedicated sidecar file, not a file that gets replaced by rename: the lock
// follows the inode, so a renamed-over file would silently lose protection.
func AcquireLock(path string) (*FileLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, FileMode)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open %s for locking: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("store: vault is locked by another process: %w", err)
	}
	return &FileLock{f: f}, nil
}

// Release drops the lock. Safe to call on a nil receiver.
func (l *FileLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	l.f = nil
	if err != nil {
		return fmt.Errorf("store: failed to release lock: %w", err)
	}
	return closeErr
}
