//go:build windows

package store

// FileLock is a no-op on Windows. Mandatory handle-based locking interacts
// badly with the rename-based writes used elsewhere, so the single-owner
// rule relies on the process model instead.
type FileLock struct{}

// AcquireLock returns a no-op lock.
func AcquireLock(path string) (*FileLock, error) {
	return &FileLock{}, nil
}

// Release is a no-op. Safe to call on a nil receiver.
func (l *FileLock) Release() error {
	return nil
}
