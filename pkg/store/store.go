// Package store provides crash-safe file persistence for lockbox.
//
// Writes go to a sibling temp file which is flushed, fsynced, and atomically
// renamed over the destination, so a reader observes either the old complete
// file or the new complete file, never a partial blend. The package also
// rotates timestamped backups with count-based retention and holds an
// advisory lock while the vault is open.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// FileMode is the permission for vault data files (owner read/write only).
	FileMode = 0600
	// DirMode is the permission for vault directories.
	DirMode = 0700

	// timestampLayout is fixed-width so lexicographic order is chronological.
	timestampLayout = "20060102_150405"
)

// ErrNotFound is returned by Read when the file does not exist.
var ErrNotFound = errors.New("store: file not found")

// Read returns the full contents of path, or ErrNotFound if it does not
// exist.
func Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("store: failed to read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically replaces path with data.
//
// The data is written to a temp file in the destination directory, flushed
// and fsynced, then renamed over path. On any failure the temp file is
// removed and the original error propagates; the destination is never left
// partially written.
func Write(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return fmt.Errorf("store: failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("store: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("store: failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("store: failed to sync temp file: %w", err)
	}
	if err := tmp.Chmod(FileMode); err != nil {
		cleanup()
		return fmt.Errorf("store: failed to set permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: failed to replace %s: %w", path, err)
	}
	return nil
}

// Backup copies the current contents of path into destDir under a
// timestamped name (prefix_YYYYMMDD_HHMMSS + the source extension) and
// prunes the oldest backups with the same prefix beyond retention.
//
// The fixed-width timestamp makes name order chronological, so retention is
// enforced by a simple sort. Returns the path of the new backup.
func Backup(path, destDir, prefix string, retention int) (string, error) {
	data, err := Read(path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(destDir, DirMode); err != nil {
		return "", fmt.Errorf("store: failed to create backup directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s%s", prefix, time.Now().Format(timestampLayout), filepath.Ext(path))
	backupPath := filepath.Join(destDir, name)

	// Timestamp resolution is one second; saves in quick succession would
	// otherwise overwrite the same backup name.
	for seq := 1; ; seq++ {
		if _, err := os.Stat(backupPath); os.IsNotExist(err) {
			break
		}
		backupPath = filepath.Join(destDir, fmt.Sprintf("%s_%s_%d%s",
			prefix, time.Now().Format(timestampLayout), seq, filepath.Ext(path)))
	}

	if err := Write(backupPath, data); err != nil {
		return "", err
	}

	if err := Prune(destDir, prefix, retention); err != nil {
		return backupPath, err
	}
	return backupPath, nil
}

// Prune deletes the oldest files in dir whose names start with prefix,
// keeping at most retention of them. retention <= 0 means keep everything.
func Prune(dir, prefix string, retention int) error {
	if retention <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("store: failed to list backups: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix+"_") {
			names = append(names, e.Name())
		}
	}
	if len(names) <= retention {
		return nil
	}

	sort.Strings(names)
	for _, name := range names[:len(names)-retention] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("store: failed to prune backup %s: %w", name, err)
		}
	}
	return nil
}
