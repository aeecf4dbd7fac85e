package state

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// atomicWrite stages content in a temp file next to path, syncs it and
// renames it over path. Readers see either the old or the new document.
func atomicWrite(path string, perm os.FileMode, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// Create temp file in same directory for atomic rename
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath) //nolint:errcheck // cleanup in error path
		}
	}()

	if err := writeFunc(tmpFile); err != nil {
		_ = tmpFile.Close() //nolint:errcheck // cleanup in error path
		return fmt.Errorf("write content: %w", err)
	}

	if err := tmpFile.Chmod(perm); err != nil {
		_ = tmpFile.Close() //nolint:errcheck // cleanup in error path
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close() //nolint:errcheck // cleanup in error path
		return fmt.Errorf("sync file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename to final: %w", err)
	}

	success = true
	return nil
}
