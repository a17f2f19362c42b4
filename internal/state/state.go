// Package state provides the shared on-disk persistence plumbing for the
// governance stores. Both the RBAC assignment table and the approval
// ledger are small JSON documents rewritten in full on every mutation, so
// the only discipline that matters here is that a partial write can never
// replace a good file.
package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile atomically replaces the file at path with data. The document
// is written to a temporary file in the same directory and renamed over
// the target, so a crash mid-write leaves the previous contents intact.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("state: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("state: write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("state: sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("state: replace %s: %w", path, err)
	}
	return nil
}

// ReadFile reads the file at path. A missing file returns (nil, false, nil)
// so callers can fall back to an empty state without inspecting the error.
func ReadFile(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("state: read %s: %w", path, err)
	}
	return data, true, nil
}
