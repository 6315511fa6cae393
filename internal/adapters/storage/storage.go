// Package storage provides object storage adapters for map files.
package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jobrunner/sweeper/internal/domain"
)

// relativeKey strips prefix from name and reports whether the result is a
// map file key that is safe to use as a local relative path.
func relativeKey(prefix, name string) (string, bool) {
	key := name
	if prefix != "" {
		key = strings.TrimPrefix(strings.TrimPrefix(name, prefix), "/")
	}
	if !validKey(key) {
		return "", false
	}
	return key, true
}

// validKey reports whether key names a map file without escaping its root.
func validKey(key string) bool {
	if key == "" || !domain.IsMapFile(key) {
		return false
	}
	if path.IsAbs(key) || filepath.IsAbs(key) {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(key), "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

// joinKey prefixes key for remote lookups.
func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, "/") + "/" + key
}

// writeFile streams r into dest via a temporary file in the same directory,
// so watchers never observe a partially written map.
func writeFile(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, dest)
}

func storageErr(op, key string, err error) error {
	return &domain.StorageError{Operation: op, Key: key, Err: err}
}

func invalidKeyErr(op, key string) error {
	return storageErr(op, key, fmt.Errorf("invalid map file key: %w", domain.ErrInvalidInput))
}
