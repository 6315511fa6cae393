package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jobrunner/sweeper/internal/ports/output"
)

// LocalStorage implements ObjectStorage for a local directory of map files.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage adapter.
func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

// List returns all map files below the base directory.
func (s *LocalStorage) List(ctx context.Context) ([]output.StorageObject, error) {
	var objects []output.StorageObject

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		key, ok := relativeKey("", filepath.ToSlash(rel))
		if !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		objects = append(objects, output.StorageObject{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, storageErr("list", s.basePath, err)
	}

	return objects, nil
}

// Download copies a map file to dest. It is a no-op when dest is the source itself.
func (s *LocalStorage) Download(_ context.Context, key string, dest string) error {
	if !validKey(key) {
		return invalidKeyErr("download", key)
	}

	srcPath := s.FullPath(key)
	if filepath.Clean(srcPath) == filepath.Clean(dest) {
		return nil
	}

	src, err := os.Open(srcPath) //#nosec G304 -- key is validated against traversal
	if err != nil {
		return storageErr("download", key, err)
	}
	defer func() { _ = src.Close() }()

	if err := writeFile(dest, src); err != nil {
		return storageErr("download", key, err)
	}
	return nil
}

// GetReader returns a reader for the given map file.
func (s *LocalStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	if !validKey(key) {
		return nil, invalidKeyErr("read", key)
	}
	f, err := os.Open(s.FullPath(key)) //#nosec G304 -- key is validated against traversal
	if err != nil {
		return nil, storageErr("read", key, err)
	}
	return f, nil
}

// Exists checks if a map file exists.
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.FullPath(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, storageErr("stat", key, err)
}

// FullPath returns the full path for a key.
func (s *LocalStorage) FullPath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}
