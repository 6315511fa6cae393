// Package mapfile reads coordinate set map files from the local filesystem.
package mapfile

import (
	"context"
	"fmt"
	"os"

	"github.com/jobrunner/sweeper/internal/domain"
)

// maxFileSize bounds the size of a single map file.
const maxFileSize = 32 << 20

// Loader implements the MapFileLoader port.
type Loader struct{}

// NewLoader creates a new map file loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads the file at path, parses its coordinate set and computes the
// centroid and extent in the datum encoded in the file name.
func (l *Loader) Load(ctx context.Context, path string) (*domain.MapFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &domain.StorageError{Operation: "stat", Key: path, Err: err}
	}
	if info.IsDir() {
		return nil, &domain.StorageError{Operation: "read", Key: path, Err: fmt.Errorf("is a directory")}
	}
	if info.Size() > maxFileSize {
		return nil, &domain.ValidationError{
			Field:      "size",
			Value:      info.Size(),
			Constraint: fmt.Sprintf("<= %d", maxFileSize),
			Message:    "map file too large",
		}
	}

	data, err := os.ReadFile(path) //#nosec G304 -- path comes from the configured map directory
	if err != nil {
		return nil, &domain.StorageError{Operation: "read", Key: path, Err: err}
	}

	id, datum := domain.MapFileID(path)
	m := &domain.MapFile{
		ID:    id,
		Name:  id,
		Path:  path,
		Size:  info.Size(),
		Datum: datum,
	}

	vertices, err := domain.ParseCoordinateSet(string(data))
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", id, err)
	}
	center, err := domain.Centroid(vertices)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", id, err)
	}

	m.Vertices = vertices
	m.Center = center
	m.Extent = vertices.Extent()

	return m, nil
}
