package output

import (
	"context"

	"github.com/jobrunner/sweeper/internal/domain"
)

// MapFileLoader defines the secondary port for reading map files.
type MapFileLoader interface {
	// Load reads and parses a map file. Malformed content yields an error
	// wrapping domain.ErrInvalidInput; I/O failures are returned as is.
	Load(ctx context.Context, path string) (*domain.MapFile, error)
}
