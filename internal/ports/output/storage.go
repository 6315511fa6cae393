// Package output defines the secondary/driven ports of the application.
package output

import (
	"context"
	"io"
	"strconv"
)

// ObjectStorage is the source map files are synced from. Keys are
// slash-separated paths relative to the storage root.
type ObjectStorage interface {
	// List returns the map files in the storage. Objects without a map
	// file extension are not listed.
	List(ctx context.Context) ([]StorageObject, error)

	// Download writes the object to dest, creating parent directories.
	Download(ctx context.Context, key string, dest string) error

	// GetReader opens the object for streaming.
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether the object is still stored. Sync uses it to
	// confirm a removal before unloading a map.
	Exists(ctx context.Context, key string) (bool, error)
}

// StorageObject is a map file in object storage.
type StorageObject struct {
	Key          string
	Size         int64
	LastModified int64 // Unix seconds
	ETag         string
}

// Revision identifies the object's content. Backends without ETags fall
// back to modification time and size.
func (o StorageObject) Revision() string {
	if o.ETag != "" {
		return o.ETag
	}
	return strconv.FormatInt(o.LastModified, 10) + "-" + strconv.FormatInt(o.Size, 10)
}
