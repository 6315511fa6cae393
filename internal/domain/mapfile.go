package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// MapFile is a registered high-precision map file containing a coordinate set.
type MapFile struct {
	ID       string        // Unique identifier (derived from filename)
	Name     string        // Display name
	Path     string        // Local file path
	Size     int64         // File size in bytes
	Datum    Datum         // Datum of the stored coordinates
	Vertices Polygon       // Parsed boundary
	Center   GeoPoint      // Centroid of Vertices
	Extent   Extent        // Bounding box of Vertices
	Status   MapFileStatus // Current status
	Error    string        // Error message when Status is error
	LoadedAt time.Time     // Load timestamp
}

// IsReady returns true if the map parsed and its center is known.
func (m *MapFile) IsReady() bool {
	return m.Status == MapStatusReady
}

// VertexCount returns the number of boundary vertices.
func (m *MapFile) VertexCount() int {
	return len(m.Vertices)
}

// MapFileStatus represents the status of a map file.
type MapFileStatus string

const (
	MapStatusLoading   MapFileStatus = "loading"
	MapStatusReady     MapFileStatus = "ready"
	MapStatusError     MapFileStatus = "error"
	MapStatusUnloading MapFileStatus = "unloading"
)

// mapFileExtensions are the recognized coordinate set file extensions.
var mapFileExtensions = map[string]bool{
	".txt":  true,
	".json": true,
	".wkt":  true,
}

// IsMapFile reports whether path has a recognized map file extension.
func IsMapFile(path string) bool {
	return mapFileExtensions[strings.ToLower(filepath.Ext(path))]
}

// MapFileID derives the map identifier and datum from a file name.
// "campus.bd09.txt" yields ("campus", bd09); without a datum suffix the datum is WGS84.
// The directory and extension are not part of the ID, so "a.txt" and "x/a.json"
// share the ID "a"; the registry keeps only one of them.
func MapFileID(path string) (string, Datum) {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	if ext := filepath.Ext(name); len(ext) > 1 {
		if d, err := ParseDatum(strings.TrimPrefix(ext, ".")); err == nil {
			return strings.TrimSuffix(name, ext), d
		}
	}
	return name, DatumWGS84
}
