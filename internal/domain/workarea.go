package domain

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxWorkAreaNameLength is the maximum work area name length in characters.
const MaxWorkAreaNameLength = 40

// WorkArea is a named polygon a vehicle operates in. Its center is always
// derived from the vertices and never set by callers.
type WorkArea struct {
	ID        int64     // Database identifier
	Name      string    // Unique display name
	Vertices  Polygon   // Boundary in Datum
	Datum     Datum     // Datum of Vertices and Center
	Center    GeoPoint  // Centroid of Vertices
	MapGrade  int       // Map zoom scale used when displaying the area
	CreatedAt time.Time // Creation timestamp
	UpdatedAt time.Time // Last modification timestamp
}

// WorkAreaInput carries the caller-supplied fields of a work area.
type WorkAreaInput struct {
	Name        string // Display name
	Coordinates string // Coordinate set in any supported encoding
	Datum       Datum  // Datum of Coordinates, WGS84 if empty
	MapGrade    int    // Map zoom scale
}

// NewWorkArea validates in, parses its coordinate set and computes the center.
func NewWorkArea(in WorkAreaInput) (*WorkArea, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &ValidationError{
			Field:      "name",
			Value:      in.Name,
			Constraint: "required",
			Message:    "name must not be empty",
		}
	}
	if utf8.RuneCountInString(name) > MaxWorkAreaNameLength {
		return nil, &ValidationError{
			Field:      "name",
			Value:      in.Name,
			Constraint: "max " + strconv.Itoa(MaxWorkAreaNameLength),
			Message:    "name is too long",
		}
	}
	if in.MapGrade < 0 {
		return nil, &ValidationError{
			Field:      "map_grade",
			Value:      in.MapGrade,
			Constraint: ">= 0",
			Message:    "map grade must not be negative",
		}
	}

	datum := in.Datum
	if datum == "" {
		datum = DatumWGS84
	}
	if !datum.IsValid() {
		return nil, &ValidationError{
			Field:      "datum",
			Value:      in.Datum,
			Constraint: "wgs84|gcj02|bd09",
			Message:    "unknown datum",
		}
	}

	vertices, err := ParseCoordinateSet(in.Coordinates)
	if err != nil {
		return nil, err
	}
	center, err := Centroid(vertices)
	if err != nil {
		return nil, err
	}

	return &WorkArea{
		Name:     name,
		Vertices: vertices,
		Datum:    datum,
		Center:   center,
		MapGrade: in.MapGrade,
	}, nil
}

// Extent returns the bounding box of the work area.
func (w *WorkArea) Extent() Extent {
	return w.Vertices.Extent()
}

// CenterIn returns the center converted to datum d.
func (w *WorkArea) CenterIn(d Datum) (GeoPoint, error) {
	return Convert(w.Center, w.Datum, d)
}

// CenterString formats the center as "lng,lat", the form stored alongside the area.
func (w *WorkArea) CenterString() string {
	return strconv.FormatFloat(w.Center.Lng, 'f', -1, 64) + "," +
		strconv.FormatFloat(w.Center.Lat, 'f', -1, 64)
}
