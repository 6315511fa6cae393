// Package domain contains the core business entities, value objects and the
// coordinate conversion core.
package domain

import (
	"fmt"
	"math"
	"strings"
)

// GeoPoint is a (longitude, latitude) pair in decimal degrees.
type GeoPoint struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// NewGeoPoint creates a point from longitude and latitude.
func NewGeoPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Lng: lng, Lat: lat}
}

// Validate returns an InvalidCoordinateError if either component is NaN or infinite.
// Range is deliberately not checked; the converters accept any finite input.
func (p GeoPoint) Validate() error {
	return p.validateAt(-1)
}

func (p GeoPoint) validateAt(index int) error {
	if math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return &InvalidCoordinateError{Index: index, Field: "lng", Value: p.Lng}
	}
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) {
		return &InvalidCoordinateError{Index: index, Field: "lat", Value: p.Lat}
	}
	return nil
}

// IsZero returns true if the point is at (0, 0).
func (p GeoPoint) IsZero() bool {
	return p.Lng == 0 && p.Lat == 0
}

// String returns a string representation of the point.
func (p GeoPoint) String() string {
	return fmt.Sprintf("POINT(%f %f)", p.Lng, p.Lat)
}

// Datum identifies one of the supported geodetic coordinate systems.
type Datum string

// Supported datums.
const (
	DatumWGS84 Datum = "wgs84" // GPS / international standard
	DatumGCJ02 Datum = "gcj02" // Chinese national obfuscated datum
	DatumBD09  Datum = "bd09"  // Baidu datum
)

// Datums lists the supported datums in canonical order.
var Datums = []Datum{DatumWGS84, DatumGCJ02, DatumBD09}

var datumAliases = map[string]Datum{
	"wgs84":  DatumWGS84,
	"wgs-84": DatumWGS84,
	"gps":    DatumWGS84,
	"gcj02":  DatumGCJ02,
	"gcj-02": DatumGCJ02,
	"mars":   DatumGCJ02,
	"bd09":   DatumBD09,
	"bd-09":  DatumBD09,
	"baidu":  DatumBD09,
}

// ParseDatum parses a datum name case-insensitively. An empty string yields WGS84.
func ParseDatum(s string) (Datum, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DatumWGS84, nil
	}
	if d, ok := datumAliases[s]; ok {
		return d, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownDatum)
}

// IsValid reports whether d is one of the supported datums.
func (d Datum) IsValid() bool {
	switch d {
	case DatumWGS84, DatumGCJ02, DatumBD09:
		return true
	}
	return false
}

// String returns the canonical datum name.
func (d Datum) String() string {
	return string(d)
}

// Polygon is an ordered, implicitly closed ring of vertices.
type Polygon []GeoPoint

// Validate checks every vertex for finiteness.
func (p Polygon) Validate() error {
	for i, v := range p {
		if err := v.validateAt(i); err != nil {
			return err
		}
	}
	return nil
}

// Extent returns the bounding box of the polygon. The zero Extent is returned for an empty polygon.
func (p Polygon) Extent() Extent {
	if len(p) == 0 {
		return Extent{}
	}
	e := Extent{MinX: p[0].Lng, MinY: p[0].Lat, MaxX: p[0].Lng, MaxY: p[0].Lat}
	for _, v := range p[1:] {
		e.MinX = math.Min(e.MinX, v.Lng)
		e.MinY = math.Min(e.MinY, v.Lat)
		e.MaxX = math.Max(e.MaxX, v.Lng)
		e.MaxY = math.Max(e.MaxY, v.Lat)
	}
	return e
}

// Extent represents a spatial bounding box.
type Extent struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Contains checks if a point is within the extent.
func (e Extent) Contains(p GeoPoint) bool {
	return p.Lng >= e.MinX && p.Lng <= e.MaxX && p.Lat >= e.MinY && p.Lat <= e.MaxY
}

// IsValid checks if the extent has valid dimensions.
func (e Extent) IsValid() bool {
	return e.MinX <= e.MaxX && e.MinY <= e.MaxY
}

// Width returns the width of the extent.
func (e Extent) Width() float64 {
	return math.Abs(e.MaxX - e.MinX)
}

// Height returns the height of the extent.
func (e Extent) Height() float64 {
	return math.Abs(e.MaxY - e.MinY)
}

// Center returns the midpoint of the extent.
func (e Extent) Center() GeoPoint {
	return GeoPoint{
		Lng: (e.MinX + e.MaxX) / 2,
		Lat: (e.MinY + e.MaxY) / 2,
	}
}
