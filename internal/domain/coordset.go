package domain

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// Coordinate set encodings.
const (
	FormatJSON = "json"
	FormatWKT  = "wkt"
	FormatText = "text"
)

var errEmptyCoordinateSet = errors.New("no coordinates")

// ParseCoordinateSet decodes a stored or submitted vertex list.
//
// Accepted encodings are a JSON array of [lng, lat] pairs, a JSON array of
// {"lng", "lat"} objects, a WKT POLYGON (exterior ring only) and plain text
// with one "lng,lat" or "lng lat" pair per line. A closing vertex equal to the
// first one is dropped.
func ParseCoordinateSet(s string) (Polygon, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, &ParseError{Format: FormatText, Err: errEmptyCoordinateSet}
	}

	var (
		poly Polygon
		err  error
	)
	switch {
	case strings.HasPrefix(s, "["):
		poly, err = parseJSONCoordinates(s)
	case strings.HasPrefix(strings.ToUpper(s), "POLYGON"):
		poly, err = parseWKTPolygon(s)
	default:
		poly, err = parseTextCoordinates(s)
	}
	if err != nil {
		return nil, err
	}
	if len(poly) == 0 {
		return nil, &ParseError{Format: FormatJSON, Err: errEmptyCoordinateSet}
	}
	return openRing(poly), nil
}

func parseJSONCoordinates(s string) (Polygon, error) {
	var pairs [][]*float64
	if err := json.Unmarshal([]byte(s), &pairs); err == nil {
		poly := make(Polygon, 0, len(pairs))
		for i, pair := range pairs {
			if len(pair) != 2 {
				return nil, &ParseError{
					Format: FormatJSON,
					Err:    fmt.Errorf("element %d has %d values, want 2", i, len(pair)),
				}
			}
			if pair[0] == nil || pair[1] == nil {
				return nil, &ParseError{
					Format: FormatJSON,
					Err:    fmt.Errorf("element %d: coordinate is null", i),
				}
			}
			poly = append(poly, GeoPoint{Lng: *pair[0], Lat: *pair[1]})
		}
		return poly, nil
	}

	var objects []struct {
		Lng *float64 `json:"lng"`
		Lat *float64 `json:"lat"`
	}
	if err := json.Unmarshal([]byte(s), &objects); err != nil {
		return nil, &ParseError{Format: FormatJSON, Err: err}
	}
	poly := make(Polygon, 0, len(objects))
	for i, o := range objects {
		switch {
		case o.Lng == nil:
			return nil, &ParseError{Format: FormatJSON, Err: fmt.Errorf("element %d: missing lng", i)}
		case o.Lat == nil:
			return nil, &ParseError{Format: FormatJSON, Err: fmt.Errorf("element %d: missing lat", i)}
		}
		poly = append(poly, GeoPoint{Lng: *o.Lng, Lat: *o.Lat})
	}
	return poly, nil
}

func parseWKTPolygon(s string) (Polygon, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, &ParseError{Format: FormatWKT, Err: err}
	}
	p, ok := g.(*geom.Polygon)
	if !ok {
		return nil, &ParseError{Format: FormatWKT, Err: fmt.Errorf("unexpected geometry %T", g)}
	}
	if p.NumLinearRings() == 0 {
		return nil, &ParseError{Format: FormatWKT, Err: errEmptyCoordinateSet}
	}
	coords := p.LinearRing(0).Coords()
	poly := make(Polygon, 0, len(coords))
	for _, c := range coords {
		poly = append(poly, GeoPoint{Lng: c.X(), Lat: c.Y()})
	}
	return poly, nil
}

func parseTextCoordinates(s string) (Polygon, error) {
	var poly Polygon
	scanner := bufio.NewScanner(strings.NewReader(s))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '\t'
		})
		if len(fields) != 2 {
			return nil, &ParseError{
				Format: FormatText,
				Line:   line,
				Err:    fmt.Errorf("expected 2 values, got %d", len(fields)),
			}
		}
		lng, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, &ParseError{Format: FormatText, Line: line, Err: err}
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, &ParseError{Format: FormatText, Line: line, Err: err}
		}
		poly = append(poly, GeoPoint{Lng: lng, Lat: lat})
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Format: FormatText, Err: err}
	}
	if len(poly) == 0 {
		return nil, &ParseError{Format: FormatText, Err: errEmptyCoordinateSet}
	}
	return poly, nil
}

// openRing drops an explicit closing vertex.
func openRing(p Polygon) Polygon {
	if len(p) > 1 && p[0] == p[len(p)-1] {
		return p[:len(p)-1]
	}
	return p
}

// EncodeCoordinateSet returns the canonical JSON encoding, an array of [lng, lat] pairs.
func EncodeCoordinateSet(p Polygon) (string, error) {
	pairs := make([][2]float64, len(p))
	for i, v := range p {
		pairs[i] = [2]float64{v.Lng, v.Lat}
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("encoding coordinate set: %w", err)
	}
	return string(data), nil
}

// Geometry converts the polygon to a closed go-geom polygon.
func (p Polygon) Geometry() (*geom.Polygon, error) {
	ring := make([]geom.Coord, 0, len(p)+1)
	for _, v := range p {
		ring = append(ring, geom.Coord{v.Lng, v.Lat})
	}
	if len(p) > 0 && p[0] != p[len(p)-1] {
		ring = append(ring, geom.Coord{p[0].Lng, p[0].Lat})
	}
	return geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{ring})
}

// WKT returns the Well-Known Text representation of the polygon.
func (p Polygon) WKT() (string, error) {
	g, err := p.Geometry()
	if err != nil {
		return "", err
	}
	return wkt.Marshal(g)
}

// GeoJSONFeature builds a GeoJSON feature with the polygon as geometry.
func GeoJSONFeature(id string, p Polygon, props map[string]interface{}) (*geojson.Feature, error) {
	g, err := p.Geometry()
	if err != nil {
		return nil, err
	}
	return &geojson.Feature{
		ID:         id,
		Geometry:   g,
		Properties: props,
	}, nil
}
