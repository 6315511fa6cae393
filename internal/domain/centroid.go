package domain

import "math"

// Centroid returns the area-weighted centroid of an implicitly closed polygon.
//
// Each vertex is paired with its predecessor (the first with the last) and the
// signed-area terms are accumulated in that order; winding direction does not
// affect the result. Polygons with fewer than three vertices or zero signed
// area yield a DegenerateInputError, as do vertices so large that the area
// overflows. Non-finite vertices or a non-finite result yield an
// InvalidCoordinateError.
func Centroid(poly Polygon) (GeoPoint, error) {
	if err := poly.Validate(); err != nil {
		return GeoPoint{}, err
	}
	if len(poly) < 3 {
		return GeoPoint{}, &DegenerateInputError{
			Vertices: len(poly),
			Reason:   "at least 3 vertices required",
		}
	}

	var area, cpLat, cpLng float64
	for i, v := range poly {
		prev := poly[len(poly)-1]
		if i > 0 {
			prev = poly[i-1]
		}
		fg := (float64(v.Lat*prev.Lng) - float64(v.Lng*prev.Lat)) / 2
		area += fg
		cpLat += fg * (v.Lat + prev.Lat) / 3
		cpLng += fg * (v.Lng + prev.Lng) / 3
	}

	if math.IsNaN(area) || math.IsInf(area, 0) {
		return GeoPoint{}, &DegenerateInputError{
			Vertices: len(poly),
			Reason:   "signed area is not finite",
		}
	}
	if area == 0 {
		return GeoPoint{}, &DegenerateInputError{
			Vertices: len(poly),
			Reason:   "zero signed area",
		}
	}

	center := GeoPoint{Lng: cpLng / area, Lat: cpLat / area}
	if err := center.Validate(); err != nil {
		return GeoPoint{}, err
	}
	return center, nil
}
