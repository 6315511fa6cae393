package domain

import (
	"fmt"
	"math"
)

// Conversion parameters. They are variables, not constants, so expressions are
// evaluated at float64 precision. Products that feed an addition are wrapped
// in float64() to round them before the add and keep them from being fused
// into a single multiply-add instruction.
var (
	pi        = 3.1415926535897932384626
	xPi       = pi * 3000.0 / 180.0
	semiMajor = 6378245.0 // Krasovsky 1940
	eccSq     = 0.00669342162296594323
)

// GCJ02ToBD09 converts a GCJ-02 point to BD-09.
func GCJ02ToBD09(lng, lat float64) (float64, float64) {
	z := math.Sqrt(float64(lng*lng)+float64(lat*lat)) + float64(0.00002*math.Sin(lat*xPi))
	theta := math.Atan2(lat, lng) + float64(0.000003*math.Cos(lng*xPi))
	bdLng := float64(z*math.Cos(theta)) + 0.0065
	bdLat := float64(z*math.Sin(theta)) + 0.006
	return bdLng, bdLat
}

// BD09ToGCJ02 converts a BD-09 point to GCJ-02. It is an approximate, not exact,
// inverse of GCJ02ToBD09.
func BD09ToGCJ02(bdLng, bdLat float64) (float64, float64) {
	x := bdLng - 0.0065
	y := bdLat - 0.006
	z := math.Sqrt(float64(x*x)+float64(y*y)) - float64(0.00002*math.Sin(y*xPi))
	theta := math.Atan2(y, x) - float64(0.000003*math.Cos(x*xPi))
	return z * math.Cos(theta), z * math.Sin(theta)
}

// WGS84ToGCJ02 applies the GCJ-02 offset. Points outside China are returned unchanged.
func WGS84ToGCJ02(lng, lat float64) (float64, float64) {
	if OutOfChina(lng, lat) {
		return lng, lat
	}
	mgLng, mgLat := offset(lng, lat)
	return mgLng, mgLat
}

// GCJ02ToWGS84 removes the GCJ-02 offset with a single-step approximation.
// Points outside China are returned unchanged.
func GCJ02ToWGS84(lng, lat float64) (float64, float64) {
	if OutOfChina(lng, lat) {
		return lng, lat
	}
	mgLng, mgLat := offset(lng, lat)
	return float64(lng*2) - mgLng, float64(lat*2) - mgLat
}

// WGS84ToBD09 converts WGS-84 to BD-09 through GCJ-02.
func WGS84ToBD09(lng, lat float64) (float64, float64) {
	return GCJ02ToBD09(WGS84ToGCJ02(lng, lat))
}

// BD09ToWGS84 converts BD-09 to WGS-84 through GCJ-02.
func BD09ToWGS84(bdLng, bdLat float64) (float64, float64) {
	return GCJ02ToWGS84(BD09ToGCJ02(bdLng, bdLat))
}

// OutOfChina reports whether a point lies outside the rectangular region where
// the GCJ-02 offset applies. Both bounds are strict.
func OutOfChina(lng, lat float64) bool {
	return !(lng > 73.66 && lng < 135.05 && lat > 3.86 && lat < 53.55)
}

// offset returns the point shifted by the GCJ-02 deltas.
func offset(lng, lat float64) (float64, float64) {
	dlat := transformLat(lng-105.0, lat-35.0)
	dlng := transformLng(lng-105.0, lat-35.0)
	radlat := lat / 180.0 * pi
	magic := math.Sin(radlat)
	magic = 1 - float64(eccSq*magic*magic)
	sqrtmagic := math.Sqrt(magic)
	dlat = (dlat * 180.0) / ((semiMajor * (1 - eccSq)) / (magic * sqrtmagic) * pi)
	dlng = (dlng * 180.0) / (semiMajor / sqrtmagic * math.Cos(radlat) * pi)
	return lng + dlng, lat + dlat
}

func transformLat(lng, lat float64) float64 {
	ret := -100.0 + float64(2.0*lng) + float64(3.0*lat) + float64(0.2*lat*lat) +
		float64(0.1*lng*lat) + float64(0.2*math.Sqrt(math.Abs(lng)))
	ret += (float64(20.0*math.Sin(6.0*lng*pi)) + float64(20.0*math.Sin(2.0*lng*pi))) * 2.0 / 3.0
	ret += (float64(20.0*math.Sin(lat*pi)) + float64(40.0*math.Sin(lat/3.0*pi))) * 2.0 / 3.0
	ret += (float64(160.0*math.Sin(lat/12.0*pi)) + float64(320*math.Sin(lat*pi/30.0))) * 2.0 / 3.0
	return ret
}

func transformLng(lng, lat float64) float64 {
	ret := 300.0 + lng + float64(2.0*lat) + float64(0.1*lng*lng) +
		float64(0.1*lng*lat) + float64(0.1*math.Sqrt(math.Abs(lng)))
	ret += (float64(20.0*math.Sin(6.0*lng*pi)) + float64(20.0*math.Sin(2.0*lng*pi))) * 2.0 / 3.0
	ret += (float64(20.0*math.Sin(lng*pi)) + float64(40.0*math.Sin(lng/3.0*pi))) * 2.0 / 3.0
	ret += (float64(150.0*math.Sin(lng/12.0*pi)) + float64(300.0*math.Sin(lng/30.0*pi))) * 2.0 / 3.0
	return ret
}

// Convert converts p from one datum to another. Both the input and the result
// must be finite. Converting to the same datum returns p unchanged.
func Convert(p GeoPoint, from, to Datum) (GeoPoint, error) {
	if err := p.Validate(); err != nil {
		return GeoPoint{}, err
	}
	if !from.IsValid() {
		return GeoPoint{}, fmt.Errorf("%q: %w", from, ErrUnknownDatum)
	}
	if !to.IsValid() {
		return GeoPoint{}, fmt.Errorf("%q: %w", to, ErrUnknownDatum)
	}

	var lng, lat float64
	switch {
	case from == to:
		return p, nil
	case from == DatumWGS84 && to == DatumGCJ02:
		lng, lat = WGS84ToGCJ02(p.Lng, p.Lat)
	case from == DatumWGS84 && to == DatumBD09:
		lng, lat = WGS84ToBD09(p.Lng, p.Lat)
	case from == DatumGCJ02 && to == DatumWGS84:
		lng, lat = GCJ02ToWGS84(p.Lng, p.Lat)
	case from == DatumGCJ02 && to == DatumBD09:
		lng, lat = GCJ02ToBD09(p.Lng, p.Lat)
	case from == DatumBD09 && to == DatumWGS84:
		lng, lat = BD09ToWGS84(p.Lng, p.Lat)
	case from == DatumBD09 && to == DatumGCJ02:
		lng, lat = BD09ToGCJ02(p.Lng, p.Lat)
	}

	// Finite inputs far outside the valid range can overflow.
	out := GeoPoint{Lng: lng, Lat: lat}
	if err := out.Validate(); err != nil {
		return GeoPoint{}, err
	}
	return out, nil
}

// ConvertPolygon converts every vertex of poly. The first invalid vertex aborts
// the conversion with its index recorded in the error.
func ConvertPolygon(poly Polygon, from, to Datum) (Polygon, error) {
	if err := poly.Validate(); err != nil {
		return nil, err
	}
	out := make(Polygon, len(poly))
	for i, v := range poly {
		c, err := Convert(v, from, to)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
