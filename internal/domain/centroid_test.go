package domain

import (
	"errors"
	"math"
	"testing"
)

func TestCentroid(t *testing.T) {
	tests := []struct {
		name    string
		poly    Polygon
		wantLng float64
		wantLat float64
	}{
		{
			name:    "unit square counter-clockwise",
			poly:    Polygon{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
			wantLng: 0.5,
			wantLat: 0.5,
		},
		{
			name:    "unit square clockwise",
			poly:    Polygon{{0, 1}, {1, 1}, {1, 0}, {0, 0}},
			wantLng: 0.5,
			wantLat: 0.5,
		},
		{
			name:    "right triangle",
			poly:    Polygon{{0, 0}, {4, 0}, {0, 3}},
			wantLng: 4.0 / 3.0,
			wantLat: 1,
		},
		{
			name:    "offset square",
			poly:    Polygon{{0, 0}, {2, 0}, {2, 2}, {0, 2}},
			wantLng: 1,
			wantLat: 1,
		},
		{
			name:    "concave L shape",
			poly:    Polygon{{0, 0}, {2, 0}, {2, 1}, {1, 1}, {1, 2}, {0, 2}},
			wantLng: 5.0 / 6.0,
			wantLat: 5.0 / 6.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Centroid(tt.poly)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !almost(got.Lng, tt.wantLng, 1e-12) || !almost(got.Lat, tt.wantLat, 1e-12) {
				t.Errorf("Centroid() = %v, want (%v, %v)", got, tt.wantLng, tt.wantLat)
			}
		})
	}
}

func TestCentroidGeographicPolygon(t *testing.T) {
	poly := Polygon{
		{Lng: 116.30, Lat: 39.90},
		{Lng: 116.32, Lat: 39.90},
		{Lng: 116.32, Lat: 39.92},
		{Lng: 116.30, Lat: 39.92},
	}
	got, err := Centroid(poly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almost(got.Lng, 116.31, 1e-7) || !almost(got.Lat, 39.91, 1e-7) {
		t.Errorf("Centroid() = %v, want about (116.31, 39.91)", got)
	}
}

func TestCentroidDegenerate(t *testing.T) {
	tests := []struct {
		name string
		poly Polygon
	}{
		{name: "empty", poly: nil},
		{name: "single point", poly: Polygon{{1, 1}}},
		{name: "two points", poly: Polygon{{0, 0}, {1, 1}}},
		{name: "collinear", poly: Polygon{{0, 0}, {1, 0}, {2, 0}}},
		{name: "repeated point", poly: Polygon{{3, 3}, {3, 3}, {3, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Centroid(tt.poly)
			var degErr *DegenerateInputError
			if !errors.As(err, &degErr) {
				t.Fatalf("expected DegenerateInputError, got %v", err)
			}
			if degErr.Vertices != len(tt.poly) {
				t.Errorf("Vertices = %d, want %d", degErr.Vertices, len(tt.poly))
			}
			if !errors.Is(err, ErrDegenerateInput) || !errors.Is(err, ErrInvalidInput) {
				t.Error("DegenerateInputError should unwrap to ErrDegenerateInput and ErrInvalidInput")
			}
		})
	}
}

func TestCentroidInvalidCoordinate(t *testing.T) {
	poly := Polygon{{0, 0}, {1, 0}, {math.NaN(), 1}, {0, 1}}
	_, err := Centroid(poly)

	var coordErr *InvalidCoordinateError
	if !errors.As(err, &coordErr) {
		t.Fatalf("expected InvalidCoordinateError, got %v", err)
	}
	if coordErr.Index != 2 || coordErr.Field != "lng" {
		t.Errorf("unexpected error details: %+v", coordErr)
	}
}

func TestCentroidOverflow(t *testing.T) {
	poly := Polygon{{1e200, 1e200}, {-1e200, 1e200}, {0, -1e200}}
	got, err := Centroid(poly)
	if !errors.Is(err, ErrDegenerateInput) {
		t.Fatalf("Centroid() = %v, %v; want ErrDegenerateInput", got, err)
	}
	if !got.IsZero() {
		t.Errorf("expected zero point on error, got %v", got)
	}
}

func TestCentroidDoesNotModifyInput(t *testing.T) {
	poly := Polygon{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	before := append(Polygon(nil), poly...)
	if _, err := Centroid(poly); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range poly {
		if poly[i] != before[i] {
			t.Errorf("vertex %d changed from %v to %v", i, before[i], poly[i])
		}
	}
}
