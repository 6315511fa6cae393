package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseCoordinateSet(t *testing.T) {
	square := Polygon{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

	tests := []struct {
		name  string
		input string
		want  Polygon
	}{
		{
			name:  "json pairs",
			input: `[[0,0],[1,0],[1,1],[0,1]]`,
			want:  square,
		},
		{
			name:  "json pairs closed ring",
			input: `[[0,0],[1,0],[1,1],[0,1],[0,0]]`,
			want:  square,
		},
		{
			name:  "json objects",
			input: `[{"lng":0,"lat":0},{"lng":1,"lat":0},{"lng":1,"lat":1},{"lng":0,"lat":1}]`,
			want:  square,
		},
		{
			name:  "wkt polygon",
			input: "POLYGON((0 0,1 0,1 1,0 1,0 0))",
			want:  square,
		},
		{
			name:  "text lines with commas",
			input: "0,0\n1,0\n1,1\n0,1\n",
			want:  square,
		},
		{
			name:  "text lines with spaces and comments",
			input: "# boundary\n0 0\n1 0\n\n1 1\n0 1\n",
			want:  square,
		},
		{
			name:  "text with comma and space",
			input: "116.30, 39.90\n116.32, 39.90\n116.32, 39.92",
			want:  Polygon{{116.30, 39.90}, {116.32, 39.90}, {116.32, 39.92}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCoordinateSet(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d vertices, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("vertex %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseCoordinateSetErrors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantFormat string
		wantLine   int
	}{
		{name: "empty", input: "   ", wantFormat: FormatText},
		{name: "empty json array", input: "[]", wantFormat: FormatJSON},
		{name: "broken json", input: "[[0,0],[1", wantFormat: FormatJSON},
		{name: "short json pair", input: "[[0,0],[1]]", wantFormat: FormatJSON},
		{name: "json pair with extra value", input: "[[116.30,39.90,999],[116.32,39.90],[116.32,39.92]]", wantFormat: FormatJSON},
		{name: "json null latitude", input: "[[116.30,null],[116.32,39.90],[116.32,39.92]]", wantFormat: FormatJSON},
		{name: "json string coordinate", input: `[[116.30,"39.90"],[116.32,39.90],[116.32,39.92]]`, wantFormat: FormatJSON},
		{name: "json object missing lat", input: `[{"lng":116.30},{"lng":116.32,"lat":39.90},{"lng":116.32,"lat":39.92}]`, wantFormat: FormatJSON},
		{name: "json object missing lng", input: `[{"lat":39.90},{"lng":116.32,"lat":39.90},{"lng":116.32,"lat":39.92}]`, wantFormat: FormatJSON},
		{name: "json object null lng", input: `[{"lng":null,"lat":39.90},{"lng":116.32,"lat":39.90},{"lng":116.32,"lat":39.92}]`, wantFormat: FormatJSON},
		{name: "wkt point", input: "POLYGON((0 0", wantFormat: FormatWKT},
		{name: "text with three values", input: "0,0\n1,0,5\n", wantFormat: FormatText, wantLine: 2},
		{name: "text not a number", input: "0,0\nabc,1\n", wantFormat: FormatText, wantLine: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCoordinateSet(tt.input)
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if parseErr.Format != tt.wantFormat {
				t.Errorf("Format = %q, want %q", parseErr.Format, tt.wantFormat)
			}
			if parseErr.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", parseErr.Line, tt.wantLine)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Error("ParseError should unwrap to ErrInvalidInput")
			}
		})
	}
}

func TestEncodeCoordinateSet(t *testing.T) {
	poly := Polygon{{116.3, 39.9}, {116.32, 39.9}, {116.32, 39.92}}
	s, err := EncodeCoordinateSet(poly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "[[116.3,39.9],[116.32,39.9],[116.32,39.92]]" {
		t.Errorf("EncodeCoordinateSet() = %s", s)
	}

	back, err := ParseCoordinateSet(s)
	if err != nil {
		t.Fatalf("parse encoded set: %v", err)
	}
	for i := range poly {
		if back[i] != poly[i] {
			t.Errorf("vertex %d = %v, want %v", i, back[i], poly[i])
		}
	}
}

func TestPolygonWKT(t *testing.T) {
	poly := Polygon{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	s, err := poly.WKT()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(s, "POLYGON") {
		t.Errorf("WKT() = %s, want POLYGON prefix", s)
	}

	back, err := ParseCoordinateSet(s)
	if err != nil {
		t.Fatalf("parse WKT: %v", err)
	}
	if len(back) != 4 {
		t.Errorf("expected closing vertex to be dropped, got %d vertices", len(back))
	}
}

func TestGeoJSONFeature(t *testing.T) {
	poly := Polygon{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	f, err := GeoJSONFeature("7", poly, map[string]interface{}{"name": "yard"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal feature: %v", err)
	}

	var decoded struct {
		Type     string `json:"type"`
		ID       string `json:"id"`
		Geometry struct {
			Type        string         `json:"type"`
			Coordinates [][][2]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]interface{} `json:"properties"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal feature: %v", err)
	}
	if decoded.Type != "Feature" || decoded.ID != "7" {
		t.Errorf("unexpected feature header: %s", data)
	}
	if decoded.Geometry.Type != "Polygon" {
		t.Errorf("geometry type = %s, want Polygon", decoded.Geometry.Type)
	}
	if len(decoded.Geometry.Coordinates) != 1 || len(decoded.Geometry.Coordinates[0]) != 5 {
		t.Errorf("expected one closed ring of 5 positions, got %v", decoded.Geometry.Coordinates)
	}
	if decoded.Properties["name"] != "yard" {
		t.Errorf("properties = %v", decoded.Properties)
	}
}
