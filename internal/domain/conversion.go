package domain

import "time"

// ConvertRequest represents a single point conversion request.
type ConvertRequest struct {
	Point GeoPoint // Input point
	From  Datum    // Datum of Point
	To    Datum    // Target datum
}

// ConvertResult represents the result of a single point conversion.
type ConvertResult struct {
	Input          GeoPoint      // Input point
	Output         GeoPoint      // Converted point
	From           Datum         // Source datum
	To             Datum         // Target datum
	OutOfChina     bool          // GCJ-02 offset was not applied
	ProcessingTime time.Duration // Conversion time
}

// BatchConvertRequest represents a batch conversion request.
type BatchConvertRequest struct {
	Points []GeoPoint // Input points
	From   Datum      // Datum of all points
	To     Datum      // Target datum
}

// BatchItem is one converted point of a batch. Error is set instead of
// Output when the point could not be converted.
type BatchItem struct {
	Index  int      // Position in the request
	Input  GeoPoint // Input point
	Output GeoPoint // Converted point
	Error  string   // Conversion failure
}

// BatchConvertResult represents the result of a batch conversion.
type BatchConvertResult struct {
	Items          []BatchItem   // One item per input point, in order
	From           Datum         // Source datum
	To             Datum         // Target datum
	Failed         int           // Number of failed items
	ProcessingTime time.Duration // Total processing time
}

// AddItem appends an item and updates the failure count.
func (r *BatchConvertResult) AddItem(item BatchItem) {
	r.Items = append(r.Items, item)
	if item.Error != "" {
		r.Failed++
	}
}

// CentroidRequest represents a centroid computation request.
type CentroidRequest struct {
	Vertices    Polygon // Polygon in Datum
	Datum       Datum   // Datum of Vertices
	OutputDatum Datum   // Datum of the returned center (defaults to Datum)
}

// CentroidResult represents the result of a centroid computation.
type CentroidResult struct {
	Center         GeoPoint      // Centroid in OutputDatum
	Datum          Datum         // Datum of Center
	Extent         Extent        // Bounding box in the input datum
	VertexCount    int           // Number of vertices used
	ProcessingTime time.Duration // Computation time
}
