// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/jobrunner/sweeper/internal/domain"
)

// ConversionService defines the primary port for datum conversion and centroids.
type ConversionService interface {
	// Convert converts a single point between datums.
	Convert(ctx context.Context, req domain.ConvertRequest) (*domain.ConvertResult, error)

	// ConvertBatch converts many points; failed points are reported per item.
	ConvertBatch(ctx context.Context, req domain.BatchConvertRequest) (*domain.BatchConvertResult, error)

	// Centroid computes the area-weighted centroid of a polygon.
	Centroid(ctx context.Context, req domain.CentroidRequest) (*domain.CentroidResult, error)
}

// WorkAreaService defines the primary port for work area management.
type WorkAreaService interface {
	// Create stores a new work area with its derived center.
	Create(ctx context.Context, in domain.WorkAreaInput) (*domain.WorkArea, error)

	// Update replaces an existing work area and recomputes its center.
	Update(ctx context.Context, id int64, in domain.WorkAreaInput) (*domain.WorkArea, error)

	// Get returns a work area by ID.
	Get(ctx context.Context, id int64) (*domain.WorkArea, error)

	// List returns all work areas.
	List(ctx context.Context) ([]domain.WorkArea, error)

	// Delete removes a work area.
	Delete(ctx context.Context, id int64) error

	// Center returns the center of a work area in the requested datum.
	Center(ctx context.Context, id int64, datum domain.Datum) (domain.GeoPoint, error)

	// Feature returns the work area as a GeoJSON feature.
	Feature(ctx context.Context, id int64) (*geojson.Feature, error)
}

// MapRegistry defines the primary port for map file management.
type MapRegistry interface {
	// ListMaps returns all registered map files.
	ListMaps(ctx context.Context) ([]domain.MapFile, error)

	// GetMap returns a specific map file by ID.
	GetMap(ctx context.Context, id string) (*domain.MapFile, error)

	// GetMapStatus returns the status of a map file.
	GetMapStatus(ctx context.Context, id string) (domain.MapFileStatus, error)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy    bool              // Overall health status
	Ready      bool              // Ready to accept requests
	MapsLoaded int               // Number of registered map files
	MapsReady  int               // Number of parsed map files
	Components map[string]string // Component statuses
}
