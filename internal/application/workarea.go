package application

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/jobrunner/sweeper/internal/domain"
	"github.com/jobrunner/sweeper/internal/ports/output"
)

// WorkAreaService manages work areas and their derived centers.
type WorkAreaService struct {
	repo     output.WorkAreaRepository
	cache    output.CenterCache
	metrics  output.MetricsCollector
	logger   *slog.Logger
	cacheTTL time.Duration
}

// NewWorkAreaService creates a new work area service. A nil cache disables caching.
func NewWorkAreaService(
	repo output.WorkAreaRepository,
	cache output.CenterCache,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cacheTTL time.Duration,
) *WorkAreaService {
	if cache == nil {
		cache = output.NoOpCache{}
	}
	if cacheTTL == 0 {
		cacheTTL = time.Hour
	}

	return &WorkAreaService{
		repo:     repo,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

// Create validates the input, computes the center and stores the work area.
func (s *WorkAreaService) Create(ctx context.Context, in domain.WorkAreaInput) (*domain.WorkArea, error) {
	wa, err := domain.NewWorkArea(in)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, wa); err != nil {
		return nil, err
	}

	s.cacheCenter(ctx, wa)
	s.logger.Info("work area created", "id", wa.ID, "name", wa.Name, "vertices", len(wa.Vertices))

	return wa, nil
}

// Update replaces a work area and recomputes its center.
func (s *WorkAreaService) Update(ctx context.Context, id int64, in domain.WorkAreaInput) (*domain.WorkArea, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	wa, err := domain.NewWorkArea(in)
	if err != nil {
		return nil, err
	}
	wa.ID = existing.ID
	wa.CreatedAt = existing.CreatedAt

	if err := s.repo.Update(ctx, wa); err != nil {
		return nil, err
	}

	s.cacheCenter(ctx, wa)
	s.logger.Info("work area updated", "id", wa.ID, "name", wa.Name)

	return wa, nil
}

// Get returns a work area by ID.
func (s *WorkAreaService) Get(ctx context.Context, id int64) (*domain.WorkArea, error) {
	return s.repo.Get(ctx, id)
}

// List returns all work areas.
func (s *WorkAreaService) List(ctx context.Context) ([]domain.WorkArea, error) {
	return s.repo.List(ctx)
}

// Delete removes a work area and its cached center.
func (s *WorkAreaService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.cache.DeleteCenter(ctx, id); err != nil {
		s.logger.Warn("failed to evict cached center", "id", id, "error", err)
	}
	s.logger.Info("work area deleted", "id", id)

	return nil
}

// Center returns the center of a work area converted to datum. The cache is
// consulted before the repository.
func (s *WorkAreaService) Center(ctx context.Context, id int64, datum domain.Datum) (domain.GeoPoint, error) {
	if !datum.IsValid() {
		return domain.GeoPoint{}, &domain.ValidationError{
			Field:      "datum",
			Value:      datum,
			Constraint: "wgs84|gcj02|bd09",
			Message:    "unknown datum",
		}
	}

	center, cachedDatum, hit, err := s.cache.GetCenter(ctx, id)
	if err != nil {
		s.logger.Warn("center cache lookup failed", "id", id, "error", err)
	}
	s.metrics.IncCacheLookups(hit)
	if hit {
		return domain.Convert(center, cachedDatum, datum)
	}

	wa, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.GeoPoint{}, err
	}
	s.cacheCenter(ctx, wa)

	return wa.CenterIn(datum)
}

// Feature returns the work area as a GeoJSON feature carrying its name,
// datum, map grade and center as properties.
func (s *WorkAreaService) Feature(ctx context.Context, id int64) (*geojson.Feature, error) {
	wa, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return domain.GeoJSONFeature(strconv.FormatInt(wa.ID, 10), wa.Vertices, map[string]interface{}{
		"name":      wa.Name,
		"datum":     string(wa.Datum),
		"map_grade": wa.MapGrade,
		"center":    []float64{wa.Center.Lng, wa.Center.Lat},
	})
}

// cacheCenter stores the work area center. When the write fails any previous
// entry is evicted so a stale center is not served until it expires.
// Failures are logged only.
func (s *WorkAreaService) cacheCenter(ctx context.Context, wa *domain.WorkArea) {
	err := s.cache.SetCenter(ctx, wa.ID, wa.Center, wa.Datum, s.cacheTTL)
	if err == nil {
		return
	}
	s.logger.Warn("failed to cache center", "id", wa.ID, "error", err)
	if err := s.cache.DeleteCenter(ctx, wa.ID); err != nil {
		s.logger.Warn("failed to evict cached center", "id", wa.ID, "error", err)
	}
}
