package output

import (
	"context"
	"time"

	"github.com/jobrunner/sweeper/internal/domain"
)

// WorkAreaRepository defines the secondary port for work area persistence.
type WorkAreaRepository interface {
	// Create inserts a work area and sets its ID and timestamps.
	// A duplicate name yields domain.ErrWorkAreaExists.
	Create(ctx context.Context, wa *domain.WorkArea) error

	// Update replaces the stored work area with the same ID.
	Update(ctx context.Context, wa *domain.WorkArea) error

	// Get returns a work area by ID or domain.ErrWorkAreaNotFound.
	Get(ctx context.Context, id int64) (*domain.WorkArea, error)

	// List returns all work areas ordered by ID.
	List(ctx context.Context) ([]domain.WorkArea, error)

	// Delete removes a work area or returns domain.ErrWorkAreaNotFound.
	Delete(ctx context.Context, id int64) error

	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}

// CenterCache defines the secondary port for caching work area centers.
type CenterCache interface {
	// GetCenter returns the cached center, its datum and whether it was found.
	GetCenter(ctx context.Context, id int64) (domain.GeoPoint, domain.Datum, bool, error)

	// SetCenter caches a center in the given datum for ttl.
	SetCenter(ctx context.Context, id int64, center domain.GeoPoint, datum domain.Datum, ttl time.Duration) error

	// DeleteCenter removes a cached center.
	DeleteCenter(ctx context.Context, id int64) error

	// Ping checks that the cache is reachable.
	Ping(ctx context.Context) error
}

// NoOpCache is a CenterCache that never stores anything.
type NoOpCache struct{}

// GetCenter implements CenterCache.
func (NoOpCache) GetCenter(_ context.Context, _ int64) (domain.GeoPoint, domain.Datum, bool, error) {
	return domain.GeoPoint{}, "", false, nil
}

// SetCenter implements CenterCache.
func (NoOpCache) SetCenter(_ context.Context, _ int64, _ domain.GeoPoint, _ domain.Datum, _ time.Duration) error {
	return nil
}

// DeleteCenter implements CenterCache.
func (NoOpCache) DeleteCenter(_ context.Context, _ int64) error { return nil }

// Ping implements CenterCache.
func (NoOpCache) Ping(_ context.Context) error { return nil }
