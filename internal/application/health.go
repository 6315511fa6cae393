package application

import (
	"context"
	"time"

	"github.com/jobrunner/sweeper/internal/domain"
	"github.com/jobrunner/sweeper/internal/ports/input"
	"github.com/jobrunner/sweeper/internal/ports/output"
)

const pingTimeout = 2 * time.Second

// HealthService provides health check functionality.
type HealthService struct {
	registry *MapRegistry
	repo     output.WorkAreaRepository
	cache    output.CenterCache
}

// NewHealthService creates a new health service. A nil cache is reported as disabled.
func NewHealthService(registry *MapRegistry, repo output.WorkAreaRepository, cache output.CenterCache) *HealthService {
	return &HealthService{
		registry: registry,
		repo:     repo,
		cache:    cache,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true
}

// IsReady returns true when the database answers. Map files that failed to
// parse do not affect readiness.
func (s *HealthService) IsReady(ctx context.Context) bool {
	return s.pingDatabase(ctx) == nil
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	components := map[string]string{
		"storage": "ok",
	}

	ready := true
	if err := s.pingDatabase(ctx); err != nil {
		components["database"] = "error: " + err.Error()
		ready = false
	} else {
		components["database"] = "ok"
	}

	if s.cache == nil {
		components["cache"] = "disabled"
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := s.cache.Ping(pingCtx); err != nil {
			components["cache"] = "degraded: " + err.Error()
		} else {
			components["cache"] = "ok"
		}
	}

	return input.HealthDetails{
		Healthy:    s.IsHealthy(ctx),
		Ready:      ready,
		MapsLoaded: s.registry.MapCount(),
		MapsReady:  s.registry.ReadyCount(),
		Components: components,
	}
}

func (s *HealthService) pingDatabase(ctx context.Context) error {
	if s.repo == nil {
		return domain.ErrNotReady
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.repo.Ping(pingCtx)
}

// MapHealth contains health info for a single map file.
type MapHealth struct {
	ID     string
	Status domain.MapFileStatus
	Ready  bool
	Error  string
}

// GetMapHealth returns health info for all map files.
func (s *HealthService) GetMapHealth(ctx context.Context) []MapHealth {
	maps, _ := s.registry.ListMaps(ctx)

	health := make([]MapHealth, len(maps))
	for i, m := range maps {
		health[i] = MapHealth{
			ID:     m.ID,
			Status: m.Status,
			Ready:  m.IsReady(),
			Error:  m.Error,
		}
	}

	return health
}
