package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jobrunner/sweeper/internal/domain"
	"github.com/jobrunner/sweeper/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockWorkAreaRepo implements output.WorkAreaRepository for testing.
type mockWorkAreaRepo struct {
	mu      sync.Mutex
	areas   map[int64]domain.WorkArea
	nextID  int64
	gets    int
	pingErr error
}

func newMockWorkAreaRepo() *mockWorkAreaRepo {
	return &mockWorkAreaRepo{areas: make(map[int64]domain.WorkArea), nextID: 1}
}

func (m *mockWorkAreaRepo) Create(_ context.Context, wa *domain.WorkArea) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.areas {
		if existing.Name == wa.Name {
			return domain.ErrWorkAreaExists
		}
	}
	wa.ID = m.nextID
	m.nextID++
	wa.CreatedAt = time.Now()
	wa.UpdatedAt = wa.CreatedAt
	m.areas[wa.ID] = *wa
	return nil
}

func (m *mockWorkAreaRepo) Update(_ context.Context, wa *domain.WorkArea) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.areas[wa.ID]; !ok {
		return domain.ErrWorkAreaNotFound
	}
	wa.UpdatedAt = time.Now()
	m.areas[wa.ID] = *wa
	return nil
}

func (m *mockWorkAreaRepo) Get(_ context.Context, id int64) (*domain.WorkArea, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	wa, ok := m.areas[id]
	if !ok {
		return nil, domain.ErrWorkAreaNotFound
	}
	return &wa, nil
}

func (m *mockWorkAreaRepo) List(_ context.Context) ([]domain.WorkArea, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	areas := make([]domain.WorkArea, 0, len(m.areas))
	for _, wa := range m.areas {
		areas = append(areas, wa)
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].ID < areas[j].ID })
	return areas, nil
}

func (m *mockWorkAreaRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.areas[id]; !ok {
		return domain.ErrWorkAreaNotFound
	}
	delete(m.areas, id)
	return nil
}

func (m *mockWorkAreaRepo) Ping(_ context.Context) error { return m.pingErr }

func (m *mockWorkAreaRepo) Close() error { return nil }

type cachedCenter struct {
	center domain.GeoPoint
	datum  domain.Datum
}

// mockCache implements output.CenterCache for testing.
type mockCache struct {
	mu      sync.Mutex
	entries map[int64]cachedCenter
	failAll bool
	failSet bool
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[int64]cachedCenter)}
}

var (
	errCacheDown  = errors.New("cache down")
	errInvalidMap = error(&domain.DegenerateInputError{Vertices: 2, Reason: "at least 3 vertices required"})
)

func (m *mockCache) GetCenter(_ context.Context, id int64) (domain.GeoPoint, domain.Datum, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return domain.GeoPoint{}, "", false, errCacheDown
	}
	e, ok := m.entries[id]
	return e.center, e.datum, ok, nil
}

func (m *mockCache) SetCenter(_ context.Context, id int64, center domain.GeoPoint, datum domain.Datum, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll || m.failSet {
		return errCacheDown
	}
	m.entries[id] = cachedCenter{center: center, datum: datum}
	return nil
}

func (m *mockCache) DeleteCenter(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errCacheDown
	}
	delete(m.entries, id)
	return nil
}

func (m *mockCache) Ping(_ context.Context) error {
	if m.failAll {
		return errCacheDown
	}
	return nil
}

// mockLoader implements output.MapFileLoader for testing.
type mockLoader struct {
	maps    map[string]*domain.MapFile // keyed by path
	loadErr map[string]error           // keyed by path
}

func (m *mockLoader) Load(_ context.Context, path string) (*domain.MapFile, error) {
	if err, ok := m.loadErr[path]; ok {
		return nil, err
	}
	if mf, ok := m.maps[path]; ok {
		cp := *mf
		return &cp, nil
	}
	id, datum := domain.MapFileID(path)
	return &domain.MapFile{
		ID:       id,
		Name:     id,
		Path:     path,
		Datum:    datum,
		Vertices: domain.Polygon{{Lng: 0, Lat: 0}, {Lng: 1, Lat: 0}, {Lng: 1, Lat: 1}, {Lng: 0, Lat: 1}},
		Center:   domain.GeoPoint{Lng: 0.5, Lat: 0.5},
	}, nil
}

// mockStorage implements output.ObjectStorage for testing.
type mockStorage struct {
	objects     []output.StorageObject
	unlisted    []string // keys Exists reports although List omits them
	downloadErr error
	listErr     error
	existsErr   error
}

func (m *mockStorage) List(_ context.Context) ([]output.StorageObject, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.objects, nil
}

func (m *mockStorage) Download(_ context.Context, _, _ string) error {
	return m.downloadErr
}

func (m *mockStorage) GetReader(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, nil
}

func (m *mockStorage) Exists(_ context.Context, key string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for _, obj := range m.objects {
		if obj.Key == key {
			return true, nil
		}
	}
	return slices.Contains(m.unlisted, key), nil
}

// countingMetrics records a subset of metric calls.
type countingMetrics struct {
	output.NoOpMetrics
	mu          sync.Mutex
	conversions map[bool]int
	centroids   map[bool]int
	cacheHits   map[bool]int
	mapsLoaded  int
	mapsReady   int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		conversions: make(map[bool]int),
		centroids:   make(map[bool]int),
		cacheHits:   make(map[bool]int),
	}
}

func (c *countingMetrics) IncConversions(_, _ string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conversions[success]++
}

func (c *countingMetrics) IncCentroids(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.centroids[success]++
}

func (c *countingMetrics) IncCacheLookups(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheHits[hit]++
}

func (c *countingMetrics) SetMapsLoaded(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mapsLoaded = n
}

func (c *countingMetrics) SetMapsReady(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mapsReady = n
}
