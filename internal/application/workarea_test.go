package application

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/jobrunner/sweeper/internal/domain"
)

const squareCoords = `[[0,0],[2,0],[2,2],[0,2]]`

func newTestWorkAreaService() (*WorkAreaService, *mockWorkAreaRepo, *mockCache, *countingMetrics) {
	repo := newMockWorkAreaRepo()
	cache := newMockCache()
	metrics := newCountingMetrics()
	return NewWorkAreaService(repo, cache, metrics, testLogger(), 0), repo, cache, metrics
}

func TestWorkAreaServiceCreate(t *testing.T) {
	service, _, cache, _ := newTestWorkAreaService()

	wa, err := service.Create(context.Background(), domain.WorkAreaInput{
		Name:        "Yard",
		Coordinates: squareCoords,
		MapGrade:    17,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if wa.ID == 0 {
		t.Error("expected ID to be assigned")
	}
	if wa.Center != (domain.GeoPoint{Lng: 1, Lat: 1}) {
		t.Errorf("Center = %v, want (1, 1)", wa.Center)
	}
	if entry, ok := cache.entries[wa.ID]; !ok || entry.center != wa.Center || entry.datum != domain.DatumWGS84 {
		t.Errorf("expected center to be cached, got %+v (found=%v)", entry, ok)
	}
}

func TestWorkAreaServiceCreateErrors(t *testing.T) {
	service, _, _, _ := newTestWorkAreaService()
	ctx := context.Background()

	if _, err := service.Create(ctx, domain.WorkAreaInput{Name: "Yard", Coordinates: squareCoords}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		input   domain.WorkAreaInput
		wantErr error
	}{
		{
			name:    "duplicate name",
			input:   domain.WorkAreaInput{Name: "Yard", Coordinates: squareCoords},
			wantErr: domain.ErrWorkAreaExists,
		},
		{
			name:    "degenerate polygon",
			input:   domain.WorkAreaInput{Name: "Line", Coordinates: `[[0,0],[1,0]]`},
			wantErr: domain.ErrDegenerateInput,
		},
		{
			name:    "missing name",
			input:   domain.WorkAreaInput{Coordinates: squareCoords},
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(ctx, tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWorkAreaServiceCreateSurvivesCacheFailure(t *testing.T) {
	service, _, cache, _ := newTestWorkAreaService()
	cache.failAll = true

	if _, err := service.Create(context.Background(), domain.WorkAreaInput{Name: "Yard", Coordinates: squareCoords}); err != nil {
		t.Fatalf("cache failure should not fail create: %v", err)
	}
}

func TestWorkAreaServiceUpdate(t *testing.T) {
	service, _, cache, _ := newTestWorkAreaService()
	ctx := context.Background()

	created, err := service.Create(ctx, domain.WorkAreaInput{Name: "Yard", Coordinates: squareCoords})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := service.Update(ctx, created.ID, domain.WorkAreaInput{
		Name:        "Yard East",
		Coordinates: `[[10,10],[12,10],[12,12],[10,12]]`,
		Datum:       domain.DatumGCJ02,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.ID != created.ID {
		t.Errorf("ID changed from %d to %d", created.ID, updated.ID)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("CreatedAt should be preserved")
	}
	if updated.Center != (domain.GeoPoint{Lng: 11, Lat: 11}) {
		t.Errorf("Center = %v, want (11, 11)", updated.Center)
	}
	if entry := cache.entries[created.ID]; entry.center != updated.Center || entry.datum != domain.DatumGCJ02 {
		t.Errorf("cache not refreshed: %+v", entry)
	}

	if _, err := service.Update(ctx, 999, domain.WorkAreaInput{Name: "x", Coordinates: squareCoords}); !errors.Is(err, domain.ErrWorkAreaNotFound) {
		t.Errorf("expected ErrWorkAreaNotFound, got %v", err)
	}
}

func TestWorkAreaServiceUpdateEvictsStaleCenter(t *testing.T) {
	service, _, cache, _ := newTestWorkAreaService()
	ctx := context.Background()

	created, err := service.Create(ctx, domain.WorkAreaInput{Name: "Yard", Coordinates: squareCoords})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cache.entries[created.ID]; !ok {
		t.Fatal("expected center to be cached after create")
	}

	cache.failSet = true
	updated, err := service.Update(ctx, created.ID, domain.WorkAreaInput{
		Name:        "Yard",
		Coordinates: `[[10,10],[12,10],[12,12],[10,12]]`,
	})
	if err != nil {
		t.Fatalf("update should survive a cache failure: %v", err)
	}
	if _, ok := cache.entries[created.ID]; ok {
		t.Error("stale center should be evicted when the cache write fails")
	}

	cache.failSet = false
	center, err := service.Center(ctx, created.ID, domain.DatumWGS84)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if center != updated.Center {
		t.Errorf("Center = %v, want %v", center, updated.Center)
	}
}

func TestWorkAreaServiceGetListDelete(t *testing.T) {
	service, _, cache, _ := newTestWorkAreaService()
	ctx := context.Background()

	a, _ := service.Create(ctx, domain.WorkAreaInput{Name: "A", Coordinates: squareCoords})
	b, _ := service.Create(ctx, domain.WorkAreaInput{Name: "B", Coordinates: squareCoords})

	areas, err := service.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(areas) != 2 || areas[0].ID != a.ID || areas[1].ID != b.ID {
		t.Errorf("unexpected list: %+v", areas)
	}

	got, err := service.Get(ctx, b.ID)
	if err != nil || got.Name != "B" {
		t.Errorf("Get() = %+v, %v", got, err)
	}

	if err := service.Delete(ctx, a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cache.entries[a.ID]; ok {
		t.Error("expected cached center to be evicted")
	}
	if _, err := service.Get(ctx, a.ID); !errors.Is(err, domain.ErrWorkAreaNotFound) {
		t.Errorf("expected ErrWorkAreaNotFound, got %v", err)
	}
	if err := service.Delete(ctx, a.ID); !errors.Is(err, domain.ErrWorkAreaNotFound) {
		t.Errorf("expected ErrWorkAreaNotFound on second delete, got %v", err)
	}
}

func TestWorkAreaServiceCenter(t *testing.T) {
	service, repo, cache, metrics := newTestWorkAreaService()
	ctx := context.Background()

	wa, err := service.Create(ctx, domain.WorkAreaInput{
		Name:        "Campus",
		Coordinates: `[[116.30,39.90],[116.32,39.90],[116.32,39.92],[116.30,39.92]]`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	getsBefore := repo.gets
	center, err := service.Center(ctx, wa.ID, domain.DatumBD09)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lng, lat := domain.WGS84ToBD09(wa.Center.Lng, wa.Center.Lat)
	if center.Lng != lng || center.Lat != lat {
		t.Errorf("Center() = %v, want (%v, %v)", center, lng, lat)
	}
	if repo.gets != getsBefore {
		t.Error("expected cache hit to skip the repository")
	}
	if metrics.cacheHits[true] != 1 {
		t.Errorf("expected one cache hit, got %v", metrics.cacheHits)
	}

	delete(cache.entries, wa.ID)
	center, err = service.Center(ctx, wa.ID, domain.DatumWGS84)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if center != wa.Center {
		t.Errorf("Center() = %v, want %v", center, wa.Center)
	}
	if metrics.cacheHits[false] != 1 {
		t.Errorf("expected one cache miss, got %v", metrics.cacheHits)
	}
	if _, ok := cache.entries[wa.ID]; !ok {
		t.Error("expected miss to repopulate the cache")
	}
}

func TestWorkAreaServiceCenterErrors(t *testing.T) {
	service, _, cache, _ := newTestWorkAreaService()
	ctx := context.Background()

	if _, err := service.Center(ctx, 1, "utm"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := service.Center(ctx, 42, domain.DatumWGS84); !errors.Is(err, domain.ErrWorkAreaNotFound) {
		t.Errorf("expected ErrWorkAreaNotFound, got %v", err)
	}

	wa, _ := service.Create(ctx, domain.WorkAreaInput{Name: "Yard", Coordinates: squareCoords})
	cache.failAll = true
	center, err := service.Center(ctx, wa.ID, domain.DatumWGS84)
	if err != nil {
		t.Fatalf("cache failure should fall back to repository: %v", err)
	}
	if center != wa.Center {
		t.Errorf("Center() = %v, want %v", center, wa.Center)
	}
}

func TestWorkAreaServiceFeature(t *testing.T) {
	service, _, _, _ := newTestWorkAreaService()
	ctx := context.Background()

	wa, err := service.Create(ctx, domain.WorkAreaInput{Name: "Yard", Coordinates: squareCoords, MapGrade: 16})
	if err != nil {
		t.Fatal(err)
	}

	f, err := service.Feature(ctx, wa.ID)
	if err != nil {
		t.Fatalf("Feature() error = %v", err)
	}
	if f.ID != strconv.FormatInt(wa.ID, 10) {
		t.Errorf("ID = %q", f.ID)
	}
	if f.Properties["name"] != "Yard" || f.Properties["map_grade"] != 16 {
		t.Errorf("unexpected properties: %v", f.Properties)
	}

	if _, err := service.Feature(ctx, 999); !errors.Is(err, domain.ErrWorkAreaNotFound) {
		t.Errorf("expected ErrWorkAreaNotFound, got %v", err)
	}
}
