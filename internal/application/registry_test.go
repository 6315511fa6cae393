package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/jobrunner/sweeper/internal/domain"
	"github.com/jobrunner/sweeper/internal/ports/output"
)

func newTestRegistry(loader *mockLoader, storage *mockStorage) (*MapRegistry, *countingMetrics) {
	if loader == nil {
		loader = &mockLoader{}
	}
	if storage == nil {
		storage = &mockStorage{}
	}
	metrics := newCountingMetrics()
	return NewMapRegistry(loader, storage, metrics, testLogger(), "/tmp"), metrics
}

func TestMapRegistryLoadMap(t *testing.T) {
	registry, metrics := newTestRegistry(nil, nil)
	ctx := context.Background()

	if err := registry.LoadMap(ctx, "/maps/campus.bd09.txt"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, err := registry.GetMap(ctx, "campus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Status != domain.MapStatusReady {
		t.Errorf("Status = %s, want ready", m.Status)
	}
	if m.Datum != domain.DatumBD09 {
		t.Errorf("Datum = %s, want bd09", m.Datum)
	}
	if m.LoadedAt.IsZero() {
		t.Error("expected LoadedAt to be set")
	}
	if metrics.mapsLoaded != 1 || metrics.mapsReady != 1 {
		t.Errorf("unexpected metrics loaded=%d ready=%d", metrics.mapsLoaded, metrics.mapsReady)
	}
}

func TestMapRegistryLoadMapParseError(t *testing.T) {
	loader := &mockLoader{loadErr: map[string]error{
		"/maps/broken.txt": &domain.ParseError{Format: domain.FormatText, Line: 3, Err: errors.New("bad")},
	}}
	registry, metrics := newTestRegistry(loader, nil)
	ctx := context.Background()

	if err := registry.LoadMap(ctx, "/maps/broken.txt"); err != nil {
		t.Fatalf("malformed map should be registered, got %v", err)
	}

	status, err := registry.GetMapStatus(ctx, "broken")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != domain.MapStatusError {
		t.Errorf("Status = %s, want error", status)
	}
	m, _ := registry.GetMap(ctx, "broken")
	if m.Error == "" {
		t.Error("expected error message to be recorded")
	}
	if metrics.mapsLoaded != 1 || metrics.mapsReady != 0 {
		t.Errorf("unexpected metrics loaded=%d ready=%d", metrics.mapsLoaded, metrics.mapsReady)
	}
}

func TestMapRegistryLoadMapIOError(t *testing.T) {
	loader := &mockLoader{loadErr: map[string]error{
		"/maps/missing.txt": os.ErrNotExist,
	}}
	registry, _ := newTestRegistry(loader, nil)

	err := registry.LoadMap(context.Background(), "/maps/missing.txt")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
	if registry.IsLoaded("missing") {
		t.Error("map that could not be read should not be registered")
	}
}

func TestMapRegistryUnloadMap(t *testing.T) {
	registry, _ := newTestRegistry(nil, nil)
	ctx := context.Background()

	_ = registry.LoadMap(ctx, "/maps/a.txt")
	if err := registry.UnloadMap(ctx, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if registry.IsLoaded("a") {
		t.Error("expected map to be unloaded")
	}
	if err := registry.UnloadMap(ctx, "a"); !errors.Is(err, domain.ErrMapNotFound) {
		t.Errorf("expected ErrMapNotFound, got %v", err)
	}
}

func TestMapRegistryListMapsSorted(t *testing.T) {
	registry, _ := newTestRegistry(nil, nil)
	ctx := context.Background()

	for _, p := range []string{"/maps/c.txt", "/maps/a.txt", "/maps/b.json"} {
		if err := registry.LoadMap(ctx, p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	maps, err := registry.ListMaps(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(maps) != 3 || maps[0].ID != "a" || maps[1].ID != "b" || maps[2].ID != "c" {
		t.Errorf("unexpected order: %v", maps)
	}
	if registry.MapCount() != 3 || registry.ReadyCount() != 3 {
		t.Errorf("MapCount=%d ReadyCount=%d", registry.MapCount(), registry.ReadyCount())
	}
}

func TestMapRegistryGetMapNotFound(t *testing.T) {
	registry, _ := newTestRegistry(nil, nil)
	if _, err := registry.GetMap(context.Background(), "nope"); !errors.Is(err, domain.ErrMapNotFound) {
		t.Errorf("expected ErrMapNotFound, got %v", err)
	}
	if _, err := registry.GetMapStatus(context.Background(), "nope"); !errors.Is(err, domain.ErrMapNotFound) {
		t.Errorf("expected ErrMapNotFound, got %v", err)
	}
}

func TestMapRegistryGetMapReturnsCopy(t *testing.T) {
	registry, _ := newTestRegistry(nil, nil)
	ctx := context.Background()
	_ = registry.LoadMap(ctx, "/maps/a.txt")

	m, _ := registry.GetMap(ctx, "a")
	m.Status = domain.MapStatusUnloading

	if status, _ := registry.GetMapStatus(ctx, "a"); status != domain.MapStatusReady {
		t.Errorf("registry state changed through returned map: %s", status)
	}
}

func TestMapRegistryLoadAll(t *testing.T) {
	storage := &mockStorage{objects: []output.StorageObject{
		{Key: "a.txt"},
		{Key: "b.gcj02.json"},
	}}
	registry, _ := newTestRegistry(nil, storage)

	if err := registry.LoadAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if registry.MapCount() != 2 {
		t.Errorf("MapCount = %d, want 2", registry.MapCount())
	}
	m, err := registry.GetMap(context.Background(), "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Path != filepath.Join("/tmp", "b.gcj02.json") {
		t.Errorf("Path = %s", m.Path)
	}
}

func TestMapRegistryLoadAllListError(t *testing.T) {
	storage := &mockStorage{listErr: domain.ErrStorageUnavailable}
	registry, _ := newTestRegistry(nil, storage)

	if err := registry.LoadAll(context.Background()); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestMapRegistryLoadAllSkipsFailedDownloads(t *testing.T) {
	storage := &mockStorage{
		objects:     []output.StorageObject{{Key: "a.txt"}},
		downloadErr: errors.New("network"),
	}
	registry, _ := newTestRegistry(nil, storage)

	if err := registry.LoadAll(context.Background()); err != nil {
		t.Fatalf("download failures should not fail LoadAll: %v", err)
	}
	if registry.MapCount() != 0 {
		t.Errorf("MapCount = %d, want 0", registry.MapCount())
	}
}

func TestMapRegistrySync(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "old.txt")
	if err := os.WriteFile(stale, []byte("0,0\n1,0\n1,1"), 0o600); err != nil {
		t.Fatalf("write stale map: %v", err)
	}

	storage := &mockStorage{objects: []output.StorageObject{{Key: "keep.txt"}, {Key: "new.txt"}}}
	metrics := newCountingMetrics()
	registry := NewMapRegistry(&mockLoader{}, storage, metrics, testLogger(), dir)
	ctx := context.Background()

	if err := registry.LoadMap(ctx, filepath.Join(dir, "keep.txt")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := registry.LoadMap(ctx, stale); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := registry.Sync(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !slices.Equal(stats.Added, []string{"new"}) || !slices.Equal(stats.Removed, []string{"old"}) {
		t.Errorf("stats = %+v, want new added and old removed", stats)
	}
	if len(stats.Retried) != 0 || len(stats.Skipped) != 0 {
		t.Errorf("stats = %+v, want nothing retried or skipped", stats)
	}
	if registry.IsLoaded("old") {
		t.Error("expected old map to be removed")
	}
	if !registry.IsLoaded("new") || !registry.IsLoaded("keep") {
		t.Error("expected keep and new maps to be loaded")
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("expected local copy to be deleted, stat err = %v", err)
	}
}

func TestMapRegistrySyncRetriesErrorMaps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.txt")
	loader := &mockLoader{loadErr: map[string]error{
		path: &domain.ParseError{Format: "text", Line: 2, Err: errors.New("bad pair")},
	}}
	storage := &mockStorage{objects: []output.StorageObject{{Key: "broken.txt"}}}
	registry := NewMapRegistry(loader, storage, newCountingMetrics(), testLogger(), dir)
	ctx := context.Background()

	if err := registry.LoadMap(ctx, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status, _ := registry.GetMapStatus(ctx, "broken"); status != domain.MapStatusError {
		t.Fatalf("status = %s, want error", status)
	}

	delete(loader.loadErr, path)
	stats, err := registry.Sync(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !slices.Equal(stats.Retried, []string{"broken"}) || len(stats.Added) != 0 {
		t.Errorf("stats = %+v, want broken retried", stats)
	}
	if status, _ := registry.GetMapStatus(ctx, "broken"); status != domain.MapStatusReady {
		t.Errorf("status after retry = %s, want ready", status)
	}
}

func TestMapRegistrySyncSkipsDuplicateIDs(t *testing.T) {
	storage := &mockStorage{objects: []output.StorageObject{
		{Key: "sub/a.json"},
		{Key: "a.txt"},
		{Key: "a.gcj02.wkt"},
	}}
	registry := NewMapRegistry(&mockLoader{}, storage, newCountingMetrics(), testLogger(), t.TempDir())
	ctx := context.Background()

	stats, err := registry.Sync(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !slices.Equal(stats.Added, []string{"a"}) {
		t.Errorf("Added = %v, want [a]", stats.Added)
	}
	if !slices.Equal(stats.Skipped, []string{"a.txt", "sub/a.json"}) {
		t.Errorf("Skipped = %v", stats.Skipped)
	}
	m, err := registry.GetMap(ctx, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Datum != domain.DatumGCJ02 {
		t.Errorf("Datum = %s, want the first key in sorted order", m.Datum)
	}

	stats, err = registry.Sync(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats.Added) != 0 || len(stats.Removed) != 0 {
		t.Errorf("second sync changed maps: %+v", stats)
	}
}

func TestMapRegistryLoadMapRejectsDuplicateID(t *testing.T) {
	registry, _ := newTestRegistry(nil, nil)
	ctx := context.Background()

	if err := registry.LoadMap(ctx, "/maps/a.txt"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := registry.LoadMap(ctx, "/maps/a.txt"); err != nil {
		t.Errorf("reloading the same file: %v", err)
	}

	err := registry.LoadMap(ctx, "/maps/x/a.json")
	if !errors.Is(err, domain.ErrMapExists) || !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrMapExists, got %v", err)
	}
	m, _ := registry.GetMap(ctx, "a")
	if m.Path != "/maps/a.txt" {
		t.Errorf("Path = %s, want the original file", m.Path)
	}

	if err := registry.UnloadPath(ctx, "/maps/x/a.json"); !errors.Is(err, domain.ErrMapNotFound) {
		t.Errorf("UnloadPath for the rejected file: %v", err)
	}
	if !registry.IsLoaded("a") {
		t.Error("original map should stay loaded")
	}
	if err := registry.UnloadPath(ctx, "/maps/a.txt"); err != nil {
		t.Errorf("UnloadPath: %v", err)
	}
	if registry.IsLoaded("a") {
		t.Error("map should be unloaded")
	}
}

func TestMapRegistrySyncReloadsChangedObjects(t *testing.T) {
	storage := &mockStorage{objects: []output.StorageObject{
		{Key: "north.txt", ETag: "v1"},
		{Key: "south.txt", LastModified: 1700000000, Size: 42},
	}}
	registry := NewMapRegistry(&mockLoader{}, storage, newCountingMetrics(), testLogger(), t.TempDir())
	ctx := context.Background()

	stats, err := registry.Sync(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(stats.Added, []string{"north", "south"}) {
		t.Fatalf("Added = %v", stats.Added)
	}

	storage.objects[0].ETag = "v2"
	storage.objects[1].Size = 43
	stats, err = registry.Sync(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(stats.Updated, []string{"north", "south"}) || len(stats.Added) != 0 {
		t.Errorf("stats = %+v, want both maps updated", stats)
	}

	stats, err = registry.Sync(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats.Updated) != 0 {
		t.Errorf("unchanged objects reloaded: %v", stats.Updated)
	}
}

func TestMapRegistrySyncConfirmsRemoval(t *testing.T) {
	dir := t.TempDir()
	storage := &mockStorage{objects: []output.StorageObject{{Key: "east.txt"}, {Key: "west.txt"}}}
	registry := NewMapRegistry(&mockLoader{}, storage, newCountingMetrics(), testLogger(), dir)
	ctx := context.Background()

	if _, err := registry.Sync(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// west drops out of the listing but is still stored; east is unreachable.
	storage.objects = nil
	storage.unlisted = []string{"west.txt"}
	stats, err := registry.Sync(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(stats.Removed, []string{"east"}) {
		t.Errorf("Removed = %v, want [east]", stats.Removed)
	}
	if !registry.IsLoaded("west") {
		t.Error("west should stay loaded while storage still has it")
	}

	storage.unlisted = nil
	storage.existsErr = domain.ErrStorageUnavailable
	stats, err = registry.Sync(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats.Removed) != 0 || !registry.IsLoaded("west") {
		t.Errorf("map removed without confirmation: %+v", stats)
	}
}
