// Package application contains the application services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jobrunner/sweeper/internal/domain"
	"github.com/jobrunner/sweeper/internal/ports/output"
)

// MapRegistry manages loaded map files.
type MapRegistry struct {
	mu        sync.RWMutex
	maps      map[string]*domain.MapFile
	loader    output.MapFileLoader
	storage   output.ObjectStorage
	metrics   output.MetricsCollector
	logger    *slog.Logger
	localPath string

	// revisions holds the storage revision each map was last downloaded at.
	revisions map[string]string
}

// NewMapRegistry creates a new map registry.
func NewMapRegistry(
	loader output.MapFileLoader,
	storage output.ObjectStorage,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	localPath string,
) *MapRegistry {
	return &MapRegistry{
		maps:      make(map[string]*domain.MapFile),
		revisions: make(map[string]string),
		loader:    loader,
		storage:   storage,
		metrics:   metrics,
		logger:    logger,
		localPath: localPath,
	}
}

// LoadMap loads a map file from the given path. A file with malformed
// content is registered with status error instead of failing.
func (r *MapRegistry) LoadMap(ctx context.Context, path string) error {
	r.logger.Info("loading map", "path", path)

	id, datum := domain.MapFileID(path)
	r.mu.Lock()
	if existing, ok := r.maps[id]; ok && filepath.Clean(existing.Path) != filepath.Clean(path) {
		r.mu.Unlock()
		r.logger.Warn("map id already registered from another file", "id", id, "path", path, "registered", existing.Path)
		return fmt.Errorf("%s from %s, registered from %s: %w", id, path, existing.Path, domain.ErrMapExists)
	}
	r.maps[id] = &domain.MapFile{
		ID:     id,
		Name:   id,
		Path:   path,
		Datum:  datum,
		Status: domain.MapStatusLoading,
	}
	r.mu.Unlock()

	m, err := r.loader.Load(ctx, path)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidInput) {
			r.mu.Lock()
			delete(r.maps, id)
			r.mu.Unlock()
			r.updateMetrics()
			r.logger.Error("failed to open map", "path", path, "error", err)
			return err
		}

		r.mu.Lock()
		if entry, ok := r.maps[id]; ok {
			entry.Status = domain.MapStatusError
			entry.Error = err.Error()
			entry.LoadedAt = time.Now()
		}
		r.mu.Unlock()
		r.updateMetrics()
		r.logger.Warn("map registered with errors", "id", id, "error", err)
		return nil
	}

	m.Status = domain.MapStatusReady
	m.LoadedAt = time.Now()
	r.mu.Lock()
	r.maps[m.ID] = m
	r.mu.Unlock()

	r.updateMetrics()
	r.logger.Info("map loaded", "id", m.ID, "datum", m.Datum, "vertices", len(m.Vertices))

	return nil
}

// UnloadMap removes a map file from the registry.
func (r *MapRegistry) UnloadMap(_ context.Context, mapID string) error {
	r.logger.Info("unloading map", "id", mapID)

	r.mu.Lock()
	if _, ok := r.maps[mapID]; !ok {
		r.mu.Unlock()
		return domain.ErrMapNotFound
	}
	delete(r.maps, mapID)
	delete(r.revisions, mapID)
	r.mu.Unlock()

	r.updateMetrics()
	return nil
}

// UnloadPath removes the map registered from path. A map with the same ID
// loaded from a different file is left alone.
func (r *MapRegistry) UnloadPath(ctx context.Context, path string) error {
	id, _ := domain.MapFileID(path)
	if p := r.mapPath(id); p == "" || filepath.Clean(p) != filepath.Clean(path) {
		return domain.ErrMapNotFound
	}
	return r.UnloadMap(ctx, id)
}

// ListMaps returns all registered map files ordered by ID.
func (r *MapRegistry) ListMaps(_ context.Context) ([]domain.MapFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	maps := make([]domain.MapFile, 0, len(r.maps))
	for _, m := range r.maps {
		maps = append(maps, *m)
	}
	sort.Slice(maps, func(i, j int) bool { return maps[i].ID < maps[j].ID })

	return maps, nil
}

// GetMap returns a specific map file by ID.
func (r *MapRegistry) GetMap(_ context.Context, id string) (*domain.MapFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.maps[id]
	if !ok {
		return nil, domain.ErrMapNotFound
	}
	cp := *m
	return &cp, nil
}

// GetMapStatus returns the status of a map file.
func (r *MapRegistry) GetMapStatus(_ context.Context, id string) (domain.MapFileStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.maps[id]
	if !ok {
		return "", domain.ErrMapNotFound
	}
	return m.Status, nil
}

// IsLoaded returns true if a map with the given ID is registered.
func (r *MapRegistry) IsLoaded(mapID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.maps[mapID]
	return ok
}

// MapCount returns the number of registered maps.
func (r *MapRegistry) MapCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.maps)
}

// ReadyCount returns the number of parsed maps.
func (r *MapRegistry) ReadyCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ready := 0
	for _, m := range r.maps {
		if m.IsReady() {
			ready++
		}
	}
	return ready
}

// updateMetrics updates the metrics collector with current map counts.
func (r *MapRegistry) updateMetrics() {
	r.metrics.SetMapsLoaded(r.MapCount())
	r.metrics.SetMapsReady(r.ReadyCount())
}

// LoadAll loads all map files from storage.
func (r *MapRegistry) LoadAll(ctx context.Context) error {
	r.logger.Info("loading all maps from storage")

	objects, err := r.listObjects(ctx)
	if err != nil {
		return err
	}

	remote, _ := r.remoteMaps(objects)
	for _, id := range sortedIDs(remote) {
		if err := r.fetch(ctx, id, remote[id]); err != nil {
			r.logger.Error("failed to load map", "key", remote[id].Key, "error", err)
		}
	}

	return nil
}

// SyncStats lists the maps touched by a sync, by ID, and the object keys
// skipped because another key already provides their map ID.
type SyncStats struct {
	Added   []string
	Updated []string
	Removed []string
	Retried []string
	Skipped []string
}

// Sync synchronizes with remote storage. New maps are downloaded and loaded,
// maps whose object changed or that are in error status are downloaded again,
// and maps that are gone from storage are unloaded and their local copy deleted.
func (r *MapRegistry) Sync(ctx context.Context) (SyncStats, error) {
	r.logger.Info("syncing maps from storage")

	objects, err := r.listObjects(ctx)
	if err != nil {
		return SyncStats{}, err
	}

	remote, skipped := r.remoteMaps(objects)
	stats := SyncStats{Skipped: skipped}

	for _, mapID := range sortedIDs(remote) {
		obj := remote[mapID]
		list := &stats.Added
		switch status, rev, loaded := r.state(mapID); {
		case !loaded:
		case status == domain.MapStatusError:
			list = &stats.Retried
		case rev != "" && rev != obj.Revision():
			list = &stats.Updated
		default:
			r.logger.Debug("map unchanged, skipping", "id", mapID)
			continue
		}

		if err := r.fetch(ctx, mapID, obj); err != nil {
			r.logger.Error("failed to sync map", "key", obj.Key, "error", err)
			continue
		}
		*list = append(*list, mapID)
		r.logger.Info("map synced", "id", mapID, "key", obj.Key)
	}

	for _, mapID := range r.findMapsToRemove(remote) {
		localPath := r.mapPath(mapID)
		if key, ok := r.storageKey(localPath); ok {
			exists, err := r.storage.Exists(ctx, key)
			if err != nil {
				r.logger.Warn("cannot confirm map removal, keeping it", "id", mapID, "key", key, "error", err)
				continue
			}
			if exists {
				r.logger.Debug("map missing from listing but still stored", "id", mapID, "key", key)
				continue
			}
		}

		r.logger.Info("removing map not in remote storage", "id", mapID)
		if err := r.UnloadMap(ctx, mapID); err != nil {
			r.logger.Error("failed to unload removed map", "id", mapID, "error", err)
			continue
		}

		if localPath != "" {
			if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
				r.logger.Warn("failed to delete local copy", "path", localPath, "error", err)
			} else {
				r.logger.Debug("deleted local copy", "path", localPath)
			}
		}

		stats.Removed = append(stats.Removed, mapID)
	}

	r.logger.Info("sync completed",
		"added", len(stats.Added),
		"updated", len(stats.Updated),
		"removed", len(stats.Removed),
		"retried", len(stats.Retried),
		"skipped", len(stats.Skipped),
		"total", r.MapCount(),
	)
	return stats, nil
}

// fetch downloads obj, loads it and records its revision.
func (r *MapRegistry) fetch(ctx context.Context, mapID string, obj output.StorageObject) error {
	localPath, err := r.download(ctx, obj.Key)
	if err != nil {
		return err
	}
	if err := r.LoadMap(ctx, localPath); err != nil {
		return err
	}

	r.mu.Lock()
	if _, ok := r.maps[mapID]; ok {
		r.revisions[mapID] = obj.Revision()
	}
	r.mu.Unlock()
	return nil
}

// state returns the status and stored revision of a registered map.
func (r *MapRegistry) state(mapID string) (domain.MapFileStatus, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.maps[mapID]
	if !ok {
		return "", "", false
	}
	return m.Status, r.revisions[mapID], true
}

// storageKey maps a local path under the download directory back to its object key.
func (r *MapRegistry) storageKey(localPath string) (string, bool) {
	if localPath == "" {
		return "", false
	}
	rel, err := filepath.Rel(r.localPath, localPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// remoteMaps maps IDs to storage objects. Keys are visited in sorted order
// and a key whose map ID is already taken is skipped and returned separately.
func (r *MapRegistry) remoteMaps(objects []output.StorageObject) (map[string]output.StorageObject, []string) {
	sorted := slices.Clone(objects)
	slices.SortFunc(sorted, func(a, b output.StorageObject) int { return strings.Compare(a.Key, b.Key) })

	remote := make(map[string]output.StorageObject, len(sorted))
	var skipped []string
	for _, obj := range sorted {
		id, _ := domain.MapFileID(obj.Key)
		if first, ok := remote[id]; ok {
			r.logger.Warn("skipping map with duplicate id", "id", id, "key", obj.Key, "kept", first.Key)
			skipped = append(skipped, obj.Key)
			continue
		}
		remote[id] = obj
	}
	return remote, skipped
}

func sortedIDs(m map[string]output.StorageObject) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *MapRegistry) listObjects(ctx context.Context) ([]output.StorageObject, error) {
	start := time.Now()
	objects, err := r.storage.List(ctx)
	r.metrics.IncStorageOperations("list", err == nil)
	r.metrics.ObserveStorageDuration("list", time.Since(start))
	return objects, err
}

func (r *MapRegistry) download(ctx context.Context, key string) (string, error) {
	localPath := filepath.Join(r.localPath, filepath.FromSlash(key))

	start := time.Now()
	err := r.storage.Download(ctx, key, localPath)
	r.metrics.IncStorageOperations("download", err == nil)
	r.metrics.ObserveStorageDuration("download", time.Since(start))

	return localPath, err
}

// findMapsToRemove returns map IDs that are loaded but not in remote storage.
func (r *MapRegistry) findMapsToRemove(remote map[string]output.StorageObject) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var toRemove []string
	for mapID := range r.maps {
		if _, exists := remote[mapID]; !exists {
			toRemove = append(toRemove, mapID)
		}
	}
	sort.Strings(toRemove)
	return toRemove
}

// mapPath returns the local file path for a loaded map.
func (r *MapRegistry) mapPath(mapID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.maps[mapID]; ok {
		return m.Path
	}
	return ""
}
