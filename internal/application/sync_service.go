package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jobrunner/sweeper/internal/domain"
)

// ErrRateLimited is returned when a manual sync is triggered within the cooldown.
var ErrRateLimited = errors.New("sync rate limit exceeded")

// syncCooldown is the minimum time between two manually triggered syncs.
const syncCooldown = 30 * time.Second

// RateLimitError reports how long a caller has to wait before the next
// manual sync is accepted.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("sync rate limit exceeded, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// RetryAfterSeconds rounds the wait up to whole seconds.
func (e *RateLimitError) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// MapChange describes a map touched by a sync and the state it ended in.
type MapChange struct {
	ID     string               `json:"id"`
	Datum  domain.Datum         `json:"datum"`
	Status domain.MapFileStatus `json:"status"`
	Error  string               `json:"error,omitempty"`
}

// SyncResult reports what a sync changed. Failed lists every map still in
// error status after the sync, whether it was touched or not.
type SyncResult struct {
	Added           []MapChange `json:"added"`
	Updated         []MapChange `json:"updated"`
	Removed         []string    `json:"removed"`
	Retried         []MapChange `json:"retried"`
	Skipped         []string    `json:"skipped,omitempty"`
	Failed          []MapChange `json:"failed,omitempty"`
	MapsTotal       int         `json:"maps_total"`
	MapsReady       int         `json:"maps_ready"`
	SyncedAt        time.Time   `json:"synced_at"`
	NextScheduledAt time.Time   `json:"next_scheduled_at"`
}

// SyncService runs registry syncs on a fixed interval and on demand.
// Only one sync runs at a time.
type SyncService struct {
	registry *MapRegistry
	interval time.Duration
	logger   *slog.Logger

	running sync.Mutex

	mu          sync.Mutex
	lastTrigger time.Time
	nextSync    time.Time

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSyncService creates a new sync service.
func NewSyncService(registry *MapRegistry, interval time.Duration, logger *slog.Logger) *SyncService {
	return &SyncService{
		registry: registry,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start begins the periodic sync scheduler.
func (s *SyncService) Start(ctx context.Context) {
	s.logger.Info("starting sync service", "interval", s.interval)

	s.wg.Add(1)
	go s.run(ctx)
}

func (s *SyncService) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.scheduleNext()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service stopped: context canceled")
			return
		case <-s.stop:
			s.logger.Info("sync service stopped")
			return
		case <-ticker.C:
			result, err := s.sync(ctx)
			s.scheduleNext()
			if err != nil {
				s.logger.Error("scheduled sync failed", "error", err)
				continue
			}
			for _, f := range result.Failed {
				s.logger.Warn("map in error status", "id", f.ID, "datum", f.Datum, "error", f.Error)
			}
		}
	}
}

// Stop stops the scheduler and waits for a running sync to finish. It is
// safe to call more than once and without Start.
func (s *SyncService) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping sync service")
		close(s.stop)
	})
	s.wg.Wait()
}

// TriggerSync runs a sync immediately. A second call within the cooldown
// returns a *RateLimitError.
func (s *SyncService) TriggerSync(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	if wait := syncCooldown - time.Since(s.lastTrigger); !s.lastTrigger.IsZero() && wait > 0 {
		s.mu.Unlock()
		return SyncResult{}, &RateLimitError{RetryAfter: wait}
	}
	s.lastTrigger = time.Now()
	s.mu.Unlock()

	return s.sync(ctx)
}

func (s *SyncService) sync(ctx context.Context) (SyncResult, error) {
	s.running.Lock()
	defer s.running.Unlock()

	stats, err := s.registry.Sync(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	result := SyncResult{
		Added:           s.changes(ctx, stats.Added),
		Updated:         s.changes(ctx, stats.Updated),
		Removed:         nonNil(stats.Removed),
		Retried:         s.changes(ctx, stats.Retried),
		Skipped:         stats.Skipped,
		MapsTotal:       s.registry.MapCount(),
		MapsReady:       s.registry.ReadyCount(),
		SyncedAt:        time.Now(),
		NextScheduledAt: s.next(),
	}

	maps, _ := s.registry.ListMaps(ctx)
	for i := range maps {
		if maps[i].Status == domain.MapStatusError {
			result.Failed = append(result.Failed, change(&maps[i]))
		}
	}

	return result, nil
}

// changes resolves map IDs to their current registry state. IDs that are
// gone by the time the sync finishes are dropped.
func (s *SyncService) changes(ctx context.Context, ids []string) []MapChange {
	out := make([]MapChange, 0, len(ids))
	for _, id := range ids {
		m, err := s.registry.GetMap(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, change(m))
	}
	return out
}

func change(m *domain.MapFile) MapChange {
	return MapChange{ID: m.ID, Datum: m.Datum, Status: m.Status, Error: m.Error}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *SyncService) scheduleNext() {
	s.mu.Lock()
	s.nextSync = time.Now().Add(s.interval)
	s.mu.Unlock()
}

func (s *SyncService) next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSync
}

// Interval returns the sync interval.
func (s *SyncService) Interval() time.Duration {
	return s.interval
}
