// Package redis provides a Redis-backed work area center cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jobrunner/sweeper/internal/domain"
)

const keyFormat = "sweeper:workarea:%d:center"

// Options configures the Redis connection.
type Options struct {
	Address  string
	Password string
	DB       int
}

// Cache implements the CenterCache port.
type Cache struct {
	client *goredis.Client
}

type entry struct {
	Lng   float64 `json:"lng"`
	Lat   float64 `json:"lat"`
	Datum string  `json:"datum"`
}

// New creates a cache client. The connection is established lazily.
func New(opts Options) *Cache {
	return &Cache{
		client: goredis.NewClient(&goredis.Options{
			Addr:     opts.Address,
			Password: opts.Password,
			DB:       opts.DB,
		}),
	}
}

// Key returns the cache key for a work area.
func Key(id int64) string {
	return fmt.Sprintf(keyFormat, id)
}

// GetCenter returns the cached center of a work area.
func (c *Cache) GetCenter(ctx context.Context, id int64) (domain.GeoPoint, domain.Datum, bool, error) {
	data, err := c.client.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.GeoPoint{}, "", false, nil
	}
	if err != nil {
		return domain.GeoPoint{}, "", false, fmt.Errorf("redis get: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return domain.GeoPoint{}, "", false, fmt.Errorf("decoding cached center: %w", err)
	}
	datum := domain.Datum(e.Datum)
	if !datum.IsValid() {
		return domain.GeoPoint{}, "", false, fmt.Errorf("cached center has unknown datum %q", e.Datum)
	}

	return domain.GeoPoint{Lng: e.Lng, Lat: e.Lat}, datum, true, nil
}

// SetCenter caches a work area center for ttl.
func (c *Cache) SetCenter(ctx context.Context, id int64, center domain.GeoPoint, datum domain.Datum, ttl time.Duration) error {
	data, err := json.Marshal(entry{Lng: center.Lng, Lat: center.Lat, Datum: string(datum)})
	if err != nil {
		return fmt.Errorf("encoding center: %w", err)
	}
	if err := c.client.Set(ctx, Key(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// DeleteCenter removes a cached center.
func (c *Cache) DeleteCenter(ctx context.Context, id int64) error {
	if err := c.client.Del(ctx, Key(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
