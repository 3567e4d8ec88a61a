// Package cache wraps go-redis/v8 for the handful of read-heavy, cheap-to-
// recompute-but-not-free lookups in the system: daily celestial/numerology
// snapshots and the active weight profile. Grounded on the teacher's
// infrastructure/datafacade/cache RedisCache (JSON-over-redis.Client, TTL'd
// Set, Nil-aware Get), generalized from venue/symbol trade caching to the
// signal-fusion domain's own key space.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache is a thin JSON-marshaling layer over a redis.Client.
type Cache struct {
	client *redis.Client
}

// Options mirrors the teacher's pool/timeout tuning.
type Options struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

func DefaultOptions(addr string) Options {
	return Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}
}

// New dials Redis and verifies connectivity with a bounded ping, the same
// fail-fast posture the teacher's NewRedisCache uses.
func New(ctx context.Context, opts Options) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis connection failed: %w", err)
	}
	return &Cache{client: client}, nil
}

// NewFromClient wraps an existing client, used by tests to inject redismock.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// GetJSON unmarshals the cached value for key into dest. hit is false (with
// a nil error) on a cache miss so callers can fall through to the store.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) (hit bool, err error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache: unmarshal %s: %w", key, err)
	}
	return true, nil
}

// SetJSON marshals value and stores it under key with the given TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Delete removes key, used to invalidate the weight-profile cache entry the
// moment a new profile is activated.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: delete %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Key builders keep the prefix scheme in one place rather than scattered
// fmt.Sprintf calls at every call site, mirroring the teacher's BuildKey.
func CelestialKey(date time.Time) string {
	return fmt.Sprintf("confluence:celestial:%s", date.UTC().Format("2006-01-02"))
}

func NumerologyKey(date time.Time) string {
	return fmt.Sprintf("confluence:numerology:%s", date.UTC().Format("2006-01-02"))
}

const ActiveWeightProfileKey = "confluence:weights:active"
