// Package xcache provides typed caches over the gocache library with
// memory, redis, and two-level backends selected by config. An empty config
// yields a noop cache so call sites never need nil checks.
package xcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	cachelib "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"
	redis "github.com/redis/go-redis/v9"

	"github.com/fernhill/clienthub/internal/log"
	redis_store "github.com/fernhill/clienthub/internal/pkg/xcache/redis"
	"github.com/fernhill/clienthub/internal/pkg/xredis"
)

// Cache is an alias to the gocache CacheInterface for convenience.
type Cache[T any] = cachelib.CacheInterface[T]

// SetterCache is the interface for caches with TTL-aware reads.
type SetterCache[T any] = cachelib.SetterCacheInterface[T]

// Option is a store option applied when setting values.
type Option = store.Option

// WithExpiration sets a per-entry expiration.
func WithExpiration(expiration time.Duration) Option {
	return store.WithExpiration(expiration)
}

// NewMemory creates a pure in-memory cache using patrickmn/go-cache as the
// backend.
func NewMemory[T any](defaultExpiration, cleanupInterval time.Duration, options ...Option) SetterCache[T] {
	client := gocache.New(defaultExpiration, cleanupInterval)
	return cachelib.New[T](gocache_store.NewGoCache(client, options...))
}

// NewRedis creates a redis-backed cache over an existing client.
func NewRedis[T any](client *redis.Client, options ...Option) SetterCache[T] {
	return cachelib.New[T](redis_store.NewStore[T](client, options...))
}

// NewFromConfig builds a typed cache from the given Config.
// Modes:
//   - memory: in-memory only
//   - redis: redis only
//   - two-level: memory + redis chain
//
// If mode is not set, returns a noop cache that does nothing.
func NewFromConfig[T any](cfg Config) Cache[T] {
	if cfg.Mode == "" {
		return NewNoop[T]()
	}

	memExpiration := defaultIfZero(cfg.Memory.Expiration, 5*time.Minute)
	memCleanupInterval := defaultIfZero(cfg.Memory.CleanupInterval, 10*time.Minute)
	mem := NewMemory[T](memExpiration, memCleanupInterval, store.WithExpiration(memExpiration))

	var rds SetterCache[T]

	if (cfg.Redis.Addr != "" || cfg.Redis.URL != "") && cfg.Mode != ModeMemory {
		client, err := xredis.NewClient(cfg.Redis)
		if err != nil {
			panic(fmt.Errorf("failed to connect to redis: %w", err))
		}

		redisExpiration := defaultIfZero(cfg.Redis.Expiration, 30*time.Minute)
		rds = NewRedis[T](client, store.WithExpiration(redisExpiration))
	}

	switch cfg.Mode {
	case ModeTwoLevel:
		if rds != nil {
			log.Info(context.Background(), "Using two-level cache")
			return cachelib.NewChain[T](mem, rds)
		}

		return mem
	case ModeRedis:
		if rds == nil {
			panic(errors.New("redis cache config is invalid"))
		}

		log.Info(context.Background(), "Using redis cache")

		return rds
	case ModeMemory:
		return mem
	default:
		return NewNoop[T]()
	}
}

func defaultIfZero(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}

	return d
}
