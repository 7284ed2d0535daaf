// Package redis caches validated resource bytes so repeated generations over
// the same material skip the origin.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/coursegen/internal/platform/envutil"
	"github.com/yungbote/coursegen/internal/platform/logger"
)

type Config struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

func DefaultConfig() Config {
	return Config{TTL: 6 * time.Hour}
}

// ConfigFromEnv overlays REDIS_* and RESOURCE_CACHE_TTL_SECONDS on base.
func ConfigFromEnv(base Config) Config {
	cfg := base
	cfg.Addr = envutil.String("REDIS_ADDR", cfg.Addr)
	cfg.Password = envutil.String("REDIS_PASSWORD", cfg.Password)
	cfg.DB = envutil.Int("REDIS_DB", cfg.DB)
	cfg.TTL = envutil.Seconds("RESOURCE_CACHE_TTL_SECONDS", cfg.TTL)
	return cfg
}

// ResourceCache implements fetch.Cache.
type ResourceCache struct {
	log *logger.Logger
	rdb goredis.UniversalClient
	ttl time.Duration
}

// NewResourceCache dials Redis and verifies the connection.
func NewResourceCache(ctx context.Context, log *logger.Logger, cfg Config) (*ResourceCache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewResourceCacheWithClient(log, rdb, cfg.TTL), nil
}

// NewResourceCacheWithClient wraps an existing client.
func NewResourceCacheWithClient(log *logger.Logger, rdb goredis.UniversalClient, ttl time.Duration) *ResourceCache {
	if log == nil {
		log = logger.Nop()
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &ResourceCache{log: log.With("service", "ResourceCache"), rdb: rdb, ttl: ttl}
}

// Get reports a miss, not an error, for absent keys.
func (c *ResourceCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *ResourceCache) Set(ctx context.Context, key string, data []byte) error {
	return c.rdb.Set(ctx, key, data, c.ttl).Err()
}

func (c *ResourceCache) Close() error {
	return c.rdb.Close()
}
