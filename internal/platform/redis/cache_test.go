package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("RESOURCE_CACHE_TTL_SECONDS", "60")
	cfg := ConfigFromEnv(DefaultConfig())
	if cfg.Addr != "localhost:6380" || cfg.DB != 2 || cfg.TTL != time.Minute {
		t.Fatalf("config: got=%+v", cfg)
	}
}

func TestNewResourceCacheNeedsAddr(t *testing.T) {
	if _, err := NewResourceCache(context.Background(), nil, Config{}); err == nil {
		t.Fatalf("expected error without address")
	}
}

func TestResourceCacheRoundTrip(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("COURSEGEN_TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("set COURSEGEN_TEST_REDIS_ADDR to run redis integration tests")
	}
	ctx := context.Background()
	c, err := NewResourceCache(ctx, nil, Config{Addr: addr, TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewResourceCache: %v", err)
	}
	defer c.Close()

	key := fmt.Sprintf("coursegen:test:%d", time.Now().UnixNano())
	if _, hit, err := c.Get(ctx, key); err != nil || hit {
		t.Fatalf("miss: hit=%v err=%v", hit, err)
	}
	if err := c.Set(ctx, key, []byte{0x89, 'P', 'N', 'G'}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, hit, err := c.Get(ctx, key)
	if err != nil || !hit || string(got) != "\x89PNG" {
		t.Fatalf("hit: got=%q hit=%v err=%v", got, hit, err)
	}
}
