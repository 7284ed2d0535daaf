package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/yungbote/coursegen/internal/learning/fetch"
	"github.com/yungbote/coursegen/internal/learning/generate"
	"github.com/yungbote/coursegen/internal/learning/llm"
	"github.com/yungbote/coursegen/internal/learning/safety"
	"github.com/yungbote/coursegen/internal/observability"
	"github.com/yungbote/coursegen/internal/platform/config"
	"github.com/yungbote/coursegen/internal/platform/gcp"
	"github.com/yungbote/coursegen/internal/platform/logger"
	"github.com/yungbote/coursegen/internal/platform/openai"
	"github.com/yungbote/coursegen/internal/platform/redis"
)

// runtime holds everything one CLI invocation wires up.
type runtime struct {
	log         *logger.Logger
	coordinator *generate.Coordinator
	closers     []func(context.Context) error
}

func newRuntime(ctx context.Context, path string) (*runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		return nil, err
	}
	rt := &runtime{log: log}

	rt.closers = append(rt.closers, observability.InitOTel(ctx, log, cfg.Tracing.Otel()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)
	if cfg.Metrics.Addr != "" {
		rt.closers = append(rt.closers, observability.StartMetricsServer(log, cfg.Metrics.Addr, reg))
	}

	fetchOpts := []fetch.Option{fetch.WithObserver(metrics)}
	if cfg.Redis.Addr != "" {
		cache, err := redis.NewResourceCache(ctx, log, cfg.Redis)
		if err != nil {
			// the cache only saves origin round trips
			log.Warn("Resource cache unavailable; continuing without it", "error", err)
		} else {
			fetchOpts = append(fetchOpts, fetch.WithCache(cache))
			rt.closers = append(rt.closers, func(context.Context) error { return cache.Close() })
		}
	}
	if cfg.Storage.Enabled {
		src, err := gcp.NewStorageSource(ctx, log, cfg.Storage.StorageConfig)
		if err != nil {
			rt.Close()
			return nil, err
		}
		fetchOpts = append(fetchOpts, fetch.WithSource("gs", src))
		rt.closers = append(rt.closers, func(context.Context) error { return src.Close() })
	}

	openaiCfg := cfg.OpenAI
	factory := func() (llm.Streamer, error) {
		p, err := openai.New(log, openaiCfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	rt.coordinator = generate.New(log, cfg.Generation, factory,
		generate.WithFetcher(fetch.New(log, cfg.Fetch, fetchOpts...)),
		generate.WithSafetyFilter(safety.New(log, cfg.Safety)),
		generate.WithMetrics(metrics),
		generate.WithTracer(observability.Tracer()),
	)
	return rt, nil
}

func (rt *runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			rt.log.Warn("shutdown step failed", "error", err)
		}
	}
	rt.log.Sync()
}
