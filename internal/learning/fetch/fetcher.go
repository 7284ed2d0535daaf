// Package fetch retrieves auxiliary resources (page images) with per-attempt
// timeouts and bounded retry, and fans batches out with per-item failure
// isolation.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/coursegen/internal/learning/media"
	"github.com/yungbote/coursegen/internal/pkg/retry"
	"github.com/yungbote/coursegen/internal/platform/apierr"
	"github.com/yungbote/coursegen/internal/platform/logger"
)

type Config struct {
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	MaxAttempts    int           `yaml:"max_attempts"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	// Payloads below MinBytes cannot be a real page image.
	MinBytes  int   `yaml:"min_bytes"`
	MaxBytes  int64 `yaml:"max_bytes"`
	GroupSize int   `yaml:"group_size"`
}

func DefaultConfig() Config {
	return Config{
		AttemptTimeout: 30 * time.Second,
		MaxAttempts:    3,
		BaseDelay:      500 * time.Millisecond,
		MinBytes:       100,
		MaxBytes:       20 << 20,
		GroupSize:      8,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = d.AttemptTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MinBytes <= 0 {
		c.MinBytes = d.MinBytes
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = d.MaxBytes
	}
	if c.GroupSize <= 0 {
		c.GroupSize = d.GroupSize
	}
	return c
}

// Cache stores validated resource bytes by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
}

// Observer receives one call per settled fetch.
type Observer interface {
	ObserveFetch(result string, elapsed time.Duration)
}

type Fetcher struct {
	log       *logger.Logger
	cfg       Config
	sources   map[string]Source
	converter media.Converter
	cache     Cache
	observer  Observer
	sleep     func(ctx context.Context, d time.Duration) error
}

type Option func(*Fetcher)

func WithSource(scheme string, s Source) Option {
	return func(f *Fetcher) { f.sources[scheme] = s }
}

func WithConverter(c media.Converter) Option {
	return func(f *Fetcher) { f.converter = c }
}

func WithCache(c Cache) Option {
	return func(f *Fetcher) { f.cache = c }
}

func WithObserver(o Observer) Option {
	return func(f *Fetcher) { f.observer = o }
}

func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = fn }
}

func New(log *logger.Logger, cfg Config, opts ...Option) *Fetcher {
	if log == nil {
		log = logger.Nop()
	}
	f := &Fetcher{
		log: log.With("service", "ResourceFetcher"),
		cfg: cfg.withDefaults(),
		sources: map[string]Source{
			"http":  HTTPSource{Client: &http.Client{}},
			"https": HTTPSource{Client: &http.Client{}},
			"data":  DataURLSource{},
		},
		converter: media.StdConverter{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves one ref. Transient failures are retried; definitive
// rejections, bad payloads and unknown signatures fail immediately.
func (f *Fetcher) Fetch(ctx context.Context, index int, ref Ref) Result {
	start := time.Now()
	res := Result{SourceIndex: index, Ref: ref}

	enc, err := f.fetch(ctx, ref)
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Err = err
		f.log.Warn("resource fetch failed",
			"source_index", index,
			"url", redactURL(ref.URL),
			"kind", kindString(err),
			"exhausted", apierr.GaveUp(err),
			"elapsed", res.Elapsed.String(),
		)
		f.observe("failure", res.Elapsed)
		return res
	}
	res.Value = enc
	if enc.FromCache {
		f.observe("cache_hit", res.Elapsed)
	} else {
		f.observe("success", res.Elapsed)
	}
	return res
}

func (f *Fetcher) fetch(ctx context.Context, ref Ref) (Encoded, error) {
	src, ok := f.sources[schemeOf(ref.URL)]
	if !ok {
		return Encoded{}, apierr.Newf(apierr.KindInvalidResource, "fetch", "unsupported resource scheme %q", schemeOf(ref.URL))
	}

	key := cacheKey(ref.URL)
	if f.cache != nil {
		if data, hit, err := f.cache.Get(ctx, key); err != nil {
			f.log.Debug("resource cache get failed", "error", err)
		} else if hit {
			if t, verr := media.Validate(data); verr == nil {
				return Encoded{Type: t, MIME: t.MIME(), Data: data, FromCache: true}, nil
			}
		}
	}

	policy := retry.Policy{
		MaxAttempts:    f.cfg.MaxAttempts,
		BaseDelay:      f.cfg.BaseDelay,
		AttemptTimeout: f.cfg.AttemptTimeout,
		Sleep:          f.sleep,
		Log:            f.log,
	}
	payload, err := retry.Do(ctx, policy, "fetch", func(actx context.Context, attempt int) (Payload, error) {
		p, err := src.Open(actx, ref, f.cfg.MaxBytes)
		if err != nil {
			return Payload{}, err
		}
		// A short body will not get longer on retry.
		if len(p.Data) < f.cfg.MinBytes {
			return Payload{}, apierr.Newf(apierr.KindInvalidResource, "fetch", "payload too small (%d bytes)", len(p.Data))
		}
		return p, nil
	})
	if err != nil {
		return Encoded{}, err
	}

	enc, err := f.encode(ctx, payload)
	if err != nil {
		return Encoded{}, err
	}
	if f.cache != nil {
		if err := f.cache.Set(ctx, key, enc.Data); err != nil {
			f.log.Debug("resource cache set failed", "error", err)
		}
	}
	return enc, nil
}

func (f *Fetcher) encode(ctx context.Context, p Payload) (Encoded, error) {
	t := media.Detect(p.Data)
	if t == media.Unknown {
		return Encoded{}, apierr.Newf(apierr.KindInvalidResource, "fetch", "unrecognized signature (declared %q)", p.Label)
	}
	data := p.Data
	converted := false
	if t.NeedsConversion() {
		out, outType, err := f.converter.Convert(ctx, t, data)
		if err != nil {
			return Encoded{}, apierr.New(apierr.KindInvalidResource, "convert", err)
		}
		if media.Detect(out) != outType {
			return Encoded{}, apierr.Newf(apierr.KindInvalidResource, "convert", "converter output is %s, expected %s", media.Detect(out), outType)
		}
		data = out
		converted = true
	}
	t, err := media.Validate(data)
	if err != nil {
		return Encoded{}, apierr.New(apierr.KindInvalidResource, "validate", err)
	}
	return Encoded{Type: t, MIME: t.MIME(), Data: data, Converted: converted}, nil
}

// FetchAll fetches every ref with at most GroupSize in flight and waits for
// all of them to settle. Results are in input order. The error is non-nil
// only when every ref failed.
func (f *Fetcher) FetchAll(ctx context.Context, refs []Ref) (Batch, error) {
	batch := Batch{Results: make([]Result, len(refs))}
	if len(refs) == 0 {
		return batch, nil
	}

	var g errgroup.Group
	g.SetLimit(f.cfg.GroupSize)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			batch.Results[i] = f.Fetch(ctx, i, ref)
			return nil
		})
	}
	_ = g.Wait()

	var lastErr error
	for _, r := range batch.Results {
		if r.OK() {
			batch.Succeeded++
		} else {
			batch.Failed++
			lastErr = r.Err
		}
	}
	f.log.Info("resource batch settled",
		"total", len(refs),
		"succeeded", batch.Succeeded,
		"failed", batch.Failed,
	)
	if batch.Succeeded == 0 {
		if ctx.Err() != nil {
			return batch, apierr.Classify("fetch_all", ctx.Err())
		}
		return batch, apierr.New(apierr.KindInvalidResource, "fetch_all",
			fmt.Errorf("all %d resources failed: %w", len(refs), lastErr))
	}
	return batch, nil
}

func (f *Fetcher) observe(result string, d time.Duration) {
	if f.observer != nil {
		f.observer.ObserveFetch(result, d)
	}
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "coursegen:resource:" + hex.EncodeToString(sum[:])
}
