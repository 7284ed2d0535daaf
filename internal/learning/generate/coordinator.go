package generate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/coursegen/internal/learning/course"
	"github.com/yungbote/coursegen/internal/learning/fetch"
	"github.com/yungbote/coursegen/internal/learning/jsonrepair"
	"github.com/yungbote/coursegen/internal/learning/llm"
	"github.com/yungbote/coursegen/internal/learning/llmstream"
	"github.com/yungbote/coursegen/internal/learning/prompts"
	"github.com/yungbote/coursegen/internal/learning/safety"
	"github.com/yungbote/coursegen/internal/observability"
	"github.com/yungbote/coursegen/internal/pkg/retry"
	"github.com/yungbote/coursegen/internal/platform/apierr"
	"github.com/yungbote/coursegen/internal/platform/logger"
)

// Fetcher resolves auxiliary resources. *fetch.Fetcher implements it.
type Fetcher interface {
	FetchAll(ctx context.Context, refs []fetch.Ref) (fetch.Batch, error)
}

// PromptBuilder renders the prompts the coordinator issues itself.
// prompts.Builder is the default.
type PromptBuilder interface {
	Build(name prompts.PromptName, in prompts.Input) (prompts.Prompt, error)
}

type Coordinator struct {
	log       *logger.Logger
	cfg       Config
	client    llm.Factory
	fetcher   Fetcher
	prompts   PromptBuilder
	filter    *safety.Filter
	collector *llmstream.Collector
	metrics   *observability.Metrics
	tracer    trace.Tracer
	sleep     func(ctx context.Context, d time.Duration) error
	newID     func() string
}

type Option func(*Coordinator)

func WithFetcher(f Fetcher) Option             { return func(c *Coordinator) { c.fetcher = f } }
func WithPromptBuilder(b PromptBuilder) Option { return func(c *Coordinator) { c.prompts = b } }
func WithSafetyFilter(f *safety.Filter) Option { return func(c *Coordinator) { c.filter = f } }
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}
func WithTracer(t trace.Tracer) Option { return func(c *Coordinator) { c.tracer = t } }

// WithSleep replaces the retry backoff sleep.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) { c.sleep = fn }
}

// New builds a Coordinator. client is memoized: the model handle is built on
// first use and shared read-only afterwards.
func New(log *logger.Logger, cfg Config, client llm.Factory, opts ...Option) *Coordinator {
	if log == nil {
		log = logger.Nop()
	}
	cfg = cfg.withDefaults()
	c := &Coordinator{
		log:     log.With("service", "GenerationCoordinator"),
		cfg:     cfg,
		client:  llm.Memoize(client),
		prompts: prompts.Builder{},
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = fetch.New(log, fetch.DefaultConfig())
	}
	if c.filter == nil {
		c.filter = safety.New(log, safety.DefaultConfig())
	}
	if c.tracer == nil {
		c.tracer = observability.Tracer()
	}
	c.collector = llmstream.NewCollector(log, cfg.StallWarnAfter)
	return c
}

// Generate dispatches on req.Mode. An empty mode is single shot.
func (c *Coordinator) Generate(ctx context.Context, req Request) (Result, error) {
	switch req.Mode {
	case ModeSingleShot, "":
		return c.SingleShot(ctx, req)
	case ModeTwoStep:
		return c.TwoStep(ctx, req)
	case ModeProgressive:
		return c.Progressive(ctx, req)
	default:
		return Result{}, apierr.Newf(apierr.KindInvalidRequest, "generate", "unknown mode %q", req.Mode)
	}
}

// run holds the per-call state shared by a mode's steps.
type run struct {
	id    string
	mode  Mode
	log   *logger.Logger
	start time.Time
	span  trace.Span
}

func (c *Coordinator) begin(ctx context.Context, mode Mode) (context.Context, *run) {
	id := c.newID()
	ctx, span := c.tracer.Start(ctx, "generate."+string(mode),
		trace.WithAttributes(
			attribute.String("generation.id", id),
			attribute.String("generation.mode", string(mode)),
		),
	)
	r := &run{
		id:    id,
		mode:  mode,
		log:   c.log.With("generation_id", id, "mode", string(mode)),
		start: time.Now(),
		span:  span,
	}
	r.log.Info("generation started")
	return ctx, r
}

func (c *Coordinator) end(r *run, err error) {
	elapsed := time.Since(r.start)
	c.metrics.ObserveGeneration(string(r.mode), err, elapsed)
	if err != nil {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, string(apierr.KindOf(err)))
		r.log.Warn("generation failed",
			"kind", string(apierr.KindOf(err)),
			"exhausted", apierr.GaveUp(err),
			"elapsed", elapsed.String(),
			"error", err,
		)
	} else {
		r.log.Info("generation finished", "elapsed", elapsed.String())
	}
	r.span.End()
}

// resources fetches refs. Partial failures are returned for the caller; a
// batch with no successes fails the call.
func (c *Coordinator) resources(ctx context.Context, r *run, refs []fetch.Ref) ([]fetch.Encoded, []fetch.Failure, error) {
	if len(refs) == 0 {
		return nil, nil, nil
	}
	ctx, span := c.tracer.Start(ctx, "generate.resources", trace.WithAttributes(attribute.Int("resources.count", len(refs))))
	defer span.End()

	batch, err := c.fetcher.FetchAll(ctx, refs)
	if err != nil {
		span.RecordError(err)
		return nil, batch.Failures(), err
	}
	images := make([]fetch.Encoded, 0, batch.Succeeded)
	for _, res := range batch.Successes() {
		images = append(images, res.Value)
	}
	failures := batch.Failures()
	if len(failures) > 0 {
		r.log.Warn("some resources could not be used",
			"succeeded", batch.Succeeded,
			"failed", batch.Failed,
		)
	}
	span.SetAttributes(attribute.Int("resources.failed", batch.Failed))
	return images, failures, nil
}

// stepOutput is one model step after extraction and repair.
type stepOutput struct {
	payload jsonrepair.Payload
	outcome llmstream.Outcome
}

// step runs one retried streaming call and extracts its structured payload.
// Only transport-level failures are retried; an empty or unparseable reply
// fails immediately.
func (c *Coordinator) step(ctx context.Context, r *run, op string, call llm.Call) (stepOutput, error) {
	streamer, err := c.client()
	if err != nil {
		return stepOutput{}, err
	}
	if call.Model == "" {
		call.Model = c.cfg.Model
	}
	if call.MaxTokens <= 0 {
		call.MaxTokens = c.cfg.MaxTokens
	}

	ctx, span := c.tracer.Start(ctx, "generate.step", trace.WithAttributes(
		attribute.String("step.op", op),
		attribute.Int("step.images", len(call.Images)),
	))
	defer span.End()

	policy := retry.Policy{
		MaxAttempts:    c.cfg.MaxAttempts,
		BaseDelay:      c.cfg.BaseDelay,
		MaxDelay:       c.cfg.MaxDelay,
		AttemptTimeout: c.cfg.AttemptTimeout,
		Jitter:         c.sleep == nil,
		Log:            r.log,
		Sleep:          c.sleep,
		OnAttempt:      c.metrics.ObserveModelAttempt,
	}
	outcome, err := retry.Do(ctx, policy, op, func(actx context.Context, attempt int) (llmstream.Outcome, error) {
		// text from a failed attempt is discarded; each attempt starts empty
		sctx, cancel := context.WithCancel(actx)
		defer cancel()
		events, err := streamer.Stream(sctx, call)
		if err != nil {
			return llmstream.Outcome{}, err
		}
		out, err := c.collector.Collect(sctx, events)
		c.metrics.ObserveStream(string(out.Status), out.EndedAt.Sub(out.StartedAt))
		if err != nil {
			r.log.Debug("model attempt aborted",
				"op", op,
				"attempt", attempt,
				"text_len", len(out.Text),
				"fragments", out.Fragments,
			)
		}
		return out, err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apierr.KindOf(err)))
		return stepOutput{}, err
	}

	span.SetAttributes(
		attribute.String("stream.status", string(outcome.Status)),
		attribute.Int("stream.text_len", len(outcome.Text)),
	)
	if strings.TrimSpace(outcome.Text) == "" {
		return stepOutput{}, apierr.Newf(apierr.KindEmptyResult, op, "model returned no text (stop=%s)", outcome.StopReason)
	}
	if outcome.Truncated() {
		r.log.Warn("model output hit the token budget", "op", op, "text_len", len(outcome.Text), "max_tokens", call.MaxTokens)
	}

	payload, err := jsonrepair.Parse(outcome.Text, outcome.Truncated())
	if err != nil {
		var pf *jsonrepair.ParseFailure
		if errors.As(err, &pf) {
			r.log.Warn("structured output unrecoverable",
				"op", op,
				"raw_len", pf.RawLen,
				"repaired_len", pf.RepairedLen,
				"truncated", outcome.Truncated(),
			)
		}
		span.RecordError(err)
		return stepOutput{}, err
	}
	c.metrics.ObserveRepair(payload.WasRepaired)
	if payload.WasRepaired {
		r.log.Info("structured output repaired",
			"op", op,
			"confidence", payload.Confidence,
			"raw_len", payload.RawLen,
			"repaired_len", payload.RepairedLen,
		)
	}
	return stepOutput{payload: payload, outcome: outcome}, nil
}

// finishCourse decodes, validates and filters a full-course payload.
func (c *Coordinator) finishCourse(r *run, out stepOutput, res *Result) (course.Response, error) {
	resp, err := course.Decode([]byte(out.payload.JSON))
	if err != nil {
		return resp, err
	}
	if resp.DroppedSteps > 0 {
		r.log.Warn("dropped malformed question steps", "count", resp.DroppedSteps)
	}
	res.DroppedSteps += resp.DroppedSteps
	if err := course.Validate(resp.Artifact); err != nil {
		return resp, err
	}
	res.Artifact, res.Safety = c.applySafety(resp.Artifact)
	res.FilteredLessons = res.Safety.RemovedIndexes
	return resp, nil
}

func (c *Coordinator) applySafety(a course.Artifact) (course.Artifact, safety.Report) {
	out, rep := c.filter.Apply(a)
	c.metrics.ObserveSafety(rep.LessonsRemoved, rep.StepsRemoved, rep.Reverted)
	return out, rep
}
