package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yungbote/coursegen/internal/platform/apierr"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is a
// valid no-op, so components take one unconditionally.
type Metrics struct {
	ModelAttempts  *prometheus.CounterVec
	StreamDuration *prometheus.HistogramVec
	Fetches        *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
	Repairs        *prometheus.CounterVec
	SafetyRemovals *prometheus.CounterVec
	Generations    *prometheus.CounterVec
	GenerationTime *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg. Passing
// prometheus.DefaultRegisterer exposes them on the default handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ModelAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursegen_model_attempts_total",
				Help: "Model call attempts by step, attempt number and outcome kind.",
			},
			[]string{"op", "attempt", "outcome"},
		),
		StreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coursegen_stream_duration_seconds",
				Help:    "Model stream duration by terminal status.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"status"},
		),
		Fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursegen_resource_fetches_total",
				Help: "Resource fetches by result (ok, cache, or error kind).",
			},
			[]string{"result"},
		),
		FetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coursegen_resource_fetch_duration_seconds",
				Help:    "Resource fetch latency including retries.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		Repairs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursegen_json_repairs_total",
				Help: "Structured output parses by whether repair was needed.",
			},
			[]string{"repaired"},
		),
		SafetyRemovals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursegen_safety_removals_total",
				Help: "Content removed by the safety filter, by granularity.",
			},
			[]string{"granularity"},
		),
		Generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursegen_generations_total",
				Help: "Generation calls by mode and outcome kind.",
			},
			[]string{"mode", "outcome"},
		),
		GenerationTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coursegen_generation_duration_seconds",
				Help:    "End-to-end generation latency by mode.",
				Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 320},
			},
			[]string{"mode"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.ModelAttempts,
			m.StreamDuration,
			m.Fetches,
			m.FetchDuration,
			m.Repairs,
			m.SafetyRemovals,
			m.Generations,
			m.GenerationTime,
		)
	}
	return m
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apierr.KindOf(err))
}

// ObserveModelAttempt has the retry.Policy OnAttempt signature.
func (m *Metrics) ObserveModelAttempt(op string, attempt int, err error) {
	if m == nil {
		return
	}
	m.ModelAttempts.WithLabelValues(op, strconv.Itoa(attempt), outcome(err)).Inc()
}

func (m *Metrics) ObserveStream(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StreamDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveFetch(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(result).Inc()
	m.FetchDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRepair(repaired bool) {
	if m == nil {
		return
	}
	m.Repairs.WithLabelValues(strconv.FormatBool(repaired)).Inc()
}

func (m *Metrics) ObserveSafety(lessons, steps int, reverted bool) {
	if m == nil {
		return
	}
	if reverted {
		m.SafetyRemovals.WithLabelValues("reverted").Inc()
		return
	}
	if lessons > 0 {
		m.SafetyRemovals.WithLabelValues("lesson").Add(float64(lessons))
	}
	if steps > 0 {
		m.SafetyRemovals.WithLabelValues("step").Add(float64(steps))
	}
}

func (m *Metrics) ObserveGeneration(mode string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(mode, outcome(err)).Inc()
	m.GenerationTime.WithLabelValues(mode).Observe(elapsed.Seconds())
}
