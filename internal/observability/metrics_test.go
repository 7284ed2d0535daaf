package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/yungbote/coursegen/internal/platform/apierr"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveFetch("ok", time.Second)
	m.ObserveModelAttempt("single_shot", 1, nil)
	m.ObserveSafety(1, 2, false)
	m.ObserveGeneration("single_shot", nil, time.Second)
}

func TestObserveLabelsByKind(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveModelAttempt("single_shot", 1, apierr.New(apierr.KindRateLimited, "x", errors.New("429")))
	m.ObserveModelAttempt("single_shot", 2, nil)
	if got := counterValue(t, m.ModelAttempts.WithLabelValues("single_shot", "1", "rate_limited")); got != 1 {
		t.Fatalf("rate limited attempts: want=1 got=%v", got)
	}
	if got := counterValue(t, m.ModelAttempts.WithLabelValues("single_shot", "2", "ok")); got != 1 {
		t.Fatalf("ok attempts: want=1 got=%v", got)
	}

	m.ObserveSafety(1, 3, false)
	if got := counterValue(t, m.SafetyRemovals.WithLabelValues("step")); got != 3 {
		t.Fatalf("step removals: want=3 got=%v", got)
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return out.GetCounter().GetValue()
}
