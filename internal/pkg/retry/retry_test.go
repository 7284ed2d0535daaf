package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/coursegen/internal/platform/apierr"
)

type recorder struct {
	delays []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func TestDoAlwaysTransientRunsBudgetThenGivesUp(t *testing.T) {
	rec := &recorder{}
	calls := 0
	p := Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, Sleep: rec.sleep}

	_, err := Do(context.Background(), p, "stream", func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "", apierr.New(apierr.KindRateLimited, "", errors.New("overloaded"))
	})
	if calls != 3 {
		t.Fatalf("calls: want=3 got=%d", calls)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(rec.delays) != len(want) {
		t.Fatalf("delays: want=%v got=%v", want, rec.delays)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Fatalf("delay[%d]: want=%s got=%s", i, want[i], rec.delays[i])
		}
	}
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *apierr.Error, got=%T", err)
	}
	if !ae.Exhausted || ae.Attempts != 3 {
		t.Fatalf("exhaustion tag: exhausted=%v attempts=%d", ae.Exhausted, ae.Attempts)
	}
	if ae.Kind != apierr.KindRateLimited {
		t.Fatalf("kind: want=%q got=%q", apierr.KindRateLimited, ae.Kind)
	}
}

func TestDoFatalFailsImmediately(t *testing.T) {
	rec := &recorder{}
	calls := 0
	p := Policy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: rec.sleep}

	_, err := Do(context.Background(), p, "stream", func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, apierr.New(apierr.KindConfig, "", errors.New("missing key"))
	})
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
	if len(rec.delays) != 0 {
		t.Fatalf("no sleep expected, got=%v", rec.delays)
	}
	if apierr.GaveUp(err) {
		t.Fatalf("fatal error must not be tagged as exhausted")
	}
	if apierr.KindOf(err) != apierr.KindConfig {
		t.Fatalf("kind: got=%q", apierr.KindOf(err))
	}
}

func TestDoRecoversAfterTransient(t *testing.T) {
	rec := &recorder{}
	p := Policy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, Sleep: rec.sleep}

	got, err := Do(context.Background(), p, "stream", func(ctx context.Context, attempt int) (string, error) {
		if attempt == 1 {
			return "", apierr.New(apierr.KindTransport, "", errors.New("reset"))
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "ok" {
		t.Fatalf("value: want=%q got=%q", "ok", got)
	}
	if len(rec.delays) != 1 || rec.delays[0] != 10*time.Millisecond {
		t.Fatalf("delays: got=%v", rec.delays)
	}
}

func TestDoCallerCancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	_, err := Do(ctx, p, "stream", func(ctx context.Context, attempt int) (int, error) {
		calls++
		cancel()
		return 0, ctx.Err()
	})
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
	if apierr.KindOf(err) != apierr.KindCanceled {
		t.Fatalf("kind: want=%q got=%q", apierr.KindCanceled, apierr.KindOf(err))
	}
}

func TestDoAttemptTimeoutIsRetried(t *testing.T) {
	rec := &recorder{}
	calls := 0
	p := Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, AttemptTimeout: 20 * time.Millisecond, Sleep: rec.sleep}

	_, err := Do(context.Background(), p, "stream", func(ctx context.Context, attempt int) (int, error) {
		calls++
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if calls != 2 {
		t.Fatalf("calls: want=2 got=%d", calls)
	}
	if apierr.KindOf(err) != apierr.KindTimeout {
		t.Fatalf("kind: want=%q got=%q", apierr.KindTimeout, apierr.KindOf(err))
	}
	if !apierr.GaveUp(err) {
		t.Fatalf("expected exhausted timeout")
	}
}

func TestPolicyDelayCapped(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 3 * time.Second}
	if got := p.Delay(1); got != time.Second {
		t.Fatalf("Delay(1): got=%s", got)
	}
	if got := p.Delay(2); got != 2*time.Second {
		t.Fatalf("Delay(2): got=%s", got)
	}
	if got := p.Delay(3); got != 3*time.Second {
		t.Fatalf("Delay(3): got=%s", got)
	}
}

func TestDoWaitsAtLeastRetryAfter(t *testing.T) {
	rec := &recorder{}
	p := Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, Sleep: rec.sleep}
	calls := 0

	_, err := Do(context.Background(), p, "fetch", func(ctx context.Context, attempt int) (int, error) {
		calls++
		switch attempt {
		case 1:
			return 0, &apierr.Error{Kind: apierr.KindRateLimited, Status: 429, RetryAfter: 5 * time.Second, Err: errors.New("slow down")}
		case 2:
			return 0, &apierr.Error{Kind: apierr.KindRateLimited, Status: 429, RetryAfter: 50 * time.Millisecond, Err: errors.New("slow down")}
		}
		return 1, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls: want=3 got=%d", calls)
	}
	// second hint is below the computed backoff, so backoff wins
	want := []time.Duration{5 * time.Second, 200 * time.Millisecond}
	if len(rec.delays) != len(want) {
		t.Fatalf("delays: want=%v got=%v", want, rec.delays)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Fatalf("delay[%d]: want=%s got=%s", i, want[i], rec.delays[i])
		}
	}
}
