package httpx

import (
	"net/http"
	"testing"
	"time"
)

func TestNewStatusErrorCarriesRetryAfter(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	resp.Header.Set("Retry-After", "3")
	se := NewStatusError(resp, "slow down")
	if se.HTTPStatusCode() != 429 {
		t.Fatalf("status: want=%d got=%d", 429, se.HTTPStatusCode())
	}
	if se.RetryAfterHint() != 3*time.Second {
		t.Fatalf("RetryAfterHint: want=%s got=%s", 3*time.Second, se.RetryAfterHint())
	}

	resp.Header.Set("Retry-After", "3600")
	if got := NewStatusError(resp, "").RetryAfter; got != MaxRetryAfter {
		t.Fatalf("capped RetryAfter: want=%s got=%s", MaxRetryAfter, got)
	}
	resp.Header.Del("Retry-After")
	if got := NewStatusError(resp, "").RetryAfter; got != 0 {
		t.Fatalf("absent RetryAfter: want=0 got=%s", got)
	}
}

func TestRetryAfterDurationCapped(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "30")
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("RetryAfterDuration: want=%s got=%s", 10*time.Second, got)
	}
	if got := RetryAfterDuration(nil, time.Second, 10*time.Second); got != time.Second {
		t.Fatalf("RetryAfterDuration(nil): want=%s got=%s", time.Second, got)
	}
}

func TestJitterBounds(t *testing.T) {
	base := time.Second
	for i := 0; i < 50; i++ {
		got := Jitter(base)
		if got < 800*time.Millisecond || got > 1200*time.Millisecond {
			t.Fatalf("Jitter out of bounds: %s", got)
		}
	}
}
