// Package llm defines the boundary to the remote model service: one streaming
// call per attempt, yielding text fragments and a terminal stop signal.
package llm

import (
	"context"
	"errors"
	"sync"

	"github.com/yungbote/coursegen/internal/learning/fetch"
	"github.com/yungbote/coursegen/internal/platform/apierr"
)

type StopReason string

const (
	StopCompleted StopReason = "completed"
	StopTruncated StopReason = "truncated"
)

// Stop is the model's own completion signal.
type Stop struct {
	Reason StopReason
	// Raw is the provider's finish reason, kept for diagnostics.
	Raw string
}

// Event is exactly one of a text fragment, a stop signal or an error.
type Event struct {
	Delta string
	Stop  *Stop
	Err   error
}

type Call struct {
	System    string
	User      string
	Model     string
	MaxTokens int
	Images    []fetch.Encoded
}

// Streamer starts one streaming model call. The returned channel is closed
// by the producer after a Stop or Err event, or when ctx ends. Producers must
// not block forever on send once ctx is done.
type Streamer interface {
	Stream(ctx context.Context, call Call) (<-chan Event, error)
}

// Factory lazily provides the shared Streamer handle.
type Factory func() (Streamer, error)

// Memoize returns a Factory that calls f at most once. The handle, or the
// construction error as a config_error, is returned to every later caller.
func Memoize(f Factory) Factory {
	var (
		once sync.Once
		s    Streamer
		err  error
	)
	return func() (Streamer, error) {
		once.Do(func() {
			if f == nil {
				err = apierr.New(apierr.KindConfig, "llm.client", errors.New("no model client factory"))
				return
			}
			s, err = f()
			if err == nil && s == nil {
				err = errors.New("model client factory returned nil")
			}
			if err != nil {
				s = nil
				if apierr.KindOf(err) != apierr.KindConfig {
					err = apierr.New(apierr.KindConfig, "llm.client", err)
				}
			}
		})
		return s, err
	}
}
