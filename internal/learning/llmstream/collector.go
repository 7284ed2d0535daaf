// Package llmstream drives one streaming model call to a terminal state and
// returns everything it accumulated.
package llmstream

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yungbote/coursegen/internal/learning/llm"
	"github.com/yungbote/coursegen/internal/platform/apierr"
	"github.com/yungbote/coursegen/internal/platform/logger"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusStreaming Status = "streaming"
	StatusCompleted Status = "completed"
	StatusTruncated Status = "truncated"
	StatusAborted   Status = "aborted"
)

// Outcome is the immutable record of one streaming call.
type Outcome struct {
	Text         string
	Status       Status
	StopReason   string
	Fragments    int
	StartedAt    time.Time
	LastActivity time.Time
	EndedAt      time.Time
}

func (o Outcome) Truncated() bool { return o.Status == StatusTruncated }

var errNoStop = errors.New("stream closed without a stop signal")

type Collector struct {
	log *logger.Logger
	// StallWarnAfter is the quiet period after which a stall is logged.
	StallWarnAfter time.Duration
	now            func() time.Time
}

func NewCollector(log *logger.Logger, stallWarnAfter time.Duration) *Collector {
	if log == nil {
		log = logger.Nop()
	}
	if stallWarnAfter <= 0 {
		stallWarnAfter = 30 * time.Second
	}
	return &Collector{
		log:            log.With("service", "StreamCollector"),
		StallWarnAfter: stallWarnAfter,
		now:            time.Now,
	}
}

// Collect consumes events until a terminal state. The text in the returned
// Outcome is the in-order concatenation of every delta received, including
// on Aborted, where the error is also returned.
func (c *Collector) Collect(ctx context.Context, events <-chan llm.Event) (Outcome, error) {
	out := Outcome{Status: StatusIdle, StartedAt: c.now()}
	out.LastActivity = out.StartedAt
	var text strings.Builder

	finish := func(status Status, err error) (Outcome, error) {
		out.Text = text.String()
		out.Status = status
		out.EndedAt = c.now()
		return out, err
	}

	tick := c.StallWarnAfter / 2
	if tick <= 0 {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	warned := false

	out.Status = StatusStreaming
	for {
		select {
		case <-ctx.Done():
			return finish(StatusAborted, apierr.Classify("stream", ctx.Err()))

		case <-ticker.C:
			idle := c.now().Sub(out.LastActivity)
			if idle >= c.StallWarnAfter && !warned {
				warned = true
				c.log.Warn("model stream stalled",
					"idle", idle.Round(time.Millisecond).String(),
					"fragments", out.Fragments,
					"text_len", text.Len(),
				)
			}

		case ev, ok := <-events:
			if !ok {
				return finish(StatusAborted, apierr.New(apierr.KindTransport, "stream", errNoStop))
			}
			if ev.Err != nil {
				return finish(StatusAborted, apierr.Classify("stream", ev.Err))
			}
			if ev.Delta != "" {
				text.WriteString(ev.Delta)
				out.Fragments++
				out.LastActivity = c.now()
				warned = false
			}
			if ev.Stop != nil {
				out.StopReason = ev.Stop.Raw
				if ev.Stop.Reason == llm.StopTruncated {
					return finish(StatusTruncated, nil)
				}
				return finish(StatusCompleted, nil)
			}
		}
	}
}
