package openai

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/openai/openai-go"

	"github.com/yungbote/coursegen/internal/learning/llm"
	"github.com/yungbote/coursegen/internal/platform/apierr"
	"github.com/yungbote/coursegen/internal/platform/httpx"
)

// Stream starts one chat completion stream. Deltas, then exactly one Stop or
// Err, are delivered on the returned channel before it closes.
func (p *Provider) Stream(ctx context.Context, call llm.Call) (<-chan llm.Event, error) {
	model := strings.TrimSpace(call.Model)
	if model == "" {
		model = p.cfg.Model
	}
	if model == "" {
		return nil, apierr.Newf(apierr.KindConfig, "openai.stream", "no model configured")
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: p.messages(call),
	}
	if call.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(call.MaxTokens))
	}
	withTemp := false
	if p.cfg.Temperature != nil && !p.modelIsNoTemp(model) {
		params.Temperature = openai.Float(*p.cfg.Temperature)
		withTemp = true
	}

	out := make(chan llm.Event, 16)
	go func() {
		defer close(out)
		start := time.Now()
		sent, err := p.pump(ctx, params, out)
		if err != nil && withTemp && sent == 0 && isUnsupportedTemperatureError(err) {
			p.noteNoTempModel(model)
			p.log.Warn("model rejected temperature; retrying without it", "model", model)
			params = withoutTemperature(params)
			sent, err = p.pump(ctx, params, out)
		}
		if err != nil {
			emit(ctx, out, llm.Event{Err: classify(err)})
		}
		p.log.Debug("model stream finished",
			"model", model,
			"fragments", sent,
			"elapsed", time.Since(start).Round(time.Millisecond).String(),
			"ok", err == nil,
		)
	}()
	return out, nil
}

func withoutTemperature(params openai.ChatCompletionNewParams) openai.ChatCompletionNewParams {
	params.Temperature = openai.ChatCompletionNewParams{}.Temperature
	return params
}

// pump relays one stream. It returns the number of deltas sent and the
// stream error, if any. A Stop is sent only when the model reported a
// finish reason.
func (p *Provider) pump(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- llm.Event) (int, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	sent := 0
	finish := ""
	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if choice.Index != 0 {
				continue
			}
			if d := choice.Delta.Content; d != "" {
				if !emit(ctx, out, llm.Event{Delta: d}) {
					return sent, ctx.Err()
				}
				sent++
			}
			if fr := string(choice.FinishReason); fr != "" {
				finish = fr
			}
		}
	}
	if err := stream.Err(); err != nil {
		return sent, err
	}
	if finish == "" {
		// closed without a finish reason; the collector reports it as aborted
		return sent, nil
	}
	emit(ctx, out, llm.Event{Stop: stopFor(finish)})
	return sent, nil
}

func stopFor(finish string) *llm.Stop {
	switch finish {
	case "length":
		return &llm.Stop{Reason: llm.StopTruncated, Raw: finish}
	default:
		// "stop", "content_filter", "tool_calls" all end the turn
		return &llm.Stop{Reason: llm.StopCompleted, Raw: finish}
	}
}

func emit(ctx context.Context, out chan<- llm.Event, ev llm.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Provider) messages(call llm.Call) []openai.ChatCompletionMessageParamUnion {
	var msgs []openai.ChatCompletionMessageParamUnion
	if sys := strings.TrimSpace(call.System); sys != "" {
		msgs = append(msgs, openai.SystemMessage(sys))
	}
	if len(call.Images) == 0 {
		return append(msgs, openai.UserMessage(call.User))
	}
	parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(call.User)}
	for _, img := range call.Images {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL:    img.DataURL(),
			Detail: p.cfg.ImageDetail,
		}))
	}
	return append(msgs, openai.UserMessage(parts))
}

// classify maps SDK errors onto the shared taxonomy. Upstream bodies stay in
// the wrapped error for logs only.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &apierr.Error{
			Kind:       apierr.KindForStatus(apiErr.StatusCode),
			Op:         "openai.stream",
			Status:     apiErr.StatusCode,
			RetryAfter: httpx.RetryAfterDuration(apiErr.Response, 0, httpx.MaxRetryAfter),
			Err:        err,
		}
	}
	ae := apierr.Classify("openai.stream", err)
	if ae.Kind == apierr.KindInternal {
		// anything else failing a stream read is the connection, not the request
		return apierr.New(apierr.KindTransport, "openai.stream", err)
	}
	return ae
}

func isUnsupportedTemperatureError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode != 400 {
		return false
	}
	return isUnsupportedTemperatureMessage(err.Error())
}
