package generate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yungbote/coursegen/internal/learning/llm"
	"github.com/yungbote/coursegen/internal/learning/prompts"
	"github.com/yungbote/coursegen/internal/platform/apierr"
)

func validatePrompt(op string, p Prompt) error {
	if strings.TrimSpace(p.System) == "" && strings.TrimSpace(p.User) == "" {
		return apierr.New(apierr.KindInvalidRequest, op, errors.New("empty prompt"))
	}
	return nil
}

// SingleShot makes one model call that returns the whole course.
func (c *Coordinator) SingleShot(ctx context.Context, req Request) (res Result, err error) {
	if err := validatePrompt("single_shot", req.Prompt); err != nil {
		return Result{}, err
	}
	ctx, r := c.begin(ctx, ModeSingleShot)
	defer func() { c.end(r, err) }()
	res = Result{GenerationID: r.id, Mode: ModeSingleShot}

	images, failures, err := c.resources(ctx, r, req.Resources)
	res.ResourceFailures = failures
	if err != nil {
		return res, err
	}

	out, err := c.step(ctx, r, "single_shot", llm.Call{
		System:    req.Prompt.System,
		User:      req.Prompt.User,
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Images:    images,
	})
	if err != nil {
		return res, err
	}
	res.Repaired = out.payload.WasRepaired
	res.Truncated = out.outcome.Truncated()
	if _, err := c.finishCourse(r, out, &res); err != nil {
		return res, err
	}
	res.Elapsed = time.Since(r.start)
	return res, nil
}

// TwoStep first extracts structured content from the source material, then
// generates the course from that extraction alone. Resources are only sent
// to the extraction call.
func (c *Coordinator) TwoStep(ctx context.Context, req Request) (res Result, err error) {
	if err := validatePrompt("two_step", req.Prompt); err != nil {
		return Result{}, err
	}
	ctx, r := c.begin(ctx, ModeTwoStep)
	defer func() { c.end(r, err) }()
	res = Result{GenerationID: r.id, Mode: ModeTwoStep}

	images, failures, err := c.resources(ctx, r, req.Resources)
	res.ResourceFailures = failures
	if err != nil {
		return res, err
	}

	extracted, err := c.step(ctx, r, "two_step.extract", llm.Call{
		System:    req.Prompt.System,
		User:      req.Prompt.User,
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Images:    images,
	})
	if err != nil {
		return res, err
	}
	r.log.Info("extraction finished",
		"text_len", len(extracted.payload.JSON),
		"repaired", extracted.payload.WasRepaired,
	)

	p, err := c.prompts.Build(prompts.PromptCourseFromExtraction, prompts.Input{
		BaseSystem:    req.Prompt.System,
		ExtractedJSON: extracted.payload.JSON,
	})
	if err != nil {
		return res, apierr.New(apierr.KindInvalidRequest, "two_step.prompt", err)
	}
	out, err := c.step(ctx, r, "two_step.generate", llm.Call{
		System:    p.System,
		User:      p.User,
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return res, err
	}
	res.Repaired = extracted.payload.WasRepaired || out.payload.WasRepaired
	res.Truncated = extracted.outcome.Truncated() || out.outcome.Truncated()
	if _, err := c.finishCourse(r, out, &res); err != nil {
		return res, err
	}
	res.Elapsed = time.Since(r.start)
	return res, nil
}

