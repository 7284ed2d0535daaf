package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/yungbote/coursegen/internal/learning/course"
	"github.com/yungbote/coursegen/internal/learning/fetch"
	"github.com/yungbote/coursegen/internal/learning/generate"
	"github.com/yungbote/coursegen/internal/platform/apierr"
)

func (c *GenerateCmd) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prompt, err := c.prompt()
	if err != nil {
		return err
	}
	refs := make([]fetch.Ref, 0, len(c.Images))
	for _, u := range c.Images {
		refs = append(refs, fetch.Ref{URL: u})
	}

	rt, err := newRuntime(ctx, configPath())
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.coordinator.Generate(ctx, generate.Request{
		Prompt:    prompt,
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
		Resources: refs,
		Mode:      generate.Mode(c.Mode),
	})
	if err != nil {
		rt.log.Error("generate failed", "kind", string(apierr.KindOf(err)), "error", err)
		return err
	}
	return writeJSON(c.Out, res)
}

func (c *GenerateCmd) prompt() (generate.Prompt, error) {
	p := generate.Prompt{System: c.System, User: c.User}
	if c.SystemFile != "" {
		b, err := os.ReadFile(c.SystemFile)
		if err != nil {
			return p, apierr.New(apierr.KindInvalidRequest, "cli.prompt", err)
		}
		p.System = string(b)
	}
	if c.UserFile != "" {
		b, err := os.ReadFile(c.UserFile)
		if err != nil {
			return p, apierr.New(apierr.KindInvalidRequest, "cli.prompt", err)
		}
		p.User = string(b)
	}
	return p, nil
}

func (c *ContinueCmd) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	co, title, err := readCarryOver(c.CarryOver)
	if err != nil {
		return err
	}
	if c.CourseTitle != "" {
		title = c.CourseTitle
	}
	var prior []course.Lesson
	if c.Prior != "" {
		if err := readJSON(c.Prior, &prior); err != nil {
			return err
		}
	}

	rt, err := newRuntime(ctx, configPath())
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.coordinator.Continue(ctx, generate.ContinueRequest{
		CarryOver:   co,
		CourseTitle: title,
		Prior:       prior,
		Targets:     c.Targets,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
	})
	if err != nil {
		rt.log.Error("continue failed", "kind", string(apierr.KindOf(err)), "error", err)
		return err
	}
	return writeJSON(c.Out, res)
}

// readCarryOver accepts either a bare carry-over or the full result JSON that
// "generate --mode progressive" writes.
func readCarryOver(path string) (course.CarryOver, string, error) {
	var doc struct {
		course.CarryOver
		Nested   *course.CarryOver `json:"carry_over"`
		Artifact struct {
			Title string `json:"title"`
		} `json:"artifact"`
	}
	if err := readJSON(path, &doc); err != nil {
		return course.CarryOver{}, "", err
	}
	co := doc.CarryOver
	if doc.Nested != nil {
		co = *doc.Nested
	}
	if len(co.LessonOutline) == 0 {
		return co, "", apierr.Newf(apierr.KindInvalidRequest, "cli.carry_over", "%s has no lesson outline", path)
	}
	return co, doc.Artifact.Title, nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return apierr.New(apierr.KindInvalidRequest, "cli.read", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return apierr.New(apierr.KindInvalidRequest, "cli.read", fmt.Errorf("%s: %w", path, err))
	}
	return nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if strings.TrimSpace(path) == "" {
		_, err = os.Stdout.Write(b)
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
