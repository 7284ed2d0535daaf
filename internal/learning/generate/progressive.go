package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yungbote/coursegen/internal/learning/course"
	"github.com/yungbote/coursegen/internal/learning/llm"
	"github.com/yungbote/coursegen/internal/learning/prompts"
	"github.com/yungbote/coursegen/internal/learning/safety"
	"github.com/yungbote/coursegen/internal/platform/apierr"
)

const modeContinue Mode = "progressive_continue"

// Progressive runs the fast phase: one call returning the course plan, the
// first lessons in full and a bounded document summary. The returned
// CarryOver is all a later Continue call needs.
func (c *Coordinator) Progressive(ctx context.Context, req Request) (res Result, err error) {
	if err := validatePrompt("progressive", req.Prompt); err != nil {
		return Result{}, err
	}
	ctx, r := c.begin(ctx, ModeProgressive)
	defer func() { c.end(r, err) }()
	res = Result{GenerationID: r.id, Mode: ModeProgressive}

	images, failures, err := c.resources(ctx, r, req.Resources)
	res.ResourceFailures = failures
	if err != nil {
		return res, err
	}

	p, err := c.prompts.Build(prompts.PromptProgressiveInitial, prompts.Input{
		BaseSystem:      req.Prompt.System,
		BaseUser:        req.Prompt.User,
		InitialLessons:  c.cfg.InitialLessons,
		SummaryMaxChars: c.cfg.SummaryMaxChars,
	})
	if err != nil {
		return res, apierr.New(apierr.KindInvalidRequest, "progressive.prompt", err)
	}
	out, err := c.step(ctx, r, "progressive.initial", llm.Call{
		System:    p.System,
		User:      p.User,
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Images:    images,
	})
	if err != nil {
		return res, err
	}
	res.Repaired = out.payload.WasRepaired
	res.Truncated = out.outcome.Truncated()

	resp, err := course.Decode([]byte(out.payload.JSON))
	if err != nil {
		return res, err
	}
	res.DroppedSteps = resp.DroppedSteps
	if err := course.Validate(resp.Artifact); err != nil {
		return res, err
	}
	if len(resp.Outline) < c.cfg.MinOutlineLessons {
		return res, apierr.New(apierr.KindSchema, "progressive.initial",
			fmt.Errorf("lesson outline has %d entries, need at least %d", len(resp.Outline), c.cfg.MinOutlineLessons))
	}

	a := resp.Artifact
	limit := c.cfg.InitialLessons
	if len(resp.Outline) < limit {
		limit = len(resp.Outline)
	}
	if len(a.Lessons) > limit {
		r.log.Warn("model wrote more initial lessons than asked; trimming",
			"returned", len(a.Lessons),
			"kept", limit,
		)
		a.Lessons = a.Lessons[:limit]
	} else if len(a.Lessons) < limit {
		r.log.Warn("model wrote fewer initial lessons than asked",
			"returned", len(a.Lessons),
			"wanted", limit,
		)
	}

	co := resp.CarryOver()
	if strings.TrimSpace(co.DocumentSummary) == "" {
		r.log.Warn("model returned no document summary; building one from the outline")
		co.DocumentSummary = summaryFromOutline(a.Overview, co.LessonOutline)
	}
	if n := utf8.RuneCountInString(co.DocumentSummary); n > c.cfg.SummaryMaxChars {
		r.log.Info("document summary over bound; truncating", "summary_len", n, "max", c.cfg.SummaryMaxChars)
		co.DocumentSummary = truncateRunes(co.DocumentSummary, c.cfg.SummaryMaxChars)
	}

	res.Artifact, res.Safety = c.applySafety(a)
	res.FilteredLessons = res.Safety.RemovedIndexes
	res.CarryOver = &co
	res.Elapsed = time.Since(r.start)
	r.log.Info("progressive first phase ready",
		"lessons", len(res.Artifact.Lessons),
		"outline", len(co.LessonOutline),
		"summary_len", utf8.RuneCountInString(co.DocumentSummary),
	)
	return res, nil
}

// Continue writes the outline lessons named by req.Targets from the carry-over
// alone. It may be called any number of times, in any order, concurrently.
func (c *Coordinator) Continue(ctx context.Context, req ContinueRequest) (res ContinueResult, err error) {
	co := req.CarryOver.Clone()
	targets, err := normalizeTargets(co, req.Targets)
	if err != nil {
		return ContinueResult{}, err
	}
	ctx, r := c.begin(ctx, modeContinue)
	defer func() { c.end(r, err) }()
	res = ContinueResult{GenerationID: r.id}

	var entries []course.OutlineEntry
	for _, idx := range targets {
		e, _ := co.Entry(idx)
		if safety.TitleFlagged(e.Title) {
			r.log.Info("skipping outline lesson with a filtered title", "index", idx)
			res.Missing = append(res.Missing, idx)
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		res.Elapsed = time.Since(r.start)
		return res, nil
	}

	in, err := continuationInput(co, req, entries, c.cfg.StyleSampleLessons)
	if err != nil {
		return res, apierr.New(apierr.KindInternal, "continue.prompt", err)
	}
	p, err := c.prompts.Build(prompts.PromptLessonContinuation, in)
	if err != nil {
		return res, apierr.New(apierr.KindInvalidRequest, "continue.prompt", err)
	}
	out, err := c.step(ctx, r, "progressive.continue", llm.Call{
		System:    p.System,
		User:      p.User,
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return res, err
	}
	res.Repaired = out.payload.WasRepaired
	res.Truncated = out.outcome.Truncated()

	resp, err := course.Decode([]byte(out.payload.JSON))
	if err != nil {
		return res, err
	}
	res.DroppedSteps = resp.DroppedSteps
	if len(resp.Artifact.Lessons) == 0 {
		return res, apierr.New(apierr.KindSchema, "progressive.continue", errors.New("no lessons returned"))
	}

	matched := matchLessons(entries, resp.Artifact.Lessons, resp.LessonIndexes)
	if len(matched) == 0 {
		return res, apierr.New(apierr.KindSchema, "progressive.continue", errors.New("no returned lesson matches a target"))
	}
	var lessons []course.Lesson
	for _, e := range entries {
		l, ok := matched[e.Index]
		if !ok {
			continue
		}
		l.Index = e.Index
		l.Title = e.Title
		if strings.TrimSpace(l.Description) == "" {
			l.Description = e.Description
		}
		if len(l.Topics) == 0 {
			l.Topics = append([]string(nil), e.Topics...)
		}
		if err := course.ValidateLesson(l); err != nil {
			r.log.Warn("dropping invalid continuation lesson", "index", e.Index, "error", err)
			continue
		}
		lessons = append(lessons, l)
	}

	kept, rep := c.filter.FilterLessons(lessons)
	c.metrics.ObserveSafety(rep.LessonsRemoved, rep.StepsRemoved, false)
	res.Safety = rep
	res.Lessons = kept

	have := make(map[int]bool, len(kept))
	for _, l := range kept {
		have[l.Index] = true
	}
	for _, e := range entries {
		if !have[e.Index] {
			res.Missing = append(res.Missing, e.Index)
		}
	}
	sort.Ints(res.Missing)
	if len(res.Missing) > 0 {
		r.log.Warn("continuation left lessons unwritten", "missing", res.Missing)
	}
	res.Elapsed = time.Since(r.start)
	return res, nil
}

// normalizeTargets checks every target against the outline and returns them
// deduplicated in ascending order.
func normalizeTargets(co course.CarryOver, targets []int) ([]int, error) {
	if len(co.LessonOutline) == 0 {
		return nil, apierr.New(apierr.KindInvalidRequest, "continue", errors.New("carry-over has no lesson outline"))
	}
	if len(targets) == 0 {
		return nil, apierr.New(apierr.KindInvalidRequest, "continue", errors.New("no target lessons"))
	}
	seen := make(map[int]bool, len(targets))
	out := make([]int, 0, len(targets))
	for _, t := range targets {
		if _, ok := co.Entry(t); !ok {
			return nil, apierr.Newf(apierr.KindInvalidRequest, "continue", "target %d is not in the outline", t)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Ints(out)
	return out, nil
}

func continuationInput(co course.CarryOver, req ContinueRequest, entries []course.OutlineEntry, sampleSize int) (prompts.Input, error) {
	outline, err := json.Marshal(co.LessonOutline)
	if err != nil {
		return prompts.Input{}, err
	}
	targets, err := json.Marshal(entries)
	if err != nil {
		return prompts.Input{}, err
	}
	sample := req.Prior
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	if sample == nil {
		sample = []course.Lesson{}
	}
	style, err := json.Marshal(sample)
	if err != nil {
		return prompts.Input{}, err
	}
	title := strings.TrimSpace(req.CourseTitle)
	if title == "" {
		title = "Untitled course"
	}
	return prompts.Input{
		CourseTitle:     title,
		DocumentSummary: co.DocumentSummary,
		OutlineJSON:     string(outline),
		TargetsJSON:     string(targets),
		StyleSampleJSON: string(style),
		TargetCount:     len(entries),
	}, nil
}

// matchLessons pairs returned lessons with targets. An echoed index that
// names a pending target wins; remaining lessons fill remaining targets in
// order. Extra lessons are ignored.
func matchLessons(entries []course.OutlineEntry, lessons []course.Lesson, echoed []int) map[int]course.Lesson {
	pending := make(map[int]bool, len(entries))
	for _, e := range entries {
		pending[e.Index] = true
	}
	out := make(map[int]course.Lesson, len(entries))
	var rest []course.Lesson
	for i, l := range lessons {
		idx := -1
		if i < len(echoed) {
			idx = echoed[i]
		}
		if idx >= 0 && pending[idx] {
			out[idx] = l
			delete(pending, idx)
			continue
		}
		rest = append(rest, l)
	}
	for _, e := range entries {
		if len(rest) == 0 {
			break
		}
		if !pending[e.Index] {
			continue
		}
		out[e.Index] = rest[0]
		rest = rest[1:]
		delete(pending, e.Index)
	}
	return out
}

func summaryFromOutline(overview string, outline []course.OutlineEntry) string {
	var b strings.Builder
	if s := strings.TrimSpace(overview); s != "" {
		b.WriteString(s)
		b.WriteString("\n")
	}
	for _, e := range outline {
		fmt.Fprintf(&b, "%d. %s", e.Index+1, e.Title)
		if e.Description != "" {
			b.WriteString(": ")
			b.WriteString(e.Description)
		}
		if len(e.Topics) > 0 {
			b.WriteString(" (")
			b.WriteString(strings.Join(e.Topics, ", "))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
