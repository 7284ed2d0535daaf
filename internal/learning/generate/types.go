// Package generate turns a prompt pair and optional page images into a
// course artifact through one of three modes: single shot, two step
// (extract then generate) and progressive (fast first lessons plus later
// continuations from a carry-over).
package generate

import (
	"time"

	"github.com/yungbote/coursegen/internal/learning/course"
	"github.com/yungbote/coursegen/internal/learning/fetch"
	"github.com/yungbote/coursegen/internal/learning/safety"
)

type Mode string

const (
	ModeSingleShot  Mode = "single_shot"
	ModeTwoStep     Mode = "two_step"
	ModeProgressive Mode = "progressive"
)

// Prompt is the caller's opaque instruction pair.
type Prompt struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// Request is built once per call and never modified by the coordinator.
type Request struct {
	Prompt    Prompt      `json:"prompt"`
	Model     string      `json:"model,omitempty"`
	MaxTokens int         `json:"max_tokens,omitempty"`
	Resources []fetch.Ref `json:"resources,omitempty"`
	Mode      Mode        `json:"mode,omitempty"`
}

type Result struct {
	GenerationID string          `json:"generation_id"`
	Mode         Mode            `json:"mode"`
	Artifact     course.Artifact `json:"artifact"`
	// CarryOver is set by progressive mode only.
	CarryOver        *course.CarryOver `json:"carry_over,omitempty"`
	Repaired         bool              `json:"repaired"`
	Truncated        bool              `json:"truncated"`
	DroppedSteps     int               `json:"dropped_steps"`
	ResourceFailures []fetch.Failure   `json:"resource_failures,omitempty"`
	// FilteredLessons lists the outline indexes the safety filter dropped
	// from Artifact. Progressive callers skip them when continuing.
	FilteredLessons []int         `json:"filtered_lessons,omitempty"`
	Safety          safety.Report `json:"safety"`
	Elapsed         time.Duration `json:"elapsed"`
}

// ContinueRequest asks for specific outline lessons after a progressive
// first phase. Source material is never part of it.
type ContinueRequest struct {
	CarryOver   course.CarryOver `json:"carry_over"`
	CourseTitle string           `json:"course_title,omitempty"`
	// Prior lessons are used only as a style sample.
	Prior     []course.Lesson `json:"prior,omitempty"`
	Targets   []int           `json:"targets"`
	Model     string          `json:"model,omitempty"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type ContinueResult struct {
	GenerationID string `json:"generation_id"`
	// Lessons are ordered by outline index and carry the outline's index
	// and title.
	Lessons []course.Lesson `json:"lessons"`
	// Missing lists targets the model did not return or the safety filter
	// removed.
	Missing      []int         `json:"missing,omitempty"`
	Repaired     bool          `json:"repaired"`
	Truncated    bool          `json:"truncated"`
	DroppedSteps int           `json:"dropped_steps"`
	Safety       safety.Report `json:"safety"`
	Elapsed      time.Duration `json:"elapsed"`
}
