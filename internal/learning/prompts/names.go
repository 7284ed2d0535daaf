package prompts

type PromptName string

const (
	// Two-step: intermediate content -> course
	PromptCourseFromExtraction PromptName = "course_from_extraction"

	// Progressive
	PromptProgressiveInitial  PromptName = "progressive_initial"
	PromptLessonContinuation PromptName = "lesson_continuation"
)
