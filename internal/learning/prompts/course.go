package prompts

import "fmt"

func init() {
	RegisterSpec(Spec{
		Name:       PromptCourseFromExtraction,
		Version:    1,
		SchemaName: "course",
		Schema:     CourseSchema,
		System: `{{.BaseSystem}}

You now turn extracted study material into a complete course. Use only the material provided.
Every question step has at least two options and exactly one correctIndex.`,
		User: `Extracted material:
{{.ExtractedJSON}}`,
		Validators: []Validator{requireExtracted},
	})

	RegisterSpec(Spec{
		Name:       PromptProgressiveInitial,
		Version:    1,
		SchemaName: "progressive_course",
		Schema:     ProgressiveInitialSchema,
		System: `{{.BaseSystem}}

Plan the whole course first, then write only its opening.
Return all of:
- title and overview
- lessonOutline: every planned lesson, numbered from 0, with title, description and topics only
- lessons: full content for exactly the first {{.InitialLessons}} lessons of the outline, in order
- documentSummary: at most {{.SummaryMaxChars}} characters covering every topic, definition and figure in the material, since later lessons are written from this summary alone`,
		User:       `{{.BaseUser}}`,
		Validators: []Validator{requireInitialBounds},
	})

	RegisterSpec(Spec{
		Name:       PromptLessonContinuation,
		Version:    1,
		SchemaName: "lesson_batch",
		Schema:     LessonBatchSchema,
		System: `You continue a course titled "{{.CourseTitle}}". Write full content for exactly {{.TargetCount}} lessons.
Match the structure, depth and tone of the sample lessons. Stay within the topics listed for each target lesson.
Echo each lesson's outline index in "index". Every question step has at least two options and exactly one correctIndex.`,
		User: `Document summary:
{{.DocumentSummary}}

Full outline:
{{.OutlineJSON}}

Lessons to write:
{{.TargetsJSON}}

Sample of lessons already written:
{{.StyleSampleJSON}}`,
		Validators: []Validator{requireTargets},
	})
}

func requireExtracted(in Input) error {
	if in.ExtractedJSON == "" {
		return fmt.Errorf("missing extracted content")
	}
	return nil
}

func requireInitialBounds(in Input) error {
	if in.InitialLessons <= 0 || in.SummaryMaxChars <= 0 {
		return fmt.Errorf("initial lessons and summary bound must be positive")
	}
	return nil
}

func requireTargets(in Input) error {
	if in.TargetCount <= 0 || in.TargetsJSON == "" {
		return fmt.Errorf("no target lessons")
	}
	if in.OutlineJSON == "" {
		return fmt.Errorf("missing outline")
	}
	return nil
}
