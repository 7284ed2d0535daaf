package safety

import (
	"testing"

	"github.com/yungbote/coursegen/internal/learning/course"
)

func lesson(title string, steps ...course.Step) course.Lesson {
	return course.Lesson{Title: title, Steps: steps}
}

func explain(s string) course.Step { return course.Step{Kind: course.StepExplanation, Content: s} }

func TestExamLogisticsLessonRemoved(t *testing.T) {
	a := course.Artifact{Title: "Biology", Lessons: []course.Lesson{
		lesson("Cell structure", explain("Cells have membranes.")),
		lesson("Exam duration and materials", explain("Bring a pencil.")),
	}}
	out, rep := New(nil, DefaultConfig()).Apply(a)
	if len(out.Lessons) != 1 || out.Lessons[0].Title != "Cell structure" {
		t.Fatalf("lessons: got=%+v", out.Lessons)
	}
	if rep.LessonsRemoved != 1 || rep.Reverted {
		t.Fatalf("report: got=%+v", rep)
	}
	if len(a.Lessons) != 2 {
		t.Fatalf("input artifact was modified")
	}
}

func TestZeroLessonOutcomeReverts(t *testing.T) {
	a := course.Artifact{Title: "Admin", Lessons: []course.Lesson{
		lesson("Exam duration and materials", explain("Two hours.")),
		lesson("Course logistics", explain("Lectures on Monday.")),
	}}
	out, rep := New(nil, DefaultConfig()).Apply(a)
	if !rep.Reverted {
		t.Fatalf("expected revert: got=%+v", rep)
	}
	if len(out.Lessons) != 2 {
		t.Fatalf("reverted artifact: want=2 lessons got=%d", len(out.Lessons))
	}
}

func TestQuestionStepFlaggedByOneFamily(t *testing.T) {
	q := course.Step{Kind: course.StepQuestion, Question: "Is the exam open-book?", Options: []string{"Yes", "No"}}
	ok := course.Step{Kind: course.StepQuestion, Question: "What is osmosis?", Options: []string{"A", "B"}}
	a := course.Artifact{Title: "T", Lessons: []course.Lesson{
		lesson("Osmosis", explain("Water moves."), q, ok, explain("Across membranes.")),
	}}
	out, rep := New(nil, DefaultConfig()).Apply(a)
	if rep.StepsRemoved != 1 {
		t.Fatalf("steps removed: want=1 got=%d", rep.StepsRemoved)
	}
	if len(out.Lessons[0].Steps) != 3 {
		t.Fatalf("steps kept: want=3 got=%d", len(out.Lessons[0].Steps))
	}
}

func TestProseNeedsTwoFamilies(t *testing.T) {
	one := explain("The syllabus lists the required readings for photosynthesis.")
	two := explain("Office hours are Tuesdays; email ta@example.edu with questions.")
	a := course.Artifact{Title: "T", Lessons: []course.Lesson{
		lesson("Photosynthesis", one, two, explain("Light reactions."), explain("Calvin cycle.")),
	}}
	out, rep := New(nil, DefaultConfig()).Apply(a)
	if rep.StepsRemoved != 1 {
		t.Fatalf("steps removed: want=1 got=%d", rep.StepsRemoved)
	}
	if out.Lessons[0].Steps[0].Content != one.Content {
		t.Fatalf("single-family prose should be kept")
	}
}

func TestLessonDroppedAboveRatio(t *testing.T) {
	admin := explain("Submit via the Canvas portal by Friday; office hours in Room 204.")
	a := course.Artifact{Title: "T", Lessons: []course.Lesson{
		lesson("Keep", explain("Content.")),
		lesson("Week one", admin, admin, admin, explain("Real content.")),
	}}
	out, rep := New(nil, DefaultConfig()).Apply(a)
	if rep.LessonsRemoved != 1 || len(out.Lessons) != 1 {
		t.Fatalf("ratio drop: got lessons=%d report=%+v", len(out.Lessons), rep)
	}

	loose := New(nil, Config{LessonDropRatio: 0.9, MinFamilies: 2})
	out, rep = loose.Apply(a)
	if rep.LessonsRemoved != 0 || len(out.Lessons) != 2 {
		t.Fatalf("configurable ratio: got lessons=%d report=%+v", len(out.Lessons), rep)
	}
	if len(out.Lessons[1].Steps) != 1 {
		t.Fatalf("flagged steps should still be removed: got=%d", len(out.Lessons[1].Steps))
	}
}

func TestReportNamesRemovedLessonsAndChanged(t *testing.T) {
	keep := lesson("Cell structure", explain("Cells have membranes."))
	keep.Index = 0
	drop := lesson("Exam duration and materials", explain("Bring a pencil."))
	drop.Index = 1
	f := New(nil, DefaultConfig())

	_, rep := f.Apply(course.Artifact{Title: "Biology", Lessons: []course.Lesson{keep, drop}})
	if !rep.Changed() {
		t.Fatalf("Changed: want=true got=false (%+v)", rep)
	}
	if len(rep.RemovedIndexes) != 1 || rep.RemovedIndexes[0] != 1 {
		t.Fatalf("removed indexes: want=[1] got=%v", rep.RemovedIndexes)
	}

	_, rep = f.Apply(course.Artifact{Title: "Admin", Lessons: []course.Lesson{drop}})
	if rep.Changed() || len(rep.RemovedIndexes) != 0 {
		t.Fatalf("reverted report must be unchanged: got=%+v", rep)
	}

	batch, rep := f.FilterLessons([]course.Lesson{drop})
	if len(batch) != 0 || !rep.Changed() || rep.RemovedIndexes[0] != 1 {
		t.Fatalf("FilterLessons: kept=%d report=%+v", len(batch), rep)
	}

	_, rep = f.Apply(course.Artifact{Title: "Biology", Lessons: []course.Lesson{keep}})
	if rep.Changed() {
		t.Fatalf("clean artifact reported as changed: %+v", rep)
	}
}
