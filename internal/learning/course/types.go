// Package course holds the normalized curriculum model and the adapter that
// maps model output, in either the lessons or the legacy sections shape, onto
// it.
package course

type StepKind string

const (
	StepExplanation StepKind = "explanation"
	StepKeyPoint    StepKind = "key_point"
	StepQuestion    StepKind = "question"
	StepExample     StepKind = "example"
	StepSummary     StepKind = "summary"
	StepFormula     StepKind = "formula"
	StepTip         StepKind = "tip"
	StepDiagram     StepKind = "diagram"
)

// Step is one unit inside a lesson. Question steps always carry at least two
// options and exactly one correct option, addressed by CorrectIndex.
type Step struct {
	Kind         StepKind `json:"type"`
	Title        string   `json:"title,omitempty"`
	Content      string   `json:"content,omitempty"`
	Question     string   `json:"question,omitempty"`
	Options      []string `json:"options,omitempty"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation,omitempty"`
}

func (s Step) IsQuestion() bool { return s.Kind == StepQuestion }

type Lesson struct {
	Index       int      `json:"index"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Topics      []string `json:"topics,omitempty"`
	Steps       []Step   `json:"steps"`
}

type Artifact struct {
	Title    string   `json:"title"`
	Overview string   `json:"overview"`
	Lessons  []Lesson `json:"lessons"`
}

func (a Artifact) Clone() Artifact {
	out := a
	out.Lessons = cloneLessons(a.Lessons)
	return out
}

func cloneLessons(in []Lesson) []Lesson {
	if in == nil {
		return nil
	}
	out := make([]Lesson, len(in))
	for i, l := range in {
		out[i] = l
		out[i].Topics = append([]string(nil), l.Topics...)
		out[i].Steps = make([]Step, len(l.Steps))
		for j, s := range l.Steps {
			out[i].Steps[j] = s
			out[i].Steps[j].Options = append([]string(nil), s.Options...)
		}
	}
	return out
}

// OutlineEntry plans one lesson without its content.
type OutlineEntry struct {
	Index       int      `json:"index"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Topics      []string `json:"topics"`
}

// CarryOver is the only state passed from the fast phase of progressive
// generation to later continuation calls. Treat it as a value.
type CarryOver struct {
	DocumentSummary string         `json:"documentSummary"`
	LessonOutline   []OutlineEntry `json:"lessonOutline"`
}

func (c CarryOver) Clone() CarryOver {
	out := CarryOver{DocumentSummary: c.DocumentSummary}
	if c.LessonOutline != nil {
		out.LessonOutline = make([]OutlineEntry, len(c.LessonOutline))
		for i, e := range c.LessonOutline {
			out.LessonOutline[i] = e
			out.LessonOutline[i].Topics = append([]string(nil), e.Topics...)
		}
	}
	return out
}

// Entry returns the outline entry with the given index.
func (c CarryOver) Entry(index int) (OutlineEntry, bool) {
	for _, e := range c.LessonOutline {
		if e.Index == index {
			return e, true
		}
	}
	return OutlineEntry{}, false
}
