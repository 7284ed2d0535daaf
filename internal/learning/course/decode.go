package course

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/yungbote/coursegen/internal/platform/apierr"
)

// Response is a decoded model reply. Only the fields the reply carried are
// set; Outline and DocumentSummary appear in progressive first-phase replies.
type Response struct {
	Artifact        Artifact
	Outline         []OutlineEntry
	DocumentSummary string
	// LessonIndexes echoes the "index" each lesson carried, or -1 when absent.
	LessonIndexes []int
	DroppedSteps  int
}

// CarryOver returns the outline and summary as a carry-over value.
func (r Response) CarryOver() CarryOver {
	return CarryOver{DocumentSummary: r.DocumentSummary, LessonOutline: r.Outline}.Clone()
}

type rawCourse struct {
	Title           string       `json:"title"`
	CourseTitle     string       `json:"courseTitle"`
	Overview        string       `json:"overview"`
	Description     string       `json:"description"`
	Lessons         []rawLesson  `json:"lessons"`
	Sections        []rawLesson  `json:"sections"`
	LessonOutline   []rawOutline `json:"lessonOutline"`
	Outline         []rawOutline `json:"outline"`
	DocumentSummary string       `json:"documentSummary"`
}

type rawLesson struct {
	Index       *flexInt  `json:"index"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Summary     string    `json:"summary"`
	Topics      []string  `json:"topics"`
	Steps       []rawStep `json:"steps"`

	// legacy section shape
	Content   string    `json:"content"`
	KeyPoints []string  `json:"keyPoints"`
	Questions []rawStep `json:"questions"`
}

type rawOutline struct {
	Index       *flexInt `json:"index"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Topics      []string `json:"topics"`
}

type rawStep struct {
	Type          string          `json:"type"`
	Kind          string          `json:"kind"`
	Title         string          `json:"title"`
	Content       string          `json:"content"`
	Text          string          `json:"text"`
	Question      string          `json:"question"`
	Options       []string        `json:"options"`
	CorrectIndex  *flexInt        `json:"correctIndex"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
	Explanation   string          `json:"explanation"`
}

// flexInt accepts a JSON number or a numeric string. Anything else decodes
// as -1 rather than failing the whole reply.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			*f = flexInt(v)
			return nil
		}
	}
	*f = -1
	return nil
}

var stepAliases = map[string]StepKind{
	"explanation":     StepExplanation,
	"text":            StepExplanation,
	"content":         StepExplanation,
	"concept":         StepExplanation,
	"paragraph":       StepExplanation,
	"key_point":       StepKeyPoint,
	"keypoint":        StepKeyPoint,
	"key_concept":     StepKeyPoint,
	"takeaway":        StepKeyPoint,
	"question":        StepQuestion,
	"quiz":            StepQuestion,
	"mcq":             StepQuestion,
	"multiple_choice": StepQuestion,
	"check":           StepQuestion,
	"example":         StepExample,
	"worked_example":  StepExample,
	"summary":         StepSummary,
	"recap":           StepSummary,
	"formula":         StepFormula,
	"equation":        StepFormula,
	"tip":             StepTip,
	"hint":            StepTip,
	"note":            StepTip,
	"diagram":         StepDiagram,
	"visual":          StepDiagram,
}

// NormalizeKind maps a step type label onto a StepKind. Unrecognized labels
// become explanations.
func NormalizeKind(label string) StepKind {
	l := strings.ToLower(strings.TrimSpace(label))
	l = strings.NewReplacer("-", "_", " ", "_").Replace(l)
	if k, ok := stepAliases[l]; ok {
		return k
	}
	return StepExplanation
}

// Decode maps a JSON object in any supported shape onto a Response. It does
// not check required fields; see Validate.
func Decode(data []byte) (Response, error) {
	var raw rawCourse
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return Response{}, apierr.New(apierr.KindParse, "course.decode", err)
	}

	resp := Response{}
	resp.Artifact.Title = firstNonEmpty(raw.Title, raw.CourseTitle)
	resp.Artifact.Overview = firstNonEmpty(raw.Overview, raw.Description)
	resp.DocumentSummary = strings.TrimSpace(raw.DocumentSummary)

	lessons := raw.Lessons
	if len(lessons) == 0 {
		lessons = raw.Sections
	}
	for i, rl := range lessons {
		l, dropped := decodeLesson(rl)
		l.Index = i
		echoed := -1
		if rl.Index != nil {
			echoed = int(*rl.Index)
		}
		resp.Artifact.Lessons = append(resp.Artifact.Lessons, l)
		resp.LessonIndexes = append(resp.LessonIndexes, echoed)
		resp.DroppedSteps += dropped
	}

	outline := raw.LessonOutline
	if len(outline) == 0 {
		outline = raw.Outline
	}
	for i, ro := range outline {
		e := OutlineEntry{
			Index:       i,
			Title:       strings.TrimSpace(ro.Title),
			Description: strings.TrimSpace(ro.Description),
			Topics:      cleanStrings(ro.Topics),
		}
		resp.Outline = append(resp.Outline, e)
	}
	return resp, nil
}

func decodeLesson(rl rawLesson) (Lesson, int) {
	l := Lesson{
		Title:       strings.TrimSpace(rl.Title),
		Description: firstNonEmpty(rl.Description, rl.Summary),
		Topics:      cleanStrings(rl.Topics),
	}
	dropped := 0
	add := func(rs rawStep, fallback StepKind) {
		s, ok := decodeStep(rs, fallback)
		if !ok {
			dropped++
			return
		}
		l.Steps = append(l.Steps, s)
	}

	if c := strings.TrimSpace(rl.Content); c != "" {
		l.Steps = append(l.Steps, Step{Kind: StepExplanation, Content: c})
	}
	for _, kp := range cleanStrings(rl.KeyPoints) {
		l.Steps = append(l.Steps, Step{Kind: StepKeyPoint, Content: kp})
	}
	for _, rs := range rl.Steps {
		add(rs, "")
	}
	for _, rs := range rl.Questions {
		add(rs, StepQuestion)
	}
	return l, dropped
}

func decodeStep(rs rawStep, fallback StepKind) (Step, bool) {
	label := firstNonEmpty(rs.Type, rs.Kind)
	kind := NormalizeKind(label)
	if label == "" && fallback != "" {
		kind = fallback
	}
	if label == "" && fallback == "" && len(rs.Options) > 0 {
		kind = StepQuestion
	}

	s := Step{
		Kind:        kind,
		Title:       strings.TrimSpace(rs.Title),
		Content:     firstNonEmpty(rs.Content, rs.Text),
		Explanation: strings.TrimSpace(rs.Explanation),
	}
	if kind != StepQuestion {
		return s, s.Content != "" || s.Title != ""
	}

	s.Question = firstNonEmpty(rs.Question, rs.Content, rs.Text)
	s.Content = ""
	s.Options = cleanStrings(rs.Options)
	if s.Question == "" || len(s.Options) < 2 {
		return Step{}, false
	}
	idx, ok := resolveCorrect(rs, s.Options)
	if !ok {
		return Step{}, false
	}
	s.CorrectIndex = idx
	return s, true
}

// resolveCorrect finds the single correct option. correctIndex wins over
// correctAnswer; correctAnswer may be an index, a letter, or option text.
func resolveCorrect(rs rawStep, options []string) (int, bool) {
	if rs.CorrectIndex != nil {
		i := int(*rs.CorrectIndex)
		return i, i >= 0 && i < len(options)
	}
	raw := bytes.TrimSpace(rs.CorrectAnswer)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, n >= 0 && n < len(options)
	}
	var ans string
	if err := json.Unmarshal(raw, &ans); err != nil {
		return 0, false
	}
	ans = strings.TrimSpace(ans)
	if ans == "" {
		return 0, false
	}

	match := -1
	for i, o := range options {
		if strings.EqualFold(o, ans) {
			if match >= 0 {
				// duplicated option text cannot identify one answer
				return 0, false
			}
			match = i
		}
	}
	if match >= 0 {
		return match, true
	}
	if len(ans) == 1 {
		c := ans[0] | 0x20
		if c >= 'a' && c <= 'z' {
			i := int(c - 'a')
			return i, i < len(options)
		}
	}
	if n, err := strconv.Atoi(ans); err == nil {
		return n, n >= 0 && n < len(options)
	}
	return 0, false
}

// Validate checks the required top-level fields of a full course.
func Validate(a Artifact) error {
	var missing []string
	if strings.TrimSpace(a.Title) == "" {
		missing = append(missing, "title")
	}
	if len(a.Lessons) == 0 {
		missing = append(missing, "lessons")
	}
	if len(missing) > 0 {
		return apierr.New(apierr.KindSchema, "course.validate", fmt.Errorf("missing required fields: %s", strings.Join(missing, ", ")))
	}
	for i, l := range a.Lessons {
		if err := ValidateLesson(l); err != nil {
			return apierr.New(apierr.KindSchema, "course.validate", fmt.Errorf("lesson %d: %w", i, err))
		}
	}
	return nil
}

// ValidateLesson checks the invariants every kept lesson must satisfy.
func ValidateLesson(l Lesson) error {
	if strings.TrimSpace(l.Title) == "" {
		return fmt.Errorf("missing title")
	}
	for j, s := range l.Steps {
		if !s.IsQuestion() {
			continue
		}
		if len(s.Options) < 2 {
			return fmt.Errorf("step %d: question needs at least 2 options", j)
		}
		if s.CorrectIndex < 0 || s.CorrectIndex >= len(s.Options) {
			return fmt.Errorf("step %d: correct option out of range", j)
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}

func cleanStrings(in []string) []string {
	var out []string
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
