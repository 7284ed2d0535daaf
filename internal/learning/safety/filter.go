// Package safety removes course-administration material (exam logistics,
// grading policy, contact details, submission rules) that models copy out of
// syllabi and slide decks into learner-facing lessons.
package safety

import (
	"regexp"
	"strings"

	"github.com/yungbote/coursegen/internal/learning/course"
	"github.com/yungbote/coursegen/internal/platform/logger"
)

type Family string

const (
	FamilyExamLogistics       Family = "exam_logistics"
	FamilyCourseAdmin         Family = "course_admin"
	FamilyContactInfo         Family = "contact_info"
	FamilySubmissionLogistics Family = "submission_logistics"
)

type rule struct {
	Family Family
	Re     *regexp.Regexp
}

var familyRules = []rule{
	{Family: FamilyExamLogistics, Re: regexp.MustCompile(`(?i)\b(exam|midterm|final|quiz|test)\s+(duration|date|time|room|venue|location|format|materials?|rules?|schedule)\b`)},
	{Family: FamilyExamLogistics, Re: regexp.MustCompile(`(?i)\b(open|closed)[- ]book\b`)},
	{Family: FamilyExamLogistics, Re: regexp.MustCompile(`(?i)\b(calculators?|notes?|phones?)\s+(are|is)\s+(not\s+)?(allowed|permitted)\b`)},
	{Family: FamilyExamLogistics, Re: regexp.MustCompile(`(?i)\bexam\s+(will\s+)?(last|lasts|take|takes)\b`)},
	{Family: FamilyCourseAdmin, Re: regexp.MustCompile(`(?i)\b(office\s+hours|syllabus|grading\s+(policy|scheme|breakdown)|attendance\s+polic(y|ies)|late\s+polic(y|ies)|course\s+(policy|policies|logistics))\b`)},
	{Family: FamilyCourseAdmin, Re: regexp.MustCompile(`(?i)\b\d{1,3}\s*%\s+of\s+(the\s+)?(final\s+)?(grade|mark)\b`)},
	{Family: FamilyCourseAdmin, Re: regexp.MustCompile(`(?i)\b(teaching\s+assistant|instructor|lecturer|professor)\s+(will|is|can)\b`)},
	{Family: FamilyContactInfo, Re: regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)},
	{Family: FamilyContactInfo, Re: regexp.MustCompile(`\+?\d{1,3}[\s.\-]?\(?\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4}\b`)},
	{Family: FamilyContactInfo, Re: regexp.MustCompile(`(?i)\b(room|building|bldg)\s+[a-z]?\d{2,4}\b`)},
	{Family: FamilySubmissionLogistics, Re: regexp.MustCompile(`(?i)\b(submit|upload|hand\s+in|turn\s+in)\b.{0,40}\b(portal|canvas|moodle|blackboard|deadline|by\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday|midnight|\d))`)},
	{Family: FamilySubmissionLogistics, Re: regexp.MustCompile(`(?i)\b(due\s+date|deadline|late\s+submissions?|extensions?\s+(will|are))\b`)},
}

// Title patterns remove a whole lesson on their own.
var titleRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(exams?|midterms?)\b.*\b(duration|materials?|logistics|rules|format|schedule|information|info|details)\b`),
	regexp.MustCompile(`(?i)\b(course|class)\s+(logistics|policies|administration|information|info)\b`),
	regexp.MustCompile(`(?i)\b(syllabus|office\s+hours|grading\s+(policy|scheme)|contact\s+(information|details))\b`),
	regexp.MustCompile(`(?i)\bsubmission\s+(guidelines|instructions|rules)\b`),
}

// Config holds the thresholds. Both are empirical and tunable.
type Config struct {
	// LessonDropRatio drops a lesson when more than this share of its steps
	// is flagged.
	LessonDropRatio float64 `yaml:"lesson_drop_ratio"`
	// MinFamilies is how many distinct families must match before a prose step
	// is flagged.
	MinFamilies int `yaml:"min_families"`
}

func DefaultConfig() Config {
	return Config{LessonDropRatio: 0.7, MinFamilies: 2}
}

type Report struct {
	LessonsRemoved int `json:"lessons_removed"`
	// RemovedIndexes holds the Index of every dropped lesson, in input order.
	RemovedIndexes []int    `json:"removed_indexes,omitempty"`
	StepsRemoved   int      `json:"steps_removed"`
	Reverted       bool     `json:"reverted"`
	Families       []string `json:"families,omitempty"`
}

// Changed reports whether the filtered output differs from the input.
func (r Report) Changed() bool {
	return !r.Reverted && (r.LessonsRemoved > 0 || r.StepsRemoved > 0)
}

type Filter struct {
	log *logger.Logger
	cfg Config
}

func New(log *logger.Logger, cfg Config) *Filter {
	def := DefaultConfig()
	if cfg.LessonDropRatio <= 0 || cfg.LessonDropRatio > 1 {
		cfg.LessonDropRatio = def.LessonDropRatio
	}
	if cfg.MinFamilies <= 0 {
		cfg.MinFamilies = def.MinFamilies
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Filter{log: log.With("service", "SafetyFilter"), cfg: cfg}
}

// Apply returns a filtered copy of a. The input is never modified. If
// filtering would leave no lessons, a is returned unchanged with
// Report.Reverted set.
func (f *Filter) Apply(a course.Artifact) (course.Artifact, Report) {
	src := a.Clone()
	out := src
	out.Lessons = nil
	rep := Report{}
	hits := map[Family]bool{}

	for _, l := range src.Lessons {
		kept, removed, fams := f.filterLesson(l)
		for _, fam := range fams {
			hits[fam] = true
		}
		if kept == nil {
			rep.LessonsRemoved++
			rep.RemovedIndexes = append(rep.RemovedIndexes, l.Index)
			continue
		}
		rep.StepsRemoved += removed
		out.Lessons = append(out.Lessons, *kept)
	}

	for _, r := range familyRules {
		if hits[r.Family] {
			rep.Families = appendUnique(rep.Families, string(r.Family))
		}
	}

	if len(out.Lessons) == 0 && len(a.Lessons) > 0 {
		f.log.Warn("Safety filter would remove every lesson; keeping original",
			"lessons", len(a.Lessons),
			"families", rep.Families,
		)
		return a, Report{Reverted: true, Families: rep.Families}
	}
	if rep.Changed() {
		f.log.Info("Safety filter removed content",
			"lessons_removed", rep.LessonsRemoved,
			"removed_indexes", rep.RemovedIndexes,
			"steps_removed", rep.StepsRemoved,
			"families", rep.Families,
		)
	}
	return out, rep
}

// FilterLessons applies lesson and step rules to a lesson list without the
// zero-lesson guard. Used for continuation batches, where an empty result is
// a valid outcome the caller handles.
func (f *Filter) FilterLessons(lessons []course.Lesson) ([]course.Lesson, Report) {
	rep := Report{}
	var out []course.Lesson
	for _, l := range lessons {
		kept, removed, _ := f.filterLesson(l)
		if kept == nil {
			rep.LessonsRemoved++
			rep.RemovedIndexes = append(rep.RemovedIndexes, l.Index)
			continue
		}
		rep.StepsRemoved += removed
		out = append(out, *kept)
	}
	if rep.Changed() {
		f.log.Info("Safety filter trimmed continuation batch",
			"lessons_removed", rep.LessonsRemoved,
			"removed_indexes", rep.RemovedIndexes,
			"steps_removed", rep.StepsRemoved,
		)
	}
	return out, rep
}

// filterLesson returns nil when the whole lesson is dropped.
func (f *Filter) filterLesson(l course.Lesson) (*course.Lesson, int, []Family) {
	if TitleFlagged(l.Title) {
		return nil, 0, nil
	}
	var fams []Family
	flagged := 0
	kept := make([]course.Step, 0, len(l.Steps))
	for _, s := range l.Steps {
		if hit, fs := f.stepFlagged(s); hit {
			flagged++
			fams = append(fams, fs...)
			continue
		}
		kept = append(kept, s)
	}
	if len(l.Steps) > 0 && float64(flagged)/float64(len(l.Steps)) > f.cfg.LessonDropRatio {
		return nil, 0, fams
	}
	out := l
	out.Steps = kept
	return &out, flagged, fams
}

func (f *Filter) stepFlagged(s course.Step) (bool, []Family) {
	switch s.Kind {
	case course.StepQuestion:
		fams := Families(s.Question)
		return len(fams) > 0, fams
	case course.StepExplanation, course.StepSummary:
		fams := Families(s.Title + "\n" + s.Content)
		return len(fams) >= f.cfg.MinFamilies, fams
	default:
		return false, nil
	}
}

// TitleFlagged reports whether a lesson title names an administrative topic.
func TitleFlagged(title string) bool {
	t := strings.TrimSpace(title)
	if t == "" {
		return false
	}
	for _, re := range titleRules {
		if re.MatchString(t) {
			return true
		}
	}
	return false
}

// Families returns the distinct pattern families matching text, in rule order.
func Families(text string) []Family {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []Family
	seen := map[Family]bool{}
	for _, r := range familyRules {
		if seen[r.Family] {
			continue
		}
		if r.Re.MatchString(text) {
			seen[r.Family] = true
			out = append(out, r.Family)
		}
	}
	return out
}

func appendUnique(in []string, s string) []string {
	for _, v := range in {
		if v == s {
			return in
		}
	}
	return append(in, s)
}
