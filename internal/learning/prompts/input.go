package prompts

// Input is a superset of all fields any prompt might need.
// Missing fields render empty strings (templates use missingkey=zero).
type Input struct {
	// Caller prompt pair, embedded verbatim
	BaseSystem string
	BaseUser   string
	// Two-step
	ExtractedJSON string
	// Progressive phase 1
	InitialLessons  int
	SummaryMaxChars int
	// Progressive continuation
	CourseTitle     string
	DocumentSummary string
	OutlineJSON     string
	TargetsJSON     string
	StyleSampleJSON string
	TargetCount     int
}
