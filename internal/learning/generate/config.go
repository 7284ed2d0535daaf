package generate

import (
	"time"

	"github.com/yungbote/coursegen/internal/platform/envutil"
)

type Config struct {
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`

	MaxAttempts    int           `yaml:"max_attempts"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	StallWarnAfter time.Duration `yaml:"stall_warn_after"`

	// Progressive mode
	InitialLessons     int `yaml:"initial_lessons"`
	SummaryMaxChars    int `yaml:"summary_max_chars"`
	MinOutlineLessons  int `yaml:"min_outline_lessons"`
	StyleSampleLessons int `yaml:"style_sample_lessons"`
}

func DefaultConfig() Config {
	return Config{
		MaxTokens:          16000,
		MaxAttempts:        3,
		BaseDelay:          2 * time.Second,
		MaxDelay:           30 * time.Second,
		AttemptTimeout:     5 * time.Minute,
		StallWarnAfter:     30 * time.Second,
		InitialLessons:     2,
		SummaryMaxChars:    6000,
		MinOutlineLessons:  2,
		StyleSampleLessons: 2,
	}
}

// ConfigFromEnv overlays LLM_* and PROGRESSIVE_* variables on base.
func ConfigFromEnv(base Config) Config {
	c := base
	c.Model = envutil.String("OPENAI_MODEL", c.Model)
	c.MaxTokens = envutil.Int("OPENAI_MAX_OUTPUT_TOKENS", c.MaxTokens)
	c.MaxAttempts = envutil.Int("LLM_MAX_ATTEMPTS", c.MaxAttempts)
	c.BaseDelay = envutil.Millis("LLM_RETRY_BASE_MS", c.BaseDelay)
	c.MaxDelay = envutil.Millis("LLM_RETRY_MAX_MS", c.MaxDelay)
	c.AttemptTimeout = envutil.Seconds("OPENAI_TIMEOUT_SECONDS", c.AttemptTimeout)
	c.StallWarnAfter = envutil.Seconds("LLM_STALL_WARN_SECONDS", c.StallWarnAfter)
	c.InitialLessons = envutil.Int("PROGRESSIVE_INITIAL_LESSONS", c.InitialLessons)
	c.SummaryMaxChars = envutil.Int("PROGRESSIVE_SUMMARY_MAX_CHARS", c.SummaryMaxChars)
	c.StyleSampleLessons = envutil.Int("PROGRESSIVE_STYLE_SAMPLE_LESSONS", c.StyleSampleLessons)
	return c
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.StallWarnAfter <= 0 {
		c.StallWarnAfter = def.StallWarnAfter
	}
	if c.InitialLessons <= 0 {
		c.InitialLessons = def.InitialLessons
	}
	if c.SummaryMaxChars <= 0 {
		c.SummaryMaxChars = def.SummaryMaxChars
	}
	if c.MinOutlineLessons <= 0 {
		c.MinOutlineLessons = def.MinOutlineLessons
	}
	if c.StyleSampleLessons <= 0 {
		c.StyleSampleLessons = def.StyleSampleLessons
	}
	return c
}
