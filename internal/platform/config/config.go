// Package config loads the coursegen configuration from an optional YAML
// file and applies environment overrides on top. Every section has usable
// defaults, so an empty path with only OPENAI_API_KEY set is a valid setup.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/coursegen/internal/learning/fetch"
	"github.com/yungbote/coursegen/internal/learning/generate"
	"github.com/yungbote/coursegen/internal/learning/safety"
	"github.com/yungbote/coursegen/internal/observability"
	"github.com/yungbote/coursegen/internal/platform/apierr"
	"github.com/yungbote/coursegen/internal/platform/envutil"
	"github.com/yungbote/coursegen/internal/platform/gcp"
	"github.com/yungbote/coursegen/internal/platform/openai"
	"github.com/yungbote/coursegen/internal/platform/redis"
)

type Config struct {
	Log        LogConfig       `yaml:"log"`
	OpenAI     openai.Config   `yaml:"openai"`
	Generation generate.Config `yaml:"generation"`
	Fetch      fetch.Config    `yaml:"fetch"`
	Safety     safety.Config   `yaml:"safety"`
	Redis      redis.Config    `yaml:"redis"`
	Storage    StorageConfig   `yaml:"storage"`
	Metrics    MetricsConfig   `yaml:"metrics"`
	Tracing    TracingConfig   `yaml:"tracing"`
}

type LogConfig struct {
	// Mode is "prod" for JSON output, anything else for console output.
	Mode string `yaml:"mode"`
}

// StorageConfig enables gs:// resource refs.
type StorageConfig struct {
	Enabled           bool `yaml:"enabled"`
	gcp.StorageConfig `yaml:",inline"`
}

type MetricsConfig struct {
	// Addr is the listen address of the /metrics server. Empty disables it.
	Addr string `yaml:"addr"`
}

type TracingConfig struct {
	ServiceName string `yaml:"service_name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

func (t TracingConfig) Otel() observability.OtelConfig {
	return observability.OtelConfig{ServiceName: t.ServiceName, Environment: t.Environment, Version: t.Version}
}

func Default() *Config {
	return &Config{
		Log:        LogConfig{Mode: "dev"},
		OpenAI:     openai.DefaultConfig(),
		Generation: generate.DefaultConfig(),
		Fetch:      fetch.DefaultConfig(),
		Safety:     safety.DefaultConfig(),
		Redis:      redis.DefaultConfig(),
		Storage:    StorageConfig{StorageConfig: gcp.StorageConfig{Mode: gcp.StorageModeGCS}},
		Tracing:    TracingConfig{ServiceName: "coursegen"},
	}
}

// Load reads path when it is set, then applies environment overrides. The
// result is validated; a bad value is a config_error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apierr.New(apierr.KindConfig, "config.load", fmt.Errorf("reading config file %s: %w", path, err))
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apierr.New(apierr.KindConfig, "config.load", fmt.Errorf("parsing config file %s: %w", path, err))
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	cfg.Log.Mode = envutil.String("LOG_MODE", cfg.Log.Mode)
	cfg.OpenAI = openai.ConfigFromEnv(cfg.OpenAI)
	cfg.Generation = generate.ConfigFromEnv(cfg.Generation)
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = cfg.OpenAI.Model
	}
	cfg.Fetch.GroupSize = envutil.Int("RESOURCE_FETCH_GROUP_SIZE", cfg.Fetch.GroupSize)
	cfg.Fetch.MaxAttempts = envutil.Int("RESOURCE_FETCH_MAX_ATTEMPTS", cfg.Fetch.MaxAttempts)
	cfg.Fetch.AttemptTimeout = envutil.Seconds("RESOURCE_FETCH_TIMEOUT_SECONDS", cfg.Fetch.AttemptTimeout)
	cfg.Safety.LessonDropRatio = envutil.Float("SAFETY_LESSON_DROP_RATIO", cfg.Safety.LessonDropRatio)
	cfg.Safety.MinFamilies = envutil.Int("SAFETY_MIN_FAMILIES", cfg.Safety.MinFamilies)
	cfg.Redis = redis.ConfigFromEnv(cfg.Redis)
	cfg.Metrics.Addr = envutil.String("METRICS_ADDR", cfg.Metrics.Addr)
	cfg.Tracing.Environment = envutil.String("APP_ENV", cfg.Tracing.Environment)
	cfg.Tracing.Version = envutil.String("APP_VERSION", cfg.Tracing.Version)

	cfg.Storage.Enabled = envutil.Bool("OBJECT_STORAGE_ENABLED", cfg.Storage.Enabled)
	if !cfg.Storage.Enabled {
		return nil
	}
	sc, err := gcp.StorageConfigFromEnv(cfg.Storage.StorageConfig)
	if err != nil {
		return err
	}
	cfg.Storage.StorageConfig = sc
	return nil
}

// Validate checks cross-field constraints the per-package defaults cannot
// repair on their own.
func (c *Config) Validate() error {
	var problems []string
	if c.Safety.LessonDropRatio <= 0 || c.Safety.LessonDropRatio > 1 {
		problems = append(problems, fmt.Sprintf("safety.lesson_drop_ratio must be in (0,1], got %v", c.Safety.LessonDropRatio))
	}
	if c.Generation.SummaryMaxChars < 0 || c.Generation.InitialLessons < 0 {
		problems = append(problems, "generation progressive bounds must not be negative")
	}
	if c.Fetch.GroupSize < 0 {
		problems = append(problems, "fetch.group_size must not be negative")
	}
	if c.Storage.Enabled {
		if err := gcp.ValidateStorageConfig(c.Storage.StorageConfig); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return apierr.New(apierr.KindConfig, "config.validate", fmt.Errorf("%s", strings.Join(problems, "; ")))
	}
	return nil
}
