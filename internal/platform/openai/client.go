package openai

import (
	"fmt"
	"strings"
	"sync"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/yungbote/coursegen/internal/platform/apierr"
	"github.com/yungbote/coursegen/internal/platform/envutil"
	"github.com/yungbote/coursegen/internal/platform/logger"
)

type Config struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// Temperature is omitted from requests when nil.
	Temperature *float64 `yaml:"temperature"`
	// NoTemperatureModels lists models that reject temperature. A trailing
	// "*" makes an entry a prefix rule, e.g. "o1-*".
	NoTemperatureModels []string      `yaml:"no_temperature_models"`
	NoTemperatureTTL    time.Duration `yaml:"no_temperature_ttl"`
	ImageDetail         string        `yaml:"image_detail"`
}

func DefaultConfig() Config {
	return Config{
		Model:            "gpt-4o-mini",
		NoTemperatureTTL: 24 * time.Hour,
		ImageDetail:      "auto",
	}
}

// ConfigFromEnv overlays the OPENAI_* environment on base.
func ConfigFromEnv(base Config) Config {
	cfg := base
	cfg.APIKey = envutil.String("OPENAI_API_KEY", cfg.APIKey)
	cfg.BaseURL = envutil.String("OPENAI_BASE_URL", cfg.BaseURL)
	cfg.Model = envutil.String("OPENAI_MODEL", cfg.Model)
	cfg.NoTemperatureTTL = envutil.Seconds("OPENAI_NO_TEMPERATURE_TTL_SECONDS", cfg.NoTemperatureTTL)
	cfg.ImageDetail = envutil.String("OPENAI_IMAGE_DETAIL", cfg.ImageDetail)
	if raw := envutil.String("OPENAI_TEMPERATURE", ""); raw != "" {
		switch strings.ToLower(raw) {
		case "off", "none", "nil", "false":
			cfg.Temperature = nil
		default:
			t := envutil.Float("OPENAI_TEMPERATURE", 0.2)
			cfg.Temperature = &t
		}
	}
	if raw := envutil.String("OPENAI_NO_TEMPERATURE_MODELS", ""); raw != "" {
		cfg.NoTemperatureModels = strings.Split(raw, ",")
	}
	return cfg
}

// Provider streams chat completions. It holds no per-call state besides the
// learned set of models that rejected temperature, so one Provider serves
// concurrent calls.
type Provider struct {
	log    *logger.Logger
	client openai.Client
	cfg    Config

	noTempModels   map[string]bool
	noTempPrefixes []string

	noTempMu   sync.RWMutex
	noTempSeen map[string]time.Time
}

// New builds a Provider. A missing API key is a config_error. SDK retries are
// disabled; callers own retry.
func New(log *logger.Logger, cfg Config, opts ...option.RequestOption) (*Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apierr.New(apierr.KindConfig, "openai.new", fmt.Errorf("missing OPENAI_API_KEY"))
	}
	if log == nil {
		log = logger.Nop()
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(base, "/")+"/"))
	}
	reqOpts = append(reqOpts, opts...)

	if cfg.NoTemperatureTTL <= 0 {
		cfg.NoTemperatureTTL = 24 * time.Hour
	}
	models, prefixes := parseNoTempModelRules(cfg.NoTemperatureModels)
	return &Provider{
		log:            log.With("service", "OpenAIProvider"),
		client:         openai.NewClient(reqOpts...),
		cfg:            cfg,
		noTempModels:   models,
		noTempPrefixes: prefixes,
		noTempSeen:     map[string]time.Time{},
	}, nil
}

func normalizeModelKey(m string) string {
	return strings.ToLower(strings.TrimSpace(m))
}

func parseNoTempModelRules(entries []string) (map[string]bool, []string) {
	m := map[string]bool{}
	var prefixes []string
	for _, part := range entries {
		s := normalizeModelKey(part)
		if s == "" {
			continue
		}
		if strings.HasSuffix(s, "*") {
			pfx := strings.TrimSpace(strings.TrimRight(strings.TrimSuffix(s, "*"), "-_./:"))
			if pfx != "" {
				prefixes = append(prefixes, pfx)
			}
			continue
		}
		m[s] = true
	}
	return m, prefixes
}

func (p *Provider) modelIsNoTemp(model string) bool {
	m := normalizeModelKey(model)
	if m == "" {
		return false
	}
	if p.noTempModels[m] {
		return true
	}
	for _, pfx := range p.noTempPrefixes {
		if strings.HasPrefix(m, pfx) {
			return true
		}
	}
	p.noTempMu.RLock()
	ts, ok := p.noTempSeen[m]
	p.noTempMu.RUnlock()
	return ok && time.Since(ts) < p.cfg.NoTemperatureTTL
}

func (p *Provider) noteNoTempModel(model string) {
	m := normalizeModelKey(model)
	if m == "" {
		return
	}
	p.noTempMu.Lock()
	p.noTempSeen[m] = time.Now().UTC()
	p.noTempMu.Unlock()
}

func isUnsupportedTemperatureMessage(s string) bool {
	msg := strings.ToLower(strings.TrimSpace(s))
	if !strings.Contains(msg, "temperature") {
		return false
	}
	for _, frag := range []string{"unsupported parameter", "unknown parameter", "unrecognized parameter", "not supported", "does not support", "only the default", "unsupported_value"} {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
