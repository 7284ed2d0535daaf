package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/coursegen/internal/platform/apierr"
	"github.com/yungbote/coursegen/internal/platform/gcp"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coursegen.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("OPENAI_MODEL", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Generation.InitialLessons != 2 || cfg.Generation.MaxAttempts != 3 {
		t.Fatalf("generation defaults: got=%+v", cfg.Generation)
	}
	if cfg.Generation.Model != cfg.OpenAI.Model || cfg.OpenAI.Model == "" {
		t.Fatalf("model: generation=%q openai=%q", cfg.Generation.Model, cfg.OpenAI.Model)
	}
	if cfg.Storage.Enabled || cfg.Metrics.Addr != "" {
		t.Fatalf("optional sections should be off by default: %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
log:
  mode: prod
openai:
  model: gpt-4o
generation:
  max_attempts: 5
  base_delay: 250ms
  summary_max_chars: 3000
fetch:
  group_size: 4
redis:
  addr: localhost:6379
  ttl: 1h
storage:
  enabled: true
  mode: gcs_emulator
  emulator_host: http://fake-gcs:4443
`)
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("LLM_MAX_ATTEMPTS", "7")
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Mode != "prod" || cfg.OpenAI.Model != "gpt-4o" {
		t.Fatalf("file values: log=%q model=%q", cfg.Log.Mode, cfg.OpenAI.Model)
	}
	if cfg.Generation.MaxAttempts != 7 {
		t.Fatalf("env override: want=7 got=%d", cfg.Generation.MaxAttempts)
	}
	if cfg.Generation.BaseDelay != 250*time.Millisecond || cfg.Generation.SummaryMaxChars != 3000 {
		t.Fatalf("generation: got=%+v", cfg.Generation)
	}
	if cfg.Fetch.GroupSize != 4 || cfg.Redis.TTL != time.Hour {
		t.Fatalf("fetch=%+v redis=%+v", cfg.Fetch, cfg.Redis)
	}
	if cfg.Storage.Mode != gcp.StorageModeGCSEmulator || cfg.Storage.EmulatorHost != "http://fake-gcs:4443" {
		t.Fatalf("storage: got=%+v", cfg.Storage)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"bad yaml":    "generation: [",
		"bad ratio":   "safety:\n  lesson_drop_ratio: 1.5\n",
		"bad storage": "storage:\n  enabled: true\n  mode: s3\n",
	}
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "")
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, body))
			if apierr.KindOf(err) != apierr.KindConfig {
				t.Fatalf("want config_error got=%v", err)
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); apierr.KindOf(err) != apierr.KindConfig {
		t.Fatalf("missing file: want config_error got=%v", err)
	}
}
