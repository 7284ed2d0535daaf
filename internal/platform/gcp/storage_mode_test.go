package gcp

import (
	"testing"

	"github.com/yungbote/coursegen/internal/platform/apierr"
)

func TestStorageConfigFromEnvDefaultGCS(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "")

	cfg, err := StorageConfigFromEnv(StorageConfig{})
	if err != nil {
		t.Fatalf("StorageConfigFromEnv: %v", err)
	}
	if cfg.Mode != StorageModeGCS || cfg.CompatibilityFallback {
		t.Fatalf("mode: want=%q got=%q fallback=%v", StorageModeGCS, cfg.Mode, cfg.CompatibilityFallback)
	}
}

func TestStorageConfigFromEnvCompatibilityFallback(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443")

	cfg, err := StorageConfigFromEnv(StorageConfig{})
	if err != nil {
		t.Fatalf("StorageConfigFromEnv: %v", err)
	}
	if cfg.Mode != StorageModeGCSEmulator || !cfg.CompatibilityFallback {
		t.Fatalf("mode: want=%q got=%q fallback=%v", StorageModeGCSEmulator, cfg.Mode, cfg.CompatibilityFallback)
	}
}

func TestStorageConfigRejectsBadValues(t *testing.T) {
	cases := []StorageConfig{
		{Mode: "s3"},
		{Mode: StorageModeGCSEmulator},
		{Mode: StorageModeGCSEmulator, EmulatorHost: "fake-gcs:4443"},
	}
	for _, cfg := range cases {
		err := ValidateStorageConfig(cfg)
		if apierr.KindOf(err) != apierr.KindConfig {
			t.Fatalf("%+v: want config_error got=%v", cfg, err)
		}
	}
}
