package gcp

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/coursegen/internal/platform/apierr"
	"github.com/yungbote/coursegen/internal/platform/envutil"
)

type StorageMode string

const (
	StorageModeGCS         StorageMode = "gcs"
	StorageModeGCSEmulator StorageMode = "gcs_emulator"
)

type StorageConfig struct {
	Mode         StorageMode `yaml:"mode"`
	EmulatorHost string      `yaml:"emulator_host"`
	// CompatibilityFallback is set when emulator mode was inferred from
	// STORAGE_EMULATOR_HOST alone.
	CompatibilityFallback bool `yaml:"-"`
}

func (cfg StorageConfig) IsEmulatorMode() bool { return cfg.Mode == StorageModeGCSEmulator }

// StorageConfigFromEnv overlays OBJECT_STORAGE_MODE and STORAGE_EMULATOR_HOST
// on base. An unset mode with an emulator host selects emulator mode.
func StorageConfigFromEnv(base StorageConfig) (StorageConfig, error) {
	cfg := base
	cfg.Mode = StorageMode(strings.ToLower(envutil.String("OBJECT_STORAGE_MODE", string(cfg.Mode))))
	cfg.EmulatorHost = envutil.String("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
	if cfg.Mode == "" {
		cfg.Mode = StorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = StorageModeGCSEmulator
			cfg.CompatibilityFallback = true
		}
	}
	return cfg, ValidateStorageConfig(cfg)
}

func ValidateStorageConfig(cfg StorageConfig) error {
	switch cfg.Mode {
	case StorageModeGCS:
		return nil
	case StorageModeGCSEmulator:
	default:
		return apierr.Newf(apierr.KindConfig, "gcp.storage_config",
			"invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)", cfg.Mode, StorageModeGCS, StorageModeGCSEmulator)
	}
	if cfg.EmulatorHost == "" {
		return apierr.Newf(apierr.KindConfig, "gcp.storage_config",
			"OBJECT_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST", StorageModeGCSEmulator)
	}
	u, err := url.Parse(cfg.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return apierr.New(apierr.KindConfig, "gcp.storage_config",
			fmt.Errorf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", cfg.EmulatorHost))
	}
	return nil
}
