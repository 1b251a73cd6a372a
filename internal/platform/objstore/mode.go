package objstore

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/machine-maintenance-backend/internal/platform/envutil"
)

type Mode string

const (
	ModeLocal       Mode = "local"
	ModeGCS         Mode = "gcs"
	ModeGCSEmulator Mode = "gcs_emulator"
	ModeS3          Mode = "s3"
)

// Config is the resolved OBJECT_STORAGE_MODE plus the settings that mode needs.
type Config struct {
	Mode                  Mode
	LocalDir              string
	GCSBucket             string
	EmulatorHost          string
	S3Endpoint            string
	S3Bucket              string
	S3AccessKey           string
	S3SecretKey           string
	S3UseSSL              bool
	CompatibilityFallback bool
}

func (cfg Config) IsEmulatorMode() bool { return cfg.Mode == ModeGCSEmulator }

func (cfg Config) ModeSource() string {
	if cfg.CompatibilityFallback {
		return "compatibility_fallback"
	}
	return "explicit_or_default"
}

type ConfigErrorCode string

const (
	ConfigErrorInvalidMode         ConfigErrorCode = "invalid_mode"
	ConfigErrorMissingSetting      ConfigErrorCode = "missing_setting"
	ConfigErrorInvalidEmulatorHost ConfigErrorCode = "invalid_emulator_host"
)

type ConfigError struct {
	Code    ConfigErrorCode
	Mode    string
	Setting string
	Value   string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid object storage config"
	}
	switch e.Code {
	case ConfigErrorInvalidMode:
		return fmt.Sprintf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q, %q, %q)", e.Mode, ModeLocal, ModeGCS, ModeGCSEmulator, ModeS3)
	case ConfigErrorMissingSetting:
		return fmt.Sprintf("OBJECT_STORAGE_MODE=%q requires %s to be set", e.Mode, e.Setting)
	case ConfigErrorInvalidEmulatorHost:
		return fmt.Sprintf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", e.Value)
	default:
		return "invalid object storage config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ResolveConfigFromEnv reads OBJECT_STORAGE_MODE. An empty mode means
// gcs_emulator when STORAGE_EMULATOR_HOST is set and local otherwise.
func ResolveConfigFromEnv() (Config, error) {
	cfg := Config{
		LocalDir:     envutil.String("SHARD_LOCAL_DIR", "./data/shards"),
		GCSBucket:    envutil.String("SHARD_GCS_BUCKET", ""),
		EmulatorHost: envutil.String("STORAGE_EMULATOR_HOST", ""),
		S3Endpoint:   envutil.String("S3_ENDPOINT", ""),
		S3Bucket:     envutil.String("S3_BUCKET", ""),
		S3AccessKey:  envutil.String("S3_ACCESS_KEY", ""),
		S3SecretKey:  envutil.String("S3_SECRET_KEY", ""),
		S3UseSSL:     envutil.Bool("S3_USE_SSL", false),
	}
	raw := envutil.String("OBJECT_STORAGE_MODE", "")
	switch mode := Mode(strings.ToLower(raw)); mode {
	case "":
		if cfg.EmulatorHost != "" {
			cfg.Mode = ModeGCSEmulator
			cfg.CompatibilityFallback = true
		} else {
			cfg.Mode = ModeLocal
		}
	case ModeLocal, ModeGCS, ModeGCSEmulator, ModeS3:
		cfg.Mode = mode
	default:
		return cfg, &ConfigError{Code: ConfigErrorInvalidMode, Mode: raw}
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	missing := func(setting string) error {
		return &ConfigError{Code: ConfigErrorMissingSetting, Mode: string(cfg.Mode), Setting: setting}
	}
	switch cfg.Mode {
	case ModeLocal:
		if cfg.LocalDir == "" {
			return missing("SHARD_LOCAL_DIR")
		}
	case ModeGCS:
		if cfg.GCSBucket == "" {
			return missing("SHARD_GCS_BUCKET")
		}
	case ModeGCSEmulator:
		if cfg.GCSBucket == "" {
			return missing("SHARD_GCS_BUCKET")
		}
		if cfg.EmulatorHost == "" {
			return missing("STORAGE_EMULATOR_HOST")
		}
		u, err := url.Parse(cfg.EmulatorHost)
		if err != nil || strings.TrimSpace(u.Scheme) == "" || strings.TrimSpace(u.Host) == "" {
			return &ConfigError{Code: ConfigErrorInvalidEmulatorHost, Mode: string(cfg.Mode), Value: cfg.EmulatorHost, Cause: err}
		}
	case ModeS3:
		if cfg.S3Endpoint == "" {
			return missing("S3_ENDPOINT")
		}
		if cfg.S3Bucket == "" {
			return missing("S3_BUCKET")
		}
	default:
		return &ConfigError{Code: ConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
	return nil
}
