// Package config manages the DSV demo daemon's configuration using
// koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete dsvd configuration.
type Config struct {
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Vault   VaultConfig   `koanf:"vault"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9300").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// VaultConfig holds the DSV Vault's tunables, as named in the produced
// interface's configuration options.
type VaultConfig struct {
	// MaxSessionAge is how long after its creation a session is replaced
	// or evicted by the Background Maintainer, regardless of activity.
	MaxSessionAge time.Duration `koanf:"max_session_age"`

	// MaxFragmentAge is how long a reassembly bin waits for its
	// remaining fragments before eviction.
	MaxFragmentAge time.Duration `koanf:"max_fragment_age"`

	// MaxDelay bounds the scheduled release delay assigned to a
	// fragment.
	MaxDelay time.Duration `koanf:"max_delay"`

	// CryptoRotationInterval is how long an AEAD key stays active before
	// rotation.
	CryptoRotationInterval time.Duration `koanf:"crypto_rotation_interval"`

	// FragmentOverlapBytes is the overlap-prefix size prepended to every
	// fragment but the first.
	FragmentOverlapBytes int `koanf:"fragment_overlap_bytes"`

	// MaxFragmentSize is passed through to the Vault's configuration; the
	// Fragmenter does not consult it and splits packets of any length.
	MaxFragmentSize int `koanf:"max_fragment_size"`

	// MaxQueueSize bounds the Delay Queue's outstanding fragment count.
	MaxQueueSize int `koanf:"max_queue_size"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults, matching
// the produced interface's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Metrics: MetricsConfig{
			Addr: ":9300",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Vault: VaultConfig{
			MaxSessionAge:          1 * time.Hour,
			MaxFragmentAge:         30 * time.Second,
			MaxDelay:               5 * time.Second,
			CryptoRotationInterval: 5 * time.Minute,
			FragmentOverlapBytes:   50,
			MaxFragmentSize:        1400,
			MaxQueueSize:           4096,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for DSV configuration.
// Variables are named DSVD_<section>_<key>, e.g., DSVD_METRICS_ADDR.
const envPrefix = "DSVD_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (DSVD_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	DSVD_METRICS_ADDR             -> metrics.addr
//	DSVD_METRICS_PATH             -> metrics.path
//	DSVD_LOG_LEVEL                -> log.level
//	DSVD_LOG_FORMAT               -> log.format
//	DSVD_VAULT_MAX_SESSION_AGE    -> vault.max_session_age
//	DSVD_VAULT_MAX_FRAGMENT_AGE   -> vault.max_fragment_age
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms DSVD_VAULT_MAX_DELAY -> vault.max_delay.
// Strips the DSVD_ prefix, lowercases, and replaces the section/key
// separator underscore with a dot while leaving multi-word keys intact.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)

	section, key, found := strings.Cut(s, "_")
	if !found {
		return s
	}

	return section + "." + key
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"metrics.addr":                  defaults.Metrics.Addr,
		"metrics.path":                  defaults.Metrics.Path,
		"log.level":                     defaults.Log.Level,
		"log.format":                    defaults.Log.Format,
		"vault.max_session_age":         defaults.Vault.MaxSessionAge.String(),
		"vault.max_fragment_age":        defaults.Vault.MaxFragmentAge.String(),
		"vault.max_delay":               defaults.Vault.MaxDelay.String(),
		"vault.crypto_rotation_interval": defaults.Vault.CryptoRotationInterval.String(),
		"vault.fragment_overlap_bytes":  defaults.Vault.FragmentOverlapBytes,
		"vault.max_fragment_size":       defaults.Vault.MaxFragmentSize,
		"vault.max_queue_size":          defaults.Vault.MaxQueueSize,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyMetricsAddr indicates the metrics listen address is empty.
	ErrEmptyMetricsAddr = errors.New("metrics.addr must not be empty")

	// ErrInvalidMaxSessionAge indicates vault.max_session_age is not
	// positive.
	ErrInvalidMaxSessionAge = errors.New("vault.max_session_age must be > 0")

	// ErrInvalidMaxFragmentAge indicates vault.max_fragment_age is not
	// positive.
	ErrInvalidMaxFragmentAge = errors.New("vault.max_fragment_age must be > 0")

	// ErrInvalidMaxDelay indicates vault.max_delay is not positive.
	ErrInvalidMaxDelay = errors.New("vault.max_delay must be > 0")

	// ErrInvalidCryptoRotationInterval indicates
	// vault.crypto_rotation_interval is not positive.
	ErrInvalidCryptoRotationInterval = errors.New("vault.crypto_rotation_interval must be > 0")

	// ErrInvalidFragmentOverlapBytes indicates
	// vault.fragment_overlap_bytes is negative.
	ErrInvalidFragmentOverlapBytes = errors.New("vault.fragment_overlap_bytes must be >= 0")

	// ErrInvalidMaxQueueSize indicates vault.max_queue_size is not
	// positive.
	ErrInvalidMaxQueueSize = errors.New("vault.max_queue_size must be > 0")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Metrics.Addr == "" {
		return ErrEmptyMetricsAddr
	}

	if cfg.Vault.MaxSessionAge <= 0 {
		return ErrInvalidMaxSessionAge
	}

	if cfg.Vault.MaxFragmentAge <= 0 {
		return ErrInvalidMaxFragmentAge
	}

	if cfg.Vault.MaxDelay <= 0 {
		return ErrInvalidMaxDelay
	}

	if cfg.Vault.CryptoRotationInterval <= 0 {
		return ErrInvalidCryptoRotationInterval
	}

	if cfg.Vault.FragmentOverlapBytes < 0 {
		return ErrInvalidFragmentOverlapBytes
	}

	if cfg.Vault.MaxQueueSize <= 0 {
		return ErrInvalidMaxQueueSize
	}

	return nil
}

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
