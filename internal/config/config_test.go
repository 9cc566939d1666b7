package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phantommesh/dsv/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Metrics.Addr != ":9300" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9300")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	if cfg.Vault.MaxSessionAge != time.Hour {
		t.Errorf("Vault.MaxSessionAge = %v, want %v", cfg.Vault.MaxSessionAge, time.Hour)
	}

	if cfg.Vault.MaxFragmentAge != 30*time.Second {
		t.Errorf("Vault.MaxFragmentAge = %v, want %v", cfg.Vault.MaxFragmentAge, 30*time.Second)
	}

	if cfg.Vault.MaxDelay != 5*time.Second {
		t.Errorf("Vault.MaxDelay = %v, want %v", cfg.Vault.MaxDelay, 5*time.Second)
	}

	if cfg.Vault.CryptoRotationInterval != 5*time.Minute {
		t.Errorf("Vault.CryptoRotationInterval = %v, want %v", cfg.Vault.CryptoRotationInterval, 5*time.Minute)
	}

	if cfg.Vault.FragmentOverlapBytes != 50 {
		t.Errorf("Vault.FragmentOverlapBytes = %d, want %d", cfg.Vault.FragmentOverlapBytes, 50)
	}

	if cfg.Vault.MaxFragmentSize != 1400 {
		t.Errorf("Vault.MaxFragmentSize = %d, want %d", cfg.Vault.MaxFragmentSize, 1400)
	}

	if cfg.Vault.MaxQueueSize != 4096 {
		t.Errorf("Vault.MaxQueueSize = %d, want %d", cfg.Vault.MaxQueueSize, 4096)
	}

	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
metrics:
  addr: ":9400"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
vault:
  max_session_age: "2h"
  max_fragment_age: "45s"
  max_delay: "2s"
  crypto_rotation_interval: "10m"
  fragment_overlap_bytes: 75
  max_fragment_size: 1200
  max_queue_size: 8192
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9400" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9400")
	}

	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}

	if cfg.Vault.MaxSessionAge != 2*time.Hour {
		t.Errorf("Vault.MaxSessionAge = %v, want %v", cfg.Vault.MaxSessionAge, 2*time.Hour)
	}

	if cfg.Vault.MaxFragmentAge != 45*time.Second {
		t.Errorf("Vault.MaxFragmentAge = %v, want %v", cfg.Vault.MaxFragmentAge, 45*time.Second)
	}

	if cfg.Vault.FragmentOverlapBytes != 75 {
		t.Errorf("Vault.FragmentOverlapBytes = %d, want %d", cfg.Vault.FragmentOverlapBytes, 75)
	}

	if cfg.Vault.MaxQueueSize != 8192 {
		t.Errorf("Vault.MaxQueueSize = %d, want %d", cfg.Vault.MaxQueueSize, 8192)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override metrics.addr and log.level.
	// Everything else should inherit from defaults.
	yamlContent := `
metrics:
  addr: ":9500"
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9500" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9500")
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}

	if cfg.Vault.MaxSessionAge != time.Hour {
		t.Errorf("Vault.MaxSessionAge = %v, want default %v", cfg.Vault.MaxSessionAge, time.Hour)
	}

	if cfg.Vault.MaxQueueSize != 4096 {
		t.Errorf("Vault.MaxQueueSize = %d, want default %d", cfg.Vault.MaxQueueSize, 4096)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty metrics addr",
			modify: func(cfg *config.Config) {
				cfg.Metrics.Addr = ""
			},
			wantErr: config.ErrEmptyMetricsAddr,
		},
		{
			name: "zero max session age",
			modify: func(cfg *config.Config) {
				cfg.Vault.MaxSessionAge = 0
			},
			wantErr: config.ErrInvalidMaxSessionAge,
		},
		{
			name: "negative max fragment age",
			modify: func(cfg *config.Config) {
				cfg.Vault.MaxFragmentAge = -time.Second
			},
			wantErr: config.ErrInvalidMaxFragmentAge,
		},
		{
			name: "zero max delay",
			modify: func(cfg *config.Config) {
				cfg.Vault.MaxDelay = 0
			},
			wantErr: config.ErrInvalidMaxDelay,
		},
		{
			name: "zero crypto rotation interval",
			modify: func(cfg *config.Config) {
				cfg.Vault.CryptoRotationInterval = 0
			},
			wantErr: config.ErrInvalidCryptoRotationInterval,
		},
		{
			name: "negative fragment overlap bytes",
			modify: func(cfg *config.Config) {
				cfg.Vault.FragmentOverlapBytes = -1
			},
			wantErr: config.ErrInvalidFragmentOverlapBytes,
		},
		{
			name: "zero max queue size",
			modify: func(cfg *config.Config) {
				cfg.Vault.MaxQueueSize = 0
			},
			wantErr: config.ErrInvalidMaxQueueSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	// Environment variable tests cannot be parallel because they modify
	// process-wide state (os.Setenv).

	yamlContent := `
metrics:
  addr: ":9300"
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("DSVD_METRICS_ADDR", ":9600")
	t.Setenv("DSVD_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9600" {
		t.Errorf("Metrics.Addr = %q, want %q (from env)", cfg.Metrics.Addr, ":9600")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := config.ParseLogLevel(tt.input); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "dsvd.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
