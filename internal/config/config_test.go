package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/verdict/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestLoad_FromFile(t *testing.T) {
	cfgPath := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000

oracle:
  symbol: ETH
  providers: [okx, binance]
  max_quote_age: 90s

ledger:
  type: redis
  redis:
    addr: "redis:6379"

engine:
  cycle_timeout: 30s
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Oracle.Symbol != "ETH" {
		t.Errorf("expected symbol ETH, got %s", cfg.Oracle.Symbol)
	}
	if len(cfg.Oracle.Providers) != 2 || cfg.Oracle.Providers[0] != "okx" {
		t.Errorf("expected providers [okx binance], got %v", cfg.Oracle.Providers)
	}
	if cfg.Oracle.MaxQuoteAge != 90*time.Second {
		t.Errorf("expected max_quote_age 90s, got %s", cfg.Oracle.MaxQuoteAge)
	}
	if cfg.Ledger.Type != "redis" || cfg.Ledger.Redis.Addr != "redis:6379" {
		t.Errorf("unexpected ledger config %+v", cfg.Ledger)
	}
	if cfg.Engine.CycleTimeout != 30*time.Second {
		t.Errorf("expected cycle_timeout 30s, got %s", cfg.Engine.CycleTimeout)
	}

	// Keys absent from the file keep their defaults
	if cfg.Engine.RetentionDays != 90 {
		t.Errorf("expected default retention_days 90, got %d", cfg.Engine.RetentionDays)
	}
	if cfg.Ledger.Redis.Key != "verdict:ledger" {
		t.Errorf("expected default redis key, got %s", cfg.Ledger.Redis.Key)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	cfgPath := writeConfig(t, `
server:
  port: 9000
`)
	t.Setenv("VERDICT_SERVER_PORT", "9100")
	t.Setenv("VERDICT_ENGINE_MAX_RETRIES", "7")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("expected env port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Engine.MaxRetries != 7 {
		t.Errorf("expected env max_retries 7, got %d", cfg.Engine.MaxRetries)
	}
}

func TestLoad_ExpandsVariables(t *testing.T) {
	cfgPath := writeConfig(t, `
server:
  api_key: "${TEST_VERDICT_KEY}"
ledger:
  type: s3
  s3:
    bucket: "calls-${TEST_VERDICT_ENV}"
`)
	t.Setenv("TEST_VERDICT_KEY", "secret")
	t.Setenv("TEST_VERDICT_ENV", "prod")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.APIKey != "secret" {
		t.Errorf("expected api key from env, got %q", cfg.Server.APIKey)
	}
	if cfg.Ledger.S3.Bucket != "calls-prod" {
		t.Errorf("expected bucket calls-prod, got %q", cfg.Ledger.S3.Bucket)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected CONFIG_INVALID, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("TEST_VERDICT_DOTENV=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_VERDICT_DOTENV", "")
	os.Unsetenv("TEST_VERDICT_DOTENV")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), envPath); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("TEST_VERDICT_DOTENV"); got != "from-file" {
		t.Errorf("expected from-file, got %q", got)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Engine.CycleTimeout != 45*time.Second {
		t.Errorf("expected default cycle_timeout 45s, got %s", cfg.Engine.CycleTimeout)
	}
	if cfg.Engine.RetentionWindow() != 90*24*time.Hour {
		t.Errorf("expected 90 day retention window, got %s", cfg.Engine.RetentionWindow())
	}
	if cfg.Ledger.File != "signals.json" {
		t.Errorf("expected default ledger file signals.json, got %s", cfg.Ledger.File)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func(mut func(*Config)) Config {
		cfg := *Defaults()
		mut(&cfg)
		return cfg
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr *core.Error
	}{
		{
			name: "valid config",
			cfg:  valid(func(*Config) {}),
		},
		{
			name:    "invalid port - zero",
			cfg:     valid(func(c *Config) { c.Server.Port = 0 }),
			wantErr: core.ErrConfigInvalid,
		},
		{
			name:    "invalid port - too high",
			cfg:     valid(func(c *Config) { c.Server.Port = 70000 }),
			wantErr: core.ErrConfigInvalid,
		},
		{
			name:    "missing symbol",
			cfg:     valid(func(c *Config) { c.Oracle.Symbol = "" }),
			wantErr: core.ErrConfigMissing,
		},
		{
			name:    "unknown provider",
			cfg:     valid(func(c *Config) { c.Oracle.Providers = []string{"kraken"} }),
			wantErr: core.ErrConfigInvalid,
		},
		{
			name:    "s3 ledger without bucket",
			cfg:     valid(func(c *Config) { c.Ledger.Type = "s3" }),
			wantErr: core.ErrConfigMissing,
		},
		{
			name: "redis ledger without addr",
			cfg: valid(func(c *Config) {
				c.Ledger.Type = "redis"
				c.Ledger.Redis.Addr = ""
			}),
			wantErr: core.ErrConfigMissing,
		},
		{
			name: "memory ledger",
			cfg:  valid(func(c *Config) { c.Ledger.Type = "memory" }),
		},
		{
			name:    "unknown ledger type",
			cfg:     valid(func(c *Config) { c.Ledger.Type = "postgres" }),
			wantErr: core.ErrConfigInvalid,
		},
		{
			name:    "localfs archive without path",
			cfg:     valid(func(c *Config) { c.Archive.Type = "localfs" }),
			wantErr: core.ErrConfigMissing,
		},
		{
			name:    "unknown archive type",
			cfg:     valid(func(c *Config) { c.Archive.Type = "tape" }),
			wantErr: core.ErrConfigInvalid,
		},
		{
			name:    "zero retention",
			cfg:     valid(func(c *Config) { c.Engine.RetentionDays = 0 }),
			wantErr: core.ErrConfigInvalid,
		},
		{
			name:    "negative retries",
			cfg:     valid(func(c *Config) { c.Engine.MaxRetries = -1 }),
			wantErr: core.ErrConfigInvalid,
		},
		{
			name:    "bad schedule",
			cfg:     valid(func(c *Config) { c.Scheduler.Spec = "every now and then" }),
			wantErr: core.ErrConfigInvalid,
		},
		{
			name: "bad schedule ignored when disabled",
			cfg: valid(func(c *Config) {
				c.Scheduler.Enabled = false
				c.Scheduler.Spec = "every now and then"
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %s", err, tt.wantErr.Code)
			}
		})
	}
}
