package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/newthinker/verdict/internal/core"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. VERDICT_SERVER_PORT.
const EnvPrefix = "VERDICT"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	APIKey  string        `mapstructure:"api_key"`
	MaxRuns int           `mapstructure:"max_runs"`
	RunTTL  time.Duration `mapstructure:"run_ttl"`
}

type OracleConfig struct {
	Symbol          string        `mapstructure:"symbol"`
	DefaultQuote    string        `mapstructure:"default_quote"`
	Providers       []string      `mapstructure:"providers"`
	Interval        string        `mapstructure:"interval"`
	MaxQuoteAge     time.Duration `mapstructure:"max_quote_age"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RequestsPerSec  float64       `mapstructure:"requests_per_sec"`
	MaxRetries      int           `mapstructure:"max_retries"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
	CoinGeckoAPIKey string        `mapstructure:"coingecko_api_key"`
}

// LedgerConfig selects where the call ledger document lives.
type LedgerConfig struct {
	Type  string      `mapstructure:"type"` // "localfs", "s3", "redis" or "memory"
	Path  string      `mapstructure:"path"` // directory for localfs
	File  string      `mapstructure:"file"` // document name inside Path or the bucket
	S3    S3Config    `mapstructure:"s3"`
	Redis RedisConfig `mapstructure:"redis"`
}

// ArchiveConfig selects where purged calls are written.
type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "none", "localfs" or "s3"
	Path string   `mapstructure:"path"`
	S3   S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

type EngineConfig struct {
	CycleTimeout  time.Duration `mapstructure:"cycle_timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetentionDays int           `mapstructure:"retention_days"`
}

// SchedulerConfig controls the periodic resolution trigger used by serve.
type SchedulerConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Spec       string `mapstructure:"spec"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// LoadDotEnv loads KEY=VALUE files into the process environment. Missing
// files are ignored and variables already set are kept.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from file. An empty path uses defaults and
// environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("reading config: %w", err))
		}
	}

	// Expand ${VAR} references in string values
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if ok && strings.Contains(val, "${") {
			v.Set(key, os.ExpandEnv(val))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys the file omits.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.api_key", d.Server.APIKey)
	v.SetDefault("server.max_runs", d.Server.MaxRuns)
	v.SetDefault("server.run_ttl", d.Server.RunTTL)

	v.SetDefault("oracle.symbol", d.Oracle.Symbol)
	v.SetDefault("oracle.default_quote", d.Oracle.DefaultQuote)
	v.SetDefault("oracle.providers", d.Oracle.Providers)
	v.SetDefault("oracle.interval", d.Oracle.Interval)
	v.SetDefault("oracle.max_quote_age", d.Oracle.MaxQuoteAge)
	v.SetDefault("oracle.cache_ttl", d.Oracle.CacheTTL)
	v.SetDefault("oracle.timeout", d.Oracle.Timeout)
	v.SetDefault("oracle.requests_per_sec", d.Oracle.RequestsPerSec)
	v.SetDefault("oracle.max_retries", d.Oracle.MaxRetries)
	v.SetDefault("oracle.breaker_failures", d.Oracle.BreakerFailures)
	v.SetDefault("oracle.breaker_timeout", d.Oracle.BreakerTimeout)
	v.SetDefault("oracle.coingecko_api_key", d.Oracle.CoinGeckoAPIKey)

	v.SetDefault("ledger.type", d.Ledger.Type)
	v.SetDefault("ledger.path", d.Ledger.Path)
	v.SetDefault("ledger.file", d.Ledger.File)
	setS3Defaults(v, "ledger.s3", d.Ledger.S3)
	v.SetDefault("ledger.redis.addr", d.Ledger.Redis.Addr)
	v.SetDefault("ledger.redis.password", d.Ledger.Redis.Password)
	v.SetDefault("ledger.redis.db", d.Ledger.Redis.DB)
	v.SetDefault("ledger.redis.key", d.Ledger.Redis.Key)

	v.SetDefault("archive.type", d.Archive.Type)
	v.SetDefault("archive.path", d.Archive.Path)
	setS3Defaults(v, "archive.s3", d.Archive.S3)

	v.SetDefault("engine.cycle_timeout", d.Engine.CycleTimeout)
	v.SetDefault("engine.max_retries", d.Engine.MaxRetries)
	v.SetDefault("engine.retention_days", d.Engine.RetentionDays)

	v.SetDefault("scheduler.enabled", d.Scheduler.Enabled)
	v.SetDefault("scheduler.spec", d.Scheduler.Spec)
	v.SetDefault("scheduler.run_on_start", d.Scheduler.RunOnStart)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.development", d.Logging.Development)
}

func setS3Defaults(v *viper.Viper, prefix string, s S3Config) {
	v.SetDefault(prefix+".bucket", s.Bucket)
	v.SetDefault(prefix+".endpoint", s.Endpoint)
	v.SetDefault(prefix+".region", s.Region)
	v.SetDefault(prefix+".access_key", s.AccessKey)
	v.SetDefault(prefix+".secret_key", s.SecretKey)
	v.SetDefault(prefix+".prefix", s.Prefix)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			MaxRuns: 100,
			RunTTL:  24 * time.Hour,
		},
		Oracle: OracleConfig{
			Symbol:          "BTCUSDT",
			DefaultQuote:    "USDT",
			Providers:       []string{"binance", "okx", "coingecko"},
			Interval:        "1h",
			MaxQuoteAge:     5 * time.Minute,
			CacheTTL:        2 * time.Minute,
			Timeout:         10 * time.Second,
			RequestsPerSec:  5,
			MaxRetries:      2,
			BreakerFailures: 3,
			BreakerTimeout:  60 * time.Second,
		},
		Ledger: LedgerConfig{
			Type: "localfs",
			Path: "./data",
			File: "signals.json",
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "verdict:ledger",
			},
		},
		Archive: ArchiveConfig{
			Type: "none",
		},
		Engine: EngineConfig{
			CycleTimeout:  45 * time.Second,
			MaxRetries:    5,
			RetentionDays: 90,
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
			Spec:    "@every 15m",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxRuns < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_runs cannot be negative, got %d", c.Server.MaxRuns))
	}

	// Oracle validation
	if c.Oracle.Symbol == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("oracle symbol required"))
	}
	if c.Oracle.RequestsPerSec < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("requests_per_sec cannot be negative, got %f", c.Oracle.RequestsPerSec))
	}
	for _, p := range c.Oracle.Providers {
		switch p {
		case "binance", "okx", "coingecko":
		default:
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown price provider %q", p))
		}
	}

	// Ledger validation - each backend needs its own settings
	switch c.Ledger.Type {
	case "localfs":
		if c.Ledger.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("ledger path required when type is localfs"))
		}
	case "s3":
		if c.Ledger.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("ledger s3 bucket required when type is s3"))
		}
	case "redis":
		if c.Ledger.Redis.Addr == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("ledger redis addr required when type is redis"))
		}
	case "memory":
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown ledger type %q", c.Ledger.Type))
	}

	switch c.Archive.Type {
	case "", "none":
	case "localfs":
		if c.Archive.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("archive path required when type is localfs"))
		}
	case "s3":
		if c.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("archive s3 bucket required when type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown archive type %q", c.Archive.Type))
	}

	// Engine validation
	if c.Engine.CycleTimeout < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("cycle_timeout cannot be negative, got %s", c.Engine.CycleTimeout))
	}
	if c.Engine.MaxRetries < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_retries cannot be negative, got %d", c.Engine.MaxRetries))
	}
	if c.Engine.RetentionDays < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("retention_days must be at least 1, got %d", c.Engine.RetentionDays))
	}

	if c.Scheduler.Enabled {
		if _, err := cron.ParseStandard(c.Scheduler.Spec); err != nil {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("scheduler spec %q: %w", c.Scheduler.Spec, err))
		}
	}

	return nil
}

// RetentionWindow converts RetentionDays to a duration.
func (e EngineConfig) RetentionWindow() time.Duration {
	return time.Duration(e.RetentionDays) * 24 * time.Hour
}
