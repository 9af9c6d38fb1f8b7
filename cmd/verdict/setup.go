package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/newthinker/verdict/internal/app"
	"github.com/newthinker/verdict/internal/config"
	"github.com/newthinker/verdict/internal/logger"
	"go.uber.org/zap"
)

// loadConfig reads the dotenv file, then the config file or defaults.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	opts := logger.Options{
		Development: debug || cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	}
	if debug {
		opts.Level = "debug"
	}
	return logger.NewWithOptions(opts)
}

// build loads configuration and wires the application.
func build() (*app.App, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}
	a, err := app.New(cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
