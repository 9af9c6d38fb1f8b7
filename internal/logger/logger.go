package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	Development bool
	Level       string // "debug", "info", "warn", "error"; empty keeps the preset
	Encoding    string // "json" or "console"; empty keeps the preset
}

// New creates a new zap logger
func New(development bool) (*zap.Logger, error) {
	return NewWithOptions(Options{Development: development})
}

// NewWithOptions creates a zap logger with an explicit level and encoding.
func NewWithOptions(opts Options) (*zap.Logger, error) {
	var cfg zap.Config

	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if opts.Level != "" {
		lvl, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("parsing log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	if opts.Encoding != "" {
		cfg.Encoding = opts.Encoding
	}

	return cfg.Build()
}

// Must creates a logger or panics
func Must(development bool) *zap.Logger {
	log, err := New(development)
	if err != nil {
		panic(err)
	}
	return log
}
