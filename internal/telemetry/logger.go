// Package telemetry builds the component-scoped zap logger shared across
// the sync engine.
package telemetry

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StartupConfig carries the fields logged exactly once at boot.
type StartupConfig struct {
	Component      string
	Version        string
	Environment    string
	VoucherWorkers int
	ChunkMonths    int
}

// NewLogger builds a *zap.Logger for the given environment ("production"
// or anything else for development-mode console output), scoped with a
// fixed "component" field so every downstream log line is attributable.
func NewLogger(component, environment string) (*zap.Logger, error) {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		var zl zapcore.Level
		if err := zl.UnmarshalText([]byte(lvl)); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(zl)
		}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("component", component)), nil
}

// LogStartup emits a single structured startup line.
func LogStartup(logger *zap.Logger, cfg StartupConfig) {
	logger.Info("starting tally sync engine",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment),
		zap.Int("voucher_workers", cfg.VoucherWorkers),
		zap.Int("chunk_months", cfg.ChunkMonths),
	)
}
