// Package telemetry turns a small logging configuration struct into a ready
// *zap.Logger, replacing the original MAC's global mutable debug level with
// an explicit handle threaded through every component's constructor.
package telemetry

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig describes how components should log. It is the single
// config struct components accept in place of a package-level logger.
type LoggingConfig struct {
	// Level is zap's textual level: "debug", "info", "warn", "error".
	Level string
	// Development selects zap's human-readable console encoder over the
	// structured JSON production encoder.
	Development bool
}

// DefaultLoggingConfig matches the original MAC's default debug level of 1
// (informational), rendered as zap's "info" level.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{Level: "info", Development: false}
}

// NewLogger builds a *zap.Logger from cfg. Invalid levels fall back to info
// rather than failing construction, since a malformed --log-level flag
// should not prevent the MAC from starting.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	if cfg.Development {
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		return zcfg.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core), nil
}

// MustNewLogger is NewLogger for call sites that treat a broken logging
// setup as fatal.
func MustNewLogger(cfg LoggingConfig) *zap.Logger {
	logger, err := NewLogger(cfg)
	if err != nil {
		panic(fmt.Sprintf("telemetry: %v", err))
	}
	return logger
}
