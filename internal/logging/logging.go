// Package logging builds the single zap.Logger threaded through the CLI
// entry point into the components that log (agentcli, moderator, hooks,
// executor) (spec §6.1, §6.5).
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the logger's verbosity and output destination.
type Config struct {
	Verbose    bool
	OutputPath string // stdout, stderr, or a file path
}

// New builds a *zap.Logger: console-encoded and human-readable at debug
// level when Verbose, JSON-encoded at info level otherwise (the orchestrator
// runs both interactively and as a hook subprocess, where structured JSON
// logs are easier to grep out of audit logs).
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	encoding := "json"
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Verbose {
		level = zapcore.DebugLevel
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	outputPath := cfg.OutputPath
	if outputPath == "" {
		outputPath = "stderr"
	}

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Verbose,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{outputPath},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zcfg.Build()
}

// Nop returns a no-op logger, used by callers (tests, library consumers)
// that don't want orchestrator log output.
func Nop() *zap.Logger {
	return zap.NewNop()
}
