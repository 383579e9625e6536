// Package logger builds the zap loggers used across shipsync.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // comma-separated sinks: stdout, stderr, or file paths
	TimeFormat string // Go time layout
}

// DefaultConfig returns a default configuration suitable for interactive use
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
}

// New creates a new zap logger with the given configuration.
// Every sink listed in Output receives every entry; a file that cannot be
// opened is an error.
func New(cfg *Config) (*zap.Logger, error) {
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = DefaultConfig().TimeFormat
	}

	level := parseLevel(cfg.Level)
	writer, err := createWriter(cfg.Output)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(createEncoder(cfg), writer, level)
	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

// parseLevel converts a string level to zapcore.Level
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// createEncoder creates the appropriate encoder based on format
func createEncoder(cfg *Config) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(cfg.TimeFormat),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if cfg.Format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}

	return zapcore.NewJSONEncoder(encoderConfig)
}

// createWriter combines the configured sinks into one synced writer
func createWriter(output string) (zapcore.WriteSyncer, error) {
	sinks := make([]zapcore.WriteSyncer, 0, 2)
	for _, name := range strings.Split(output, ",") {
		name = strings.TrimSpace(name)
		switch strings.ToLower(name) {
		case "":
			continue
		case "stdout":
			sinks = append(sinks, zapcore.AddSync(os.Stdout))
		case "stderr":
			sinks = append(sinks, zapcore.AddSync(os.Stderr))
		default:
			file, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, fmt.Errorf("logger: open %s: %w", name, err)
			}
			sinks = append(sinks, zapcore.AddSync(file))
		}
	}

	switch len(sinks) {
	case 0:
		return zapcore.AddSync(os.Stdout), nil
	case 1:
		return sinks[0], nil
	default:
		return zapcore.NewMultiWriteSyncer(sinks...), nil
	}
}
