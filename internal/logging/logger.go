// Package logging provides zap logger helpers.
package logging

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileSink describes an optional rotating log file written alongside the
// console output.
type FileSink struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	return NewWithFile(development, FileSink{})
}

// NewWithFile builds the logger and, when sink.Path is set, tees JSON entries
// into a lumberjack-rotated file.
func NewWithFile(development bool, sink FileSink) (*zap.Logger, error) {
	cfg := productionConfig()
	if development {
		cfg = developmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	if sink.Path == "" {
		return logger, nil
	}

	fileCore, err := newFileCore(sink, cfg.Level)
	if err != nil {
		return nil, err
	}
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}

func developmentConfig() zap.Config {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg
}

func productionConfig() zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	return cfg
}

func newFileCore(sink FileSink, level zap.AtomicLevel) (zapcore.Core, error) {
	if sink.MaxSizeMB < 0 || sink.MaxBackups < 0 || sink.MaxAgeDays < 0 {
		return nil, errors.New("log file rotation limits must not be negative")
	}
	writer := &lumberjack.Logger{
		Filename:   sink.Path,
		MaxSize:    sink.MaxSizeMB,
		MaxBackups: sink.MaxBackups,
		MaxAge:     sink.MaxAgeDays,
		Compress:   true,
	}
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(writer), level), nil
}
