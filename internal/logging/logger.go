// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

// Package logging provides the gateway's narrow logging abstraction.
//
// Every component threads a Logger through its constructor instead of
// reaching for a process-wide logger, so that tests can supply a no-op or
// buffering implementation without touching global state.
package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the logging contract used across the gateway. It intentionally
// exposes only printf-style and structured-keyval helpers plus a single
// timing helper — components should not need anything richer than this.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// Warnw logs a warning with structured key/value pairs, e.g.
	// Warnw("dropping frame", "session", id, "reason", "pipeline not ready").
	Warnw(msg string, keysAndValues ...interface{})

	// Benchmark records how long a named operation took. Implementations
	// should log at debug level; callers use it the way the teacher uses
	// commons.Logger.Benchmark around provider initialization.
	Benchmark(operation string, d time.Duration)

	// With returns a derived Logger that tags every subsequent line with
	// the given key/value pairs (e.g. session id, device MAC).
	With(keysAndValues ...interface{}) Logger
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// Config controls where and how log output is written.
type Config struct {
	Level      string // debug|info|warn|error
	FilePath   string // empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Console    bool
}

// New builds a Logger backed by zap, optionally rotating file output
// through lumberjack, mirroring the teacher's production logging setup.
func New(cfg Config) (Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	var cores []zapcore.Core
	if cfg.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 14),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}
	if cfg.Console || cfg.FilePath == "" {
		consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.Lock(zapcore.AddSync(stdout{})), level))
	}

	core := zapcore.NewTee(cores...)
	base := zap.New(core, zap.AddCaller())
	return &zapLogger{sugar: base.Sugar()}, nil
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

// stdout satisfies io.Writer by writing to the standard zap console sink.
type stdout struct{}

func (stdout) Write(p []byte) (int, error) {
	return fmt.Print(string(p))
}

func (l *zapLogger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *zapLogger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *zapLogger) Warnf(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *zapLogger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

func (l *zapLogger) Warnw(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *zapLogger) Benchmark(operation string, d time.Duration) {
	l.sugar.Debugf("%s took %s", operation, d)
}

func (l *zapLogger) With(keysAndValues ...interface{}) Logger {
	return &zapLogger{sugar: l.sugar.With(keysAndValues...)}
}

// NewNop returns a Logger that discards all output, for tests.
func NewNop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}
