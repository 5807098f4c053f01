// Package log wraps zap with context-aware logging. Every log call takes a
// context so that hooks can attach request-scoped fields (request id, the
// authenticated principal) to each entry.
package log

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the global logger.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `conf:"level" yaml:"level" json:"level"`
	// Format is "json" or "console".
	Format string `conf:"format" yaml:"format" json:"format"`
}

type Logger struct {
	zl    *zap.Logger
	hooks []Hook
}

var (
	globalMu sync.RWMutex
	global   = newLogger(Config{Level: "info", Format: "console"})
)

func newLogger(cfg Config) *Logger {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true

	if cfg.Format == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	zl, err := zc.Build(zap.AddCallerSkip(2))
	if err != nil {
		zl = zap.NewNop()
	}

	return &Logger{
		zl:    zl,
		hooks: []Hook{HookFunc(contextFields)},
	}
}

// SetGlobalConfig rebuilds the global logger from cfg.
func SetGlobalConfig(cfg Config) {
	globalMu.Lock()
	defer globalMu.Unlock()

	global = newLogger(cfg)
}

// GetGlobalLogger returns the current global logger.
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	return global
}

func (l *Logger) log(ctx context.Context, level zapcore.Level, msg string, fields ...Field) {
	for _, hook := range l.hooks {
		fields = append(fields, hook.Apply(ctx, msg)...)
	}

	if ce := l.zl.Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields...)
}

func Debug(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Debug(ctx, msg, fields...)
}

func Info(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Info(ctx, msg, fields...)
}

func Warn(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Warn(ctx, msg, fields...)
}

func Error(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Error(ctx, msg, fields...)
}
