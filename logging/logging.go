// Package logging adapts structured logging backends to core.Logger.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Swind/go-task-manager/core"
)

// Backend names accepted by New.
const (
	BackendStd    = "std"
	BackendSlog   = "slog"
	BackendLogrus = "logrus"
	BackendZap    = "zap"
	BackendNone   = "none"
)

// New builds a logger for the named backend writing to stderr at the given level
// (debug, info, warn, error).
func New(backend, level string) (core.Logger, error) {
	switch strings.ToLower(backend) {
	case "", BackendStd:
		lvl, err := core.ParseLogLevel(level)
		if err != nil {
			return nil, err
		}
		return core.NewLeveledLogger(os.Stderr, lvl), nil
	case BackendNone:
		return core.NewNoOpLogger(), nil
	case BackendSlog:
		lvl, err := parseSlogLevel(level)
		if err != nil {
			return nil, err
		}
		h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
		return NewSlog(slog.New(h)), nil
	case BackendLogrus:
		lvl, err := logrus.ParseLevel(levelOrDefault(level))
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		l := logrus.New()
		l.SetOutput(os.Stderr)
		l.SetLevel(lvl)
		l.SetFormatter(&logrus.JSONFormatter{})
		return NewLogrus(l), nil
	case BackendZap:
		lvl, err := zapcore.ParseLevel(levelOrDefault(level))
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		l, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("logging: build zap logger: %w", err)
		}
		return NewZap(l), nil
	default:
		return nil, fmt.Errorf("logging: unknown backend %q", backend)
	}
}

func levelOrDefault(level string) string {
	if level == "" {
		return "info"
	}
	return strings.ToLower(level)
}

func parseSlogLevel(level string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(levelOrDefault(level))); err != nil {
		return 0, fmt.Errorf("logging: %w", err)
	}
	return lvl, nil
}

// =============================================================================
// logrus
// =============================================================================

// Logrus writes through a logrus.FieldLogger.
type Logrus struct {
	l logrus.FieldLogger
}

func NewLogrus(l logrus.FieldLogger) *Logrus {
	return &Logrus{l: l}
}

func (a *Logrus) Debug(msg string, fields ...core.Field) { a.entry(fields).Debug(msg) }
func (a *Logrus) Info(msg string, fields ...core.Field)  { a.entry(fields).Info(msg) }
func (a *Logrus) Warn(msg string, fields ...core.Field)  { a.entry(fields).Warn(msg) }
func (a *Logrus) Error(msg string, fields ...core.Field) { a.entry(fields).Error(msg) }

func (a *Logrus) entry(fields []core.Field) logrus.FieldLogger {
	if len(fields) == 0 {
		return a.l
	}
	lf := make(logrus.Fields, len(fields))
	for _, f := range fields {
		lf[f.Key] = f.Value
	}
	return a.l.WithFields(lf)
}

// =============================================================================
// zap
// =============================================================================

// Zap writes through a zap.Logger.
type Zap struct {
	l *zap.Logger
}

func NewZap(l *zap.Logger) *Zap {
	return &Zap{l: l}
}

func (a *Zap) Debug(msg string, fields ...core.Field) { a.l.Debug(msg, zapFields(fields)...) }
func (a *Zap) Info(msg string, fields ...core.Field)  { a.l.Info(msg, zapFields(fields)...) }
func (a *Zap) Warn(msg string, fields ...core.Field)  { a.l.Warn(msg, zapFields(fields)...) }
func (a *Zap) Error(msg string, fields ...core.Field) { a.l.Error(msg, zapFields(fields)...) }

// Sync flushes buffered entries.
func (a *Zap) Sync() error {
	return a.l.Sync()
}

func zapFields(fields []core.Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		if err, ok := f.Value.(error); ok {
			out[i] = zap.NamedError(f.Key, err)
			continue
		}
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}

// =============================================================================
// slog
// =============================================================================

// Slog writes through a slog.Logger.
type Slog struct {
	l *slog.Logger
}

func NewSlog(l *slog.Logger) *Slog {
	return &Slog{l: l}
}

func (a *Slog) Debug(msg string, fields ...core.Field) { a.l.Debug(msg, slogArgs(fields)...) }
func (a *Slog) Info(msg string, fields ...core.Field)  { a.l.Info(msg, slogArgs(fields)...) }
func (a *Slog) Warn(msg string, fields ...core.Field)  { a.l.Warn(msg, slogArgs(fields)...) }
func (a *Slog) Error(msg string, fields ...core.Field) { a.l.Error(msg, slogArgs(fields)...) }

func slogArgs(fields []core.Field) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = slog.Any(f.Key, f.Value)
	}
	return out
}
