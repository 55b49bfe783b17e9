// Package rlog adapts go.uber.org/zap to the reactor.Logger interface,
// mapping the four levels original_source/ecmread.c's LogLevel enum
// actually uses (CRIT, WARN, INFO, DEBUG — ERROR is declared in the C
// enum but never passed to a putlog call site, so it has no equivalent
// here) onto zap's leveled logging.
package rlog

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a *zap.SugaredLogger to satisfy reactor.Logger.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a Logger gated at the given minimum level ("crit", "warn",
// "info", or "debug", case-insensitive).
func New(level string) (*Logger, error) {
	zapLevel, err := toZapLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "ts"

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{s: base.Sugar()}, nil
}

func toZapLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "crit":
		// zap has no dedicated "critical" level below Error; CRIT is
		// the source's highest-priority log, mapped to zap's Error.
		return zap.ErrorLevel, nil
	case "warn":
		return zap.WarnLevel, nil
	case "info":
		return zap.InfoLevel, nil
	case "debug":
		return zap.DebugLevel, nil
	default:
		return 0, fmt.Errorf("rlog: unrecognized level %q", level)
	}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l *Logger) Crit(msg string, kv ...interface{})  { l.s.Errorw(msg, kv...) }

// Sync flushes any buffered log entries; call before process exit.
func (l *Logger) Sync() error {
	return l.s.Sync()
}
