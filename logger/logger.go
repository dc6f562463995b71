// Package logger provides structured logging for the identity core.
//
// It wraps Uber's zap logger. The global starts as a no-op so the library
// stays silent when embedded; Init installs a production logger at the
// configured level.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log = zap.NewNop()

// Init replaces the global logger with a production logger at the given
// level. Options: debug, info, warn, error.
func Init(level string) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	Log = log
}
