// Package debug is the client's file logger. The terminal belongs to the UI,
// so nothing is written anywhere unless Enable was called.
package debug

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Enable starts appending JSON log lines to path.
func Enable(path string) error {
	cfg := zap.NewDevelopmentConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Core().Enabled(zapcore.DebugLevel)
}

// Logger returns the current logger; a no-op one when disabled.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Log writes a formatted debug line.
func Log(format string, args ...any) {
	Logger().Sugar().Debugf(format, args...)
}

func Sync() {
	_ = Logger().Sync()
}
