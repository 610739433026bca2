package logger

import (
	"go.uber.org/zap"
)

// New builds the service logger. Development mode gets the human readable
// console encoder and debug level.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		cfg := zap.NewDevelopmentConfig()
		return cfg.Build()
	}
	return zap.NewProduction()
}
