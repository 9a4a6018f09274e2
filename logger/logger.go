package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/isdmx/judgebox/config"
)

// NewFromConfig builds the process logger and tags every entry with the
// configured service name.
func NewFromConfig(cfg *config.Config) (*zap.Logger, error) {
	log, err := New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return withService(log, cfg.Service.Name), nil
}

func withService(log *zap.Logger, name string) *zap.Logger {
	if name == "" {
		return log
	}
	return log.With(zap.String("service", name))
}

// New creates a logger for mode ("development" or "production") at level.
func New(mode, level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch mode {
	case "development":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "production":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("invalid logging mode: %s, must be 'production' or 'development'", mode)
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging level: %s: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	// stdout is reserved for the MCP stdio transport.
	cfg.OutputPaths = []string{"stderr"}

	return cfg.Build()
}
