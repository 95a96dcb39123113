package app

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Component names used for the named child loggers of the booking service.
const (
	ComponentAPI          = "api"
	ComponentBot          = "bot"
	ComponentBooking      = "booking"
	ComponentAvailability = "availability"
	ComponentCalendar     = "calendar"
	ComponentEvents       = "events"
	ComponentScheduler    = "scheduler"
	ComponentStorage      = "storage"
)

type LoggerConfig struct {
	Environment string
	// Level overrides the environment default when set: debug, info, warn or error.
	Level string
}

// NewLogger builds the process logger: JSON with ISO8601 timestamps in production,
// coloured console otherwise. Every entry carries the service name.
func NewLogger(cfg LoggerConfig, opts ...zap.Option) (*zap.Logger, error) {
	config, err := loggerConfig(cfg)
	if err != nil {
		return nil, err
	}

	logger, err := config.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func loggerConfig(cfg LoggerConfig) (zap.Config, error) {
	var config zap.Config

	if cfg.Environment == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return zap.Config{}, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
		config.Level = level
	}

	config.OutputPaths = []string{"stdout"}
	config.InitialFields = map[string]interface{}{"service": ServiceName}
	return config, nil
}

// Component returns the child logger of one part of the service. The name shows up
// as the logger name and as a "component" field so JSON logs can be filtered on it.
func Component(logger *zap.Logger, name string) *zap.Logger {
	return logger.Named(name).With(zap.String("component", name))
}
