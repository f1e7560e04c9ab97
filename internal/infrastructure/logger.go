package infrastructure

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a structured zap logger. Production builds emit JSON at
// info level; everything else gets colored console output at debug level.
// LOG_LEVEL overrides the level in either mode.
func NewLogger(environment string) (*zap.Logger, error) {
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if level, err := zapcore.ParseLevel(raw); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}

	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.StacktraceKey = "stacktrace"

	return config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
}

// SyncLogger flushes any buffered log entries
func SyncLogger(logger *zap.Logger) {
	if err := logger.Sync(); err != nil {
		// Sync on stdout/stderr fails on some platforms; not actionable
		if _, ok := err.(*os.PathError); !ok {
			logger.Error("Failed to sync logger", zap.Error(err))
		}
	}
}
