package logging

import (
	"context"
	"fmt"
	"os"

	zap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DebugEnv switches NewLogger to the development config when set to "true".
const DebugEnv = "FLUVIAL_DEBUG"

// NewLogger returns a zap.SugaredLogger writing to stderr. Stdout is kept for
// instance output. An empty level means info.
func NewLogger(level string) (*zap.SugaredLogger, error) {
	var config zap.Config
	debugMode, ok := os.LookupEnv(DebugEnv)
	if (ok && debugMode == "true") || level == "debug" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named("fluvial").Sugar(), nil
}

type loggerKey struct{}

// WithLogger returns a copy of parent context in which the
// value associated with logger key is the supplied logger.
func WithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger in the context, or a no-op logger.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.SugaredLogger); ok {
		return logger
	}
	return zap.NewNop().Sugar()
}
