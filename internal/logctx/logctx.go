// Package logctx carries a zerolog logger through context.Context so that
// per-job fields (job_id, filename) attached at the boundary propagate into
// the parser, loader, and query layers without plumbing a logger argument
// through every call.
package logctx

import (
	"context"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

type loggerKey struct{}

var (
	defaultLogger     zerolog.Logger
	defaultLoggerOnce sync.Once
)

func initDefault() {
	defaultLoggerOnce.Do(func() {
		defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	})
}

// Default returns the process-wide fallback logger (JSON to stderr).
func Default() zerolog.Logger {
	initDefault()
	return defaultLogger
}

// SetDefault replaces the fallback logger. Call during initialization only;
// it is not synchronized against concurrent From calls.
func SetDefault(l zerolog.Logger) {
	initDefault()
	defaultLogger = l
}

// With returns a context carrying the given logger.
func With(ctx context.Context, logger zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// From extracts the logger from ctx, falling back to Default.
func From(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return Default()
	}
	if l, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return l
	}
	return Default()
}
