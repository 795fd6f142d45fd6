// Package logging carries a zerolog logger through context.Context.
//
// The CLI builds one logger from its --debug and --human flags and attaches
// it with WithLogger; library code retrieves it with FromContext and adds
// claim-scoped fields with WithClaim or WithPhase.
package logging

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type loggerKey struct{}

var (
	defaultMu     sync.RWMutex
	defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Default returns the logger used when a context carries none.
func Default() zerolog.Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the fallback logger.
func SetDefault(l zerolog.Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// New builds a logger writing to w. debug lowers the level to Debug; human
// switches from JSON to a console writer.
func New(w io.Writer, debug, human bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var output zerolog.LevelWriter
	if human {
		output = zerolog.LevelWriterAdapter{Writer: zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}}
	} else {
		output = zerolog.LevelWriterAdapter{Writer: w}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// WithLogger returns a context carrying l.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the context's logger, or Default.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
			return l
		}
	}
	return Default()
}

// WithPhase adds a phase field to the context's logger.
func WithPhase(ctx context.Context, phase string) context.Context {
	return WithLogger(ctx, FromContext(ctx).With().Str("phase", phase).Logger())
}

// WithClaim adds a claim_id field to the context's logger.
func WithClaim(ctx context.Context, claimID string) context.Context {
	return WithLogger(ctx, FromContext(ctx).With().Str("claim_id", claimID).Logger())
}
