// Package log wraps zerolog with scoped loggers and a small set of typed
// attributes used across the clone pipeline.
package log

import (
	"context"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

//nolint:gochecknoglobals
var root atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits
func init() {
	l := newZerolog(os.Stderr, zerolog.InfoLevel, false, false)
	root.Store(&l)
}

// Logger is a scoped structured logger.
type Logger struct {
	zl zerolog.Logger
}

// InitGlobals configures the process-wide logger. With json unset it writes
// human-readable lines to stderr.
func InitGlobals(level zerolog.Level, json, noColor bool) *Logger {
	return SetOutput(os.Stderr, level, json, noColor)
}

// SetOutput is InitGlobals with an explicit writer.
func SetOutput(w io.Writer, level zerolog.Level, json, noColor bool) *Logger {
	l := newZerolog(w, level, json, noColor)
	root.Store(&l)
	zerolog.DefaultContextLogger = &l

	return &Logger{zl: l}
}

func newZerolog(w io.Writer, level zerolog.Level, json, noColor bool) zerolog.Logger {
	if !json {
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    noColor,
			TimeFormat: time.DateTime,
		}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// New returns a logger tagged with scope.
func New(scope string) *Logger {
	return &Logger{zl: root.Load().With().Str("s", scope).Logger()}
}

// Ctx returns the logger stored in ctx, or the global logger.
func Ctx(ctx context.Context) *Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return &Logger{zl: *l}
	}

	return &Logger{zl: *root.Load()}
}

// WithContext stores l in ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return l.zl.WithContext(ctx)
}

// With returns a child logger carrying attrs on every line.
func (l *Logger) With(attrs ...Attr) *Logger {
	c := l.zl.With()
	for _, attr := range attrs {
		c = attr(c)
	}

	return &Logger{zl: c.Logger()}
}

func (l *Logger) Trace(msg string) {
	l.zl.Trace().Msg(msg)
}

func (l *Logger) Debug(msg string) {
	l.zl.Debug().Msg(msg)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.zl.Debug().Msgf(format, args...)
}

func (l *Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

func (l *Logger) Infof(format string, args ...any) {
	l.zl.Info().Msgf(format, args...)
}

func (l *Logger) Warn(msg string) {
	l.zl.Warn().Msg(msg)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.zl.Warn().Msgf(format, args...)
}

func (l *Logger) Error(err error, msg string) {
	l.zl.Error().Err(err).Msg(msg)
}

func (l *Logger) Errorf(err error, format string, args ...any) {
	l.zl.Error().Err(err).Msgf(format, args...)
}
