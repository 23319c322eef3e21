package logger

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var base atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zerolog.InfoLevel).
		With().Timestamp().Logger()
	base.Store(&l)
}

// SetOutput replaces the sink, keeping the current level.
func SetOutput(w io.Writer) {
	current := L()
	l := zerolog.New(w).Level(current.GetLevel()).With().Timestamp().Logger()
	base.Store(&l)
}

func SetLevel(level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	l := L().Level(parsed)
	base.Store(&l)
}

// L returns the process logger.
func L() *zerolog.Logger {
	return base.Load()
}

// With returns a child logger carrying one extra field.
func With(key string, value interface{}) zerolog.Logger {
	return L().With().Interface(key, value).Logger()
}

func IsDebugEnabled() bool {
	return L().GetLevel() <= zerolog.DebugLevel
}

func Debugf(format string, v ...any) {
	L().Debug().Msgf(format, v...)
}

func Infof(format string, v ...any) {
	L().Info().Msgf(format, v...)
}

func Warnf(format string, v ...any) {
	L().Warn().Msgf(format, v...)
}

func Errorf(format string, v ...any) {
	L().Error().Msgf(format, v...)
}
