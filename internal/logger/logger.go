// Package logger wraps zerolog behind the package-level helpers the rest of
// the pipeline uses.
package logger

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var (
	log  zerolog.Logger
	once sync.Once
)

// Init configures the global logger. JSON to stderr by default; a console
// writer when stderr is a terminal. Safe to call more than once.
func Init(level string) {
	once.Do(func() {
		lvl, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil || level == "" {
			lvl = zerolog.InfoLevel
		}

		var out = zerolog.New(os.Stderr)
		if isatty.IsTerminal(os.Stderr.Fd()) {
			out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		}
		log = out.Level(lvl).With().Timestamp().Logger()
	})
}

// Get returns the initialized logger.
func Get() *zerolog.Logger {
	Init("")
	return &log
}

// Info logs an informational message with alternating key/value args.
func Info(msg string, args ...any) {
	Get().Info().Fields(fields(args)).Msg(msg)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Get().Warn().Fields(fields(args)).Msg(msg)
}

// Error logs an error with its cause.
func Error(msg string, err error, args ...any) {
	Get().Error().Err(err).Fields(fields(args)).Msg(msg)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Get().Debug().Fields(fields(args)).Msg(msg)
}

func fields(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	m := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		m[key] = args[i+1]
	}
	return m
}
