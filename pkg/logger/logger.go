package logger

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	JSONFormat    = "json"
	ConsoleFormat = "console"
)

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds a timestamped logger writing JSON or console output to w.
func New(level, format string, w io.Writer) zerolog.Logger {
	var logger zerolog.Logger
	if format == JSONFormat {
		logger = zerolog.New(w)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	}
	return logger.Level(ParseLevel(level)).With().Timestamp().Logger()
}

// Setup installs a logger built by New as the global log.Logger used by
// every package.
func Setup(level, format string, w io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	log.Logger = New(level, format, w)
}
