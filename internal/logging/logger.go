// Package logging configures the global zerolog logger and the Lambda
// cold-start summary.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Output formats accepted by REFIMG_LOG_FORMAT.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Init configures the global logger from the environment.
// REFIMG_LOG_LEVEL: debug, info, warn, error (default: info).
// REFIMG_LOG_FORMAT: console or json; defaultFormat applies when unset.
// The CLI passes FormatConsole, Lambdas FormatJSON so CloudWatch can parse
// the fields.
func Init(defaultFormat string) {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv("REFIMG_LOG_LEVEL")))
	format := strings.ToLower(os.Getenv("REFIMG_LOG_FORMAT"))
	if format == "" {
		format = defaultFormat
	}
	log.Logger = New(os.Stderr, format)
}

// New returns a logger writing to w in the given format.
func New(w io.Writer, format string) zerolog.Logger {
	if format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
