package utils

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// NewLogger creates the application logger. Development builds get a human
// readable console writer, everything else logs JSON to stdout.
func NewLogger(env string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// NopLogger discards everything, for tests
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}
