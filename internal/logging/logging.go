// Package logging wires the zerolog logger used across the storage engine.
// Loggers are threaded through as zerolog.Logger values; the zero value
// discards everything, so callers that don't care about logs simply never
// call logging.New.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the console-friendly logger used by cmd/ binaries. Library
// packages never call this themselves — they accept a zerolog.Logger (or
// zerolog.Nop()) from their constructor and log through that.
func New(w io.Writer, verbose bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything, used as the default for
// components constructed without an explicit logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
