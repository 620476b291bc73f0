package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

func New(service string, level string) zerolog.Logger {
	return NewTo(os.Stdout, service, level)
}

// NewTo is like New but writes to w. Tests pass io.Discard.
func NewTo(w io.Writer, service string, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}
