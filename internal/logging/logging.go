package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns the process root logger: console output in dev, JSON otherwise.
func New(env, level, service string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if env == "dev" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Str("env", env).
		Logger()
}
