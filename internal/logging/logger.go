// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

// Package logging is Feedloom's zerolog backend. Every package logs
// through the process-global logger configured here: components derive
// child loggers with WithComponent, request handlers use Ctx to pick up
// request and correlation IDs, and supervised services plug in through
// the slog adapter over the same sink.
//
// Initialize once at startup, then use the package-level event starters:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("feed_type", ft).Msg("feed generated")
//
// Chains must end with .Msg or .Send; zerolog silently drops
// unterminated chains.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the log level, format and destination.
type Config struct {
	// Level is the minimum emitted level, trace through fatal.
	Level string

	// Format is "json" for production or "console" for development.
	Format string

	// Caller annotates every event with file:line.
	Caller bool

	// Timestamp stamps events with RFC 3339 times.
	Timestamp bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig is info-level JSON on stderr.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	mu  sync.RWMutex
	log zerolog.Logger
)

//nolint:gochecknoinits // a usable logger must exist before main reaches Init
func init() {
	log = build(DefaultConfig())
}

// Init reconfigures the global logger. Safe to call more than once;
// the latest call wins.
func Init(cfg Config) {
	l := build(cfg)
	mu.Lock()
	log = l
	mu.Unlock()
}

// build assembles a logger from cfg, filling defaults for zero fields.
func build(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stderr
	if cfg.Output != nil {
		out = cfg.Output
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(out).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// parseLevel maps a level name onto zerolog, accepting "warning" as an
// alias. Unrecognized names fall back to info instead of failing
// startup.
func parseLevel(name string) zerolog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	if name == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Logger returns the current global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger swaps the global logger. Tests use it to capture output.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	log = l
	mu.Unlock()
}

// With opens a child context on the global logger.
func With() zerolog.Context {
	return Logger().With()
}

// Debug starts a debug-level event.
func Debug() *zerolog.Event { l := Logger(); return l.Debug() }

// Info starts an info-level event.
func Info() *zerolog.Event { l := Logger(); return l.Info() }

// Warn starts a warn-level event.
func Warn() *zerolog.Event { l := Logger(); return l.Warn() }

// Error starts an error-level event.
func Error() *zerolog.Event { l := Logger(); return l.Error() }

// Fatal starts a fatal-level event; the process exits once the message
// is written.
func Fatal() *zerolog.Event { l := Logger(); return l.Fatal() }

// NewTestLogger returns a logger writing to w, for asserting on log
// output in tests.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
