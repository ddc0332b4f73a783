// Package logging configures structured zerolog output for the harvester
// commands and hands out per-component loggers.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvLevel  = "LOG_LEVEL"
	EnvPretty = "LOG_PRETTY"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	// Records go to stdout or a file, so logs never share that stream.
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// ConfigFromEnv starts from DefaultConfig and applies LOG_LEVEL and LOG_PRETTY.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if lvl := os.Getenv(EnvLevel); lvl != "" {
		cfg.Level = LogLevel(strings.ToLower(lvl))
	}
	if pretty, err := strconv.ParseBool(os.Getenv(EnvPretty)); err == nil {
		cfg.Pretty = pretty
	}
	return cfg
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: request flow
//   - outgoing GETs (endpoint, params)
//   - daily menu misses and the reason
//   - sink writes
//
// Info: progress
//   - location resolved
//   - page offsets as they are requested
//   - harvest summary (pages, records)
//
// Warn: degraded but continuing
//   - quota below the warning threshold
//   - records without an id skipped during menu collection
//   - delivery menus that failed to load
//
// Error: the operation is aborted
//   - lookup failures
//   - page fetch failures
//   - sink failures
//
// Context Fields:
//   - component: package emitting the event
//   - endpoint: API endpoint relative to the base URL
//   - status: HTTP status code
//   - error_class: client, server, rate_limit, network
//   - location_id, category, offset, results_shown
//   - res_id: restaurant id
