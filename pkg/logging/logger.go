// Package logging configures zerolog for the scanner and its libraries.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level is a log level name as written in config files and LOG_LEVEL.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written
	Level Level

	// Pretty switches from JSON lines to console output
	Pretty bool

	// Output defaults to os.Stderr so stdout stays free for reports
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it. Unknown levels
// fall back to info.
func Setup(cfg Config) zerolog.Logger {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog level. "warning" is accepted
// as an alias for warn and the empty string means info.
func ParseLevel(level Level) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger returns a sub-logger of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Components:
//   - lookup-client: one line per failed lookup, debug per request
//   - scanner: scan start with estimate, per-batch debug, scan finish
//   - progress: delivery failures
//   - cache: redis faults
//
// Levels:
//   - Debug: per-lookup and per-batch detail, cache hits
//   - Info: scan start/finish, detections found, server startup
//   - Warn: rate limit hit, cache faults (lookup proceeds uncached)
//   - Error: failed lookups, failed progress deliveries, config errors
//
// Context fields:
//   - member_id: identifier being checked (never the API key)
//   - batch, batch_size: batch ordinal and size
//   - checked, total, detections: scan counters
//   - error_class: network, decode, rate_limit
//   - status: HTTP status code
//   - delay: inter-batch delay
//   - state: terminal scheduler state
