// Package logging configures the global zerolog logger and the cold-start
// summary emitted by every entry point.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment variables read by Init.
const (
	EnvLogLevel  = "STUDIO_LOG_LEVEL"
	EnvLogFormat = "STUDIO_LOG_FORMAT"
)

// Init initializes the global logger from the environment.
// STUDIO_LOG_LEVEL: debug, info, warn, error (default: info).
// STUDIO_LOG_FORMAT: json writes raw JSON lines (Lambda); anything else uses
// the console writer.
func Init() {
	InitWith(os.Getenv(EnvLogLevel), os.Getenv(EnvLogFormat), os.Stderr)
}

// InitWith configures the global logger explicitly.
func InitWith(level, format string, out io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	if strings.EqualFold(format, "json") {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// EnvOrDefault returns the value of the named environment variable, or
// defaultVal if the variable is empty or unset.
func EnvOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}
