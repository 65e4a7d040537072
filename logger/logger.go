package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultLogFile is used by Init when no explicit destination is given.
const DefaultLogFile = "debot.log"

// Init initializes the file logger, writing to debot.log in the current directory.
// Log level can be configured via LOG_LEVEL environment variable (debug, info, warn, error).
func Init() (zerolog.Logger, error) {
	return InitWithOptions(DefaultLogFile, false)
}

// InitWithOptions initializes the logger with the specified options.
// If logFile is empty, logs go to stdout. If pretty is true (only valid when
// logFile is empty), stdout output is rendered with zerolog's ConsoleWriter.
func InitWithOptions(logFile string, pretty bool) (zerolog.Logger, error) {
	if logFile != "" && pretty {
		return zerolog.Logger{}, fmt.Errorf("logfile and pretty output are mutually exclusive")
	}

	level := ParseLevel(os.Getenv("LOG_LEVEL"))

	output, dest, err := openOutput(logFile, pretty)
	if err != nil {
		return zerolog.Logger{}, err
	}

	log := New(output, level)
	log.Info().Str("output", dest).Str("level", level.String()).Msg("Logger initialized")
	return log, nil
}

// New builds a timestamped logger on top of w.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", "debot").
		Logger()
}

// Component returns a child logger tagged with the component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

func openOutput(logFile string, pretty bool) (io.Writer, string, error) {
	switch {
	case logFile != "":
		//nolint:gosec // G304: User-specified log file path is intentional
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		return file, logFile, nil
	case pretty:
		return zerolog.ConsoleWriter{Out: os.Stdout}, "stdout (pretty)", nil
	default:
		return os.Stdout, "stdout", nil
	}
}

// ParseLevel maps a LOG_LEVEL value to a zerolog level. Unknown values fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
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
