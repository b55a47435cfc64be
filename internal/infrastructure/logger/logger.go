// Package logger builds the process-wide structured logger.
//
// Grounded on the teacher's internal/infrastructure/logger/logger.go
// (a level-parsing Setup(level) returning one shared logger), ported
// from log/slog to zerolog per node_executors.go's own zerolog usage
// elsewhere in the teacher's application layer.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Setup builds a console-writer zerolog.Logger at the given level
// ("debug", "info", "warn", "error"; defaults to info).
func Setup(level string) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(level))
	writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	return zerolog.New(writer).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
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

// Logger returns a default info-level logger.
func Logger() zerolog.Logger {
	return Setup("info")
}
