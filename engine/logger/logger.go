// Package logger builds the zerolog logger shared by the engine components.
package logger

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// FormatJSON writes one JSON object per line.
	FormatJSON = "json"

	// FormatConsole writes human readable, colorized lines.
	FormatConsole = "console"
)

// New constructs a timestamped zerolog.Logger writing to w.
//
// Parameters:
//   - w: the destination writer
//   - level: a zerolog level name such as "debug" or "info"; empty means info
//   - format: FormatJSON or FormatConsole; empty means JSON
//
// Returns:
//   - zerolog.Logger: the configured logger
//   - error: error if the level or format is unknown
func New(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	switch strings.ToLower(format) {
	case "", FormatJSON:
	case FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", format)
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger(), nil
}
