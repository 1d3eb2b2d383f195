// Package logging builds the zerolog logger used by the command line tool.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvLevel names the environment variable consulted when no level is given.
const EnvLevel = "WEBREQUEST_LOG_LEVEL"

// New returns a console logger writing to w at the given level. An empty
// level falls back to $WEBREQUEST_LOG_LEVEL, then to "warn".
func New(w io.Writer, level string, noColor bool) (zerolog.Logger, error) {
	if level == "" {
		level = os.Getenv(EnvLevel)
	}
	if level == "" {
		level = "warn"
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}

	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: noColor}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}
