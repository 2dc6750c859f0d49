// Package logging builds the hclog loggers used by the command line tool.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Environment variables read by the logger factory.
const (
	EnvLogLevel = "FIBER_LOG_LEVEL"
	EnvJSONLog  = "FIBER_JSON_LOG"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = "info"

// NewLogger creates a logger writing to output, stderr when nil. Unknown level
// names fall back to DefaultLevel.
func NewLogger(name string, level string, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}

	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.LevelFromString(DefaultLevel)
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      lvl,
		JSONFormat: os.Getenv(EnvJSONLog) == "1",
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z",
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// GetLogLevel returns the level configured in the environment.
func GetLogLevel() string {
	level := strings.TrimSpace(os.Getenv(EnvLogLevel))
	if level == "" {
		level = DefaultLevel
	}
	return level
}
