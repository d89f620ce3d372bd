// Package logging wraps charmbracelet/log for the bridge's two log
// sinks: a human-readable stderr logger for the CLI, and a per-run
// bridge.log file logger, generalizing the teacher's gated-verbosity
// fmt.Fprintf(os.Stderr, ...) helper (cmd/dev-console/debug_log.go) into
// structured, leveled logging.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w with the given prefix, honoring
// BRIDGE_LOG_LEVEL (debug|info|warn|error; default info).
func New(w io.Writer, prefix string) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
	})
	l.SetLevel(levelFromEnv())
	return l
}

// NewRunLogger opens (creating if needed) the bridge.log file for a run
// and returns a logger writing to it. The caller owns closing the file
// via the returned io.Closer.
func NewRunLogger(path string) (*log.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return New(f, "bridge"), f, nil
}

func levelFromEnv() log.Level {
	switch os.Getenv("BRIDGE_LOG_LEVEL") {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
