package shared

import (
	"os"

	"github.com/charmbracelet/log"
)

// SetupLogger configures console logging for commands.
func SetupLogger(debug bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// ParseLevel applies a configured level name to the logger, keeping debug
// from the CLI flag when set.
func ParseLevel(logger *log.Logger, level string, debug bool) {
	if debug {
		return
	}
	if parsed, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	}
}
