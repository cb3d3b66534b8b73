// Package logging wraps charmbracelet/log into the level vocabulary used
// by §6's logging.level configuration key (debug/info/warning/error/
// critical), since cuengine's ambient logging follows the same
// third-party library the pack reaches for in Dirdmaster-isengard rather
// than hand-rolling a structured logger the way the teacher's own
// internal/logging package does.
package logging

import (
	"os"
	"strings"

	charm "github.com/charmbracelet/log"
)

// Logger is a thin alias so call sites depend on this package, not
// charmbracelet/log directly, leaving room to swap sinks later.
type Logger = *charm.Logger

// New builds a logger writing to stderr at the given level string
// (debug/info/warning/error/critical — critical maps to charm's Fatal
// severity level for display purposes only; it does not exit the
// process).
func New(level string) Logger {
	l := charm.NewWithOptions(os.Stderr, charm.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02T15:04:05Z07:00",
	})
	l.SetLevel(parseLevel(level))
	return l
}

func parseLevel(s string) charm.Level {
	switch strings.ToLower(s) {
	case "debug":
		return charm.DebugLevel
	case "info":
		return charm.InfoLevel
	case "warning", "warn":
		return charm.WarnLevel
	case "error":
		return charm.ErrorLevel
	case "critical", "fatal":
		return charm.FatalLevel
	default:
		return charm.InfoLevel
	}
}
