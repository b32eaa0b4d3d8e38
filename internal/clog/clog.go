// Package clog is a thin leveled wrapper around the standard library's
// log.Logger, the way sentra's own debugger and VM packages call log.Printf
// directly rather than reaching for a structured-logging library. A
// Logger gates Debugf/Infof/Warnf behind a configured minimum Level so the
// pipeline driver and the layout optimizer's debug-dump path can be noisy
// without a flag threading through every call site.
package clog

import (
	"io"
	"log"
	"os"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	// LevelSilent suppresses everything; used by tests that don't want
	// driver chatter mixed into their output.
	LevelSilent
)

// Logger wraps a *log.Logger with a minimum level below which calls are
// dropped before formatting, avoiding the cost of building a debug message
// that nothing will print.
type Logger struct {
	out   *log.Logger
	level Level
}

// New builds a Logger writing to w, gated at level.
func New(w io.Writer, level Level) *Logger {
	return &Logger{out: log.New(w, "", log.LstdFlags), level: level}
}

// Default is a ready-to-use Logger at LevelInfo writing to stderr, the way
// the teacher's packages reach for the standard library's package-level
// logger without constructing their own.
var Default = New(os.Stderr, LevelInfo)

func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, "DEBUG", format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, "INFO", format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, "WARN", format, args...) }

func (l *Logger) logf(level Level, prefix, format string, args ...any) {
	if l == nil || level < l.level {
		return
	}
	l.out.Printf(prefix+": "+format, args...)
}

// SetLevel adjusts the logger's gate after construction, e.g. a driver
// turning on debug output in response to a verbosity flag its own caller
// decided on (flag parsing itself is out of scope here, per SPEC §1).
func (l *Logger) SetLevel(level Level) { l.level = level }
