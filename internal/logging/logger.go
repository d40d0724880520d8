// Package logging provides a nil-safe, sublogger-capable *Logger with
// colored Warn/Error output and a gated verbosity level, since this
// library has both an embedded mode and a CLI mode with a
// user-configurable verbosity.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
)

// Logger is the main logger type. It has the property that it still
// functions if nil (every method becomes a no-op), so library code can
// accept a *Logger from a caller that didn't bother to configure one.
type Logger struct {
	prefix string
	level  Level
	output *log.Logger
}

// RootLogger is the root logger from which all other loggers derive,
// writing to standard error at LevelInfo.
var RootLogger = New(LevelInfo)

// New constructs a root logger at the given level, writing to stderr.
func New(level Level) *Logger {
	return &Logger{
		level:  level,
		output: log.New(os.Stderr, "", log.LstdFlags),
	}
}

// Sublogger creates a new sublogger with the specified name, inheriting
// the parent's level and output.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &Logger{prefix: prefix, level: l.level, output: l.output}
}

func (l *Logger) line(level Level, colorize func(format string, a ...interface{}) string, format string, v ...interface{}) {
	if l == nil || !l.level.Enables(level) {
		return
	}
	msg := fmt.Sprintf(format, v...)
	if l.prefix != "" {
		msg = fmt.Sprintf("[%s] %s", l.prefix, msg)
	}
	if colorize != nil {
		msg = colorize("%s", msg)
	}
	l.output.Print(msg)
}

// Tracef logs low-level execution detail, only visible at LevelTrace.
func (l *Logger) Tracef(format string, v ...interface{}) {
	l.line(LevelTrace, nil, format, v...)
}

// Debugf logs advanced execution information, only visible at LevelDebug
// and above.
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.line(LevelDebug, nil, format, v...)
}

// Infof logs basic execution information.
func (l *Logger) Infof(format string, v ...interface{}) {
	l.line(LevelInfo, nil, format, v...)
}

// Warnf logs a non-fatal problem in yellow.
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.line(LevelWarn, color.YellowString, format, v...)
}

// Errorf logs a fatal-to-the-operation problem in red.
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.line(LevelError, color.RedString, format, v...)
}

// Writer returns an io.Writer that writes each line via Infof, suitable
// for wiring into APIs (database drivers, SDK clients) that want a plain
// io.Writer for diagnostics.
func (l *Logger) Writer() io.Writer {
	if l == nil {
		return io.Discard
	}
	return &lineWriter{log: l}
}

type lineWriter struct {
	log *Logger
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.log.Infof("%s", string(p))
	return len(p), nil
}
