// Package logging provides the leveled logger used across fluentdb.
// Datasource adapters and the client accept the Logger interface so any
// application logger can be plugged in.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	DEBUG Level = iota + 1
	INFO
	WARN
	ERROR
	FATAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// Logger is the logging interface consumed by fluentdb components.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	ChangeLevel(level Level)
}

// PrettyPrinter lets structured log records control their own rendering.
// Query logs implement this to produce aligned, colorized output.
type PrettyPrinter interface {
	PrettyPrint(writer io.Writer)
}

type logger struct {
	mu     sync.Mutex
	level  Level
	writer io.Writer
}

// New returns a Logger writing to w at the given level.
func New(level Level, w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}

	return &logger{level: level, writer: w}
}

// NewStdLogger returns a Logger writing to stderr at the given level.
func NewStdLogger(level Level) Logger {
	return New(level, os.Stderr)
}

func (l *logger) logf(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	fmt.Fprintf(l.writer, "%s [%s] ", time.Now().Format(time.RFC3339), level)

	switch {
	case format != "":
		fmt.Fprintf(l.writer, format, args...)
		fmt.Fprintln(l.writer)
	case len(args) == 1:
		if pp, ok := args[0].(PrettyPrinter); ok {
			pp.PrettyPrint(l.writer)
			return
		}

		fmt.Fprintln(l.writer, args[0])
	default:
		fmt.Fprintln(l.writer, args...)
	}
}

func (l *logger) Debug(args ...any)                 { l.logf(DEBUG, "", args...) }
func (l *logger) Debugf(format string, args ...any) { l.logf(DEBUG, format, args...) }
func (l *logger) Info(args ...any)                  { l.logf(INFO, "", args...) }
func (l *logger) Infof(format string, args ...any)  { l.logf(INFO, format, args...) }
func (l *logger) Warn(args ...any)                  { l.logf(WARN, "", args...) }
func (l *logger) Warnf(format string, args ...any)  { l.logf(WARN, format, args...) }
func (l *logger) Error(args ...any)                 { l.logf(ERROR, "", args...) }
func (l *logger) Errorf(format string, args ...any) { l.logf(ERROR, format, args...) }

func (l *logger) ChangeLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// NopLogger discards everything. Useful as a default when the caller does
// not care about query logs.
type NopLogger struct{}

func (NopLogger) Debug(...any)          {}
func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Info(...any)           {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Warn(...any)           {}
func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Error(...any)          {}
func (NopLogger) Errorf(string, ...any) {}
func (NopLogger) ChangeLevel(Level)     {}
