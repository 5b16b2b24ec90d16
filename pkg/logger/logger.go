package logger

import (
	"log"
	"sync"

	"github.com/fatih/color"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	NoticeLevel
	ErrorLevel
)

// Component tags a log line with the subsystem it originated from.
type Component int

const (
	None Component = iota
	Feed
	Oracle
	Engine
	DCA
	Exec
	Store
	Health
)

var componentPrefixes = map[Component]string{
	None:   "",
	Feed:   "[FEED]   ",
	Oracle: "[ORACLE] ",
	Engine: "[ENGINE] ",
	DCA:    "[DCA]    ",
	Exec:   "[EXEC]   ",
	Store:  "[STORE]  ",
	Health: "[HEALTH] ",
}

var colors = map[Component]color.Attribute{
	None:   color.FgWhite,
	Feed:   color.FgHiGreen,
	Oracle: color.FgYellow,
	Engine: color.FgHiBlue,
	DCA:    color.FgMagenta,
	Exec:   color.FgRed,
	Store:  color.FgBlue,
	Health: color.FgGreen,
}

// Logger is a simple interface for logging messages.
type Logger interface {
	// Info logs an informational message.
	Info(format string, args ...interface{})
	InfoWith(c Component, format string, args ...interface{})

	// Error logs an error message.
	Error(format string, args ...interface{})
	ErrorWith(c Component, format string, args ...interface{})

	// Debug logs a debug message.
	Debug(format string, args ...interface{})
	DebugWith(c Component, format string, args ...interface{})

	// Notice logs a notice message.
	Notice(format string, args ...interface{})
	NoticeWith(c Component, format string, args ...interface{})
}

// EmptyLogger is a simple implementation of the Logger interface that does nothing.
type EmptyLogger struct{}

var _ Logger = (*EmptyLogger)(nil)

func (l *EmptyLogger) Info(_ string, _ ...interface{})                  {}
func (l *EmptyLogger) InfoWith(_ Component, _ string, _ ...interface{}) {}
func (l *EmptyLogger) Error(_ string, _ ...interface{})                 {}
func (l *EmptyLogger) ErrorWith(_ Component, _ string, _ ...interface{}) {
}
func (l *EmptyLogger) Debug(_ string, _ ...interface{})                  {}
func (l *EmptyLogger) DebugWith(_ Component, _ string, _ ...interface{}) {}
func (l *EmptyLogger) Notice(_ string, _ ...interface{})                 {}
func (l *EmptyLogger) NoticeWith(_ Component, _ string, _ ...interface{}) {
}

// StdLogger is a standard implementation of the Logger interface that logs messages to the console.
type StdLogger struct {
	enableColoring bool
	level          Level
	mu             sync.Mutex
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(enableColoring bool, level Level) *StdLogger {
	return &StdLogger{
		enableColoring: enableColoring,
		level:          level,
	}
}

// formatMessage formats the log message with the appropriate log level, component prefix, and coloring if enabled.
func (l *StdLogger) formatMessage(level Level, c Component, format string) string {
	prefix := componentPrefixes[c]
	if l.enableColoring {
		prefix = color.New(colors[c]).Sprint(prefix)
	}

	var levelStr string
	switch level {
	case DebugLevel:
		levelStr = "[DEBUG]  "
	case InfoLevel:
		levelStr = "[INFO]   "
	case NoticeLevel:
		levelStr = "[NOTICE] "
	case ErrorLevel:
		levelStr = "[ERROR]  "
	}

	return levelStr + prefix + format
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.InfoWith(None, format, args...)
}

func (l *StdLogger) InfoWith(c Component, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= InfoLevel {
		log.Printf(l.formatMessage(InfoLevel, c, format), args...)
	}
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.ErrorWith(None, format, args...)
}

func (l *StdLogger) ErrorWith(c Component, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= ErrorLevel {
		log.Printf(l.formatMessage(ErrorLevel, c, format), args...)
	}
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	l.DebugWith(None, format, args...)
}

func (l *StdLogger) DebugWith(c Component, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= DebugLevel {
		log.Printf(l.formatMessage(DebugLevel, c, format), args...)
	}
}

func (l *StdLogger) Notice(format string, args ...interface{}) {
	l.NoticeWith(None, format, args...)
}

func (l *StdLogger) NoticeWith(c Component, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= NoticeLevel {
		log.Printf(l.formatMessage(NoticeLevel, c, format), args...)
	}
}

// ParseLevel converts a level name to a Level. Unknown names default to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "notice":
		return NoticeLevel
	case "error":
		return ErrorLevel
	}
	return InfoLevel
}
