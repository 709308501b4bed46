package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// TimeFormat is the timestamp layout prefixed to every log line
const TimeFormat = "2006-01-02 15:04:05"

// Logger writes component-tagged log lines in the form
// "2006-01-02 15:04:05 [Component] LEVEL: message".
type Logger struct {
	component string
	out       *log.Logger
	now       func() time.Time
}

// New creates a logger for the given component writing to stderr
func New(component string) *Logger {
	return NewWithWriter(component, os.Stderr)
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(component string, w io.Writer) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{
		component: component,
		out:       log.New(w, "", 0),
		now:       time.Now,
	}
}

// With returns a logger for a sub-component sharing the same output
func (l *Logger) With(component string) *Logger {
	return &Logger{
		component: component,
		out:       l.out,
		now:       l.now,
	}
}

// Component returns the component tag
func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.printf("INFO", format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.printf("WARN", format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.printf("ERROR", format, args...)
}

func (l *Logger) printf(level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.out.Printf("%s [%s] %s: %s", l.now().Format(TimeFormat), l.component, level, msg)
}
