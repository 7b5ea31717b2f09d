package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Level orders log entries by severity
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < DebugLevel || l > ErrorLevel {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel accepts a level name in any case; "warning" is an alias of warn
func ParseLevel(s string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARNING" {
		name = "WARN"
	}
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// Field is one structured key/value of an entry
type Field struct {
	Key   string
	Value any
}

// Logger is the structured logger handed to every component
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a child logger that adds fields to every entry
	With(fields ...Field) Logger
	SetLevel(level Level)
	GetLevel() Level
}

// JSONLogger writes one JSON object per line
type JSONLogger struct {
	mu     *sync.Mutex
	writer io.Writer
	level  Level
	fields []Field
}

// LogEntry is the line format of JSONLogger
type LogEntry struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// NopLogger discards everything. Components default to it.
type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (n NopLogger) With(...Field) Logger { return n }
func (NopLogger) SetLevel(Level)         {}
func (NopLogger) GetLevel() Level        { return ErrorLevel }

// NewNopLogger returns a logger that discards all output
func NewNopLogger() Logger {
	return NopLogger{}
}

// TimedOperation logs an operation together with its latency
type TimedOperation struct {
	logger Logger
	msg    string
	start  time.Time
	fields []Field
}
