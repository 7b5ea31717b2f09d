// Package logging is a small structured JSON logger shared by the engine,
// the session and the command line.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// EnvVar names the environment variable that supplies the default level
const EnvVar = "LOG_LEVEL"

// NewJSONLogger creates a logger writing entries at level or above to writer
func NewJSONLogger(writer io.Writer, level Level) *JSONLogger {
	return &JSONLogger{mu: &sync.Mutex{}, writer: writer, level: level}
}

// New parses level and creates a JSON logger on writer
func New(writer io.Writer, level string) (*JSONLogger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return NewJSONLogger(writer, l), nil
}

// EnvLevel returns $LOG_LEVEL, or fallback when it is unset
func EnvLevel(fallback string) string {
	if s := os.Getenv(EnvVar); s != "" {
		return s
	}
	return fallback
}

func (l *JSONLogger) log(level Level, msg string, fields []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	entry := LogEntry{
		Time:    time.Now().Format(time.RFC3339Nano),
		Level:   level.String(),
		Message: msg,
	}
	if n := len(l.fields) + len(fields); n > 0 {
		entry.Fields = make(map[string]any, n)
		for _, f := range l.fields {
			entry.Fields[f.Key] = f.Value
		}
		for _, f := range fields {
			entry.Fields[f.Key] = f.Value
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.writer, "[ERROR] unencodable log entry %q: %v\n", msg, err)
		return
	}
	l.writer.Write(append(data, '\n'))
}

func (l *JSONLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *JSONLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *JSONLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *JSONLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

// With returns a child sharing the writer and lock. The child's level is a
// copy taken now.
func (l *JSONLogger) With(fields ...Field) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &JSONLogger{mu: l.mu, writer: l.writer, level: l.level, fields: merged}
}

func (l *JSONLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *JSONLogger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// StartTimer begins timing an operation logged as msg
func StartTimer(logger Logger, msg string, fields ...Field) *TimedOperation {
	return &TimedOperation{logger: logger, msg: msg, start: time.Now(), fields: fields}
}

// Elapsed returns the time since StartTimer
func (t *TimedOperation) Elapsed() time.Duration {
	return time.Since(t.start)
}

// Done logs the operation at debug level, or at error level with err
func (t *TimedOperation) Done(err error) time.Duration {
	elapsed := t.Elapsed()
	fields := append(t.fields[:len(t.fields):len(t.fields)], Latency(elapsed))
	if err != nil {
		t.logger.Error(t.msg+" failed", append(fields, Error(err))...)
	} else {
		t.logger.Debug(t.msg, fields...)
	}
	return elapsed
}
