package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func decode(t *testing.T, line string) LogEntry {
	t.Helper()
	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("unmarshal %q: %v", line, err)
	}
	return entry
}

func lines(buf *bytes.Buffer) []string {
	s := strings.TrimSpace(buf.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"Warn", WarnLevel, false},
		{"warning", WarnLevel, false},
		{" error ", ErrorLevel, false},
		{"verbose", InfoLevel, true},
		{"", InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	if got := Level(9).String(); got != "UNKNOWN" {
		t.Errorf("Level(9).String() = %q", got)
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "warn")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("dropped")
	l.Warn("kept")
	if got := lines(&buf); len(got) != 1 || decode(t, got[0]).Message != "kept" {
		t.Errorf("entries = %v", got)
	}

	if _, err := New(&buf, "loud"); err == nil {
		t.Error("New accepted an unknown level")
	}
}

func TestEnvLevel(t *testing.T) {
	t.Setenv(EnvVar, "")
	if got := EnvLevel("warn"); got != "warn" {
		t.Errorf("EnvLevel with unset variable = %q", got)
	}
	t.Setenv(EnvVar, "debug")
	if got := EnvLevel("warn"); got != "debug" {
		t.Errorf("EnvLevel = %q, want debug", got)
	}
}

func TestFieldConstructors(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		key   string
		value any
	}{
		{"Duration", Duration("d", 1500*time.Millisecond), "d", "1.5s"},
		{"Error", Error(errors.New("boom")), "error", "boom"},
		{"Error_nil", Error(nil), "error", nil},
		{"NodeID", NodeID(3), "node_id", uint64(3)},
		{"CableID", CableID(9), "cable_id", uint64(9)},
		{"CircuitID", CircuitID(12), "circuit_id", uint64(12)},
		{"Contact", Contact(2), "contact", 2},
		{"Pole", Pole(Level(1)), "pole", "INFO"},
		{"Session", Session("abc"), "session_id", "abc"},
		{"Operation", Operation("connect"), "operation", "connect"},
		{"Count", Count(5), "count", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.field.Key != tt.key || tt.field.Value != tt.value {
				t.Errorf("got %v=%v, want %v=%v", tt.field.Key, tt.field.Value, tt.key, tt.value)
			}
		})
	}
}

func TestJSONLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, WarnLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message", Count(2))
	logger.Error("error message")

	got := lines(&buf)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	warn := decode(t, got[0])
	if warn.Level != "WARN" || warn.Fields["count"] != float64(2) || warn.Time == "" {
		t.Errorf("warn entry = %+v", warn)
	}
	if e := decode(t, got[1]); e.Level != "ERROR" || e.Fields != nil {
		t.Errorf("error entry = %+v", e)
	}

	logger.SetLevel(DebugLevel)
	logger.Debug("now visible")
	if logger.GetLevel() != DebugLevel || len(lines(&buf)) != 3 {
		t.Error("SetLevel(DebugLevel) did not take effect")
	}
}

func TestJSONLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	child := logger.With(Component("engine"), Session("s1"))
	child.Info("pass", String("component", "bridge"), NodeID(4))
	logger.Info("parent")

	got := lines(&buf)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	entry := decode(t, got[0])
	if entry.Fields["component"] != "bridge" {
		t.Errorf("call fields must win over preset ones, got %v", entry.Fields["component"])
	}
	if entry.Fields["session_id"] != "s1" || entry.Fields["node_id"] != float64(4) {
		t.Errorf("fields = %v", entry.Fields)
	}
	if decode(t, got[1]).Fields != nil {
		t.Error("With leaked fields into the parent")
	}
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, DebugLevel)

	timer := StartTimer(logger, "engine pass", Operation("connect"))
	if d := timer.Done(nil); d < 0 {
		t.Errorf("negative elapsed %v", d)
	}
	timer = StartTimer(logger, "engine pass", Operation("attach"))
	timer.Done(errors.New("contact in use"))

	got := lines(&buf)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	ok := decode(t, got[0])
	if ok.Level != "DEBUG" || ok.Message != "engine pass" || ok.Fields["operation"] != "connect" {
		t.Errorf("success entry = %+v", ok)
	}
	if _, has := ok.Fields["latency"]; !has {
		t.Error("latency missing")
	}
	failed := decode(t, got[1])
	if failed.Level != "ERROR" || failed.Message != "engine pass failed" || failed.Fields["error"] != "contact in use" {
		t.Errorf("failure entry = %+v", failed)
	}
}

func TestNopLogger(t *testing.T) {
	var l Logger = NewNopLogger()
	l.Error("nothing")
	if l.With(Count(1)) != l {
		t.Error("NopLogger.With must return itself")
	}
}

func BenchmarkJSONLogger_Info(b *testing.B) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("benchmark message", NodeID(1), Count(42))
	}
}
