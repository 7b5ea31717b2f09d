package validation

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestConfigValidator_Checks(t *testing.T) {
	tests := []struct {
		name  string
		check func(cv *ConfigValidator)
		fails bool
	}{
		{"required empty", func(cv *ConfigValidator) { cv.Required("layout", "") }, true},
		{"required set", func(cv *ConfigValidator) { cv.Required("layout", "a.yaml") }, false},
		{"min below", func(cv *ConfigValidator) { cv.MinInt("settle", 0, 1) }, true},
		{"min equal", func(cv *ConfigValidator) { cv.MinInt("settle", 1, 1) }, false},
		{"max above", func(cv *ConfigValidator) { cv.MaxInt("nodes", 11, 10) }, true},
		{"max equal", func(cv *ConfigValidator) { cv.MaxInt("nodes", 10, 10) }, false},
		{"float inside", func(cv *ConfigValidator) { cv.RangeFloat("speed", 0.25, 0, 1) }, false},
		{"float above", func(cv *ConfigValidator) { cv.RangeFloat("speed", 1.5, 0, 1) }, true},
		{"float below", func(cv *ConfigValidator) { cv.RangeFloat("speed", -0.1, 0, 1) }, true},
		{"duration below", func(cv *ConfigValidator) { cv.MinDuration("tick", time.Millisecond, 10*time.Millisecond) }, true},
		{"duration ok", func(cv *ConfigValidator) { cv.MinDuration("tick", time.Second, 10*time.Millisecond) }, false},
		{"oneof hit", func(cv *ConfigValidator) { cv.OneOf("type", "stabilized", []string{"normal", "stabilized"}) }, false},
		{"oneof miss", func(cv *ConfigValidator) { cv.OneOf("type", "latching", []string{"normal", "stabilized"}) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cv := NewConfigValidator("session")
			tt.check(cv)
			if got := cv.Validate() != nil; got != tt.fails {
				t.Errorf("failed = %v, want %v (%v)", got, tt.fails, cv.Errors())
			}
		})
	}
}

func TestConfigValidator_MessagePrefix(t *testing.T) {
	err := NewConfigValidator("session").Required("layout", "").Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "session.layout: ") {
		t.Errorf("unexpected message %q", err)
	}
}

func TestConfigValidator_CustomWraps(t *testing.T) {
	sentinel := errors.New("contact taken")
	err := NewConfigValidator("layout").
		Custom("cables[1].a", func() error { return sentinel }).
		Validate()
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if !strings.Contains(err.Error(), "layout.cables[1].a") {
		t.Errorf("missing field in %q", err)
	}
}

func TestConfigValidator_When(t *testing.T) {
	cv := NewConfigValidator("layout")
	cv.When(false, func(cv *ConfigValidator) { cv.Required("skipped", "") })
	if len(cv.Errors()) != 0 {
		t.Fatalf("When(false) ran its checks: %v", cv.Errors())
	}
	cv.When(true, func(cv *ConfigValidator) { cv.Required("run", "") })
	if len(cv.Errors()) != 1 {
		t.Fatalf("When(true) did not run its checks")
	}
}

func TestConfigValidator_MultipleErrors(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	cv := NewConfigValidator("layout").
		Custom("a", func() error { return first }).
		Custom("b", func() error { return second }).
		MinInt("c", 0, 1)

	if len(cv.Errors()) != 3 {
		t.Fatalf("expected 3 errors, got %d", len(cv.Errors()))
	}
	err := cv.Validate()
	if !strings.Contains(err.Error(), "failed with 3 errors") {
		t.Errorf("unexpected summary %q", err)
	}
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Errorf("summary does not match the individual errors")
	}
}

func TestDefaultOr(t *testing.T) {
	if got := DefaultOr(0, 7); got != 7 {
		t.Errorf("DefaultOr(0, 7) = %d", got)
	}
	if got := DefaultOr(3, 7); got != 3 {
		t.Errorf("DefaultOr(3, 7) = %d", got)
	}
	if got := DefaultOr(time.Duration(0), time.Second); got != time.Second {
		t.Errorf("DefaultOr(0s, 1s) = %v", got)
	}
	if got := DefaultOr("", "relaysim"); got != "relaysim" {
		t.Errorf("DefaultOr(\"\", relaysim) = %q", got)
	}
}
