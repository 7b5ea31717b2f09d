package validation

import (
	"errors"
	"fmt"
	"time"
)

// ConfigValidator collects every failed check of a configuration value and
// reports them together. Checks chain.
type ConfigValidator struct {
	name   string
	errors []error
}

// NewConfigValidator starts a validator whose messages are prefixed by name
func NewConfigValidator(name string) *ConfigValidator {
	return &ConfigValidator{name: name}
}

func (cv *ConfigValidator) fail(field, format string, args ...any) *ConfigValidator {
	cv.errors = append(cv.errors, fmt.Errorf("%s.%s: %s", cv.name, field, fmt.Sprintf(format, args...)))
	return cv
}

// Required fails on an empty string
func (cv *ConfigValidator) Required(field, value string) *ConfigValidator {
	if value == "" {
		return cv.fail(field, "required field is empty")
	}
	return cv
}

// MinInt fails when value < min
func (cv *ConfigValidator) MinInt(field string, value, min int) *ConfigValidator {
	if value < min {
		return cv.fail(field, "value %d is below minimum %d", value, min)
	}
	return cv
}

// MaxInt fails when value > max
func (cv *ConfigValidator) MaxInt(field string, value, max int) *ConfigValidator {
	if value > max {
		return cv.fail(field, "value %d exceeds maximum %d", value, max)
	}
	return cv
}

// RangeFloat fails when value is outside [min, max]
func (cv *ConfigValidator) RangeFloat(field string, value, min, max float64) *ConfigValidator {
	if value < min || value > max {
		return cv.fail(field, "value %g is outside range [%g, %g]", value, min, max)
	}
	return cv
}

// MinDuration fails when value < min
func (cv *ConfigValidator) MinDuration(field string, value, min time.Duration) *ConfigValidator {
	if value < min {
		return cv.fail(field, "duration %v is below minimum %v", value, min)
	}
	return cv
}

// OneOf fails unless value is one of allowed
func (cv *ConfigValidator) OneOf(field, value string, allowed []string) *ConfigValidator {
	for _, a := range allowed {
		if value == a {
			return cv
		}
	}
	return cv.fail(field, "value %q must be one of %v", value, allowed)
}

// Custom records the error returned by fn, wrapped so errors.Is still matches
func (cv *ConfigValidator) Custom(field string, fn func() error) *ConfigValidator {
	if err := fn(); err != nil {
		cv.errors = append(cv.errors, fmt.Errorf("%s.%s: %w", cv.name, field, err))
	}
	return cv
}

// When runs validations only if condition holds
func (cv *ConfigValidator) When(condition bool, validations func(*ConfigValidator)) *ConfigValidator {
	if condition {
		validations(cv)
	}
	return cv
}

// Errors returns every recorded failure
func (cv *ConfigValidator) Errors() []error {
	return cv.errors
}

// Validate returns nil, the only failure, or a summary of all failures
// that still matches each of them with errors.Is
func (cv *ConfigValidator) Validate() error {
	switch len(cv.errors) {
	case 0:
		return nil
	case 1:
		return cv.errors[0]
	}
	return fmt.Errorf("%s validation failed with %d errors: %w", cv.name, len(cv.errors), errors.Join(cv.errors...))
}

// DefaultOr returns value unless it is the zero value
func DefaultOr[T comparable](value, defaultValue T) T {
	var zero T
	if value == zero {
		return defaultValue
	}
	return value
}
