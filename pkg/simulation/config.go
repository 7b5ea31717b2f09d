package simulation

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-relaysim/pkg/validation"
)

const (
	// DefaultSettleLimit bounds a settle without an explicit count
	DefaultSettleLimit = 100
	// DefaultTickInterval is the wall clock time between ticks of a live session
	DefaultTickInterval = 100 * time.Millisecond
	// MinTickInterval keeps a live session from spinning
	MinTickInterval = 10 * time.Millisecond
)

// Config describes a session started from files. Durations are written as
// "250ms" in YAML.
type Config struct {
	Layout         string        `yaml:"layout,omitempty"`
	Journal        string        `yaml:"journal,omitempty"`
	SettleLimit    int           `yaml:"settle_limit,omitempty"`
	TickInterval   time.Duration `yaml:"tick_interval,omitempty"`
	VerifyEachStep bool          `yaml:"verify_each_step,omitempty"`
}

// Validate checks every field and reports all failures together
func (c Config) Validate() error {
	cv := validation.NewConfigValidator("session")
	cv.Required("layout", c.Layout)
	cv.MinInt("settle_limit", c.SettleLimit, 0)
	cv.MaxInt("settle_limit", c.SettleLimit, 100000)
	cv.When(c.TickInterval != 0, func(cv *validation.ConfigValidator) {
		cv.MinDuration("tick_interval", c.TickInterval, MinTickInterval)
	})
	return cv.Validate()
}

func (c Config) withDefaults() Config {
	c.SettleLimit = validation.DefaultOr(c.SettleLimit, DefaultSettleLimit)
	c.TickInterval = validation.DefaultOr(c.TickInterval, DefaultTickInterval)
	return c
}

// Interval returns the tick interval with its default applied
func (c Config) Interval() time.Duration {
	return c.withDefaults().TickInterval
}

// LoadConfig decodes a YAML session config. Unknown fields are errors.
// Layout may be left out for a caller to fill in, so the result is not
// validated.
func LoadConfig(r io.Reader) (Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var c Config
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to decode session config: %w", err)
	}
	return c, nil
}

// LoadConfigFile loads a session config from path
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open session config: %w", err)
	}
	defer f.Close()
	return LoadConfig(f)
}
