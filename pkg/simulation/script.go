package simulation

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-relaysim/pkg/circuit"
	"github.com/dd0wney/cluso-relaysim/pkg/devices"
	"github.com/dd0wney/cluso-relaysim/pkg/validation"
)

// Script is a list of stimuli with optional expectations after each one
type Script struct {
	Name  string `yaml:"name,omitempty"`
	Steps []Step `yaml:"steps" validate:"required,min=1"`
}

// Step applies one stimulus, then checks Expect if present
type Step struct {
	Stimulus `yaml:",inline"`
	Expect   *Expectation `yaml:"expect,omitempty"`
}

// Expectation names the state a layout must be in. Relays are checked by
// their state class, so a relay still travelling is neither up nor down.
type Expectation struct {
	Lit    []string `yaml:"lit,omitempty"`
	Dark   []string `yaml:"dark,omitempty"`
	Up     []string `yaml:"up,omitempty"`
	Down   []string `yaml:"down,omitempty"`
	Closed *int     `yaml:"closed,omitempty"`
}

// ExpectationError reports the failed checks of one step
type ExpectationError struct {
	Step     int
	Stimulus Stimulus
	Problems []string
}

func (e *ExpectationError) Error() string {
	return fmt.Sprintf("step %d (%s): %s", e.Step, e.Stimulus, strings.Join(e.Problems, "; "))
}

// LoadScript decodes and validates a YAML script. Unknown fields are errors.
func LoadScript(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sc Script
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("script is empty")
		}
		return nil, fmt.Errorf("failed to decode script: %w", err)
	}
	if err := validation.Struct(&sc); err != nil {
		return nil, err
	}
	for i, step := range sc.Steps {
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return &sc, nil
}

// LoadScriptFile loads a script from path
func LoadScriptFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()
	return LoadScript(f)
}

// Run applies every step in order and stops at the first failure, which is
// either the stimulus error or an *ExpectationError. It returns the number
// of steps completed.
func (s *Session) Run(sc *Script) (int, error) {
	for i, step := range sc.Steps {
		if err := s.Apply(step.Stimulus); err != nil {
			return i, fmt.Errorf("step %d (%s): %w", i+1, step.Stimulus, err)
		}
		if step.Expect == nil {
			continue
		}
		if problems := s.Check(*step.Expect); len(problems) > 0 {
			return i, &ExpectationError{Step: i + 1, Stimulus: step.Stimulus, Problems: problems}
		}
	}
	return len(sc.Steps), nil
}

// Check returns a description of every expectation e does not meet
func (s *Session) Check(e Expectation) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var problems []string
	set := s.layout.Devices
	lamp := func(name string, lit bool) {
		l, err := set.Lamp(name)
		if err != nil {
			problems = append(problems, err.Error())
			return
		}
		if l.Lit() != lit {
			problems = append(problems, fmt.Sprintf("lamp %s is %s", name, litWord(l.Lit())))
		}
	}
	relay := func(name string, want devices.RelayState) {
		r, err := set.Relay(name)
		if err != nil {
			problems = append(problems, err.Error())
			return
		}
		if r.State() != want {
			problems = append(problems, fmt.Sprintf("relay %s is %s, want %s", name, r.State(), want))
		}
	}

	for _, name := range e.Lit {
		lamp(name, true)
	}
	for _, name := range e.Dark {
		lamp(name, false)
	}
	for _, name := range e.Up {
		relay(name, devices.StateUp)
	}
	for _, name := range e.Down {
		relay(name, devices.StateDown)
	}
	if e.Closed != nil {
		if got := len(s.layout.Graph.Circuits(circuit.Closed)); got != *e.Closed {
			problems = append(problems, fmt.Sprintf("%d closed circuits, want %d", got, *e.Closed))
		}
	}
	return problems
}

func litWord(lit bool) string {
	if lit {
		return "lit"
	}
	return "dark"
}
