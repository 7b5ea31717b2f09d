package simulation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dd0wney/cluso-relaysim/pkg/journal"
	"github.com/dd0wney/cluso-relaysim/pkg/validation"
)

// Stimulus actions
const (
	ActionPress   = "press"
	ActionRelease = "release"
	ActionSource  = "source"
	ActionContact = "contact"
	ActionTick    = "tick"
	ActionSettle  = "settle"
	ActionLever   = "lever"
)

// Stimulus is one external input to a session. It is the unit journaled,
// sent over the bridge and listed in scripts.
type Stimulus struct {
	Action string `json:"action" yaml:"action" validate:"required,oneof=press release source contact tick settle lever"`
	Target string `json:"target,omitempty" yaml:"target,omitempty" validate:"omitempty,max=64,devname"`

	// source
	On bool `json:"on,omitempty" yaml:"on,omitempty"`

	// contact
	Up   bool `json:"up,omitempty" yaml:"up,omitempty"`
	Down bool `json:"down,omitempty" yaml:"down,omitempty"`

	// lever
	Position int `json:"position,omitempty" yaml:"position,omitempty"`

	// tick: number of ticks, settle: tick limit. Zero means the default.
	Count int `json:"count,omitempty" yaml:"count,omitempty" validate:"min=0,max=100000"`
}

// Validate checks the action and its arguments
func (st Stimulus) Validate() error {
	if err := validation.Struct(&st); err != nil {
		return err
	}
	if st.Target == "" && st.Action != ActionTick && st.Action != ActionSettle {
		return fmt.Errorf("%s: target is required", st.Action)
	}
	return nil
}

func (st Stimulus) String() string {
	switch st.Action {
	case ActionSource:
		return fmt.Sprintf("source %s %s", st.Target, onOff(st.On))
	case ActionContact:
		return fmt.Sprintf("contact %s up=%t down=%t", st.Target, st.Up, st.Down)
	case ActionLever:
		return fmt.Sprintf("lever %s %d", st.Target, st.Position)
	case ActionTick, ActionSettle:
		if st.Count > 0 {
			return fmt.Sprintf("%s %d", st.Action, st.Count)
		}
		return st.Action
	default:
		return st.Action + " " + st.Target
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// op maps an action to its journal record type
func (st Stimulus) op() journal.Op {
	switch st.Action {
	case ActionPress, ActionRelease:
		return journal.OpButton
	case ActionSource:
		return journal.OpSource
	case ActionContact:
		return journal.OpContact
	case ActionLever:
		return journal.OpLever
	default:
		return journal.OpTick
	}
}

func (st Stimulus) encode() ([]byte, error) {
	return json.Marshal(st)
}

// DecodeStimulus parses and validates the JSON form of a stimulus
func DecodeStimulus(data []byte) (Stimulus, error) {
	var st Stimulus
	if err := json.Unmarshal(data, &st); err != nil {
		return Stimulus{}, fmt.Errorf("invalid stimulus: %w", err)
	}
	if err := st.Validate(); err != nil {
		return Stimulus{}, err
	}
	return st, nil
}

// ParseLine parses the line form used by interactive scripts:
//
//	press PB
//	release PB
//	source B1 on|off
//	contact R1 up|down|none|both
//	lever LV 2
//	tick [n]
//	settle [limit]
func ParseLine(line string) (Stimulus, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Stimulus{}, errors.New("empty command")
	}
	st := Stimulus{Action: strings.ToLower(fields[0])}
	args := fields[1:]

	want := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s: expected %d arguments, got %d", st.Action, n, len(args))
		}
		return nil
	}

	switch st.Action {
	case ActionPress, ActionRelease:
		if err := want(1); err != nil {
			return Stimulus{}, err
		}
		st.Target = args[0]

	case ActionSource:
		if err := want(2); err != nil {
			return Stimulus{}, err
		}
		st.Target = args[0]
		switch args[1] {
		case "on":
			st.On = true
		case "off":
		default:
			return Stimulus{}, fmt.Errorf("source: want on or off, got %q", args[1])
		}

	case ActionContact:
		if err := want(2); err != nil {
			return Stimulus{}, err
		}
		st.Target = args[0]
		switch args[1] {
		case "up":
			st.Up = true
		case "down":
			st.Down = true
		case "both":
			st.Up, st.Down = true, true
		case "none":
		default:
			return Stimulus{}, fmt.Errorf("contact: want up, down, both or none, got %q", args[1])
		}

	case ActionLever:
		if err := want(2); err != nil {
			return Stimulus{}, err
		}
		st.Target = args[0]
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return Stimulus{}, fmt.Errorf("lever: invalid position %q", args[1])
		}
		st.Position = n

	case ActionTick, ActionSettle:
		if len(args) > 1 {
			return Stimulus{}, fmt.Errorf("%s: expected at most 1 argument, got %d", st.Action, len(args))
		}
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return Stimulus{}, fmt.Errorf("%s: invalid count %q", st.Action, args[0])
			}
			st.Count = n
		}

	default:
		return Stimulus{}, fmt.Errorf("unknown command %q", fields[0])
	}

	if err := st.Validate(); err != nil {
		return Stimulus{}, err
	}
	return st, nil
}
