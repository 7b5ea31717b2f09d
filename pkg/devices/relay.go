package devices

import (
	"fmt"
	"strings"

	"github.com/dd0wney/cluso-relaysim/pkg/circuit"
	"github.com/dd0wney/cluso-relaysim/pkg/logging"
)

// Position thresholds separating the resting states from travel
const (
	DownThreshold = 0.1
	UpThreshold   = 0.9

	DefaultSpeed = 0.25
)

// RelayType selects how a relay reacts to its coils
type RelayType uint8

const (
	// Normal picks up whenever any coil carries a closed circuit
	Normal RelayType = iota
	// Polarized picks up on first-pole current only
	Polarized
	// PolarizedInverted picks up on second-pole current only
	PolarizedInverted
	// Stabilized is driven up by its up coils and down by its down coils,
	// and stays put when neither is powered
	Stabilized
)

var relayTypeNames = map[RelayType]string{
	Normal:            "normal",
	Polarized:         "polarized",
	PolarizedInverted: "polarized_inverted",
	Stabilized:        "stabilized",
}

func (t RelayType) String() string {
	if s, ok := relayTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// ParseRelayType parses the names produced by RelayType.String
func ParseRelayType(s string) (RelayType, error) {
	for t, name := range relayTypeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return Normal, fmt.Errorf("unknown relay type %q", s)
}

// RelayState is the armature position class
type RelayState uint8

const (
	StateDown RelayState = iota
	StateGoingUp
	StateUp
	StateGoingDown
)

func (s RelayState) String() string {
	switch s {
	case StateGoingUp:
		return "going_up"
	case StateUp:
		return "up"
	case StateGoingDown:
		return "going_down"
	default:
		return "down"
	}
}

// RelayConfig describes a relay and the graph nodes it owns
type RelayConfig struct {
	Name      string
	Type      RelayType
	Coils     []circuit.NodeID
	DownCoils []circuit.NodeID // Stabilized only
	Contacts  []circuit.NodeID
	UpSpeed   float64 // position gained per tick
	DownSpeed float64
}

// Relay is an electromechanical relay. Its coils are sinks; its contacts are
// deviators it drives with SetContactState.
type Relay struct {
	cfg      RelayConfig
	set      *Set
	position float64
	state    RelayState
	target   float64
}

// Name returns the relay label
func (r *Relay) Name() string { return r.cfg.Name }

// Type returns the relay type
func (r *Relay) Type() RelayType { return r.cfg.Type }

// Config returns a copy of the relay configuration
func (r *Relay) Config() RelayConfig {
	cfg := r.cfg
	cfg.Coils = append([]circuit.NodeID(nil), r.cfg.Coils...)
	cfg.DownCoils = append([]circuit.NodeID(nil), r.cfg.DownCoils...)
	cfg.Contacts = append([]circuit.NodeID(nil), r.cfg.Contacts...)
	return cfg
}

// Position returns the armature position, 0 (down) to 1 (up)
func (r *Relay) Position() float64 { return r.position }

// State returns the position class
func (r *Relay) State() RelayState { return r.state }

// Moving reports whether the armature has not reached its target yet
func (r *Relay) Moving() bool { return r.position != r.target }

// owns reports whether id is one of the relay coils
func (r *Relay) owns(id circuit.NodeID) bool {
	for _, c := range r.cfg.Coils {
		if c == id {
			return true
		}
	}
	for _, c := range r.cfg.DownCoils {
		if c == id {
			return true
		}
	}
	return false
}

// coilsPowered evaluates coils for the relay type
func (r *Relay) coilsPowered(coils []circuit.NodeID) bool {
	g := r.set.graph
	for _, id := range coils {
		n, err := g.Node(id)
		if err != nil {
			continue
		}
		switch r.cfg.Type {
		case Polarized:
			if n.ContactStateForPole(0, circuit.PoleFirst) == circuit.ClosedCircuit {
				return true
			}
		case PolarizedInverted:
			if n.ContactStateForPole(0, circuit.PoleSecond) == circuit.ClosedCircuit {
				return true
			}
		default:
			if n.Powered() {
				return true
			}
		}
	}
	return false
}

// updateTarget recomputes where the armature is heading
func (r *Relay) updateTarget() {
	if r.cfg.Type != Stabilized {
		if r.coilsPowered(r.cfg.Coils) {
			r.target = 1
		} else {
			r.target = 0
		}
		return
	}
	up, down := r.coilsPowered(r.cfg.Coils), r.coilsPowered(r.cfg.DownCoils)
	switch {
	case up && !down:
		r.target = 1
	case down && !up:
		r.target = 0
	}
}

// tick moves the armature one step and returns whether it moved
func (r *Relay) tick() (bool, error) {
	if !r.Moving() {
		return false, nil
	}
	if r.target > r.position {
		r.position = min(r.target, r.position+r.cfg.UpSpeed)
	} else {
		r.position = max(r.target, r.position-r.cfg.DownSpeed)
	}
	return true, r.settle()
}

// settle derives the state from the position and drives the contacts on a
// state change
func (r *Relay) settle() error {
	var next RelayState
	switch {
	case r.position < DownThreshold:
		next = StateDown
	case r.position > UpThreshold:
		next = StateUp
	case r.target > r.position:
		next = StateGoingUp
	default:
		next = StateGoingDown
	}
	if next == r.state {
		return nil
	}
	r.state = next
	r.set.transition("relay", r.cfg.Name, next.String())

	up, down := false, false
	switch next {
	case StateUp:
		up = true
	case StateDown:
		down = true
	}
	for _, id := range r.cfg.Contacts {
		if err := r.set.graph.SetContactState(id, up, down); err != nil {
			return fmt.Errorf("relay %s: %w", r.cfg.Name, err)
		}
	}
	r.set.logger.Debug("relay moved",
		logging.String("relay", r.cfg.Name),
		logging.String("state", next.String()),
		logging.Float64("position", r.position))
	return nil
}
