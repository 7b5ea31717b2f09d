package devices

import (
	"fmt"
	"math"
	"strings"

	"github.com/dd0wney/cluso-relaysim/pkg/circuit"
	"github.com/dd0wney/cluso-relaysim/pkg/logging"
)

// Screen travel per tick and the distance from the center below which the
// screen drops straight onto it
const (
	ScreenStep = 0.08
	ScreenSnap = 0.2

	screenEpsilon = 1e-9
)

// ScreenType selects the screen travel range
type ScreenType uint8

const (
	// Centered rests at 0 and swings to 1 or -1
	Centered ScreenType = iota
	// Decentered rests at 0 and travels through 1 to 2
	Decentered
)

func (t ScreenType) String() string {
	if t == Decentered {
		return "decentered"
	}
	return "centered"
}

// ParseScreenType parses the names produced by ScreenType.String
func ParseScreenType(s string) (ScreenType, error) {
	switch strings.ToLower(s) {
	case "", "centered":
		return Centered, nil
	case "decentered":
		return Decentered, nil
	}
	return Centered, fmt.Errorf("unknown screen type %q", s)
}

// ScreenPower is the current seen by the power sink
type ScreenPower uint8

const (
	PowerNone ScreenPower = iota
	PowerDirect
	PowerReversed
)

func (p ScreenPower) String() string {
	switch p {
	case PowerDirect:
		return "direct"
	case PowerReversed:
		return "reversed"
	default:
		return "none"
	}
}

// ScreenContact is the state of one contact group
type ScreenContact uint8

const (
	ContactStraight ScreenContact = iota
	ContactMiddle
	ContactReversed
)

func (c ScreenContact) String() string {
	switch c {
	case ContactMiddle:
		return "middle"
	case ContactReversed:
		return "reversed"
	default:
		return "straight"
	}
}

// ScreenRelayConfig describes a screen relay. Power is the sink whose pole
// decides the screen direction; zero leaves the screen unpowered.
type ScreenRelayConfig struct {
	Name      string
	Type      ScreenType
	Power     circuit.NodeID
	ContactsA []circuit.NodeID
	ContactsB []circuit.NodeID
}

// ScreenRelay moves a coloured screen by current direction. First-pole
// current drives it to 1, second-pole current to the far end, no current
// back to 0. Contact group A reverses as the screen leaves 0, group B only
// at the far end.
type ScreenRelay struct {
	cfg      ScreenRelayConfig
	set      *Set
	power    ScreenPower
	position float64
	target   float64
	stateA   ScreenContact
	stateB   ScreenContact
}

// Name returns the screen relay label
func (s *ScreenRelay) Name() string { return s.cfg.Name }

// Type returns the screen type
func (s *ScreenRelay) Type() ScreenType { return s.cfg.Type }

// Config returns a copy of the configuration
func (s *ScreenRelay) Config() ScreenRelayConfig {
	cfg := s.cfg
	cfg.ContactsA = append([]circuit.NodeID(nil), s.cfg.ContactsA...)
	cfg.ContactsB = append([]circuit.NodeID(nil), s.cfg.ContactsB...)
	return cfg
}

// Power returns the last evaluated power state
func (s *ScreenRelay) Power() ScreenPower { return s.power }

// Position returns the screen position
func (s *ScreenRelay) Position() float64 { return s.position }

// ContactA returns the state of contact group A
func (s *ScreenRelay) ContactA() ScreenContact { return s.stateA }

// ContactB returns the state of contact group B
func (s *ScreenRelay) ContactB() ScreenContact { return s.stateB }

// Moving reports whether the screen has not reached its target yet
func (s *ScreenRelay) Moving() bool { return math.Abs(s.target-s.position) > screenEpsilon }

func (s *ScreenRelay) owns(id circuit.NodeID) bool {
	return s.cfg.Power != 0 && s.cfg.Power == id
}

func (s *ScreenRelay) center() float64 {
	if s.cfg.Type == Decentered {
		return 1
	}
	return 0
}

func screenTarget(t ScreenType, p ScreenPower) float64 {
	switch p {
	case PowerDirect:
		return 1
	case PowerReversed:
		if t == Decentered {
			return 2
		}
		return -1
	default:
		return 0
	}
}

// updatePower reads the power sink pole by pole. First-pole current wins
// when both poles are closed.
func (s *ScreenRelay) updatePower() {
	p := PowerNone
	if s.cfg.Power != 0 {
		if n, err := s.set.graph.Node(s.cfg.Power); err == nil {
			switch {
			case n.ContactStateForPole(0, circuit.PoleFirst) == circuit.ClosedCircuit:
				p = PowerDirect
			case n.ContactStateForPole(0, circuit.PoleSecond) == circuit.ClosedCircuit:
				p = PowerReversed
			}
		}
	}
	if p == s.power {
		return
	}
	s.power = p
	s.target = screenTarget(s.cfg.Type, p)
	s.set.transition("screen_relay", s.cfg.Name, p.String())
}

func (s *ScreenRelay) tick() (bool, error) {
	if !s.Moving() {
		return false, nil
	}
	next := s.position
	if s.target > next {
		next = math.Min(s.target, next+ScreenStep)
	} else {
		next = math.Max(s.target, next-ScreenStep)
	}
	c := s.center()
	if math.Abs(s.target-c) < screenEpsilon && math.Abs(s.position-s.target) < ScreenSnap {
		next = c
	}
	s.position = next
	return true, s.apply(false)
}

// contactStates maps the position onto both contact groups
func (s *ScreenRelay) contactStates() (ScreenContact, ScreenContact) {
	a := ContactStraight
	switch {
	case s.position > 0.8:
		a = ContactReversed
	case s.position > 0.2:
		a = ContactMiddle
	}

	b := ContactStraight
	if s.cfg.Type == Decentered {
		switch {
		case s.position > 1.8:
			b = ContactReversed
		case s.position > 1.2:
			b = ContactMiddle
		}
	} else {
		switch {
		case s.position < -0.8:
			b = ContactReversed
		case s.position < -0.2:
			b = ContactMiddle
		}
	}
	return a, b
}

// apply drives the contact groups whose state changed, or all of them when
// force is set
func (s *ScreenRelay) apply(force bool) error {
	a, b := s.contactStates()
	if force || a != s.stateA {
		if err := s.drive(s.cfg.ContactsA, a); err != nil {
			return err
		}
	}
	if force || b != s.stateB {
		if err := s.drive(s.cfg.ContactsB, b); err != nil {
			return err
		}
	}
	if a != s.stateA || b != s.stateB {
		s.set.logger.Debug("screen moved",
			logging.String("screen_relay", s.cfg.Name),
			logging.String("contact_a", a.String()),
			logging.String("contact_b", b.String()),
			logging.Float64("position", s.position))
	}
	s.stateA, s.stateB = a, b
	return nil
}

func (s *ScreenRelay) drive(ids []circuit.NodeID, state ScreenContact) error {
	for _, id := range ids {
		if err := s.set.graph.SetContactState(id, state == ContactStraight, state == ContactReversed); err != nil {
			return fmt.Errorf("screen relay %s: %w", s.cfg.Name, err)
		}
	}
	return nil
}
