package devices

import (
	"fmt"

	"github.com/dd0wney/cluso-relaysim/pkg/circuit"
)

// Button is a momentary push button. Its contacts are made Down at rest and
// Up while pressed.
type Button struct {
	name     string
	contacts []circuit.NodeID
	pressed  bool
	set      *Set
}

// Name returns the button label
func (b *Button) Name() string { return b.name }

// Contacts returns the contact nodes the button drives
func (b *Button) Contacts() []circuit.NodeID {
	return append([]circuit.NodeID(nil), b.contacts...)
}

// Pressed reports the button position
func (b *Button) Pressed() bool { return b.pressed }

// Press pushes the button in
func (b *Button) Press() error { return b.SetPressed(true) }

// Release lets the button spring back
func (b *Button) Release() error { return b.SetPressed(false) }

// SetPressed moves the button; repeating the current position is a no-op
func (b *Button) SetPressed(pressed bool) error {
	if b.pressed == pressed {
		return nil
	}
	b.pressed = pressed
	b.set.transition("button", b.name, pressedName(pressed))
	return b.apply()
}

func (b *Button) apply() error {
	for _, id := range b.contacts {
		if err := b.set.graph.SetContactState(id, b.pressed, !b.pressed); err != nil {
			return fmt.Errorf("button %s: %w", b.name, err)
		}
	}
	return nil
}

func pressedName(pressed bool) string {
	if pressed {
		return "pressed"
	}
	return "released"
}

// Magnet is an electromagnet: its contacts follow the coils immediately.
type Magnet struct {
	name      string
	coils     []circuit.NodeID
	contacts  []circuit.NodeID
	energized bool
	set       *Set
}

// Name returns the magnet label
func (m *Magnet) Name() string { return m.name }

// Coils returns the coil sinks
func (m *Magnet) Coils() []circuit.NodeID { return append([]circuit.NodeID(nil), m.coils...) }

// Contacts returns the contact nodes the magnet drives
func (m *Magnet) Contacts() []circuit.NodeID { return append([]circuit.NodeID(nil), m.contacts...) }

// Energized reports whether any coil is powered
func (m *Magnet) Energized() bool { return m.energized }

func (m *Magnet) update() error {
	on := false
	for _, id := range m.coils {
		if n, err := m.set.graph.Node(id); err == nil && n.Powered() {
			on = true
			break
		}
	}
	changed := on != m.energized
	m.energized = on
	if changed {
		m.set.transition("magnet", m.name, energizedName(on))
	}
	for _, id := range m.contacts {
		if err := m.set.graph.SetContactState(id, on, !on); err != nil {
			return fmt.Errorf("magnet %s: %w", m.name, err)
		}
	}
	return nil
}

func energizedName(on bool) string {
	if on {
		return "energized"
	}
	return "released"
}

// Lamp shows whether its sink carries a closed circuit
type Lamp struct {
	name string
	sink circuit.NodeID
	set  *Set
}

// Name returns the lamp label
func (l *Lamp) Name() string { return l.name }

// Sink returns the lamp sink node
func (l *Lamp) Sink() circuit.NodeID { return l.sink }

// Lit reports whether the lamp is on
func (l *Lamp) Lit() bool {
	n, err := l.set.graph.Node(l.sink)
	return err == nil && n.Powered()
}
