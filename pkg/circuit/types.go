package circuit

// NodeID, CableID and CircuitID are arena handles. IDs start at 1 and are
// never reused, so a stale handle fails lookup instead of aliasing.
type (
	NodeID    uint64
	CableID   uint64
	CircuitID uint64
)

const (
	// NoContact marks a hop with no entrance (source hop) or no exit (last hop).
	NoContact = -1
	// AllContacts disables the contact filter of DisableCircuits/TruncateCircuits.
	AllContacts = -1
)

// Deviator contact indexes
const (
	ContactCommon = 0
	ContactUp     = 1
	ContactDown   = 2
)

// Pole is one of the two independent conductors of a cable
type Pole uint8

const (
	PoleFirst Pole = iota
	PoleSecond
)

// AllPoles lists both poles in index order
var AllPoles = [...]Pole{PoleFirst, PoleSecond}

// Opposite returns the other pole
func (p Pole) Opposite() Pole {
	if p == PoleFirst {
		return PoleSecond
	}
	return PoleFirst
}

func (p Pole) String() string {
	if p == PoleFirst {
		return "first"
	}
	return "second"
}

// ContactType is the per-pole routing mode of a contact
type ContactType uint8

const (
	// Routed lets the node decide the destination from its live state
	Routed ContactType = iota
	// Passthrough crosses Common<->Down unconditionally
	Passthrough
)

func (t ContactType) String() string {
	if t == Passthrough {
		return "passthrough"
	}
	return "routed"
}

// CircuitType distinguishes energized paths from partial traces
type CircuitType uint8

const (
	Closed CircuitType = iota
	Open
)

var circuitTypes = [...]CircuitType{Closed, Open}

func (t CircuitType) String() string {
	if t == Closed {
		return "closed"
	}
	return "open"
}

// ContactState is the tri-state used to highlight a contact or cable
type ContactState uint8

const (
	NoCircuit ContactState = iota
	OpenCircuit
	ClosedCircuit
)

func (s ContactState) String() string {
	switch s {
	case OpenCircuit:
		return "open"
	case ClosedCircuit:
		return "closed"
	default:
		return "none"
	}
}

// CableSide identifies one end of a cable
type CableSide uint8

const (
	SideA CableSide = iota
	SideB
)

// Opposite returns the other end
func (s CableSide) Opposite() CableSide {
	if s == SideA {
		return SideB
	}
	return SideA
}

func (s CableSide) String() string {
	if s == SideA {
		return "A"
	}
	return "B"
}

// CableMode selects which poles a cable carries
type CableMode uint8

const (
	// Unifilar carries PoleFirst only
	Unifilar CableMode = iota
	// Bifilar carries both poles
	Bifilar
)

func (m CableMode) String() string {
	if m == Bifilar {
		return "bifilar"
	}
	return "unifilar"
}

// Carries reports whether the mode includes pole p
func (m CableMode) Carries(p Pole) bool {
	return m == Bifilar || p == PoleFirst
}

// Kind is the closed set of node variants
type Kind uint8

const (
	KindPowerSource Kind = iota
	KindSink
	KindDeviator
	KindSwitch
	KindJunction
	KindDiode
)

func (k Kind) String() string {
	switch k {
	case KindPowerSource:
		return "power_source"
	case KindSink:
		return "sink"
	case KindDeviator:
		return "deviator"
	case KindSwitch:
		return "switch"
	case KindJunction:
		return "junction"
	case KindDiode:
		return "diode"
	default:
		return "unknown"
	}
}

// contactCount is fixed per kind
func (k Kind) contactCount() int {
	switch k {
	case KindPowerSource, KindSink:
		return 1
	case KindDeviator:
		return 3
	case KindJunction:
		return 4
	default:
		return 2
	}
}

// DeviatorFlavor names which device drives a deviator node
type DeviatorFlavor uint8

const (
	RelayContact DeviatorFlavor = iota
	ButtonContact
	ScreenRelayContact
	MagnetContact
)

func (f DeviatorFlavor) String() string {
	switch f {
	case ButtonContact:
		return "button"
	case ScreenRelayContact:
		return "screen_relay"
	case MagnetContact:
		return "magnet"
	default:
		return "relay"
	}
}

// SinkFlavor names what a sink represents
type SinkFlavor uint8

const (
	SinkCoil SinkFlavor = iota
	SinkLamp
	SinkReturn
)

func (f SinkFlavor) String() string {
	switch f {
	case SinkLamp:
		return "lamp"
	case SinkReturn:
		return "return"
	default:
		return "coil"
	}
}

// Polarity restricts which pole a sink accepts
type Polarity uint8

const (
	AnyPole Polarity = iota
	FirstOnly
	SecondOnly
)

// Accepts reports whether a circuit on pole p closes on this polarity
func (p Polarity) Accepts(pole Pole) bool {
	switch p {
	case FirstOnly:
		return pole == PoleFirst
	case SecondOnly:
		return pole == PoleSecond
	default:
		return true
	}
}

func (p Polarity) String() string {
	switch p {
	case FirstOnly:
		return "first"
	case SecondOnly:
		return "second"
	default:
		return "any"
	}
}

// Port is a contact seen on one pole, with the cable end attached to it.
// Cable is zero when the contact is loose or the cable does not carry Pole.
type Port struct {
	Contact int
	Pole    Pole
	Cable   CableID
	Side    CableSide
}

// Hop is one passage of a circuit through a node
type Hop struct {
	Node  NodeID
	From  int       // entrance contact, NoContact on the source hop
	To    int       // exit contact, NoContact on the last hop
	Cable CableID   // cable attached on To, zero if none
	Side  CableSide // side of Cable attached to this node
}

// CableEnd is one side of a cable. Node is zero for a loose end.
type CableEnd struct {
	Node    NodeID
	Contact int
}
