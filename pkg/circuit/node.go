package circuit

// contact is one port of a node
type contact struct {
	cable    CableID
	side     CableSide
	types    [2]ContactType // per pole
	entrance [2][2]int      // [CircuitType][Pole]
	exit     [2][2]int
}

// Node is a graph vertex. Exactly one of the kind payloads is set, matching
// kind.
type Node struct {
	id       NodeID
	name     string
	kind     Kind
	contacts []contact
	circuits [2][]*Circuit // by CircuitType, each circuit listed once
	graph    *Graph

	source   *sourceState
	sink     *sinkState
	deviator *deviatorState
	sw       *switchState
	junction *junctionState
}

// ID returns the node handle
func (n *Node) ID() NodeID { return n.id }

// Name returns the node label
func (n *Node) Name() string { return n.name }

// Kind returns the node variant
func (n *Node) Kind() Kind { return n.kind }

// ContactCount returns the fixed number of contacts
func (n *Node) ContactCount() int { return len(n.contacts) }

// Cable returns the cable attached to contact idx, zero if none
func (n *Node) Cable(idx int) (CableID, CableSide) {
	if idx < 0 || idx >= len(n.contacts) {
		return 0, SideA
	}
	return n.contacts[idx].cable, n.contacts[idx].side
}

// ContactType returns the routing mode of contact idx on pole p
func (n *Node) ContactType(idx int, p Pole) ContactType {
	if idx < 0 || idx >= len(n.contacts) {
		return Routed
	}
	return n.contacts[idx].types[p]
}

// Circuits returns the circuits of type t passing through the node
func (n *Node) Circuits(t CircuitType) []*Circuit {
	out := make([]*Circuit, len(n.circuits[t]))
	copy(out, n.circuits[t])
	return out
}

// HasCircuits reports whether any circuit passes through the node
func (n *Node) HasCircuits() bool {
	return len(n.circuits[Closed]) > 0 || len(n.circuits[Open]) > 0
}

// ContactStateForPole returns the tri-state of contact idx on pole p,
// derived from the circuit counters only.
func (n *Node) ContactStateForPole(idx int, p Pole) ContactState {
	if idx < 0 || idx >= len(n.contacts) {
		return NoCircuit
	}
	c := &n.contacts[idx]
	switch {
	case c.entrance[Closed][p] > 0 || c.exit[Closed][p] > 0:
		return ClosedCircuit
	case c.entrance[Open][p] > 0 || c.exit[Open][p] > 0:
		return OpenCircuit
	default:
		return NoCircuit
	}
}

// ContactState returns the strongest tri-state of contact idx over both poles
func (n *Node) ContactState(idx int) ContactState {
	best := NoCircuit
	for _, p := range AllPoles {
		if s := n.ContactStateForPole(idx, p); s > best {
			best = s
		}
	}
	return best
}

// ActiveConnections returns the ports current arriving on src reaches now.
// With invertDirection the question is reversed: which ports could current
// arriving on src have come from. The result has zero, one or two entries
// and the call has no side effects.
func (n *Node) ActiveConnections(src Port, invertDirection bool) []Port {
	if src.Contact < 0 || src.Contact >= len(n.contacts) || !n.contactExists(src.Contact) {
		return nil
	}

	switch n.kind {
	case KindDeviator:
		return n.deviatorConnections(src)
	case KindSwitch:
		if !n.sw.on {
			return nil
		}
		return []Port{n.port(1-src.Contact, src.Pole)}
	case KindJunction:
		var out []Port
		for i := range n.contacts {
			if i != src.Contact && n.contactExists(i) {
				out = append(out, n.port(i, src.Pole))
			}
		}
		return out
	case KindDiode:
		from := 0
		if invertDirection {
			from = 1
		}
		if src.Contact != from {
			return nil
		}
		return []Port{n.port(1-from, src.Pole)}
	default:
		// Sources and sinks terminate walks
		return nil
	}
}

// port resolves contact idx on pole p to its cable end. The cable is left
// zero if the contact is loose or the cable does not carry p.
func (n *Node) port(idx int, p Pole) Port {
	pt := Port{Contact: idx, Pole: p}
	c := n.contacts[idx]
	if c.cable == 0 {
		return pt
	}
	if cable, ok := n.graph.cables[c.cable]; ok && cable.mode.Carries(p) {
		pt.Cable = c.cable
		pt.Side = c.side
	}
	return pt
}

// contactExists reports whether contact idx is part of the current shape
func (n *Node) contactExists(idx int) bool {
	switch n.kind {
	case KindDeviator:
		return idx != ContactUp || n.deviator.centerTap
	case KindJunction:
		return idx != n.junction.disabled
	default:
		return true
	}
}

// isStaticPassage reports passages that do not depend on live state and so
// survive a contact opening
func (n *Node) isStaticPassage(from, to int, p Pole) bool {
	if n.kind != KindDeviator || from == NoContact || to == NoContact {
		return false
	}
	if n.contacts[from].types[p] != Passthrough {
		return false
	}
	return (from == ContactCommon && to == ContactDown) || (from == ContactDown && to == ContactCommon)
}

func (n *Node) hasEntrance(t CircuitType, idx int) bool {
	for _, p := range AllPoles {
		if n.contacts[idx].entrance[t][p] > 0 {
			return true
		}
	}
	return false
}

func (n *Node) attachCircuit(c *Circuit) {
	for _, other := range n.circuits[c.typ] {
		if other == c {
			return
		}
	}
	n.circuits[c.typ] = append(n.circuits[c.typ], c)
}

func (n *Node) detachCircuit(c *Circuit) {
	list := n.circuits[c.typ]
	for i, other := range list {
		if other == c {
			n.circuits[c.typ] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// checkNoCircuits enforces the topology edit precondition
func (n *Node) checkNoCircuits(op string) error {
	if n.HasCircuits() {
		return NewError(op).Node(n.id).Cause(ErrCircuitsLive).Err()
	}
	return nil
}

// SetContactType changes the routing mode of contact idx on pole p
func (g *Graph) SetContactType(id NodeID, idx int, p Pole, t ContactType) error {
	n, err := g.Node(id)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(n.contacts) {
		return NewError("SetContactType").Node(id).Contact(idx).Cause(ErrInvalidContact).Err()
	}
	if err := n.checkNoCircuits("SetContactType"); err != nil {
		return err
	}
	return g.run("set_contact_type", func() error {
		n.contacts[idx].types[p] = t
		g.publish(TopicShapeChanged, ShapeChanged{Node: id})
		return nil
	})
}

// ContactState returns the tri-state of a node contact
func (g *Graph) ContactState(id NodeID, idx int) (ContactState, error) {
	n, err := g.Node(id)
	if err != nil {
		return NoCircuit, err
	}
	if idx < 0 || idx >= len(n.contacts) {
		return NoCircuit, NewError("ContactState").Node(id).Contact(idx).Cause(ErrInvalidContact).Err()
	}
	return n.ContactState(idx), nil
}
