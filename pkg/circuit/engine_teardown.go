package circuit

// DisableCircuits discards every enabled Closed circuit in circuits whose
// passage through the node matches contact (or AllContacts). The part of
// each circuit still fed up to the node is kept as an Open circuit.
// Calling it again with the same arguments is a no-op.
func (g *Graph) DisableCircuits(circuits []*Circuit, id NodeID, contact int) error {
	n, err := g.Node(id)
	if err != nil {
		return err
	}
	if contact < AllContacts || contact >= len(n.contacts) {
		return NewError("DisableCircuits").Node(id).Contact(contact).Cause(ErrInvalidContact).Err()
	}
	return g.run("disable_circuits", func() error {
		g.disableCircuits(circuits, n, contact)
		return nil
	})
}

// TruncateCircuits cuts every enabled Open circuit in circuits back to end
// inside the node, at the first passage matching contact (or AllContacts).
// Circuits fed by the node itself are discarded. Calling it again with the
// same arguments is a no-op.
func (g *Graph) TruncateCircuits(circuits []*Circuit, id NodeID, contact int) error {
	n, err := g.Node(id)
	if err != nil {
		return err
	}
	if contact < AllContacts || contact >= len(n.contacts) {
		return NewError("TruncateCircuits").Node(id).Contact(contact).Cause(ErrInvalidContact).Err()
	}
	return g.run("truncate_circuits", func() error {
		g.truncateCircuits(circuits, n, contact)
		return nil
	})
}

func (g *Graph) disableCircuits(circuits []*Circuit, n *Node, contact int) {
	for _, c := range circuits {
		if c == nil || !c.enabled || c.typ != Closed {
			continue
		}
		idx := c.passageIndex(n, contact)
		if idx < 0 {
			continue
		}
		g.disableOrTerminate(c, idx)
	}
}

// disableOrTerminate discards a Closed circuit broken at hop idx and
// reopens its prefix as an Open circuit ending in that node, provided the
// prefix still conducts and no other circuit already carries it further.
func (g *Graph) disableOrTerminate(c *Circuit, idx int) {
	g.discard(c, reasonDisabled)
	if idx == 0 {
		return
	}

	prefix := cutAt(c.hops, idx)
	if !g.prefixConducts(prefix, c.pole) || g.prefixContinues(c, prefix) {
		return
	}
	g.materialize(Open, c.pole, prefix)
}

func (g *Graph) truncateCircuits(circuits []*Circuit, n *Node, contact int) {
	for _, c := range circuits {
		if c == nil || !c.enabled || c.typ != Open {
			continue
		}
		idx := c.passageIndex(n, contact)
		if idx < 0 {
			continue
		}
		g.terminateAt(c, idx)
	}
}

// terminateAt shortens an Open circuit in place so it ends inside hop idx.
// The circuit is discarded when idx is its source, when an equal circuit
// already exists, or when another circuit carries the prefix further.
func (g *Graph) terminateAt(c *Circuit, idx int) {
	if idx == 0 {
		g.discard(c, reasonTruncated)
		return
	}
	if idx == len(c.hops)-1 && c.hops[idx].To == NoContact {
		return
	}

	prefix := cutAt(c.hops, idx)
	if g.prefixContinues(c, prefix) {
		g.discard(c, reasonTruncated)
		return
	}

	g.unlink(c)
	c.hops = prefix
	if !g.enable(c) {
		if g.metrics != nil {
			g.metrics.RecordCircuitDestroyed(c.typ.String(), reasonTruncated)
		}
	}
}

// cutAt copies hops[:idx+1] with the last hop ending inside its node
func cutAt(hops []Hop, idx int) []Hop {
	prefix := cloneHops(hops[:idx+1])
	last := &prefix[idx]
	last.To = NoContact
	last.Cable = 0
	last.Side = SideA
	return prefix
}

// prefixConducts re-derives every passage before the last hop from the
// nodes' current connections.
func (g *Graph) prefixConducts(hops []Hop, p Pole) bool {
	src, ok := g.nodes[hops[0].Node]
	if !ok || src.kind != KindPowerSource || !src.source.enabled || !src.source.poles[p] {
		return false
	}
	for i := 1; i < len(hops)-1; i++ {
		h := hops[i]
		n, ok := g.nodes[h.Node]
		if !ok {
			return false
		}
		found := false
		for _, conn := range n.ActiveConnections(n.port(h.From, p), false) {
			if conn.Contact == h.To && conn.Pole == p {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// prefixContinues reports whether another enabled circuit shares prefix
// and leaves its last node through some contact.
func (g *Graph) prefixContinues(self *Circuit, prefix []Hop) bool {
	idx := len(prefix) - 1
	n, ok := g.nodes[prefix[idx].Node]
	if !ok {
		return false
	}
	for _, t := range circuitTypes {
		for _, other := range n.circuits[t] {
			if other == self || !other.enabled || other.pole != self.pole || len(other.hops) <= idx {
				continue
			}
			h := other.hops[idx]
			if h.Node != n.id || h.From != prefix[idx].From || h.To == NoContact {
				continue
			}
			if hopsEqual(other.hops[:idx], prefix[:idx]) {
				return true
			}
		}
	}
	return false
}
