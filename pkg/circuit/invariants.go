package circuit

import (
	"fmt"
)

// CheckInvariants recomputes all bookkeeping from the enabled circuits and
// compares it with the stored counters. It returns an error wrapping
// ErrInvariant describing the first mismatch.
func (g *Graph) CheckInvariants() error {
	type portKey struct {
		node NodeID
		idx  int
	}
	entrance := make(map[portKey][2][2]int)
	exit := make(map[portKey][2][2]int)
	cables := make(map[CableID][2][2]int)
	members := make(map[NodeID]map[CircuitID]bool)
	seen := make(map[string]CircuitID)

	for _, t := range circuitTypes {
		for _, c := range g.Circuits(t) {
			if !c.enabled {
				return invariantError("circuit %d listed but disabled", c.id)
			}
			if len(c.hops) == 0 {
				return invariantError("circuit %d has no hops", c.id)
			}
			src, ok := g.nodes[c.hops[0].Node]
			if !ok || src.kind != KindPowerSource {
				return invariantError("circuit %d does not start at a source", c.id)
			}
			if hasRepeatedPassage(c.hops) {
				return invariantError("circuit %d reuses a contact", c.id)
			}
			if c.typ == Closed {
				last, ok := g.nodes[c.Last().Node]
				if !ok || last.kind != KindSink {
					return invariantError("closed circuit %d does not end at a sink", c.id)
				}
			}
			key := t.String() + "/" + c.Fingerprint()
			if other, dup := seen[key]; dup {
				return invariantError("circuits %d and %d share path %s", other, c.id, key)
			}
			seen[key] = c.id

			for _, h := range c.hops {
				n, ok := g.nodes[h.Node]
				if !ok {
					return invariantError("circuit %d references missing node %d", c.id, h.Node)
				}
				if members[h.Node] == nil {
					members[h.Node] = make(map[CircuitID]bool)
				}
				members[h.Node][c.id] = true
				if h.From != NoContact {
					k := portKey{h.Node, h.From}
					v := entrance[k]
					v[t][c.pole]++
					entrance[k] = v
				}
				if h.To != NoContact {
					k := portKey{h.Node, h.To}
					v := exit[k]
					v[t][c.pole]++
					exit[k] = v
					if cable, _ := n.Cable(h.To); h.Cable != 0 && cable != h.Cable {
						return invariantError("circuit %d leaves node %d on a detached cable", c.id, h.Node)
					}
				}
				if h.Cable != 0 {
					v := cables[h.Cable]
					v[t][c.pole]++
					cables[h.Cable] = v
				}
			}
		}
	}

	for _, n := range g.Nodes() {
		for idx := range n.contacts {
			k := portKey{n.id, idx}
			if n.contacts[idx].entrance != entrance[k] {
				return invariantError("node %d contact %d entrance counters %v, want %v",
					n.id, idx, n.contacts[idx].entrance, entrance[k])
			}
			if n.contacts[idx].exit != exit[k] {
				return invariantError("node %d contact %d exit counters %v, want %v",
					n.id, idx, n.contacts[idx].exit, exit[k])
			}
		}
		listed := len(n.circuits[Closed]) + len(n.circuits[Open])
		if listed != len(members[n.id]) {
			return invariantError("node %d lists %d circuits, want %d", n.id, listed, len(members[n.id]))
		}
		for _, t := range circuitTypes {
			for _, c := range n.circuits[t] {
				if !members[n.id][c.id] {
					return invariantError("node %d lists foreign circuit %d", n.id, c.id)
				}
			}
		}
	}

	for _, c := range g.Cables() {
		if c.count != cables[c.id] {
			return invariantError("cable %d counters %v, want %v", c.id, c.count, cables[c.id])
		}
	}
	return nil
}

func invariantError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
