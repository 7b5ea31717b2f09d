package circuit

import (
	"strconv"
	"strings"

	"github.com/dd0wney/cluso-relaysim/pkg/logging"
)

// Reasons a circuit is discarded, used as metric labels
const (
	reasonDisabled   = "disabled"
	reasonTruncated  = "truncated"
	reasonSuperseded = "superseded"
	reasonReverse    = "reverse_voltage"
)

// Circuit is one traced path on a single pole. The first hop is always a
// power source. A Closed circuit ends inside a sink; an Open circuit ends
// wherever the current stopped.
type Circuit struct {
	id      CircuitID
	typ     CircuitType
	pole    Pole
	hops    []Hop
	enabled bool
}

// ID returns the circuit handle
func (c *Circuit) ID() CircuitID { return c.id }

// Type returns Open or Closed
func (c *Circuit) Type() CircuitType { return c.typ }

// Pole returns the pole the whole circuit runs on
func (c *Circuit) Pole() Pole { return c.pole }

// Enabled reports whether the circuit is registered on its nodes
func (c *Circuit) Enabled() bool { return c.enabled }

// Len returns the number of hops
func (c *Circuit) Len() int { return len(c.hops) }

// Hops returns a copy of the hop sequence
func (c *Circuit) Hops() []Hop { return cloneHops(c.hops) }

// Source returns the feeding power source
func (c *Circuit) Source() NodeID { return c.hops[0].Node }

// Last returns the final hop
func (c *Circuit) Last() Hop { return c.hops[len(c.hops)-1] }

// Fingerprint identifies the path independently of the circuit entity,
// e.g. "first:1/-1>0|4/0>1|7/0>-1".
func (c *Circuit) Fingerprint() string {
	return Fingerprint(c.pole, c.hops)
}

// Fingerprint formats a pole and hop sequence the way Circuit.Fingerprint does
func Fingerprint(p Pole, hops []Hop) string {
	var b strings.Builder
	b.WriteString(p.String())
	b.WriteByte(':')
	for i, h := range hops {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.FormatUint(uint64(h.Node), 10))
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(h.From))
		b.WriteByte('>')
		b.WriteString(strconv.Itoa(h.To))
	}
	return b.String()
}

// passageIndex returns the index of the first hop through n matching the
// contact filter, or -1. Static passages never match. With a contact filter,
// a hop that only enters on that contact and ends in the node is kept: its
// current still comes from outside.
func (c *Circuit) passageIndex(n *Node, filter int) int {
	for i, h := range c.hops {
		if h.Node != n.id {
			continue
		}
		if n.isStaticPassage(h.From, h.To, c.pole) {
			continue
		}
		if filter == AllContacts {
			return i
		}
		if h.From == filter && h.To == NoContact {
			continue
		}
		if h.From == filter || h.To == filter {
			return i
		}
	}
	return -1
}

func cloneHops(hops []Hop) []Hop {
	out := make([]Hop, len(hops))
	copy(out, hops)
	return out
}

// appendHop returns a new slice, never aliasing prefix
func appendHop(prefix []Hop, h Hop) []Hop {
	out := make([]Hop, len(prefix), len(prefix)+1)
	copy(out, prefix)
	return append(out, h)
}

func hopsEqual(a, b []Hop) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Node != b[i].Node || a[i].From != b[i].From || a[i].To != b[i].To {
			return false
		}
	}
	return true
}

// containsPassage reports whether contact idx of node is already used
func containsPassage(hops []Hop, node NodeID, idx int) bool {
	for _, h := range hops {
		if h.Node == node && (h.From == idx || h.To == idx) {
			return true
		}
	}
	return false
}

// hasRepeatedPassage reports a (node, contact) used twice
func hasRepeatedPassage(hops []Hop) bool {
	type key struct {
		node NodeID
		idx  int
	}
	seen := make(map[key]bool, 2*len(hops))
	for _, h := range hops {
		for _, idx := range []int{h.From, h.To} {
			if idx == NoContact {
				continue
			}
			k := key{h.Node, idx}
			if seen[k] {
				return true
			}
			seen[k] = true
		}
	}
	return false
}

// materialize registers a new circuit over hops unless an identical one
// exists. Returns nil for a duplicate.
func (g *Graph) materialize(t CircuitType, p Pole, hops []Hop) *Circuit {
	c := &Circuit{typ: t, pole: p, hops: hops}
	if !g.enable(c) {
		return nil
	}
	if t == Closed {
		g.pruneReverseOpen(c)
	}
	return c
}

// enable registers c on every node and cable it passes. It refuses a
// circuit whose type, pole and hops equal an enabled one.
func (g *Graph) enable(c *Circuit) bool {
	src, ok := g.nodes[c.hops[0].Node]
	if !ok {
		return false
	}
	for _, other := range src.circuits[c.typ] {
		if other != c && other.pole == c.pole && hopsEqual(other.hops, c.hops) {
			return false
		}
	}

	fresh := c.id == 0
	if fresh {
		g.nextCircuitID++
		c.id = CircuitID(g.nextCircuitID)
	}
	g.circuits[c.id] = c
	g.link(c, 1)
	c.enabled = true

	if fresh {
		if g.metrics != nil {
			g.metrics.RecordCircuitCreated(c.typ.String())
		}
		g.logger.Debug("circuit enabled",
			logging.CircuitID(uint64(c.id)),
			logging.String("type", c.typ.String()),
			logging.Pole(c.pole),
			logging.Count(len(c.hops)))
	}
	return true
}

// link adds delta to every counter c touches and keeps node lists in sync
func (g *Graph) link(c *Circuit, delta int) {
	for _, h := range c.hops {
		n, ok := g.nodes[h.Node]
		if !ok {
			continue
		}
		if delta > 0 {
			n.attachCircuit(c)
		}
		if h.From != NoContact {
			n.contacts[h.From].entrance[c.typ][c.pole] += delta
		}
		if h.To != NoContact {
			n.contacts[h.To].exit[c.typ][c.pole] += delta
		}
		if cable, ok := g.cables[h.Cable]; ok {
			cable.count[c.typ][c.pole] += delta
		}
		g.markDirty(n.id)
	}
	if delta < 0 {
		for _, h := range c.hops {
			if n, ok := g.nodes[h.Node]; ok {
				n.detachCircuit(c)
			}
		}
	}
}

// unlink unregisters c without dropping its identity
func (g *Graph) unlink(c *Circuit) {
	if !c.enabled {
		return
	}
	g.link(c, -1)
	c.enabled = false
	delete(g.circuits, c.id)
}

// discard unregisters c for good
func (g *Graph) discard(c *Circuit, reason string) {
	if !c.enabled {
		return
	}
	g.unlink(c)
	if g.metrics != nil {
		g.metrics.RecordCircuitDestroyed(c.typ.String(), reason)
	}
	g.logger.Debug("circuit discarded",
		logging.CircuitID(uint64(c.id)),
		logging.String("type", c.typ.String()),
		logging.String("reason", reason))
}

// pruneReverseOpen drops Open circuits entering a contact where closed
// leaves: their current would run against it.
func (g *Graph) pruneReverseOpen(closed *Circuit) {
	for _, h := range closed.hops {
		if h.To == NoContact {
			continue
		}
		n := g.nodes[h.Node]
		for _, open := range n.Circuits(Open) {
			if open.pole != closed.pole || !open.enabled {
				continue
			}
			for _, oh := range open.hops {
				if oh.Node == n.id && oh.From == h.To {
					g.discard(open, reasonReverse)
					break
				}
			}
		}
	}
}
