// Package algorithms holds whole-graph analyses over a circuit.Graph: a
// brute-force enumeration of closed paths used to check the incremental
// engine, circuit statistics, and loop detection over the cable graph.
package algorithms

import (
	"sort"

	"github.com/dd0wney/cluso-relaysim/pkg/circuit"
)

// EnumerateClosedPaths walks every path from every enabled source on every
// pole it feeds, following ActiveConnections, and returns the sorted unique
// fingerprints of the paths ending in a sink that accepts the pole.
//
// Algorithm: plain depth-first search. A path never uses the same contact of
// a node twice, so the search terminates on any graph. It keeps no
// bookkeeping between calls and reads only public state, which makes it an
// independent check of the engine. Unlike the engine it does not refuse to
// enter contacts where another closed circuit leaves, so on graphs where two
// sources meet head on it may report paths the engine suppresses.
func EnumerateClosedPaths(g *circuit.Graph) []string {
	seen := make(map[string]struct{})
	for _, src := range g.Nodes() {
		if src.Kind() != circuit.KindPowerSource || !src.Enabled() {
			continue
		}
		for _, p := range circuit.AllPoles {
			if !src.Feeds(p) {
				continue
			}
			e := enumerator{g: g, pole: p, seen: seen}
			first := circuit.Hop{Node: src.ID(), From: circuit.NoContact}
			e.follow(first, nil, portOf(g, src, 0, p))
		}
	}

	out := make([]string, 0, len(seen))
	for fp := range seen {
		out = append(out, fp)
	}
	sort.Strings(out)
	return out
}

type enumerator struct {
	g    *circuit.Graph
	pole circuit.Pole
	seen map[string]struct{}
}

// follow leaves a node through port and visits the far end of its cable
func (e *enumerator) follow(hop circuit.Hop, prefix []circuit.Hop, port circuit.Port) {
	hop.To = port.Contact
	hop.Cable = port.Cable
	hop.Side = port.Side

	cable, err := e.g.Cable(port.Cable)
	if err != nil {
		return
	}
	far := cable.End(port.Side.Opposite())
	if far.Node == 0 || (far.Node == hop.Node && far.Contact == port.Contact) {
		return
	}
	// Branches share prefix, so each gets its own copy
	path := make([]circuit.Hop, len(prefix)+1)
	copy(path, prefix)
	path[len(prefix)] = hop
	e.visit(far.Node, far.Contact, path)
}

func (e *enumerator) visit(id circuit.NodeID, contact int, prefix []circuit.Hop) {
	n, err := e.g.Node(id)
	if err != nil || usesContact(prefix, id, contact) {
		return
	}
	hop := circuit.Hop{Node: id, From: contact, To: circuit.NoContact}

	switch n.Kind() {
	case circuit.KindPowerSource:
		return
	case circuit.KindSink:
		if n.Polarity().Accepts(e.pole) {
			e.seen[circuit.Fingerprint(e.pole, append(prefix, hop))] = struct{}{}
		}
		return
	}

	for _, conn := range n.ActiveConnections(portOf(e.g, n, contact, e.pole), false) {
		if conn.Pole == e.pole {
			e.follow(hop, prefix, conn)
		}
	}
}

func usesContact(hops []circuit.Hop, node circuit.NodeID, contact int) bool {
	for _, h := range hops {
		if h.Node == node && (h.From == contact || h.To == contact) {
			return true
		}
	}
	return false
}

// portOf resolves a contact on pole p to its cable end the way the engine
// does: the cable is left zero when the contact is loose or the cable does
// not carry p
func portOf(g *circuit.Graph, n *circuit.Node, idx int, p circuit.Pole) circuit.Port {
	pt := circuit.Port{Contact: idx, Pole: p}
	id, side := n.Cable(idx)
	if id == 0 {
		return pt
	}
	if c, err := g.Cable(id); err == nil && c.Mode().Carries(p) {
		pt.Cable = id
		pt.Side = side
	}
	return pt
}

// CompareClosed compares the engine's Closed circuits with
// EnumerateClosedPaths. missing lists paths the engine did not register,
// extra lists registered circuits no walk produces. Both are sorted.
func CompareClosed(g *circuit.Graph) (missing, extra []string) {
	want := EnumerateClosedPaths(g)
	var have []string
	for _, c := range g.Circuits(circuit.Closed) {
		have = append(have, c.Fingerprint())
	}
	sort.Strings(have)
	return difference(want, have), difference(have, want)
}

// difference returns the elements of sorted a not in sorted b
func difference(a, b []string) []string {
	var out []string
	i, j := 0, 0
	for i < len(a) {
		switch {
		case j >= len(b) || a[i] < b[j]:
			if len(out) == 0 || out[len(out)-1] != a[i] {
				out = append(out, a[i])
			}
			i++
		case a[i] > b[j]:
			j++
		default:
			i++
		}
	}
	return out
}
