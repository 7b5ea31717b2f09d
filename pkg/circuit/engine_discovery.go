package circuit

import (
	"github.com/dd0wney/cluso-relaysim/pkg/logging"
)

// walk is one pending continuation: current arrives at contact of node
// after the hops already traced.
type walk struct {
	node    NodeID
	contact int
	hops    []Hop
	depth   int
}

// walker runs a worklist of walks on a single pole
type walker struct {
	g       *Graph
	pole    Pole
	pending []walk
}

func (g *Graph) newWalker(p Pole) *walker {
	return &walker{g: g, pole: p}
}

func (w *walker) materialize(t CircuitType, hops []Hop) {
	w.g.materialize(t, w.pole, hops)
}

// run processes walks in FIFO order until none are left
func (w *walker) run() {
	for len(w.pending) > 0 {
		cur := w.pending[0]
		w.pending = w.pending[1:]
		w.step(cur)
	}
}

// step handles current arriving at cur.node through cur.contact.
//
// Algorithm:
//  1. A contact already used by the walk ends it (cycle).
//  2. Sources absorb the walk; sinks close it when they accept the pole.
//  3. Otherwise every active connection is followed. A walk with no
//     connection leaves an Open circuit ending inside the node.
func (w *walker) step(cur walk) {
	g := w.g
	n, ok := g.nodes[cur.node]
	if !ok {
		return
	}
	if cur.depth > g.maxDepth {
		g.logger.Warn("walk depth limit reached",
			logging.NodeID(uint64(n.id)),
			logging.Count(cur.depth))
		return
	}
	if containsPassage(cur.hops, n.id, cur.contact) {
		return
	}

	hop := Hop{Node: n.id, From: cur.contact, To: NoContact}
	switch n.kind {
	case KindPowerSource:
		return
	case KindSink:
		t := Open
		if n.sink.polarity.Accepts(w.pole) {
			t = Closed
		}
		w.materialize(t, appendHop(cur.hops, hop))
		return
	}

	endsHere := true
	for _, conn := range n.ActiveConnections(n.port(cur.contact, w.pole), false) {
		if conn.Pole != w.pole {
			g.logger.Debug("pole change treated as circuit boundary",
				logging.NodeID(uint64(n.id)),
				logging.Contact(conn.Contact))
			continue
		}
		w.follow(n, hop, cur.hops, conn, cur.depth)
		endsHere = false
	}
	if endsHere && cur.depth > 0 {
		w.materialize(Open, appendHop(cur.hops, hop))
	}
}

// follow leaves n through conn. A loose end produces an Open circuit ending
// there; otherwise a walk is queued at the far end of the cable.
func (w *walker) follow(n *Node, hop Hop, prefix []Hop, conn Port, depth int) {
	g := w.g
	hop.To = conn.Contact
	hop.Cable = conn.Cable
	hop.Side = conn.Side
	hops := appendHop(prefix, hop)

	cable, ok := g.cables[conn.Cable]
	if !ok {
		w.materialize(Open, hops)
		return
	}
	far := cable.ends[conn.Side.Opposite()]
	farNode, ok := g.nodes[far.Node]
	if !ok {
		w.materialize(Open, hops)
		return
	}
	if far.Node == n.id && far.Contact == conn.Contact {
		return
	}
	// Never enter where a Closed circuit leaves
	if farNode.contacts[far.Contact].exit[Closed][w.pole] > 0 {
		return
	}
	w.pending = append(w.pending, walk{
		node:    far.Node,
		contact: far.Contact,
		hops:    hops,
		depth:   depth + 1,
	})
}

// CreateCircuitsFromPowerNode discovers every circuit fed by an enabled
// source
func (g *Graph) CreateCircuitsFromPowerNode(id NodeID) error {
	n, err := g.kindNode("CreateCircuitsFromPowerNode", id, KindPowerSource)
	if err != nil {
		return err
	}
	return g.run("create_from_power_node", func() error {
		g.createCircuitsFromPowerNode(n)
		return nil
	})
}

func (g *Graph) createCircuitsFromPowerNode(src *Node) {
	if !src.source.enabled {
		return
	}
	for _, p := range AllPoles {
		if !src.source.poles[p] {
			continue
		}
		w := g.newWalker(p)
		first := Hop{Node: src.id, From: NoContact, To: NoContact}
		w.follow(src, first, nil, src.port(0, p), 0)
		w.run()
	}
}

// CreateCircuitsFromOtherNode extends every circuit through a node along
// connections it does not follow yet. Call it after a node gains
// connections.
func (g *Graph) CreateCircuitsFromOtherNode(id NodeID) error {
	n, err := g.Node(id)
	if err != nil {
		return err
	}
	return g.run("create_from_other_node", func() error {
		g.createCircuitsFromOtherNode(n)
		return nil
	})
}

// createCircuitsFromOtherNode seeds walks at every passage of a circuit
// through n. An Open circuit that ended inside n is removed once it has a
// continuation, as a fresh walk would not stop there either. An Open
// circuit that leaves n through a loose contact is kept.
func (g *Graph) createCircuitsFromOtherNode(n *Node) {
	for _, t := range circuitTypes {
		for _, c := range n.Circuits(t) {
			if !c.enabled {
				continue
			}
			lastIdx := len(c.hops) - 1
			continued := false

			w := g.newWalker(c.pole)
			for i, h := range c.hops {
				if i == 0 || h.Node != n.id {
					continue
				}
				for _, conn := range n.ActiveConnections(n.port(h.From, c.pole), false) {
					if conn.Contact == h.To || conn.Pole != c.pole {
						continue
					}
					w.follow(n, Hop{Node: n.id, From: h.From, To: NoContact}, c.hops[:i], conn, i)
					if i == lastIdx && h.To == NoContact {
						continued = true
					}
				}
			}
			w.run()
			if continued && t == Open {
				g.discard(c, reasonSuperseded)
			}
		}
	}
}
