package circuit

// probe is a backward search state: forward current would leave node
// through contact, then run along trail to the goal.
type probe struct {
	node    NodeID
	contact int
	trail   []Hop
	depth   int
}

// DefaultReachNextOpenCircuit looks for current that could now reach each
// unpowered contact of the node from elsewhere in the graph, and extends
// the circuits carrying it. Idempotent.
func (g *Graph) DefaultReachNextOpenCircuit(id NodeID) error {
	n, err := g.Node(id)
	if err != nil {
		return err
	}
	return g.run("default_reach_next_open_circuit", func() error {
		g.defaultReachNextOpenCircuit(n)
		return nil
	})
}

func (g *Graph) defaultReachNextOpenCircuit(n *Node) {
	if n.kind == KindPowerSource {
		return
	}
	for idx := range n.contacts {
		if !n.contactExists(idx) {
			continue
		}
		for _, p := range AllPoles {
			if n.ContactStateForPole(idx, p) != NoCircuit {
				continue
			}
			g.tryReachNextOpenCircuit(n, idx, p)
		}
	}
}

// tryReachNextOpenCircuit searches backwards from contact idx of goal for
// the nearest node already carrying circuits on pole p.
//
// Algorithm:
//  1. Cross the cable on idx, then walk nodes with invertDirection=true.
//  2. Stop a branch at a contact where a Closed circuit enters: current
//     cannot leave there.
//  3. At the first node with circuits, join each circuit that can reach the
//     search contact with the reversed trail, and resume a forward walk at
//     goal so the result may still reach a sink.
func (g *Graph) tryReachNextOpenCircuit(goal *Node, idx int, p Pole) {
	start := goal.port(idx, p)
	cable, ok := g.cables[start.Cable]
	if !ok {
		return
	}
	far := cable.ends[start.Side.Opposite()]
	if _, ok := g.nodes[far.Node]; !ok || far.Node == goal.id {
		return
	}

	w := g.newWalker(p)
	probes := []probe{{node: far.Node, contact: far.Contact}}
	for len(probes) > 0 {
		cur := probes[len(probes)-1]
		probes = probes[:len(probes)-1]

		n := g.nodes[cur.node]
		if cur.depth > g.maxDepth {
			continue
		}
		if n.contacts[cur.contact].entrance[Closed][p] > 0 {
			continue
		}
		if hasCircuitsOnPole(n, p) {
			g.extendExistingCircuits(w, n, cur, goal, idx)
			continue
		}
		if n.kind == KindPowerSource || n.kind == KindSink {
			continue
		}

		for _, conn := range n.ActiveConnections(n.port(cur.contact, p), true) {
			if conn.Pole != p {
				continue
			}
			back, ok := g.cables[conn.Cable]
			if !ok {
				continue
			}
			next := back.ends[conn.Side.Opposite()]
			if _, ok := g.nodes[next.Node]; !ok || next.Node == goal.id {
				continue
			}
			if next.Node == n.id || containsPassage(cur.trail, next.Node, next.Contact) {
				continue
			}
			out := n.port(cur.contact, p)
			h := Hop{Node: n.id, From: conn.Contact, To: cur.contact, Cable: out.Cable, Side: out.Side}
			trail := make([]Hop, 0, len(cur.trail)+1)
			trail = append(trail, h)
			trail = append(trail, cur.trail...)
			probes = append(probes, probe{node: next.Node, contact: next.Contact, trail: trail, depth: cur.depth + 1})
		}
	}
	w.run()
}

// extendExistingCircuits joins every circuit through n that can leave n on
// cur.contact with cur.trail, and queues a walk arriving at goal.
func (g *Graph) extendExistingCircuits(w *walker, n *Node, cur probe, goal *Node, goalContact int) {
	if n.kind == KindPowerSource {
		return
	}
	out := n.port(cur.contact, w.pole)
	for _, t := range circuitTypes {
		for _, c := range n.Circuits(t) {
			if !c.enabled || c.pole != w.pole {
				continue
			}
			for i, h := range c.hops {
				if i == 0 || h.Node != n.id || h.To == cur.contact {
					continue
				}
				reaches := false
				for _, conn := range n.ActiveConnections(n.port(h.From, w.pole), false) {
					if conn.Contact == cur.contact {
						reaches = true
						break
					}
				}
				if !reaches {
					continue
				}

				hops := make([]Hop, 0, i+1+len(cur.trail))
				hops = append(hops, c.hops[:i]...)
				hops = append(hops, Hop{Node: n.id, From: h.From, To: cur.contact, Cable: out.Cable, Side: out.Side})
				hops = append(hops, cur.trail...)
				if hasRepeatedPassage(hops) {
					continue
				}
				w.pending = append(w.pending, walk{
					node:    goal.id,
					contact: goalContact,
					hops:    hops,
					depth:   len(hops),
				})
			}
		}
	}
}

func hasCircuitsOnPole(n *Node, p Pole) bool {
	for _, t := range circuitTypes {
		for _, c := range n.circuits[t] {
			if c.pole == p {
				return true
			}
		}
	}
	return false
}
