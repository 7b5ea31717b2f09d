package algorithms

import (
	"container/list"

	"github.com/dd0wney/cluso-relaysim/pkg/circuit"
)

// Loop is a cycle of the cable graph as a sequence of node IDs
type Loop []circuit.NodeID

type neighbor struct {
	node  circuit.NodeID
	cable circuit.CableID
}

// adjacency lists nodes joined by cables attached on both sides. Contacts
// and live state are ignored: this is the wiring, not the current.
func adjacency(g *circuit.Graph) map[circuit.NodeID][]neighbor {
	adj := make(map[circuit.NodeID][]neighbor)
	for _, c := range g.Cables() {
		a, b := c.End(circuit.SideA), c.End(circuit.SideB)
		if a.Node == 0 || b.Node == 0 {
			continue
		}
		adj[a.Node] = append(adj[a.Node], neighbor{b.Node, c.ID()})
		if a.Node != b.Node {
			adj[b.Node] = append(adj[b.Node], neighbor{a.Node, c.ID()})
		}
	}
	return adj
}

// ConnectedComponents groups nodes reachable from each other through cables,
// in node ID order. Nodes without cables form their own component.
func ConnectedComponents(g *circuit.Graph) [][]circuit.NodeID {
	adj := adjacency(g)
	visited := make(map[circuit.NodeID]bool)
	var components [][]circuit.NodeID

	for _, n := range g.Nodes() {
		start := n.ID()
		if visited[start] {
			continue
		}
		var component []circuit.NodeID
		queue := list.New()
		queue.PushBack(start)
		visited[start] = true

		for queue.Len() > 0 {
			id, ok := queue.Remove(queue.Front()).(circuit.NodeID)
			if !ok {
				continue
			}
			component = append(component, id)
			for _, nb := range adj[id] {
				if !visited[nb.node] {
					visited[nb.node] = true
					queue.PushBack(nb.node)
				}
			}
		}
		components = append(components, component)
	}
	return components
}

// DetectLoops finds the loops of the cable graph. A graph without loops is
// a forest, where EnumerateClosedPaths and the engine must agree exactly.
//
// Algorithm: depth-first search with three-color marking. The cable used to
// reach a node is not followed back, so two parallel cables between the same
// nodes still form a loop. A cable with both ends on one node is a loop of
// length one.
func DetectLoops(g *circuit.Graph) []Loop {
	const (
		white = iota
		gray
		black
	)
	adj := adjacency(g)
	color := make(map[circuit.NodeID]int)
	parent := make(map[circuit.NodeID]circuit.NodeID)
	var loops []Loop

	var visit func(id circuit.NodeID, via circuit.CableID)
	visit = func(id circuit.NodeID, via circuit.CableID) {
		color[id] = gray
		for _, nb := range adj[id] {
			switch {
			case nb.cable == via:
			case nb.node == id:
				loops = append(loops, Loop{id})
			case color[nb.node] == white:
				parent[nb.node] = id
				visit(nb.node, nb.cable)
			case color[nb.node] == gray:
				loops = append(loops, extractLoop(nb.node, id, parent))
			}
		}
		color[id] = black
	}

	for _, n := range g.Nodes() {
		if color[n.ID()] == white {
			visit(n.ID(), 0)
		}
	}
	return loops
}

// extractLoop walks parent pointers from end back to start
func extractLoop(start, end circuit.NodeID, parent map[circuit.NodeID]circuit.NodeID) Loop {
	loop := Loop{start}
	for cur := end; cur != start; {
		loop = append(loop, cur)
		p, ok := parent[cur]
		if !ok {
			break
		}
		cur = p
	}
	return loop
}

// IsForest reports whether the cable graph has no loops
func IsForest(g *circuit.Graph) bool {
	return len(DetectLoops(g)) == 0
}
