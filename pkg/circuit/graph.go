package circuit

import (
	"sort"

	"github.com/dd0wney/cluso-relaysim/pkg/logging"
	"github.com/dd0wney/cluso-relaysim/pkg/metrics"
	"github.com/dd0wney/cluso-relaysim/pkg/pubsub"
)

// Graph owns every node, cable and circuit of a simulation by handle.
//
// A Graph is not safe for concurrent use. All calls must come from the
// goroutine that owns it. Each exported mutator runs one engine pass, then
// delivers queued notifications; handlers may call back into the graph.
type Graph struct {
	nodes    map[NodeID]*Node
	cables   map[CableID]*Cable
	circuits map[CircuitID]*Circuit

	nextNodeID    uint64
	nextCableID   uint64
	nextCircuitID uint64

	queue    *pubsub.Queue
	logger   logging.Logger
	metrics  *metrics.Registry
	maxDepth int

	inPass bool
	dirty  map[NodeID]struct{}
}

// NewGraph creates an empty graph
func NewGraph(opts ...Option) *Graph {
	g := &Graph{
		nodes:    make(map[NodeID]*Node),
		cables:   make(map[CableID]*Cable),
		circuits: make(map[CircuitID]*Circuit),
		queue:    pubsub.NewQueue(),
		logger:   logging.NewNopLogger(),
		maxDepth: DefaultMaxWalkDepth,
		dirty:    make(map[NodeID]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Queue returns the notification queue
func (g *Graph) Queue() *pubsub.Queue {
	return g.queue
}

// AddPowerSource adds a disabled source feeding the given poles (PoleFirst
// if none are given)
func (g *Graph) AddPowerSource(name string, poles ...Pole) NodeID {
	n := g.newNode(name, KindPowerSource)
	n.source = &sourceState{}
	if len(poles) == 0 {
		poles = []Pole{PoleFirst}
	}
	for _, p := range poles {
		n.source.poles[p] = true
	}
	return n.id
}

// AddSink adds a load that closes circuits arriving with an accepted pole
func (g *Graph) AddSink(name string, flavor SinkFlavor, polarity Polarity) NodeID {
	n := g.newNode(name, KindSink)
	n.sink = &sinkState{flavor: flavor, polarity: polarity}
	return n.id
}

// AddDeviator adds a Common/Up/Down contact of the given flavor, with
// both contacts open
func (g *Graph) AddDeviator(name string, flavor DeviatorFlavor) NodeID {
	n := g.newNode(name, KindDeviator)
	n.deviator = newDeviatorState(flavor)
	return n.id
}

// AddSwitch adds a two-contact on/off switch, initially off
func (g *Graph) AddSwitch(name string) NodeID {
	n := g.newNode(name, KindSwitch)
	n.sw = &switchState{}
	return n.id
}

// AddJunction adds a four-way junction with every contact enabled
func (g *Graph) AddJunction(name string) NodeID {
	n := g.newNode(name, KindJunction)
	n.junction = &junctionState{disabled: NoContact}
	return n.id
}

// AddDiode adds a node conducting from contact 0 to contact 1 only
func (g *Graph) AddDiode(name string) NodeID {
	return g.newNode(name, KindDiode).id
}

func (g *Graph) newNode(name string, kind Kind) *Node {
	g.nextNodeID++
	n := &Node{
		id:       NodeID(g.nextNodeID),
		name:     name,
		kind:     kind,
		contacts: make([]contact, kind.contactCount()),
		graph:    g,
	}
	g.nodes[n.id] = n
	g.updateGraphMetrics()
	return n
}

// Node returns the node with the given handle
func (g *Graph) Node(id NodeID) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, NewError("get").Node(id).Cause(ErrNodeNotFound).Err()
	}
	return n, nil
}

// Nodes returns all nodes ordered by ID
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// NodeByName returns the first node (lowest ID) with the given name
func (g *Graph) NodeByName(name string) (*Node, bool) {
	for _, n := range g.Nodes() {
		if n.name == name {
			return n, true
		}
	}
	return nil, false
}

// Circuits returns enabled circuits of type t ordered by ID
func (g *Graph) Circuits(t CircuitType) []*Circuit {
	out := make([]*Circuit, 0)
	for _, c := range g.circuits {
		if c.typ == t {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Circuit returns an enabled circuit by handle
func (g *Graph) Circuit(id CircuitID) (*Circuit, bool) {
	c, ok := g.circuits[id]
	return c, ok
}

// RemoveNode detaches all cables of a node and deletes it
func (g *Graph) RemoveNode(id NodeID) error {
	n, err := g.Node(id)
	if err != nil {
		return err
	}
	if n.HasCircuits() {
		return NewError("RemoveNode").Node(id).Cause(ErrCircuitsLive).Err()
	}
	return g.run("remove_node", func() error {
		for i := range n.contacts {
			if c := n.contacts[i].cable; c != 0 {
				g.detach(g.cables[c], n.contacts[i].side)
			}
		}
		delete(g.nodes, id)
		delete(g.dirty, id)
		g.updateGraphMetrics()
		return nil
	})
}

// run executes one top-level engine pass: fn, then dirty-node bookkeeping,
// then notification delivery.
func (g *Graph) run(op string, fn func() error) error {
	if g.inPass {
		return NewError(op).Cause(ErrReentrantPass).Err()
	}

	g.inPass = true
	timer := logging.StartTimer(g.logger, "engine pass", logging.Operation(op))
	err := fn()
	g.flushDirty()
	g.inPass = false
	elapsed := timer.Done(err)

	if g.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		g.metrics.RecordEnginePass(op, status, elapsed)
		g.metrics.SetActiveCircuits(len(g.Circuits(Closed)), len(g.Circuits(Open)))
	}

	g.drain()
	return err
}

func (g *Graph) drain() {
	n := g.queue.Drain()
	if g.metrics != nil {
		g.metrics.RecordDeferredTasks(n)
	}
}

// flushDirty turns bookkeeping changes of this pass into notifications
func (g *Graph) flushDirty() {
	if len(g.dirty) == 0 {
		return
	}
	ids := make([]NodeID, 0, len(g.dirty))
	for id := range g.dirty {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	g.dirty = make(map[NodeID]struct{})

	for _, id := range ids {
		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		g.publish(TopicContactsChanged, ContactsChanged{Node: id})
		if n.kind != KindSink {
			continue
		}
		powered := n.hasEntrance(Closed, 0)
		if powered != n.sink.powered {
			n.sink.powered = powered
			g.publish(TopicSinkPower, SinkPowerChanged{Node: id, Powered: powered})
		}
	}
}

func (g *Graph) markDirty(id NodeID) {
	g.dirty[id] = struct{}{}
}

func (g *Graph) updateGraphMetrics() {
	if g.metrics != nil {
		g.metrics.UpdateGraphMetrics(len(g.nodes), len(g.cables))
	}
}
