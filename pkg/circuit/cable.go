package circuit

import (
	"sort"

	"github.com/dd0wney/cluso-relaysim/pkg/logging"
)

// Cable joins two node contacts. It only counts the circuits running on it;
// circuits reference cables by ID and never own them.
type Cable struct {
	id    CableID
	name  string
	mode  CableMode
	ends  [2]CableEnd
	count [2][2]int // [CircuitType][Pole]
}

// ID returns the cable handle
func (c *Cable) ID() CableID { return c.id }

// Name returns the cable label
func (c *Cable) Name() string { return c.name }

// Mode returns which poles the cable carries
func (c *Cable) Mode() CableMode { return c.mode }

// End returns the node contact attached on side s
func (c *Cable) End(s CableSide) CableEnd { return c.ends[s] }

// State returns the tri-state of pole p
func (c *Cable) State(p Pole) ContactState {
	switch {
	case c.count[Closed][p] > 0:
		return ClosedCircuit
	case c.count[Open][p] > 0:
		return OpenCircuit
	default:
		return NoCircuit
	}
}

// HasCircuits reports whether any circuit runs on the cable
func (c *Cable) HasCircuits() bool {
	for _, t := range circuitTypes {
		for _, p := range AllPoles {
			if c.count[t][p] > 0 {
				return true
			}
		}
	}
	return false
}

// AddCable creates a cable with both ends loose
func (g *Graph) AddCable(name string, mode CableMode) CableID {
	g.nextCableID++
	c := &Cable{id: CableID(g.nextCableID), name: name, mode: mode}
	g.cables[c.id] = c
	g.updateGraphMetrics()
	return c.id
}

// Cable returns the cable with the given handle
func (g *Graph) Cable(id CableID) (*Cable, error) {
	c, ok := g.cables[id]
	if !ok {
		return nil, NewError("get").Cable(id).Cause(ErrCableNotFound).Err()
	}
	return c, nil
}

// Cables returns all cables ordered by ID
func (g *Graph) Cables() []*Cable {
	out := make([]*Cable, 0, len(g.cables))
	for _, c := range g.cables {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Connect creates a cable between two node contacts
func (g *Graph) Connect(a, b CableEnd, mode CableMode) (CableID, error) {
	if err := g.checkAttach("Connect", a); err != nil {
		return 0, err
	}
	if err := g.checkAttach("Connect", b); err != nil {
		return 0, err
	}
	if a == b {
		return 0, NewError("Connect").Node(a.Node).Contact(a.Contact).Cause(ErrContactInUse).Err()
	}

	id := g.AddCable("", mode)
	err := g.run("connect", func() error {
		g.attach(g.cables[id], SideA, a)
		g.attach(g.cables[id], SideB, b)
		return nil
	})
	return id, err
}

// Attach plugs side s of a cable into a node contact
func (g *Graph) Attach(id CableID, s CableSide, end CableEnd) error {
	c, err := g.Cable(id)
	if err != nil {
		return err
	}
	if c.ends[s].Node != 0 {
		return NewError("Attach").Cable(id).Cause(ErrSideInUse).Err()
	}
	if err := g.checkAttach("Attach", end); err != nil {
		return err
	}
	if c.HasCircuits() {
		return NewError("Attach").Cable(id).Cause(ErrCircuitsLive).Err()
	}
	return g.run("attach", func() error {
		g.attach(c, s, end)
		return nil
	})
}

// Detach unplugs side s of a cable
func (g *Graph) Detach(id CableID, s CableSide) error {
	c, err := g.Cable(id)
	if err != nil {
		return err
	}
	if c.HasCircuits() {
		return NewError("Detach").Cable(id).Cause(ErrCircuitsLive).Err()
	}
	if end := c.ends[s]; end.Node != 0 {
		if n := g.nodes[end.Node]; n != nil && n.HasCircuits() {
			return NewError("Detach").Node(end.Node).Cause(ErrCircuitsLive).Err()
		}
	}
	return g.run("detach", func() error {
		g.detach(c, s)
		return nil
	})
}

// RemoveCable detaches both sides and deletes the cable
func (g *Graph) RemoveCable(id CableID) error {
	for _, s := range []CableSide{SideA, SideB} {
		if err := g.Detach(id, s); err != nil {
			return err
		}
	}
	delete(g.cables, id)
	g.updateGraphMetrics()
	return nil
}

// SetCableMode switches a cable between unifilar and bifilar. Both end
// nodes are redrawn.
func (g *Graph) SetCableMode(id CableID, mode CableMode) error {
	c, err := g.Cable(id)
	if err != nil {
		return err
	}
	if c.HasCircuits() {
		return NewError("SetCableMode").Cable(id).Cause(ErrCircuitsLive).Err()
	}
	for _, end := range c.ends {
		if n := g.nodes[end.Node]; n != nil && n.HasCircuits() {
			return NewError("SetCableMode").Node(end.Node).Cause(ErrCircuitsLive).Err()
		}
	}
	return g.run("set_cable_mode", func() error {
		if c.mode == mode {
			return nil
		}
		c.mode = mode
		g.logger.Debug("cable mode changed",
			logging.CableID(uint64(id)),
			logging.String("mode", mode.String()))
		for _, end := range c.ends {
			if _, ok := g.nodes[end.Node]; ok {
				g.publish(TopicShapeChanged, ShapeChanged{Node: end.Node})
			}
		}
		return nil
	})
}

func (g *Graph) checkAttach(op string, end CableEnd) error {
	n, err := g.Node(end.Node)
	if err != nil {
		return err
	}
	if end.Contact < 0 || end.Contact >= len(n.contacts) {
		return NewError(op).Node(end.Node).Contact(end.Contact).Cause(ErrInvalidContact).Err()
	}
	if !n.contactExists(end.Contact) {
		return NewError(op).Node(end.Node).Contact(end.Contact).Cause(ErrInvalidContact).Err()
	}
	if n.contacts[end.Contact].cable != 0 {
		return NewError(op).Node(end.Node).Contact(end.Contact).Cause(ErrContactInUse).Err()
	}
	if n.HasCircuits() {
		return NewError(op).Node(end.Node).Cause(ErrCircuitsLive).Err()
	}
	return nil
}

func (g *Graph) attach(c *Cable, s CableSide, end CableEnd) {
	n := g.nodes[end.Node]
	c.ends[s] = end
	n.contacts[end.Contact].cable = c.id
	n.contacts[end.Contact].side = s
	g.publish(TopicShapeChanged, ShapeChanged{Node: n.id})
}

func (g *Graph) detach(c *Cable, s CableSide) {
	end := c.ends[s]
	c.ends[s] = CableEnd{}
	if n, ok := g.nodes[end.Node]; ok && end.Contact >= 0 && end.Contact < len(n.contacts) {
		n.contacts[end.Contact].cable = 0
		g.publish(TopicShapeChanged, ShapeChanged{Node: n.id})
	}
}
