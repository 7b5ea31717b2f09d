package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainClosesAndTruncates(t *testing.T) {
	c := newChain(t)
	g := c.g
	require.NoError(t, g.SetContactState(c.dev, true, false))
	require.NoError(t, g.SetSourceEnabled(c.src, true))
	requireInvariants(t, g)

	closed := g.Circuits(Closed)
	require.Len(t, closed, 1)
	assert.Empty(t, g.Circuits(Open))
	assert.Equal(t, 3, closed[0].Len())
	assert.Equal(t, "first:1/-1>0|2/0>1|3/0>-1", closed[0].Fingerprint())
	assert.Equal(t, c.src, closed[0].Source())

	coil, _ := g.Node(c.coil)
	dev, _ := g.Node(c.dev)
	assert.True(t, coil.Powered())
	assert.Equal(t, ClosedCircuit, dev.ContactState(ContactCommon))
	assert.Equal(t, ClosedCircuit, dev.ContactState(ContactUp))
	assert.Equal(t, NoCircuit, dev.ContactState(ContactDown))

	require.NoError(t, g.SetContactState(c.dev, false, false))
	requireInvariants(t, g)

	assert.Empty(t, g.Circuits(Closed))
	open := g.Circuits(Open)
	require.Len(t, open, 1)
	assert.Equal(t, 2, open[0].Len())
	assert.Equal(t, c.dev, open[0].Last().Node)
	assert.Equal(t, NoContact, open[0].Last().To)
	assert.Equal(t, "first:1/-1>0|2/0>-1", open[0].Fingerprint())
	assert.False(t, coil.Powered())
	assert.Equal(t, OpenCircuit, dev.ContactState(ContactCommon))
	assert.Equal(t, NoCircuit, dev.ContactState(ContactUp))

	cable, _ := dev.Cable(ContactUp)
	k, err := g.Cable(cable)
	require.NoError(t, err)
	assert.Equal(t, NoCircuit, k.State(PoleFirst))
}

func TestChainRoundTrip(t *testing.T) {
	c := newChain(t)
	g := c.g
	require.NoError(t, g.SetContactState(c.dev, true, false))
	require.NoError(t, g.SetSourceEnabled(c.src, true))
	before := fingerprints(g, Closed)

	require.NoError(t, g.SetContactState(c.dev, false, false))
	require.NoError(t, g.SetContactState(c.dev, true, false))
	requireInvariants(t, g)

	assert.Equal(t, before, fingerprints(g, Closed))
	assert.Empty(t, g.Circuits(Open), "the truncated trace is superseded")
}

func TestSourceDisableRemovesEverything(t *testing.T) {
	c := newChain(t)
	g := c.g
	require.NoError(t, g.SetSourceEnabled(c.src, true))
	require.Len(t, g.Circuits(Open), 1, "idle relay leaves an open trace")

	require.NoError(t, g.SetContactState(c.dev, true, false))
	require.Len(t, g.Circuits(Closed), 1)

	require.NoError(t, g.SetSourceEnabled(c.src, false))
	requireInvariants(t, g)
	assert.Empty(t, g.Circuits(Closed))
	assert.Empty(t, g.Circuits(Open))

	for _, n := range g.Nodes() {
		assert.False(t, n.HasCircuits(), "node %s", n.Name())
	}
}

func TestSharedJunction(t *testing.T) {
	g := NewGraph()
	src := g.AddPowerSource("battery")
	j := g.AddJunction("J")
	k1 := g.AddSink("K1", SinkCoil, AnyPole)
	k2 := g.AddSink("K2", SinkLamp, AnyPole)
	require.NoError(t, g.SetJunctionDisabledContact(j, 3))
	mustConnect(t, g, src, 0, j, 0)
	mustConnect(t, g, j, 1, k1, 0)
	mustConnect(t, g, j, 2, k2, 0)

	require.NoError(t, g.SetSourceEnabled(src, true))
	requireInvariants(t, g)

	closed := g.Circuits(Closed)
	require.Len(t, closed, 2)
	assert.Empty(t, g.Circuits(Open))

	jn, _ := g.Node(j)
	assert.Len(t, jn.Circuits(Closed), 2)
	assert.Equal(t, 2, jn.contacts[0].entrance[Closed][PoleFirst])
	assert.Equal(t, ClosedCircuit, jn.ContactState(1))
	assert.Equal(t, ClosedCircuit, jn.ContactState(2))

	sinks := map[NodeID]bool{}
	for _, c := range closed {
		sinks[c.Last().Node] = true
	}
	assert.Equal(t, map[NodeID]bool{k1: true, k2: true}, sinks)
}

func TestLooseEndLeavesOpenCircuit(t *testing.T) {
	g := NewGraph()
	src := g.AddPowerSource("battery")
	j := g.AddJunction("J")
	k := g.AddSink("K", SinkCoil, AnyPole)
	mustConnect(t, g, src, 0, j, 0)
	mustConnect(t, g, j, 1, k, 0)

	require.NoError(t, g.SetSourceEnabled(src, true))
	requireInvariants(t, g)

	assert.Len(t, g.Circuits(Closed), 1)
	open := g.Circuits(Open)
	require.Len(t, open, 2, "contacts 2 and 3 are loose")
	for _, c := range open {
		last := c.Last()
		assert.Equal(t, j, last.Node)
		assert.NotEqual(t, NoContact, last.To)
		assert.Zero(t, last.Cable)
	}
}

func TestSinkPolarity(t *testing.T) {
	g := NewGraph()
	src := g.AddPowerSource("battery", PoleFirst)
	k := g.AddSink("K", SinkCoil, SecondOnly)
	mustConnect(t, g, src, 0, k, 0)

	require.NoError(t, g.SetSourceEnabled(src, true))
	requireInvariants(t, g)

	assert.Empty(t, g.Circuits(Closed))
	open := g.Circuits(Open)
	require.Len(t, open, 1)
	assert.Equal(t, k, open[0].Last().Node)

	n, _ := g.Node(k)
	assert.False(t, n.Powered())
}

func TestBifilarCarriesBothPoles(t *testing.T) {
	g := NewGraph()
	src := g.AddPowerSource("battery", PoleFirst, PoleSecond)
	k := g.AddSink("K", SinkCoil, AnyPole)
	_, err := g.Connect(CableEnd{Node: src}, CableEnd{Node: k}, Bifilar)
	require.NoError(t, err)

	require.NoError(t, g.SetSourceEnabled(src, true))
	requireInvariants(t, g)

	assert.Equal(t, []string{"first:1/-1>0|2/0>-1", "second:1/-1>0|2/0>-1"}, fingerprints(g, Closed))
}

func TestUnifilarLeavesSecondPoleLoose(t *testing.T) {
	g := NewGraph()
	src := g.AddPowerSource("battery", PoleFirst, PoleSecond)
	k := g.AddSink("K", SinkCoil, AnyPole)
	cable, err := g.Connect(CableEnd{Node: src}, CableEnd{Node: k}, Unifilar)
	require.NoError(t, err)

	require.NoError(t, g.SetSourceEnabled(src, true))
	requireInvariants(t, g)
	assert.Equal(t, []string{"first:1/-1>0|2/0>-1"}, fingerprints(g, Closed))
	assert.Equal(t, []string{"second:1/-1>0"}, fingerprints(g, Open), "the cable does not carry the second pole")

	n, err := g.Node(src)
	require.NoError(t, err)
	assert.Equal(t, OpenCircuit, n.ContactStateForPole(0, PoleSecond))

	require.NoError(t, g.SetSourceEnabled(src, false))
	require.NoError(t, g.SetCableMode(cable, Bifilar))
	require.NoError(t, g.SetSourceEnabled(src, true))
	assert.Equal(t, []string{"first:1/-1>0|2/0>-1", "second:1/-1>0|2/0>-1"}, fingerprints(g, Closed))
	assert.Empty(t, fingerprints(g, Open))
}

func TestDiodeDirection(t *testing.T) {
	tests := []struct {
		name       string
		srcContact int
		sinkSide   int
		closed     int
	}{
		{"forward", 0, 1, 1},
		{"reverse", 1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph()
			src := g.AddPowerSource("battery")
			d := g.AddDiode("D")
			k := g.AddSink("K", SinkCoil, AnyPole)
			mustConnect(t, g, src, 0, d, tt.srcContact)
			mustConnect(t, g, d, tt.sinkSide, k, 0)

			require.NoError(t, g.SetSourceEnabled(src, true))
			requireInvariants(t, g)
			assert.Len(t, g.Circuits(Closed), tt.closed)
			if tt.closed == 0 {
				open := g.Circuits(Open)
				require.Len(t, open, 1)
				assert.Equal(t, d, open[0].Last().Node)
			}
		})
	}
}

func TestNoCurrentAgainstClosedCircuit(t *testing.T) {
	g := NewGraph()
	s1 := g.AddPowerSource("S1")
	s2 := g.AddPowerSource("S2")
	j1 := g.AddJunction("J1")
	j2 := g.AddJunction("J2")
	k1 := g.AddSink("K1", SinkCoil, AnyPole)
	k2 := g.AddSink("K2", SinkCoil, AnyPole)
	require.NoError(t, g.SetJunctionDisabledContact(j1, 3))
	require.NoError(t, g.SetJunctionDisabledContact(j2, 3))
	mustConnect(t, g, s1, 0, j1, 0)
	mustConnect(t, g, j1, 1, j2, 0)
	mustConnect(t, g, j1, 2, k2, 0)
	mustConnect(t, g, j2, 1, k1, 0)
	mustConnect(t, g, j2, 2, s2, 0)

	require.NoError(t, g.SetSourceEnabled(s1, true))
	require.Len(t, g.Circuits(Closed), 2)

	require.NoError(t, g.SetSourceEnabled(s2, true))
	requireInvariants(t, g)

	closed := g.Circuits(Closed)
	require.Len(t, closed, 3)
	for _, c := range closed {
		if c.Source() != s2 {
			continue
		}
		for _, h := range c.Hops() {
			assert.NotEqual(t, j1, h.Node, "S2 must not push current into J1 against S1")
		}
	}
}

func TestSwitchOpensAndCloses(t *testing.T) {
	g := NewGraph()
	src := g.AddPowerSource("battery")
	sw := g.AddSwitch("SW")
	k := g.AddSink("L", SinkLamp, AnyPole)
	mustConnect(t, g, src, 0, sw, 0)
	mustConnect(t, g, sw, 1, k, 0)
	require.NoError(t, g.SetSourceEnabled(src, true))

	assert.Empty(t, g.Circuits(Closed))
	require.NoError(t, g.SetSwitch(sw, true))
	assert.Len(t, g.Circuits(Closed), 1)
	require.NoError(t, g.SetSwitch(sw, false))
	requireInvariants(t, g)
	assert.Empty(t, g.Circuits(Closed))
	assert.Equal(t, []string{"first:1/-1>0|2/0>-1"}, fingerprints(g, Open))
}

func TestDownContactPicksUpSecondBranch(t *testing.T) {
	g := NewGraph()
	src := g.AddPowerSource("battery")
	dev := g.AddDeviator("R", RelayContact)
	up := g.AddSink("UP", SinkLamp, AnyPole)
	down := g.AddSink("DOWN", SinkLamp, AnyPole)
	mustConnect(t, g, src, 0, dev, ContactCommon)
	mustConnect(t, g, dev, ContactUp, up, 0)
	mustConnect(t, g, dev, ContactDown, down, 0)
	require.NoError(t, g.SetSourceEnabled(src, true))

	require.NoError(t, g.SetContactState(dev, true, false))
	require.Len(t, g.Circuits(Closed), 1)
	assert.Equal(t, up, g.Circuits(Closed)[0].Last().Node)

	require.NoError(t, g.SetContactState(dev, false, true))
	requireInvariants(t, g)
	closed := g.Circuits(Closed)
	require.Len(t, closed, 1)
	assert.Equal(t, down, closed[0].Last().Node)
	assert.Empty(t, g.Circuits(Open))
}

func TestExternalTeardownIsIdempotent(t *testing.T) {
	c := newChain(t)
	g := c.g
	require.NoError(t, g.SetContactState(c.dev, true, false))
	require.NoError(t, g.SetSourceEnabled(c.src, true))

	closed := g.Circuits(Closed)
	require.NoError(t, g.DisableCircuits(closed, c.dev, AllContacts))
	afterClosed, afterOpen := fingerprints(g, Closed), fingerprints(g, Open)
	require.NoError(t, g.DisableCircuits(closed, c.dev, AllContacts))
	assert.Equal(t, afterClosed, fingerprints(g, Closed))
	assert.Equal(t, afterOpen, fingerprints(g, Open))
	assert.Equal(t, []string{"first:1/-1>0|2/0>-1"}, afterOpen)

	open := g.Circuits(Open)
	require.NoError(t, g.TruncateCircuits(open, c.src, AllContacts))
	requireInvariants(t, g)
	assert.Empty(t, g.Circuits(Open))
	require.NoError(t, g.TruncateCircuits(open, c.src, AllContacts))
	assert.Empty(t, g.Circuits(Open))

	err := g.DisableCircuits(nil, c.dev, 7)
	assert.ErrorIs(t, err, ErrInvalidContact)
}

func TestTruncateKeepsPrefix(t *testing.T) {
	g := NewGraph()
	src := g.AddPowerSource("battery")
	sw := g.AddSwitch("SW")
	dev := g.AddDeviator("R", RelayContact)
	mustConnect(t, g, src, 0, sw, 0)
	mustConnect(t, g, sw, 1, dev, ContactCommon)
	require.NoError(t, g.SetSwitch(sw, true))
	require.NoError(t, g.SetSourceEnabled(src, true))
	require.Equal(t, []string{"first:1/-1>0|2/0>1|3/0>-1"}, fingerprints(g, Open))

	open := g.Circuits(Open)
	id := open[0].ID()
	require.NoError(t, g.TruncateCircuits(open, sw, AllContacts))
	requireInvariants(t, g)

	assert.Equal(t, []string{"first:1/-1>0|2/0>-1"}, fingerprints(g, Open))
	kept, ok := g.Circuit(id)
	require.True(t, ok, "truncation keeps the circuit handle")
	assert.Equal(t, 2, kept.Len())
}

func TestPrefixDoesNotReopenWhenAnotherBranchContinues(t *testing.T) {
	g := NewGraph()
	src := g.AddPowerSource("battery")
	dev := g.AddDeviator("R", RelayContact)
	up := g.AddSink("UP", SinkLamp, AnyPole)
	down := g.AddSink("DOWN", SinkLamp, AnyPole)
	mustConnect(t, g, src, 0, dev, ContactCommon)
	mustConnect(t, g, dev, ContactUp, up, 0)
	mustConnect(t, g, dev, ContactDown, down, 0)
	require.NoError(t, g.SetContactState(dev, true, true))
	require.NoError(t, g.SetSourceEnabled(src, true))
	require.Len(t, g.Circuits(Closed), 2)

	require.NoError(t, g.SetContactState(dev, false, true))
	requireInvariants(t, g)
	assert.Len(t, g.Circuits(Closed), 1)
	assert.Empty(t, g.Circuits(Open), "the Down branch still carries the prefix")
}

// newLooseDown is source -> deviator Common, Up -> lamp, Down left loose
func newLooseDown(t *testing.T) (*Graph, NodeID, NodeID) {
	t.Helper()
	g := NewGraph()
	src := g.AddPowerSource("battery")
	dev := g.AddDeviator("R", RelayContact)
	lamp := g.AddSink("L", SinkLamp, AnyPole)
	mustConnect(t, g, src, 0, dev, ContactCommon)
	mustConnect(t, g, dev, ContactUp, lamp, 0)
	return g, src, dev
}

func TestLooseContactTraceSurvivesOrder(t *testing.T) {
	type state struct{ up, down bool }
	tests := []struct {
		name  string
		steps []state
	}{
		{"up then both", []state{{true, false}, {true, true}}},
		{"down then both", []state{{false, true}, {true, true}}},
		{"idle then both", []state{{false, false}, {true, true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, src, dev := newLooseDown(t)
			require.NoError(t, g.SetSourceEnabled(src, true))
			for _, st := range tt.steps {
				require.NoError(t, g.SetContactState(dev, st.up, st.down))
				requireInvariants(t, g)
			}

			final := tt.steps[len(tt.steps)-1]
			fresh, freshSrc, freshDev := newLooseDown(t)
			require.NoError(t, fresh.SetContactState(freshDev, final.up, final.down))
			require.NoError(t, fresh.SetSourceEnabled(freshSrc, true))

			assert.Equal(t, fingerprints(fresh, Closed), fingerprints(g, Closed))
			assert.Equal(t, fingerprints(fresh, Open), fingerprints(g, Open))
			assert.Equal(t, []string{"first:1/-1>0|2/0>2"}, fingerprints(g, Open))

			n, _ := g.Node(dev)
			assert.Equal(t, OpenCircuit, n.ContactState(ContactDown))
			assert.Equal(t, ClosedCircuit, n.ContactState(ContactUp))
		})
	}
}

func TestSharedCommonTwoDeviators(t *testing.T) {
	g := NewGraph()
	src := g.AddPowerSource("battery")
	j := g.AddJunction("J")
	d1 := g.AddDeviator("R1", RelayContact)
	d2 := g.AddDeviator("R2", RelayContact)
	l1 := g.AddSink("L1", SinkLamp, AnyPole)
	l2 := g.AddSink("L2", SinkLamp, AnyPole)
	require.NoError(t, g.SetJunctionDisabledContact(j, 3))
	mustConnect(t, g, src, 0, j, 0)
	mustConnect(t, g, j, 1, d1, ContactCommon)
	mustConnect(t, g, j, 2, d2, ContactCommon)
	mustConnect(t, g, d1, ContactUp, l1, 0)
	mustConnect(t, g, d2, ContactUp, l2, 0)

	require.NoError(t, g.SetContactState(d1, true, false))
	require.NoError(t, g.SetContactState(d2, true, false))
	require.NoError(t, g.SetSourceEnabled(src, true))
	requireInvariants(t, g)

	closed := g.Circuits(Closed)
	require.Len(t, closed, 2)
	assert.Empty(t, g.Circuits(Open))
	jn, _ := g.Node(j)
	assert.Equal(t, 2, jn.contacts[0].entrance[Closed][PoleFirst])

	var second CircuitID
	for _, c := range closed {
		if c.Last().Node == l2 {
			second = c.ID()
		}
	}
	require.NotZero(t, second)

	require.NoError(t, g.SetContactState(d1, false, false))
	requireInvariants(t, g)

	closed = g.Circuits(Closed)
	require.Len(t, closed, 1)
	assert.Equal(t, second, closed[0].ID(), "the R2 circuit is untouched")
	assert.Equal(t, l2, closed[0].Last().Node)
	open := g.Circuits(Open)
	require.Len(t, open, 1)
	assert.Equal(t, d1, open[0].Last().Node)
	assert.Equal(t, NoContact, open[0].Last().To)
}
