package circuit

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-relaysim/pkg/logging"
)

func TestHandlesAreNeverReused(t *testing.T) {
	g := NewGraph()
	a := g.AddJunction("a")
	require.NoError(t, g.RemoveNode(a))
	b := g.AddJunction("b")
	assert.NotEqual(t, a, b)

	_, err := g.Node(a)
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = g.Cable(42)
	assert.ErrorIs(t, err, ErrCableNotFound)
}

func TestLiveTopologyEditsAreRejected(t *testing.T) {
	c := newChain(t)
	g := c.g
	require.NoError(t, g.SetContactState(c.dev, true, false))
	require.NoError(t, g.SetSourceEnabled(c.src, true))
	dev, _ := g.Node(c.dev)
	upCable, _ := dev.Cable(ContactUp)
	before := fingerprints(g, Closed)

	spare := g.AddSink("spare", SinkLamp, AnyPole)

	tests := []struct {
		name string
		op   func() error
	}{
		{"remove node", func() error { return g.RemoveNode(c.dev) }},
		{"detach cable", func() error { return g.Detach(upCable, SideA) }},
		{"remove cable", func() error { return g.RemoveCable(upCable) }},
		{"cable mode", func() error { return g.SetCableMode(upCable, Bifilar) }},
		{"connect to live node", func() error {
			_, err := g.Connect(CableEnd{Node: c.dev, Contact: ContactDown}, CableEnd{Node: spare}, Unifilar)
			return err
		}},
		{"flip", func() error { return g.SetFlip(c.dev, true) }},
		{"swap", func() error { return g.SetSwap(c.dev, true) }},
		{"center tap", func() error { return g.SetHasCenterTap(c.dev, false) }},
		{"contact type", func() error { return g.SetContactType(c.dev, ContactCommon, PoleFirst, Passthrough) }},
		{"sink polarity", func() error { return g.SetSinkPolarity(c.coil, SecondOnly) }},
		{"source poles", func() error { return g.SetSourcePoles(c.src, PoleSecond) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			if !IsCircuitsLive(err) {
				t.Fatalf("got %v, want ErrCircuitsLive", err)
			}
			var gerr *Error
			if !errors.As(err, &gerr) || gerr.Op == "" {
				t.Errorf("error %v is not a structured *Error", err)
			}
		})
	}

	requireInvariants(t, g)
	assert.Equal(t, before, fingerprints(g, Closed))
}

func TestWrongKindAndBadContacts(t *testing.T) {
	g := NewGraph()
	src := g.AddPowerSource("battery")
	sw := g.AddSwitch("SW")
	j := g.AddJunction("J")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"contact state on switch", g.SetContactState(sw, true, false), ErrWrongKind},
		{"switch on source", g.SetSwitch(src, true), ErrWrongKind},
		{"source on switch", g.SetSourceEnabled(sw, true), ErrWrongKind},
		{"flip on junction", g.SetFlip(j, true), ErrWrongKind},
		{"discover from non-source", g.CreateCircuitsFromPowerNode(j), ErrWrongKind},
		{"junction contact range", g.SetJunctionDisabledContact(j, 4), ErrInvalidContact},
		{"contact type range", g.SetContactType(sw, 2, PoleFirst, Passthrough), ErrInvalidContact},
		{"missing node", g.SetSwitch(99, true), ErrNodeNotFound},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, tt.err, tt.want)
		}
	}

	_, err := g.ContactState(sw, 5)
	assert.ErrorIs(t, err, ErrInvalidContact)
}

func TestConnectPreconditions(t *testing.T) {
	g := NewGraph()
	a := g.AddSwitch("a")
	b := g.AddSwitch("b")
	id := mustConnect(t, g, a, 1, b, 0)

	_, err := g.Connect(CableEnd{Node: a, Contact: 1}, CableEnd{Node: b, Contact: 1}, Unifilar)
	assert.ErrorIs(t, err, ErrContactInUse)

	_, err = g.Connect(CableEnd{Node: a, Contact: 0}, CableEnd{Node: a, Contact: 0}, Unifilar)
	assert.ErrorIs(t, err, ErrContactInUse)

	err = g.Attach(id, SideA, CableEnd{Node: a, Contact: 0})
	assert.ErrorIs(t, err, ErrSideInUse)

	require.NoError(t, g.Detach(id, SideA))
	cable, _ := g.Cable(id)
	assert.Equal(t, CableEnd{}, cable.End(SideA))
	require.NoError(t, g.Attach(id, SideA, CableEnd{Node: a, Contact: 0}))
	assert.Equal(t, CableEnd{Node: a, Contact: 0}, cable.End(SideA))

	require.NoError(t, g.RemoveCable(id))
	_, err = g.Cable(id)
	assert.True(t, IsNotFound(err))
	an, _ := g.Node(a)
	c0, _ := an.Cable(0)
	assert.Zero(t, c0)
}

func TestRemoveNodeDetachesCables(t *testing.T) {
	c := newChain(t)
	dev, _ := c.g.Node(c.dev)
	id, side := dev.Cable(ContactUp)

	require.NoError(t, c.g.RemoveNode(c.dev))
	cable, err := c.g.Cable(id)
	require.NoError(t, err)
	assert.Equal(t, CableEnd{}, cable.End(side))
	assert.Equal(t, c.coil, cable.End(side.Opposite()).Node)

	_, ok := c.g.NodeByName("R1")
	assert.False(t, ok)
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{NewError("SetFlip").Node(3).Cause(ErrCircuitsLive).Err(), "SetFlip node 3: circuits pass through node"},
		{NewError("Attach").Node(2).Contact(1).Cause(ErrContactInUse).Err(), "Attach node 2 (contact 1): contact already has a cable"},
		{NewError("outer").Cause(ErrReentrantPass).Err(), "outer: engine pass already running"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestPassesAreTimedAndLogged(t *testing.T) {
	var buf bytes.Buffer
	g := NewGraph(WithLogger(logging.NewJSONLogger(&buf, logging.DebugLevel)))
	a := g.AddJunction("A")
	b := g.AddJunction("B")
	cable := mustConnect(t, g, a, 0, b, 0)
	require.NoError(t, g.SetCableMode(cable, Bifilar))

	out := buf.String()
	assert.Contains(t, out, `"operation":"connect"`)
	assert.Contains(t, out, `"operation":"set_cable_mode"`)
	assert.Contains(t, out, `"latency"`)
	assert.Contains(t, out, `"component":"circuit"`)

	buf.Reset()
	err := g.SetContactState(a, true, false)
	require.ErrorIs(t, err, ErrWrongKind)
	assert.Empty(t, buf.String(), "rejected calls run no pass")
}
