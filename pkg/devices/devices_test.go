package devices

import (
	"errors"
	"testing"

	"github.com/dd0wney/cluso-relaysim/pkg/circuit"
	"github.com/dd0wney/cluso-relaysim/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, g *circuit.Graph, a circuit.NodeID, ai int, b circuit.NodeID, bi int) {
	t.Helper()
	_, err := g.Connect(circuit.CableEnd{Node: a, Contact: ai}, circuit.CableEnd{Node: b, Contact: bi}, circuit.Unifilar)
	require.NoError(t, err)
}

// bench wires a switch-driven coil and a contact selecting one of two lamps
type bench struct {
	g              *circuit.Graph
	sw             circuit.NodeID
	coil           circuit.NodeID
	contact        circuit.NodeID
	upLamp, dnLamp circuit.NodeID
}

func newBench(t *testing.T, flavor circuit.DeviatorFlavor) bench {
	t.Helper()
	g := circuit.NewGraph()
	b := bench{
		g:       g,
		sw:      g.AddSwitch("SW"),
		coil:    g.AddSink("K", circuit.SinkCoil, circuit.AnyPole),
		contact: g.AddDeviator("K.a", flavor),
		upLamp:  g.AddSink("L.up", circuit.SinkLamp, circuit.AnyPole),
		dnLamp:  g.AddSink("L.down", circuit.SinkLamp, circuit.AnyPole),
	}
	coilFeed := g.AddPowerSource("B1")
	lampFeed := g.AddPowerSource("B2")
	connect(t, g, coilFeed, 0, b.sw, 0)
	connect(t, g, b.sw, 1, b.coil, 0)
	connect(t, g, lampFeed, 0, b.contact, circuit.ContactCommon)
	if flavor != circuit.MagnetContact {
		connect(t, g, b.contact, circuit.ContactUp, b.upLamp, 0)
	}
	connect(t, g, b.contact, circuit.ContactDown, b.dnLamp, 0)
	require.NoError(t, g.SetSourceEnabled(coilFeed, true))
	require.NoError(t, g.SetSourceEnabled(lampFeed, true))
	return b
}

func (b bench) powered(id circuit.NodeID) bool {
	n, _ := b.g.Node(id)
	return n.Powered()
}

func TestRelayTravel(t *testing.T) {
	b := newBench(t, circuit.RelayContact)
	set := NewSet(b.g)
	r, err := set.AddRelay(RelayConfig{
		Name:      "K",
		Coils:     []circuit.NodeID{b.coil},
		Contacts:  []circuit.NodeID{b.contact},
		UpSpeed:   0.5,
		DownSpeed: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, StateDown, r.State())
	assert.True(t, b.powered(b.dnLamp), "rest contact is made")

	require.NoError(t, b.g.SetSwitch(b.sw, true))
	assert.True(t, r.Moving(), "coil powered, armature not moved yet")
	assert.Equal(t, StateDown, r.State())

	moved, err := set.Tick()
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
	assert.Equal(t, StateGoingUp, r.State())
	assert.False(t, b.powered(b.upLamp))
	assert.False(t, b.powered(b.dnLamp), "no contact made while travelling")

	_, err = set.Tick()
	require.NoError(t, err)
	assert.Equal(t, StateUp, r.State())
	assert.Equal(t, 1.0, r.Position())
	assert.True(t, b.powered(b.upLamp))

	moved, err = set.Tick()
	require.NoError(t, err)
	assert.Zero(t, moved)

	require.NoError(t, b.g.SetSwitch(b.sw, false))
	ticks, err := set.Settle(10)
	require.NoError(t, err)
	assert.Equal(t, 1, ticks, "down speed 1 drops in one tick")
	assert.Equal(t, StateDown, r.State())
	assert.True(t, b.powered(b.dnLamp))
}

func TestStabilizedRelayHolds(t *testing.T) {
	g := circuit.NewGraph()
	src := g.AddPowerSource("B")
	j := g.AddJunction("J")
	swUp := g.AddSwitch("up")
	swDown := g.AddSwitch("down")
	upCoil := g.AddSink("K.up", circuit.SinkCoil, circuit.AnyPole)
	downCoil := g.AddSink("K.down", circuit.SinkCoil, circuit.AnyPole)
	require.NoError(t, g.SetJunctionDisabledContact(j, 3))
	connect(t, g, src, 0, j, 0)
	connect(t, g, j, 1, swUp, 0)
	connect(t, g, j, 2, swDown, 0)
	connect(t, g, swUp, 1, upCoil, 0)
	connect(t, g, swDown, 1, downCoil, 0)
	require.NoError(t, g.SetSourceEnabled(src, true))

	set := NewSet(g)
	r, err := set.AddRelay(RelayConfig{
		Name:      "K",
		Type:      Stabilized,
		Coils:     []circuit.NodeID{upCoil},
		DownCoils: []circuit.NodeID{downCoil},
		UpSpeed:   1,
		DownSpeed: 1,
	})
	require.NoError(t, err)

	steps := []struct {
		sw    circuit.NodeID
		on    bool
		state RelayState
	}{
		{swUp, true, StateUp},
		{swUp, false, StateUp},
		{swDown, true, StateDown},
		{swDown, false, StateDown},
	}
	for i, step := range steps {
		require.NoError(t, g.SetSwitch(step.sw, step.on))
		_, err := set.Settle(5)
		require.NoError(t, err)
		if r.State() != step.state {
			t.Fatalf("step %d: state %v, want %v", i, r.State(), step.state)
		}
	}
}

func TestPolarizedRelays(t *testing.T) {
	tests := []struct {
		name   string
		typ    RelayType
		pole   circuit.Pole
		pickUp bool
	}{
		{"normal on first", Normal, circuit.PoleFirst, true},
		{"normal on second", Normal, circuit.PoleSecond, true},
		{"polarized on first", Polarized, circuit.PoleFirst, true},
		{"polarized on second", Polarized, circuit.PoleSecond, false},
		{"inverted on first", PolarizedInverted, circuit.PoleFirst, false},
		{"inverted on second", PolarizedInverted, circuit.PoleSecond, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := circuit.NewGraph()
			src := g.AddPowerSource("B", tt.pole)
			coil := g.AddSink("K", circuit.SinkCoil, circuit.AnyPole)
			_, err := g.Connect(circuit.CableEnd{Node: src}, circuit.CableEnd{Node: coil}, circuit.Bifilar)
			require.NoError(t, err)

			set := NewSet(g)
			r, err := set.AddRelay(RelayConfig{Name: "K", Type: tt.typ, Coils: []circuit.NodeID{coil}, UpSpeed: 1})
			require.NoError(t, err)
			require.NoError(t, g.SetSourceEnabled(src, true))
			_, err = set.Settle(5)
			require.NoError(t, err)

			if got := r.State() == StateUp; got != tt.pickUp {
				t.Errorf("picked up = %v, want %v", got, tt.pickUp)
			}
		})
	}
}

func TestButton(t *testing.T) {
	b := newBench(t, circuit.ButtonContact)
	set := NewSet(b.g)
	btn, err := set.AddButton("PB", b.contact)
	require.NoError(t, err)
	assert.True(t, b.powered(b.dnLamp))

	require.NoError(t, btn.Press())
	assert.True(t, btn.Pressed())
	assert.True(t, b.powered(b.upLamp))
	assert.False(t, b.powered(b.dnLamp))

	require.NoError(t, btn.Press(), "pressing twice is harmless")
	require.NoError(t, btn.Release())
	assert.True(t, b.powered(b.dnLamp))
}

func TestMagnetFollowsCoilImmediately(t *testing.T) {
	b := newBench(t, circuit.MagnetContact)
	set := NewSet(b.g)
	m, err := set.AddMagnet("M", []circuit.NodeID{b.coil}, []circuit.NodeID{b.contact})
	require.NoError(t, err)
	lamp, err := set.AddLamp("L", b.dnLamp)
	require.NoError(t, err)
	assert.True(t, lamp.Lit())

	require.NoError(t, b.g.SetSwitch(b.sw, true))
	assert.True(t, m.Energized())
	assert.False(t, lamp.Lit(), "magnet has no center tap: Down opens, nothing else closes")
	assert.Zero(t, set.Moving())

	require.NoError(t, b.g.SetSwitch(b.sw, false))
	assert.False(t, m.Energized())
	assert.True(t, lamp.Lit())
}

func TestRegistrationErrors(t *testing.T) {
	b := newBench(t, circuit.RelayContact)
	set := NewSet(b.g)
	_, err := set.AddRelay(RelayConfig{Name: "K", Coils: []circuit.NodeID{b.coil}, Contacts: []circuit.NodeID{b.contact}})
	require.NoError(t, err)

	_, err = set.AddLamp("K", b.upLamp)
	assert.True(t, errors.Is(err, ErrDeviceExists), "got %v", err)

	_, err = set.AddLamp("L", b.coil)
	assert.True(t, errors.Is(err, ErrNodeClaimed), "got %v", err)

	_, err = set.AddButton("PB", b.upLamp)
	assert.True(t, errors.Is(err, circuit.ErrWrongKind), "got %v", err)

	_, err = set.AddRelay(RelayConfig{Name: "K2", DownCoils: []circuit.NodeID{b.upLamp}})
	assert.Error(t, err, "down coils need a stabilized relay")

	_, err = set.Relay("nope")
	assert.True(t, errors.Is(err, ErrDeviceNotFound))

	// A failed claim leaves nothing behind
	_, err = set.AddLamp("L2", b.upLamp)
	assert.NoError(t, err)
}

func TestTransitionsAreCounted(t *testing.T) {
	b := newBench(t, circuit.RelayContact)
	reg := metrics.NewRegistry()
	set := NewSet(b.g, WithMetrics(reg))
	_, err := set.AddRelay(RelayConfig{Name: "K", Coils: []circuit.NodeID{b.coil}, Contacts: []circuit.NodeID{b.contact}, UpSpeed: 1})
	require.NoError(t, err)

	require.NoError(t, b.g.SetSwitch(b.sw, true))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.DevicesMoving))
	_, err = set.Settle(3)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.DeviceTransitionsTotal.WithLabelValues("relay", "up")))
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.DevicesMoving))
}

func TestParseRelayType(t *testing.T) {
	for _, typ := range []RelayType{Normal, Polarized, PolarizedInverted, Stabilized} {
		got, err := ParseRelayType(typ.String())
		if err != nil || got != typ {
			t.Errorf("ParseRelayType(%q) = %v, %v", typ.String(), got, err)
		}
	}
	if _, err := ParseRelayType("latching"); err == nil {
		t.Error("expected error for unknown type")
	}
}
