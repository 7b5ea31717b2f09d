package circuit

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustConnect(t *testing.T, g *Graph, a NodeID, ai int, b NodeID, bi int) CableID {
	t.Helper()
	id, err := g.Connect(CableEnd{Node: a, Contact: ai}, CableEnd{Node: b, Contact: bi}, Unifilar)
	require.NoError(t, err, "connect %d/%d to %d/%d", a, ai, b, bi)
	return id
}

func requireInvariants(t *testing.T, g *Graph) {
	t.Helper()
	require.NoError(t, g.CheckInvariants())
}

func fingerprints(g *Graph, t CircuitType) []string {
	var out []string
	for _, c := range g.Circuits(t) {
		out = append(out, c.Fingerprint())
	}
	sort.Strings(out)
	return out
}

func contactsOf(ports []Port) []int {
	if len(ports) == 0 {
		return nil
	}
	out := make([]int, len(ports))
	for i, p := range ports {
		out[i] = p.Contact
	}
	return out
}

// chain is source -> deviator Common, deviator Up -> coil
type chain struct {
	g    *Graph
	src  NodeID
	dev  NodeID
	coil NodeID
}

func newChain(t *testing.T) chain {
	t.Helper()
	g := NewGraph()
	c := chain{
		g:    g,
		src:  g.AddPowerSource("battery"),
		dev:  g.AddDeviator("R1", RelayContact),
		coil: g.AddSink("K1", SinkCoil, AnyPole),
	}
	mustConnect(t, g, c.src, 0, c.dev, ContactCommon)
	mustConnect(t, g, c.dev, ContactUp, c.coil, 0)
	return c
}
