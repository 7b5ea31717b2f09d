package algorithms

import (
	"github.com/dd0wney/cluso-relaysim/pkg/circuit"
)

// CircuitStats summarizes the circuits registered in a graph
type CircuitStats struct {
	Closed       int
	Open         int
	ClosedByPole [2]int
	OpenByPole   [2]int

	// Longest is the circuit with the most hops, zero when there is none
	Longest    circuit.CircuitID
	LongestLen int

	// EnergizedContacts counts node contacts carrying a Closed circuit
	EnergizedContacts int
	PoweredSinks      int
	EnabledSources    int
}

// AnalyzeCircuits computes CircuitStats in one pass over circuits and nodes
func AnalyzeCircuits(g *circuit.Graph) CircuitStats {
	var s CircuitStats
	for _, c := range g.Circuits(circuit.Closed) {
		s.Closed++
		s.ClosedByPole[c.Pole()]++
		s.longest(c)
	}
	for _, c := range g.Circuits(circuit.Open) {
		s.Open++
		s.OpenByPole[c.Pole()]++
		s.longest(c)
	}

	for _, n := range g.Nodes() {
		for i := 0; i < n.ContactCount(); i++ {
			if n.ContactState(i) == circuit.ClosedCircuit {
				s.EnergizedContacts++
			}
		}
		switch n.Kind() {
		case circuit.KindSink:
			if n.Powered() {
				s.PoweredSinks++
			}
		case circuit.KindPowerSource:
			if n.Enabled() {
				s.EnabledSources++
			}
		}
	}
	return s
}

// Circuits are visited in ID order so ties keep the oldest
func (s *CircuitStats) longest(c *circuit.Circuit) {
	if c.Len() > s.LongestLen || (c.Len() == s.LongestLen && c.ID() < s.Longest) {
		s.Longest = c.ID()
		s.LongestLen = c.Len()
	}
}
