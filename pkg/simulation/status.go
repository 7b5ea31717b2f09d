package simulation

import (
	"strings"
	"time"

	"github.com/dd0wney/cluso-relaysim/pkg/algorithms"
	"github.com/dd0wney/cluso-relaysim/pkg/circuit"
)

// Status is a snapshot of a session for display
type Status struct {
	Session  string
	Layout   string
	Applied  uint64
	Uptime   time.Duration
	Circuits algorithms.CircuitStats
	Closed   []string
	Relays   []RelayStatus
	Screens  []ScreenStatus
	Levers   []LeverStatus
	Buttons  []ButtonStatus
	Lamps    []LampStatus
	Sources  []SourceStatus
}

// RelayStatus describes one relay
type RelayStatus struct {
	Name     string
	State    string
	Position float64
}

// ScreenStatus describes one screen relay
type ScreenStatus struct {
	Name     string
	Power    string
	Position float64
	ContactA string
	ContactB string
}

// LeverStatus describes one lever
type LeverStatus struct {
	Name     string
	Position int
}

// ButtonStatus describes one button
type ButtonStatus struct {
	Name    string
	Pressed bool
}

// LampStatus describes one lamp
type LampStatus struct {
	Name string
	Lit  bool
}

// SourceStatus describes one power source
type SourceStatus struct {
	Name    string
	Enabled bool
}

// Status takes a snapshot. Closed lists every Closed circuit as node names.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.layout
	st := Status{
		Session:  s.id.String(),
		Layout:   l.Name,
		Applied:  s.applied,
		Uptime:   time.Since(s.started),
		Circuits: algorithms.AnalyzeCircuits(l.Graph),
	}
	for _, c := range l.Graph.Circuits(circuit.Closed) {
		st.Closed = append(st.Closed, describe(l.Graph, c))
	}
	for _, r := range l.Devices.Relays() {
		st.Relays = append(st.Relays, RelayStatus{Name: r.Name(), State: r.State().String(), Position: r.Position()})
	}
	for _, sr := range l.Devices.ScreenRelays() {
		st.Screens = append(st.Screens, ScreenStatus{
			Name:     sr.Name(),
			Power:    sr.Power().String(),
			Position: sr.Position(),
			ContactA: sr.ContactA().String(),
			ContactB: sr.ContactB().String(),
		})
	}
	for _, lv := range l.Devices.Levers() {
		st.Levers = append(st.Levers, LeverStatus{Name: lv.Name(), Position: lv.Position()})
	}
	for _, b := range l.Devices.Buttons() {
		st.Buttons = append(st.Buttons, ButtonStatus{Name: b.Name(), Pressed: b.Pressed()})
	}
	for _, lamp := range l.Devices.Lamps() {
		st.Lamps = append(st.Lamps, LampStatus{Name: lamp.Name(), Lit: lamp.Lit()})
	}
	for _, n := range l.Graph.Nodes() {
		if n.Kind() == circuit.KindPowerSource {
			st.Sources = append(st.Sources, SourceStatus{Name: n.Name(), Enabled: n.Enabled()})
		}
	}
	return st
}

// describe renders a circuit as "B1 > PB.a > J > K.coil"
func describe(g *circuit.Graph, c *circuit.Circuit) string {
	hops := c.Hops()
	names := make([]string, len(hops))
	for i, h := range hops {
		names[i] = nodeName(g, h.Node)
	}
	return strings.Join(names, " > ")
}
