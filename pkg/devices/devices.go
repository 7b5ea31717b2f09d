// Package devices models the physical parts that drive a circuit graph:
// relays, screen relays, levers, buttons, magnets and lamps. Devices react to sink power changes
// delivered on the graph queue, so a coil is always evaluated after the pass
// that powered it has finished.
package devices

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dd0wney/cluso-relaysim/pkg/circuit"
	"github.com/dd0wney/cluso-relaysim/pkg/logging"
	"github.com/dd0wney/cluso-relaysim/pkg/metrics"
	"github.com/dd0wney/cluso-relaysim/pkg/pubsub"
)

var (
	ErrDeviceExists   = errors.New("device already exists")
	ErrDeviceNotFound = errors.New("device not found")
	ErrNodeClaimed    = errors.New("node already driven by another device")
)

// Set owns every device of one graph. Like the graph, it must only be used
// from the goroutine that owns the graph.
type Set struct {
	graph   *circuit.Graph
	logger  logging.Logger
	metrics *metrics.Registry
	subs    []*pubsub.Subscription

	relays  map[string]*Relay
	screens map[string]*ScreenRelay
	levers  map[string]*Lever
	buttons map[string]*Button
	magnets map[string]*Magnet
	lamps   map[string]*Lamp
	claimed map[circuit.NodeID]string
}

// Option configures a Set
type Option func(*Set)

// WithLogger sets the device logger
func WithLogger(logger logging.Logger) Option {
	return func(s *Set) {
		if logger != nil {
			s.logger = logger.With(logging.Component("devices"))
		}
	}
}

// WithMetrics records device transitions into r
func WithMetrics(r *metrics.Registry) Option {
	return func(s *Set) {
		s.metrics = r
	}
}

// NewSet creates an empty device set subscribed to g
func NewSet(g *circuit.Graph, opts ...Option) *Set {
	s := &Set{
		graph:   g,
		logger:  logging.NewNopLogger(),
		relays:  make(map[string]*Relay),
		screens: make(map[string]*ScreenRelay),
		levers:  make(map[string]*Lever),
		buttons: make(map[string]*Button),
		magnets: make(map[string]*Magnet),
		lamps:   make(map[string]*Lamp),
		claimed: make(map[circuit.NodeID]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.subs = append(s.subs,
		g.Subscribe(circuit.TopicSinkPower, s.onSinkPower),
		g.Subscribe(circuit.TopicContactsChanged, s.onContacts))
	return s
}

// Close stops reacting to the graph
func (s *Set) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
}

// AddRelay registers a relay. Its contacts are driven to the Down state
// straight away.
func (s *Set) AddRelay(cfg RelayConfig) (*Relay, error) {
	if err := s.checkName(cfg.Name); err != nil {
		return nil, err
	}
	if cfg.Type != Stabilized && len(cfg.DownCoils) > 0 {
		return nil, fmt.Errorf("relay %s: down coils require a stabilized relay", cfg.Name)
	}
	if err := s.claim(cfg.Name, circuit.KindSink, append(append([]circuit.NodeID(nil), cfg.Coils...), cfg.DownCoils...)); err != nil {
		return nil, err
	}
	if err := s.claim(cfg.Name, circuit.KindDeviator, cfg.Contacts); err != nil {
		return nil, err
	}
	if cfg.UpSpeed <= 0 {
		cfg.UpSpeed = DefaultSpeed
	}
	if cfg.DownSpeed <= 0 {
		cfg.DownSpeed = DefaultSpeed
	}

	r := &Relay{cfg: cfg, set: s}
	s.relays[cfg.Name] = r
	for _, id := range cfg.Contacts {
		if err := s.graph.SetContactState(id, false, true); err != nil {
			return nil, fmt.Errorf("relay %s: %w", cfg.Name, err)
		}
	}
	r.updateTarget()
	return r, nil
}

// AddScreenRelay registers a screen relay. The screen starts at rest with
// both contact groups straight.
func (s *Set) AddScreenRelay(cfg ScreenRelayConfig) (*ScreenRelay, error) {
	if err := s.checkName(cfg.Name); err != nil {
		return nil, err
	}
	if cfg.Power != 0 {
		if err := s.claim(cfg.Name, circuit.KindSink, []circuit.NodeID{cfg.Power}); err != nil {
			return nil, err
		}
	}
	if err := s.claim(cfg.Name, circuit.KindDeviator, append(append([]circuit.NodeID(nil), cfg.ContactsA...), cfg.ContactsB...)); err != nil {
		return nil, err
	}
	sr := &ScreenRelay{cfg: cfg, set: s}
	s.screens[cfg.Name] = sr
	if err := sr.apply(true); err != nil {
		return nil, err
	}
	sr.updatePower()
	return sr, nil
}

// AddLever registers a lever resting at its normal position. Conditions are
// sanitized against the lever range.
func (s *Set) AddLever(cfg LeverConfig) (*Lever, error) {
	if err := s.checkName(cfg.Name); err != nil {
		return nil, err
	}
	if cfg.Min > cfg.Max {
		return nil, fmt.Errorf("lever %s: min %d above max %d", cfg.Name, cfg.Min, cfg.Max)
	}
	if cfg.Normal < cfg.Min || cfg.Normal > cfg.Max {
		return nil, fmt.Errorf("lever %s: normal position %d: %w", cfg.Name, cfg.Normal, ErrPositionOutOfRange)
	}
	ids := make([]circuit.NodeID, len(cfg.Contacts))
	contacts := make([]LeverContact, len(cfg.Contacts))
	for i, c := range cfg.Contacts {
		ids[i] = c.Node
		contacts[i] = LeverContact{Node: c.Node, Conditions: SanitizeConditions(c.Conditions, cfg.Min, cfg.Max)}
	}
	if err := s.claim(cfg.Name, circuit.KindDeviator, ids); err != nil {
		return nil, err
	}
	cfg.Contacts = contacts
	l := &Lever{cfg: cfg, set: s, position: cfg.Normal}
	s.levers[cfg.Name] = l
	if err := l.apply(); err != nil {
		return nil, err
	}
	return l, nil
}

// AddButton registers a push button driving button contacts
func (s *Set) AddButton(name string, contacts ...circuit.NodeID) (*Button, error) {
	if err := s.checkName(name); err != nil {
		return nil, err
	}
	if err := s.claim(name, circuit.KindDeviator, contacts); err != nil {
		return nil, err
	}
	b := &Button{name: name, contacts: contacts, set: s}
	s.buttons[name] = b
	if err := b.apply(); err != nil {
		return nil, err
	}
	return b, nil
}

// AddMagnet registers an electromagnet. Its contacts follow the coils
// without travel.
func (s *Set) AddMagnet(name string, coils, contacts []circuit.NodeID) (*Magnet, error) {
	if err := s.checkName(name); err != nil {
		return nil, err
	}
	if err := s.claim(name, circuit.KindSink, coils); err != nil {
		return nil, err
	}
	if err := s.claim(name, circuit.KindDeviator, contacts); err != nil {
		return nil, err
	}
	m := &Magnet{name: name, coils: coils, contacts: contacts, set: s}
	s.magnets[name] = m
	if err := m.update(); err != nil {
		return nil, err
	}
	return m, nil
}

// AddLamp registers a lamp shown by its sink's power state
func (s *Set) AddLamp(name string, sink circuit.NodeID) (*Lamp, error) {
	if err := s.checkName(name); err != nil {
		return nil, err
	}
	if err := s.claim(name, circuit.KindSink, []circuit.NodeID{sink}); err != nil {
		return nil, err
	}
	l := &Lamp{name: name, sink: sink, set: s}
	s.lamps[name] = l
	return l, nil
}

// Relay returns a relay by name
func (s *Set) Relay(name string) (*Relay, error) {
	if r, ok := s.relays[name]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("relay %s: %w", name, ErrDeviceNotFound)
}

// ScreenRelay returns a screen relay by name
func (s *Set) ScreenRelay(name string) (*ScreenRelay, error) {
	if sr, ok := s.screens[name]; ok {
		return sr, nil
	}
	return nil, fmt.Errorf("screen relay %s: %w", name, ErrDeviceNotFound)
}

// Lever returns a lever by name
func (s *Set) Lever(name string) (*Lever, error) {
	if l, ok := s.levers[name]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("lever %s: %w", name, ErrDeviceNotFound)
}

// Button returns a button by name
func (s *Set) Button(name string) (*Button, error) {
	if b, ok := s.buttons[name]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("button %s: %w", name, ErrDeviceNotFound)
}

// Magnet returns a magnet by name
func (s *Set) Magnet(name string) (*Magnet, error) {
	if m, ok := s.magnets[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("magnet %s: %w", name, ErrDeviceNotFound)
}

// Lamp returns a lamp by name
func (s *Set) Lamp(name string) (*Lamp, error) {
	if l, ok := s.lamps[name]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("lamp %s: %w", name, ErrDeviceNotFound)
}

// Relays returns all relays ordered by name
func (s *Set) Relays() []*Relay {
	out := make([]*Relay, 0, len(s.relays))
	for _, r := range s.relays {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].cfg.Name < out[j].cfg.Name })
	return out
}

// ScreenRelays returns all screen relays ordered by name
func (s *Set) ScreenRelays() []*ScreenRelay {
	out := make([]*ScreenRelay, 0, len(s.screens))
	for _, sr := range s.screens {
		out = append(out, sr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].cfg.Name < out[j].cfg.Name })
	return out
}

// Levers returns all levers ordered by name
func (s *Set) Levers() []*Lever {
	out := make([]*Lever, 0, len(s.levers))
	for _, l := range s.levers {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].cfg.Name < out[j].cfg.Name })
	return out
}

// Buttons returns all buttons ordered by name
func (s *Set) Buttons() []*Button {
	out := make([]*Button, 0, len(s.buttons))
	for _, b := range s.buttons {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Magnets returns all magnets ordered by name
func (s *Set) Magnets() []*Magnet {
	out := make([]*Magnet, 0, len(s.magnets))
	for _, m := range s.magnets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Lamps returns all lamps ordered by name
func (s *Set) Lamps() []*Lamp {
	out := make([]*Lamp, 0, len(s.lamps))
	for _, l := range s.lamps {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Tick advances every travelling relay and screen by one step and returns
// how many moved. Relays are stepped first, each group in name order.
func (s *Set) Tick() (int, error) {
	moved := 0
	for _, r := range s.Relays() {
		ok, err := r.tick()
		if err != nil {
			return moved, err
		}
		if ok {
			moved++
		}
	}
	for _, sr := range s.ScreenRelays() {
		ok, err := sr.tick()
		if err != nil {
			return moved, err
		}
		if ok {
			moved++
		}
	}
	if s.metrics != nil {
		s.metrics.SetDevicesMoving(s.Moving())
	}
	return moved, nil
}

// Moving returns how many relays and screens are still travelling
func (s *Set) Moving() int {
	n := 0
	for _, r := range s.relays {
		if r.Moving() {
			n++
		}
	}
	for _, sr := range s.screens {
		if sr.Moving() {
			n++
		}
	}
	return n
}

// Settle ticks until nothing moves, at most limit times. It returns the
// number of ticks used.
func (s *Set) Settle(limit int) (int, error) {
	for i := 0; i < limit; i++ {
		if s.Moving() == 0 {
			return i, nil
		}
		if _, err := s.Tick(); err != nil {
			return i, err
		}
	}
	if s.Moving() > 0 {
		return limit, fmt.Errorf("%d devices still moving after %d ticks", s.Moving(), limit)
	}
	return limit, nil
}

func (s *Set) onSinkPower(m pubsub.Message) {
	ev, ok := m.Payload.(circuit.SinkPowerChanged)
	if !ok {
		return
	}
	owner, ok := s.claimed[ev.Node]
	if !ok {
		return
	}
	if r, ok := s.relays[owner]; ok && r.owns(ev.Node) {
		r.updateTarget()
		if s.metrics != nil {
			s.metrics.SetDevicesMoving(s.Moving())
		}
		return
	}
	if mg, ok := s.magnets[owner]; ok {
		if err := mg.update(); err != nil {
			s.logger.Error("magnet update failed",
				logging.String("magnet", owner),
				logging.Error(err))
		}
		return
	}
	if l, ok := s.lamps[owner]; ok {
		s.transition("lamp", l.name, litName(ev.Powered))
	}
}

// onContacts re-reads screen power sinks. A sink can swap poles without
// losing power, which no sink power event reports.
func (s *Set) onContacts(m pubsub.Message) {
	ev, ok := m.Payload.(circuit.ContactsChanged)
	if !ok {
		return
	}
	owner, ok := s.claimed[ev.Node]
	if !ok {
		return
	}
	if sr, ok := s.screens[owner]; ok && sr.owns(ev.Node) {
		sr.updatePower()
		if s.metrics != nil {
			s.metrics.SetDevicesMoving(s.Moving())
		}
	}
}

func (s *Set) transition(kind, name, state string) {
	if s.metrics != nil {
		s.metrics.RecordDeviceTransition(kind, state)
	}
	s.logger.Debug("device transition",
		logging.String(kind, name),
		logging.String("state", state))
}

func (s *Set) checkName(name string) error {
	if name == "" {
		return errors.New("device name is required")
	}
	_, r := s.relays[name]
	_, sr := s.screens[name]
	_, lv := s.levers[name]
	_, b := s.buttons[name]
	_, m := s.magnets[name]
	_, l := s.lamps[name]
	if r || sr || lv || b || m || l {
		return fmt.Errorf("%s: %w", name, ErrDeviceExists)
	}
	return nil
}

// claim checks node kinds and records ownership; it leaves no partial claim
// behind on error
func (s *Set) claim(owner string, kind circuit.Kind, ids []circuit.NodeID) error {
	for _, id := range ids {
		n, err := s.graph.Node(id)
		if err != nil {
			return fmt.Errorf("%s: %w", owner, err)
		}
		if n.Kind() != kind {
			return fmt.Errorf("%s: node %s is a %s, want %s: %w", owner, n.Name(), n.Kind(), kind, circuit.ErrWrongKind)
		}
		if other, ok := s.claimed[id]; ok {
			return fmt.Errorf("%s: node %s: %w by %s", owner, n.Name(), ErrNodeClaimed, other)
		}
	}
	for _, id := range ids {
		s.claimed[id] = owner
	}
	return nil
}

func litName(on bool) string {
	if on {
		return "lit"
	}
	return "dark"
}
