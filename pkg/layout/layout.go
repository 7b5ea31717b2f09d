package layout

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-relaysim/pkg/circuit"
	"github.com/dd0wney/cluso-relaysim/pkg/devices"
	"github.com/dd0wney/cluso-relaysim/pkg/logging"
	"github.com/dd0wney/cluso-relaysim/pkg/metrics"
)

// Layout is a built document: a graph, its devices and the name index
type Layout struct {
	Name    string
	Graph   *circuit.Graph
	Devices *devices.Set

	nodes map[string]circuit.NodeID
}

type options struct {
	logger  logging.Logger
	metrics *metrics.Registry
}

// Option configures Load and Build
type Option func(*options)

// WithLogger passes a logger to the graph and the devices
func WithLogger(logger logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics passes a metrics registry to the graph and the devices
func WithMetrics(r *metrics.Registry) Option {
	return func(o *options) { o.metrics = r }
}

// Load decodes a YAML document, validates it and builds it
func Load(r io.Reader, opts ...Option) (*Layout, error) {
	doc, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return Build(doc, opts...)
}

// LoadFile loads a layout from path
func LoadFile(path string, opts ...Option) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open layout: %w", err)
	}
	defer f.Close()
	return Load(f, opts...)
}

// Decode reads a document without building it. Unknown fields are errors.
func Decode(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("layout document is empty")
		}
		return nil, fmt.Errorf("failed to decode layout: %w", err)
	}
	return &doc, nil
}

// Build validates doc and creates its graph and devices. Sources listed as
// enabled are switched on last, once every device holds its rest state.
func Build(doc *Document, opts ...Option) (*Layout, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	g := circuit.NewGraph(circuit.WithLogger(o.logger), circuit.WithMetrics(o.metrics))
	l := &Layout{
		Name:  doc.Name,
		Graph: g,
		nodes: make(map[string]circuit.NodeID, len(doc.Nodes)),
	}

	for _, spec := range doc.Nodes {
		if err := l.addNode(spec); err != nil {
			return nil, fmt.Errorf("node %s: %w", spec.Name, err)
		}
	}
	for i, spec := range doc.Cables {
		if err := l.addCable(spec); err != nil {
			return nil, fmt.Errorf("cables[%d]: %w", i, err)
		}
	}

	l.Devices = devices.NewSet(g, devices.WithLogger(o.logger), devices.WithMetrics(o.metrics))
	if err := l.addDevices(doc.Devices); err != nil {
		return nil, err
	}

	for _, spec := range doc.Nodes {
		if spec.Kind == "power_source" && spec.Enabled {
			if err := g.SetSourceEnabled(l.nodes[spec.Name], true); err != nil {
				return nil, fmt.Errorf("node %s: %w", spec.Name, err)
			}
		}
	}

	o.logger.Info("layout built",
		logging.String("layout", l.Name),
		logging.Count(len(doc.Nodes)),
		logging.Int("cables", len(doc.Cables)))
	return l, nil
}

func (l *Layout) addNode(spec NodeSpec) error {
	g := l.Graph
	var id circuit.NodeID

	switch spec.Kind {
	case "power_source":
		var poles []circuit.Pole
		for _, name := range spec.Poles {
			p, err := lookup(poleNames, "pole", name)
			if err != nil {
				return err
			}
			poles = append(poles, p)
		}
		id = g.AddPowerSource(spec.Name, poles...)

	case "sink":
		flavor, err := lookup(sinkFlavorNames, "sink flavor", spec.Flavor)
		if err != nil {
			return err
		}
		polarity, err := lookup(polarityNames, "polarity", spec.Polarity)
		if err != nil {
			return err
		}
		id = g.AddSink(spec.Name, flavor, polarity)

	case "deviator":
		flavor, err := lookup(deviatorFlavorNames, "deviator flavor", spec.Flavor)
		if err != nil {
			return err
		}
		id = g.AddDeviator(spec.Name, flavor)
		if err := l.configureDeviator(id, spec); err != nil {
			return err
		}

	case "switch":
		id = g.AddSwitch(spec.Name)
		if err := g.SetSwitch(id, spec.On); err != nil {
			return err
		}

	case "junction":
		id = g.AddJunction(spec.Name)
		if spec.DisabledContact != nil {
			if err := g.SetJunctionDisabledContact(id, *spec.DisabledContact); err != nil {
				return err
			}
		}

	case "diode":
		id = g.AddDiode(spec.Name)

	default:
		return fmt.Errorf("unknown kind %q", spec.Kind)
	}

	l.nodes[spec.Name] = id
	return nil
}

func (l *Layout) configureDeviator(id circuit.NodeID, spec NodeSpec) error {
	g := l.Graph
	if err := g.SetFlip(id, spec.Flip); err != nil {
		return err
	}
	if err := g.SetSwap(id, spec.Swap); err != nil {
		return err
	}
	if spec.CenterTap != nil {
		if err := g.SetHasCenterTap(id, *spec.CenterTap); err != nil {
			return err
		}
	}
	for _, pt := range spec.Passthrough {
		p, err := lookup(poleNames, "pole", pt.Pole)
		if err != nil {
			return err
		}
		if err := g.SetContactType(id, pt.Contact, p, circuit.Passthrough); err != nil {
			return err
		}
	}
	return nil
}

func (l *Layout) addCable(spec CableSpec) error {
	mode, err := lookup(modeNames, "cable mode", spec.Mode)
	if err != nil {
		return err
	}
	id := l.Graph.AddCable(spec.Name, mode)
	for side, end := range []EndSpec{spec.A, spec.B} {
		node, err := l.NodeID(end.Node)
		if err != nil {
			return err
		}
		if err := l.Graph.Attach(id, circuit.CableSide(side), circuit.CableEnd{Node: node, Contact: end.Contact}); err != nil {
			return err
		}
	}
	return nil
}

func (l *Layout) addDevices(spec DeviceSpecs) error {
	set := l.Devices
	for _, r := range spec.Relays {
		typ := devices.Normal
		if r.Type != "" {
			var err error
			if typ, err = devices.ParseRelayType(r.Type); err != nil {
				return fmt.Errorf("relay %s: %w", r.Name, err)
			}
		}
		if _, err := set.AddRelay(devices.RelayConfig{
			Name:      r.Name,
			Type:      typ,
			Coils:     l.ids(r.Coils),
			DownCoils: l.ids(r.DownCoils),
			Contacts:  l.ids(r.Contacts),
			UpSpeed:   r.UpSpeed,
			DownSpeed: r.DownSpeed,
		}); err != nil {
			return err
		}
	}
	for _, sr := range spec.ScreenRelays {
		typ, err := devices.ParseScreenType(sr.Type)
		if err != nil {
			return fmt.Errorf("screen relay %s: %w", sr.Name, err)
		}
		cfg := devices.ScreenRelayConfig{
			Name:      sr.Name,
			Type:      typ,
			ContactsA: l.ids(sr.ContactsA),
			ContactsB: l.ids(sr.ContactsB),
		}
		if sr.Power != "" {
			cfg.Power = l.nodes[sr.Power]
		}
		if _, err := set.AddScreenRelay(cfg); err != nil {
			return err
		}
	}
	for _, lv := range spec.Levers {
		cfg := devices.LeverConfig{
			Name:         lv.Name,
			Min:          lv.Min,
			Max:          lv.Max,
			Normal:       lv.Normal,
			SpringReturn: lv.SpringReturn,
		}
		for _, c := range lv.Contacts {
			contact := devices.LeverContact{Node: l.nodes[c.Node]}
			for _, cond := range c.Conditions {
				typ, err := devices.ParseLeverConditionType(cond.Type)
				if err != nil {
					return fmt.Errorf("lever %s: %w", lv.Name, err)
				}
				contact.Conditions = append(contact.Conditions, devices.LeverCondition{
					Type:  typ,
					From:  cond.From,
					To:    cond.To,
					Wraps: cond.Wraps,
				})
			}
			cfg.Contacts = append(cfg.Contacts, contact)
		}
		if _, err := set.AddLever(cfg); err != nil {
			return err
		}
	}
	for _, b := range spec.Buttons {
		if _, err := set.AddButton(b.Name, l.ids(b.Contacts)...); err != nil {
			return err
		}
	}
	for _, m := range spec.Magnets {
		if _, err := set.AddMagnet(m.Name, l.ids(m.Coils), l.ids(m.Contacts)); err != nil {
			return err
		}
	}
	for _, lamp := range spec.Lamps {
		if _, err := set.AddLamp(lamp.Name, l.nodes[lamp.Sink]); err != nil {
			return err
		}
	}
	return nil
}

// ids resolves names already checked by Validate
func (l *Layout) ids(names []string) []circuit.NodeID {
	if len(names) == 0 {
		return nil
	}
	out := make([]circuit.NodeID, len(names))
	for i, name := range names {
		out[i] = l.nodes[name]
	}
	return out
}

// NodeID resolves a node name
func (l *Layout) NodeID(name string) (circuit.NodeID, error) {
	id, ok := l.nodes[name]
	if !ok {
		return 0, fmt.Errorf("node %q: %w", name, circuit.ErrNodeNotFound)
	}
	return id, nil
}

// Node resolves a node name to the node itself
func (l *Layout) Node(name string) (*circuit.Node, error) {
	id, err := l.NodeID(name)
	if err != nil {
		return nil, err
	}
	return l.Graph.Node(id)
}

// Save writes the static configuration of l as YAML
func Save(w io.Writer, l *Layout) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(l.Document()); err != nil {
		return fmt.Errorf("failed to encode layout: %w", err)
	}
	return enc.Close()
}

// SaveFile writes l to path
func SaveFile(path string, l *Layout) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create layout file: %w", err)
	}
	if err := Save(f, l); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
