package layout

import (
	"github.com/dd0wney/cluso-relaysim/pkg/circuit"
)

// Document rebuilds the YAML form from the live graph and devices. Circuits,
// contact states and relay positions are derived at load time and are not
// part of it.
func (l *Layout) Document() *Document {
	g := l.Graph
	doc := &Document{Name: l.Name}
	name := func(id circuit.NodeID) string {
		if n, err := g.Node(id); err == nil {
			return n.Name()
		}
		return ""
	}
	names := func(ids []circuit.NodeID) []string {
		if len(ids) == 0 {
			return nil
		}
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = name(id)
		}
		return out
	}

	for _, n := range g.Nodes() {
		doc.Nodes = append(doc.Nodes, nodeSpec(n))
	}

	for _, c := range g.Cables() {
		a, b := c.End(circuit.SideA), c.End(circuit.SideB)
		if a.Node == 0 || b.Node == 0 {
			continue
		}
		doc.Cables = append(doc.Cables, CableSpec{
			Name: c.Name(),
			Mode: c.Mode().String(),
			A:    EndSpec{Node: name(a.Node), Contact: a.Contact},
			B:    EndSpec{Node: name(b.Node), Contact: b.Contact},
		})
	}

	if l.Devices == nil {
		return doc
	}
	for _, r := range l.Devices.Relays() {
		cfg := r.Config()
		doc.Devices.Relays = append(doc.Devices.Relays, RelaySpec{
			Name:      cfg.Name,
			Type:      cfg.Type.String(),
			Coils:     names(cfg.Coils),
			DownCoils: names(cfg.DownCoils),
			Contacts:  names(cfg.Contacts),
			UpSpeed:   cfg.UpSpeed,
			DownSpeed: cfg.DownSpeed,
		})
	}
	for _, sr := range l.Devices.ScreenRelays() {
		cfg := sr.Config()
		spec := ScreenRelaySpec{
			Name:      cfg.Name,
			Type:      cfg.Type.String(),
			ContactsA: names(cfg.ContactsA),
			ContactsB: names(cfg.ContactsB),
		}
		if cfg.Power != 0 {
			spec.Power = name(cfg.Power)
		}
		doc.Devices.ScreenRelays = append(doc.Devices.ScreenRelays, spec)
	}
	for _, lv := range l.Devices.Levers() {
		cfg := lv.Config()
		spec := LeverSpec{
			Name:         cfg.Name,
			Min:          cfg.Min,
			Max:          cfg.Max,
			Normal:       cfg.Normal,
			SpringReturn: cfg.SpringReturn,
		}
		for _, c := range cfg.Contacts {
			cs := LeverContactSpec{Node: name(c.Node)}
			for _, cond := range c.Conditions {
				cs.Conditions = append(cs.Conditions, LeverConditionSpec{
					Type:  cond.Type.String(),
					From:  cond.From,
					To:    cond.To,
					Wraps: cond.Wraps,
				})
			}
			spec.Contacts = append(spec.Contacts, cs)
		}
		doc.Devices.Levers = append(doc.Devices.Levers, spec)
	}
	for _, b := range l.Devices.Buttons() {
		doc.Devices.Buttons = append(doc.Devices.Buttons, ButtonSpec{Name: b.Name(), Contacts: names(b.Contacts())})
	}
	for _, m := range l.Devices.Magnets() {
		doc.Devices.Magnets = append(doc.Devices.Magnets, MagnetSpec{
			Name:     m.Name(),
			Coils:    names(m.Coils()),
			Contacts: names(m.Contacts()),
		})
	}
	for _, lamp := range l.Devices.Lamps() {
		doc.Devices.Lamps = append(doc.Devices.Lamps, LampSpec{Name: lamp.Name(), Sink: name(lamp.Sink())})
	}
	return doc
}

func nodeSpec(n *circuit.Node) NodeSpec {
	spec := NodeSpec{Name: n.Name(), Kind: n.Kind().String()}
	switch n.Kind() {
	case circuit.KindPowerSource:
		for _, p := range circuit.AllPoles {
			if n.Feeds(p) {
				spec.Poles = append(spec.Poles, p.String())
			}
		}
		spec.Enabled = n.Enabled()

	case circuit.KindSink:
		spec.Flavor = n.SinkFlavor().String()
		spec.Polarity = n.Polarity().String()

	case circuit.KindDeviator:
		spec.Flavor = n.Flavor().String()
		spec.Flip = n.Flip()
		spec.Swap = n.Swap()
		if ct := n.HasCenterTap(); ct != (n.Flavor() != circuit.MagnetContact) {
			spec.CenterTap = &ct
		}
		for _, idx := range []int{circuit.ContactCommon, circuit.ContactDown} {
			for _, p := range circuit.AllPoles {
				if n.ContactType(idx, p) == circuit.Passthrough {
					spec.Passthrough = append(spec.Passthrough, PassthroughSpec{Contact: idx, Pole: p.String()})
				}
			}
		}

	case circuit.KindSwitch:
		spec.On = n.On()

	case circuit.KindJunction:
		if idx := n.DisabledContact(); idx != circuit.NoContact {
			spec.DisabledContact = &idx
		}
	}
	return spec
}
