package layout

import (
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-relaysim/pkg/circuit"
	"github.com/dd0wney/cluso-relaysim/pkg/validation"
)

// Validate checks struct tags first, then every cross reference: unique
// names, flavors matching their kind, cable ends on existing contacts, and
// device references pointing at nodes of the right kind.
func (d *Document) Validate() error {
	if d == nil {
		return errors.New("layout document cannot be nil")
	}
	if err := validation.Struct(d); err != nil {
		return err
	}

	cv := validation.NewConfigValidator("layout")
	cv.MaxInt("nodes", len(d.Nodes), validation.MaxNodes)

	nodes := make(map[string]NodeSpec, len(d.Nodes))
	for i, n := range d.Nodes {
		field := fmt.Sprintf("nodes[%d]", i)
		cv.Custom(field+".name", func() error {
			if _, dup := nodes[n.Name]; dup {
				return fmt.Errorf("duplicate node name %q", n.Name)
			}
			return nil
		})
		nodes[n.Name] = n

		cv.When(n.Kind == "sink", func(cv *validation.ConfigValidator) {
			cv.OneOf(field+".flavor", n.Flavor, append(keys(sinkFlavorNames), ""))
		})
		cv.When(n.Kind == "deviator", func(cv *validation.ConfigValidator) {
			cv.OneOf(field+".flavor", n.Flavor, append(keys(deviatorFlavorNames), ""))
			cv.Custom(field+".swap", func() error {
				if n.Swap && n.Flavor == "button" {
					return circuit.ErrSwapNotAllowed
				}
				return nil
			})
			cv.Custom(field+".center_tap", func() error {
				if n.CenterTap == nil {
					return nil
				}
				fixed := n.Flavor == "button" || n.Flavor == "magnet"
				if fixed && *n.CenterTap != (n.Flavor != "magnet") {
					return circuit.ErrCenterTapFixed
				}
				return nil
			})
		})
		cv.When(n.Kind != "sink" && n.Kind != "deviator", func(cv *validation.ConfigValidator) {
			cv.OneOf(field+".flavor", n.Flavor, []string{""})
		})
		cv.When(n.Kind != "deviator", func(cv *validation.ConfigValidator) {
			cv.Custom(field+".passthrough", func() error {
				if len(n.Passthrough) > 0 {
					return errors.New("only deviators have passthrough contacts")
				}
				return nil
			})
		})
		for j, p := range n.Passthrough {
			cv.Custom(fmt.Sprintf("%s.passthrough[%d].contact", field, j), func() error {
				if p.Contact == circuit.ContactUp {
					return errors.New("only common and down can be passthrough")
				}
				return nil
			})
		}
	}

	used := make(map[EndSpec]int)
	for i, c := range d.Cables {
		for side, end := range []EndSpec{c.A, c.B} {
			field := fmt.Sprintf("cables[%d].%s", i, []string{"a", "b"}[side])
			cv.Custom(field, func() error {
				n, ok := nodes[end.Node]
				if !ok {
					return fmt.Errorf("unknown node %q", end.Node)
				}
				if !contactExists(n, end.Contact) {
					return fmt.Errorf("node %q has no contact %d", end.Node, end.Contact)
				}
				if other, dup := used[end]; dup {
					return fmt.Errorf("contact %s/%d already used by cables[%d]", end.Node, end.Contact, other)
				}
				used[end] = i
				return nil
			})
		}
	}

	devices := make(map[string]bool)
	claimed := make(map[string]string)
	device := func(field, name string) {
		cv.Custom(field+".name", func() error {
			if devices[name] {
				return fmt.Errorf("duplicate device name %q", name)
			}
			devices[name] = true
			return nil
		})
	}
	refs := func(field, owner, kind string, names []string) {
		for j, name := range names {
			cv.Custom(fmt.Sprintf("%s[%d]", field, j), func() error {
				n, ok := nodes[name]
				if !ok {
					return fmt.Errorf("unknown node %q", name)
				}
				if n.Kind != kind {
					return fmt.Errorf("node %q is a %s, want %s", name, n.Kind, kind)
				}
				if other, dup := claimed[name]; dup {
					return fmt.Errorf("node %q already driven by %s", name, other)
				}
				claimed[name] = owner
				return nil
			})
		}
	}

	for i, r := range d.Devices.Relays {
		field := fmt.Sprintf("devices.relays[%d]", i)
		device(field, r.Name)
		refs(field+".coils", r.Name, "sink", r.Coils)
		refs(field+".down_coils", r.Name, "sink", r.DownCoils)
		refs(field+".contacts", r.Name, "deviator", r.Contacts)
		cv.When(len(r.DownCoils) > 0, func(cv *validation.ConfigValidator) {
			cv.OneOf(field+".type", r.Type, []string{"stabilized"})
		})
	}
	for i, sr := range d.Devices.ScreenRelays {
		field := fmt.Sprintf("devices.screen_relays[%d]", i)
		device(field, sr.Name)
		if sr.Power != "" {
			refs(field+".power", sr.Name, "sink", []string{sr.Power})
		}
		refs(field+".contacts_a", sr.Name, "deviator", sr.ContactsA)
		refs(field+".contacts_b", sr.Name, "deviator", sr.ContactsB)
	}
	for i, lv := range d.Devices.Levers {
		field := fmt.Sprintf("devices.levers[%d]", i)
		device(field, lv.Name)
		cv.MinInt(field+".normal", lv.Normal, lv.Min)
		cv.MaxInt(field+".normal", lv.Normal, lv.Max)
		contacts := make([]string, len(lv.Contacts))
		for j, c := range lv.Contacts {
			contacts[j] = c.Node
		}
		refs(field+".contacts", lv.Name, "deviator", contacts)
	}
	for i, b := range d.Devices.Buttons {
		field := fmt.Sprintf("devices.buttons[%d]", i)
		device(field, b.Name)
		refs(field+".contacts", b.Name, "deviator", b.Contacts)
	}
	for i, m := range d.Devices.Magnets {
		field := fmt.Sprintf("devices.magnets[%d]", i)
		device(field, m.Name)
		refs(field+".coils", m.Name, "sink", m.Coils)
		refs(field+".contacts", m.Name, "deviator", m.Contacts)
	}
	for i, l := range d.Devices.Lamps {
		field := fmt.Sprintf("devices.lamps[%d]", i)
		device(field, l.Name)
		refs(field+".sink", l.Name, "sink", []string{l.Sink})
	}

	return cv.Validate()
}

// contactExists applies the contact count of the kind and the shape options
// of deviators and junctions
func contactExists(n NodeSpec, idx int) bool {
	kind, err := lookup(kindNames, "kind", n.Kind)
	if err != nil {
		return false
	}
	count := map[circuit.Kind]int{
		circuit.KindPowerSource: 1,
		circuit.KindSink:        1,
		circuit.KindDeviator:    3,
		circuit.KindSwitch:      2,
		circuit.KindJunction:    4,
		circuit.KindDiode:       2,
	}[kind]
	if idx < 0 || idx >= count {
		return false
	}
	switch kind {
	case circuit.KindDeviator:
		centerTap := n.Flavor != "magnet"
		if n.CenterTap != nil {
			centerTap = *n.CenterTap
		}
		return idx != circuit.ContactUp || centerTap
	case circuit.KindJunction:
		return n.DisabledContact == nil || *n.DisabledContact != idx
	}
	return true
}
