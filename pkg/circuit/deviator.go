package circuit

// deviatorState holds live and configured state of a Common/Up/Down contact.
// up and down are electrical values, swap already applied.
type deviatorState struct {
	flavor    DeviatorFlavor
	up        bool
	down      bool
	flip      bool
	swap      bool
	centerTap bool

	allowSwap      bool
	centerTapFixed bool
}

func newDeviatorState(flavor DeviatorFlavor) *deviatorState {
	d := &deviatorState{flavor: flavor, centerTap: true, allowSwap: true}
	switch flavor {
	case ButtonContact:
		d.allowSwap = false
		d.centerTapFixed = true
	case MagnetContact:
		d.centerTap = false
		d.centerTapFixed = true
	}
	return d
}

// deviatorConnections routes current through Common/Up/Down.
//
// Passthrough on Common or Down crosses straight to the other one. Otherwise:
//
//	from Common: Up if up-on (and center tap), Down if down-on
//	from Up:     Common if up-on, plus Down if down-on
//	from Down:   Common if down-on, plus Up if up-on
func (n *Node) deviatorConnections(src Port) []Port {
	d := n.deviator
	if n.contacts[src.Contact].types[src.Pole] == Passthrough {
		switch src.Contact {
		case ContactCommon:
			return []Port{n.port(ContactDown, src.Pole)}
		case ContactDown:
			return []Port{n.port(ContactCommon, src.Pole)}
		}
	}

	upOn := d.up && d.centerTap
	var out []Port
	switch src.Contact {
	case ContactCommon:
		if upOn {
			out = append(out, n.port(ContactUp, src.Pole))
		}
		if d.down {
			out = append(out, n.port(ContactDown, src.Pole))
		}
	case ContactUp:
		if upOn {
			out = append(out, n.port(ContactCommon, src.Pole))
			if d.down {
				out = append(out, n.port(ContactDown, src.Pole))
			}
		}
	case ContactDown:
		if d.down {
			out = append(out, n.port(ContactCommon, src.Pole))
			if upOn {
				out = append(out, n.port(ContactUp, src.Pole))
			}
		}
	}
	return out
}

// Flavor returns the deviator flavor, RelayContact for other kinds
func (n *Node) Flavor() DeviatorFlavor {
	if n.deviator == nil {
		return RelayContact
	}
	return n.deviator.flavor
}

// Up reports whether the Up contact is made (electrical, after swap)
func (n *Node) Up() bool { return n.deviator != nil && n.deviator.up }

// Down reports whether the Down contact is made (electrical, after swap)
func (n *Node) Down() bool { return n.deviator != nil && n.deviator.down }

// Flip reports whether the drawing mirrors Up and Down
func (n *Node) Flip() bool { return n.deviator != nil && n.deviator.flip }

// Swap reports whether the inputs drive the opposite sides
func (n *Node) Swap() bool { return n.deviator != nil && n.deviator.swap }

// HasCenterTap reports whether the Up contact exists
func (n *Node) HasCenterTap() bool { return n.deviator != nil && n.deviator.centerTap }

// SetContactState is the entry point of relay, button and magnet models.
// up and down are logical values; swap is applied here.
func (g *Graph) SetContactState(id NodeID, up, down bool) error {
	n, err := g.kindNode("SetContactState", id, KindDeviator)
	if err != nil {
		return err
	}
	return g.run("set_contact_state", func() error {
		g.setContactState(n, up, down)
		return nil
	})
}

// setContactState order: teardown while the old state is still stored,
// assign, discovery, re-extension, notify. Discovery must never see stale
// circuits through a contact that just opened.
func (g *Graph) setContactState(n *Node, up, down bool) {
	d := n.deviator
	if d.swap {
		up, down = down, up
	}
	if up == d.up && down == d.down {
		return
	}

	hasNewConnections := (up && !d.up) || (down && !d.down)
	hadCircuits := n.HasCircuits()

	filter, tearDown := AllContacts, true
	switch {
	case !up && !down:
	case !up:
		filter = ContactUp
	case !down:
		filter = ContactDown
	default:
		tearDown = false
	}
	if tearDown {
		g.disableCircuits(n.Circuits(Closed), n, filter)
		g.truncateCircuits(n.Circuits(Open), n, filter)
	}

	d.up, d.down = up, down

	if hasNewConnections {
		g.createCircuitsFromOtherNode(n)
	}
	if hadCircuits {
		g.defaultReachNextOpenCircuit(n)
	}

	g.publish(TopicDeviatorState, DeviatorStateChanged{Node: n.id, Up: up, Down: down})
}

// SetFlip mirrors the drawing of Up and Down
func (g *Graph) SetFlip(id NodeID, flip bool) error {
	n, err := g.kindNode("SetFlip", id, KindDeviator)
	if err != nil {
		return err
	}
	if err := n.checkNoCircuits("SetFlip"); err != nil {
		return err
	}
	return g.run("set_flip", func() error {
		if n.deviator.flip != flip {
			n.deviator.flip = flip
			g.publish(TopicShapeChanged, ShapeChanged{Node: id})
		}
		return nil
	})
}

// SetSwap exchanges which input drives which side. The stored booleans are
// swapped too so the physical state is kept.
func (g *Graph) SetSwap(id NodeID, swap bool) error {
	n, err := g.kindNode("SetSwap", id, KindDeviator)
	if err != nil {
		return err
	}
	d := n.deviator
	if !d.allowSwap && swap {
		return NewError("SetSwap").Node(id).Cause(ErrSwapNotAllowed).Err()
	}
	if err := n.checkNoCircuits("SetSwap"); err != nil {
		return err
	}
	return g.run("set_swap", func() error {
		if d.swap != swap {
			d.swap = swap
			d.up, d.down = d.down, d.up
			g.publish(TopicShapeChanged, ShapeChanged{Node: id})
		}
		return nil
	})
}

// SetHasCenterTap adds or removes the Up contact. Removing it detaches any
// cable plugged into Up.
func (g *Graph) SetHasCenterTap(id NodeID, centerTap bool) error {
	n, err := g.kindNode("SetHasCenterTap", id, KindDeviator)
	if err != nil {
		return err
	}
	d := n.deviator
	if d.centerTapFixed && d.centerTap != centerTap {
		return NewError("SetHasCenterTap").Node(id).Cause(ErrCenterTapFixed).Err()
	}
	if err := n.checkNoCircuits("SetHasCenterTap"); err != nil {
		return err
	}
	if cable := n.contacts[ContactUp].cable; !centerTap && cable != 0 {
		if c := g.cables[cable]; c != nil && c.HasCircuits() {
			return NewError("SetHasCenterTap").Cable(cable).Cause(ErrCircuitsLive).Err()
		}
	}
	return g.run("set_center_tap", func() error {
		if d.centerTap == centerTap {
			return nil
		}
		if cable := n.contacts[ContactUp].cable; !centerTap && cable != 0 {
			g.detach(g.cables[cable], n.contacts[ContactUp].side)
		}
		d.centerTap = centerTap
		g.publish(TopicShapeChanged, ShapeChanged{Node: id})
		return nil
	})
}

// kindNode looks up a node and checks its kind
func (g *Graph) kindNode(op string, id NodeID, kind Kind) (*Node, error) {
	n, err := g.Node(id)
	if err != nil {
		return nil, err
	}
	if n.kind != kind {
		return nil, NewError(op).Node(id).Cause(ErrWrongKind).Err()
	}
	return n, nil
}
