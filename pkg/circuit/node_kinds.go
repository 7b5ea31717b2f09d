package circuit

type sourceState struct {
	enabled bool
	poles   [2]bool
}

type sinkState struct {
	flavor   SinkFlavor
	polarity Polarity
	powered  bool
}

type switchState struct {
	on bool
}

type junctionState struct {
	disabled int
}

// Enabled reports whether a power source is feeding
func (n *Node) Enabled() bool { return n.source != nil && n.source.enabled }

// Feeds reports whether a power source feeds pole p
func (n *Node) Feeds(p Pole) bool { return n.source != nil && n.source.poles[p] }

// Powered reports whether a sink carries a Closed circuit, as of the last
// finished pass
func (n *Node) Powered() bool { return n.sink != nil && n.sink.powered }

// SinkFlavor returns the sink flavor, SinkCoil for other kinds
func (n *Node) SinkFlavor() SinkFlavor {
	if n.sink == nil {
		return SinkCoil
	}
	return n.sink.flavor
}

// Polarity returns the accepted poles of a sink
func (n *Node) Polarity() Polarity {
	if n.sink == nil {
		return AnyPole
	}
	return n.sink.polarity
}

// On reports whether a switch conducts
func (n *Node) On() bool { return n.sw != nil && n.sw.on }

// DisabledContact returns the disabled junction contact or NoContact
func (n *Node) DisabledContact() int {
	if n.junction == nil {
		return NoContact
	}
	return n.junction.disabled
}

// SetSourceEnabled switches a power source. Enabling discovers every circuit
// it feeds; disabling discards them.
func (g *Graph) SetSourceEnabled(id NodeID, enabled bool) error {
	n, err := g.kindNode("SetSourceEnabled", id, KindPowerSource)
	if err != nil {
		return err
	}
	return g.run("set_source_enabled", func() error {
		if n.source.enabled == enabled {
			return nil
		}
		if !enabled {
			g.disableCircuits(n.Circuits(Closed), n, AllContacts)
			g.truncateCircuits(n.Circuits(Open), n, AllContacts)
			n.source.enabled = false
		} else {
			n.source.enabled = true
			g.createCircuitsFromPowerNode(n)
		}
		g.publish(TopicSourceState, SourceStateChanged{Node: id, Enabled: enabled})
		return nil
	})
}

// SetSourcePoles changes which poles a disabled-or-idle source feeds
func (g *Graph) SetSourcePoles(id NodeID, poles ...Pole) error {
	n, err := g.kindNode("SetSourcePoles", id, KindPowerSource)
	if err != nil {
		return err
	}
	if err := n.checkNoCircuits("SetSourcePoles"); err != nil {
		return err
	}
	return g.run("set_source_poles", func() error {
		n.source.poles = [2]bool{}
		for _, p := range poles {
			n.source.poles[p] = true
		}
		if n.source.enabled {
			g.createCircuitsFromPowerNode(n)
		}
		g.publish(TopicShapeChanged, ShapeChanged{Node: id})
		return nil
	})
}

// SetSwitch turns an on/off switch
func (g *Graph) SetSwitch(id NodeID, on bool) error {
	n, err := g.kindNode("SetSwitch", id, KindSwitch)
	if err != nil {
		return err
	}
	return g.run("set_switch", func() error {
		if n.sw.on == on {
			return nil
		}
		hadCircuits := n.HasCircuits()
		if !on {
			g.disableCircuits(n.Circuits(Closed), n, AllContacts)
			g.truncateCircuits(n.Circuits(Open), n, AllContacts)
		}
		n.sw.on = on
		if on {
			g.createCircuitsFromOtherNode(n)
		}
		if hadCircuits {
			g.defaultReachNextOpenCircuit(n)
		}
		g.publish(TopicSwitchState, SwitchStateChanged{Node: id, On: on})
		return nil
	})
}

// SetSinkPolarity changes which poles close on a sink
func (g *Graph) SetSinkPolarity(id NodeID, polarity Polarity) error {
	n, err := g.kindNode("SetSinkPolarity", id, KindSink)
	if err != nil {
		return err
	}
	if err := n.checkNoCircuits("SetSinkPolarity"); err != nil {
		return err
	}
	return g.run("set_sink_polarity", func() error {
		n.sink.polarity = polarity
		g.publish(TopicShapeChanged, ShapeChanged{Node: id})
		return nil
	})
}

// SetJunctionDisabledContact removes one junction contact from the shape,
// detaching its cable. NoContact enables all four.
func (g *Graph) SetJunctionDisabledContact(id NodeID, idx int) error {
	n, err := g.kindNode("SetJunctionDisabledContact", id, KindJunction)
	if err != nil {
		return err
	}
	if idx < NoContact || idx >= len(n.contacts) {
		return NewError("SetJunctionDisabledContact").Node(id).Contact(idx).Cause(ErrInvalidContact).Err()
	}
	if err := n.checkNoCircuits("SetJunctionDisabledContact"); err != nil {
		return err
	}
	return g.run("set_junction_contact", func() error {
		if idx != NoContact {
			if cable := n.contacts[idx].cable; cable != 0 {
				g.detach(g.cables[cable], n.contacts[idx].side)
			}
		}
		n.junction.disabled = idx
		g.publish(TopicShapeChanged, ShapeChanged{Node: id})
		return nil
	})
}
