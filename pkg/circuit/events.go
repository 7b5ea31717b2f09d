package circuit

import "github.com/dd0wney/cluso-relaysim/pkg/pubsub"

// Notification topics published on the graph queue. Handlers run after the
// engine pass that produced them has finished.
const (
	TopicShapeChanged    = "node.shape_changed"
	TopicContactsChanged = "node.contacts_changed"
	TopicDeviatorState   = "deviator.state_changed"
	TopicSinkPower       = "sink.power_changed"
	TopicSourceState     = "source.state_changed"
	TopicSwitchState     = "switch.state_changed"
)

// ShapeChanged asks renderers to redraw a node
type ShapeChanged struct {
	Node NodeID
}

// ContactsChanged reports that circuits through a node changed
type ContactsChanged struct {
	Node NodeID
}

// DeviatorStateChanged carries the electrical (post-swap) state
type DeviatorStateChanged struct {
	Node NodeID
	Up   bool
	Down bool
}

// SinkPowerChanged reports a sink gaining or losing its last Closed circuit
type SinkPowerChanged struct {
	Node    NodeID
	Powered bool
}

// SourceStateChanged reports a power source being switched
type SourceStateChanged struct {
	Node    NodeID
	Enabled bool
}

// SwitchStateChanged reports an on/off switch being toggled
type SwitchStateChanged struct {
	Node NodeID
	On   bool
}

// Subscribe registers handler for topic on the graph queue
func (g *Graph) Subscribe(topic string, handler func(pubsub.Message)) *pubsub.Subscription {
	return g.queue.Subscribe(topic, handler)
}

// Post defers task until the current top-level call has finished its pass
func (g *Graph) Post(task func()) {
	g.queue.Post(task)
	if !g.inPass {
		g.drain()
	}
}

func (g *Graph) publish(topic string, payload any) {
	g.queue.Publish(topic, payload)
}
