package pubsub

import "sort"

// Message is a queued notification
type Message struct {
	Topic   string
	Payload any
}

// Handler receives a message during Drain
type Handler func(Message)

// Queue is a deferred, single-threaded publish/subscribe queue.
//
// Publish never invokes handlers. Messages are held until the owner calls
// Drain, which delivers them in FIFO order. Messages published by a handler
// are appended to the same queue and delivered by the running Drain, so a
// handler never runs nested inside another handler or inside the code that
// published the message.
type Queue struct {
	subscribers map[string]map[uint64]*Subscription
	pending     []Message
	nextID      uint64
	draining    bool
	isShutdown  bool
	delivered   uint64
}

// Subscription represents a subscription to a topic
type Subscription struct {
	id      uint64
	topic   string
	handler Handler
	q       *Queue
	active  bool
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{
		subscribers: make(map[string]map[uint64]*Subscription),
	}
}

// Subscribe registers handler for topic. Returns nil after Shutdown.
func (q *Queue) Subscribe(topic string, handler Handler) *Subscription {
	if q.isShutdown || handler == nil {
		return nil
	}

	q.nextID++
	sub := &Subscription{
		id:      q.nextID,
		topic:   topic,
		handler: handler,
		q:       q,
		active:  true,
	}

	if q.subscribers[topic] == nil {
		q.subscribers[topic] = make(map[uint64]*Subscription)
	}
	q.subscribers[topic][sub.id] = sub
	return sub
}

// Publish enqueues a message for topic. Messages for topics without
// subscribers are dropped.
func (q *Queue) Publish(topic string, payload any) {
	if q.isShutdown || len(q.subscribers[topic]) == 0 {
		return
	}
	q.pending = append(q.pending, Message{Topic: topic, Payload: payload})
}

// Post enqueues a task that runs during Drain in publish order
func (q *Queue) Post(task func()) {
	if q.isShutdown || task == nil {
		return
	}
	q.pending = append(q.pending, Message{Payload: task})
}

// Drain delivers pending messages until the queue is empty and returns the
// number of messages delivered. A nested call returns 0 immediately; the
// outer call picks up anything published meanwhile.
func (q *Queue) Drain() int {
	if q.draining {
		return 0
	}
	q.draining = true
	defer func() { q.draining = false }()

	n := 0
	for len(q.pending) > 0 {
		msg := q.pending[0]
		q.pending[0] = Message{}
		q.pending = q.pending[1:]
		n++

		if msg.Topic == "" {
			if task, ok := msg.Payload.(func()); ok {
				task()
			}
			continue
		}
		for _, sub := range q.snapshot(msg.Topic) {
			if sub.active {
				sub.handler(msg)
			}
		}
	}
	q.pending = nil
	q.delivered += uint64(n)
	return n
}

// snapshot returns topic subscribers in subscription order
func (q *Queue) snapshot(topic string) []*Subscription {
	subs := make([]*Subscription, 0, len(q.subscribers[topic]))
	for _, sub := range q.subscribers[topic] {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })
	return subs
}

// Pending returns the number of undelivered messages
func (q *Queue) Pending() int {
	return len(q.pending)
}

// Draining reports whether a Drain is in progress
func (q *Queue) Draining() bool {
	return q.draining
}

// Delivered returns the total number of messages delivered so far
func (q *Queue) Delivered() uint64 {
	return q.delivered
}

// GetSubscriberCount returns the number of subscribers for a topic
func (q *Queue) GetSubscriberCount(topic string) int {
	return len(q.subscribers[topic])
}

// Shutdown drops pending messages and all subscriptions
func (q *Queue) Shutdown() {
	if q.isShutdown {
		return
	}
	q.isShutdown = true
	q.pending = nil
	for topic, subs := range q.subscribers {
		for _, sub := range subs {
			sub.active = false
		}
		delete(q.subscribers, topic)
	}
}

// Topic returns the subscribed topic
func (s *Subscription) Topic() string {
	return s.topic
}

// Unsubscribe removes the subscription. Messages already queued are not
// delivered to it.
func (s *Subscription) Unsubscribe() {
	if !s.active {
		return
	}
	s.active = false

	subs := s.q.subscribers[s.topic]
	if subs != nil {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.q.subscribers, s.topic)
		}
	}
}
