package event

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const defaultQueueSize = 100

// Subscription is one observer's event stream.
type Subscription struct {
	id     string
	events chan Event
}

// Events returns the subscriber's channel.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Notifier fans published events out to subscribers and keeps a bounded
// queue of recent events for late readers. AddEvent never blocks: a
// subscriber that does not keep up loses events.
type Notifier struct {
	mu      sync.Mutex
	streams map[string]chan Event
	queue   []Event
	maxSize int
}

// NewNotifier creates a Notifier with the default recent-events capacity.
func NewNotifier() *Notifier {
	return &Notifier{
		streams: make(map[string]chan Event),
		maxSize: defaultQueueSize,
	}
}

// AddEvent implements Sink.
func (n *Notifier) AddEvent(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.queue = append(n.queue, ev)
	if len(n.queue) > n.maxSize {
		n.queue = n.queue[len(n.queue)-n.maxSize:]
	}

	for _, stream := range n.streams {
		select {
		case stream <- ev:
		default:
			log.Debugf("event stream buffer full, skipping event: %s", ev.Name)
		}
	}

	log.Debugf("event published: %s %s", ev.Name, ev.Reason)
}

// Subscribe returns a new event subscription.
func (n *Notifier) Subscribe() *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := uuid.New().String()
	stream := make(chan Event, 10)
	n.streams[id] = stream

	return &Subscription{id: id, events: stream}
}

// Unsubscribe removes the subscription and closes its channel.
func (n *Notifier) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if stream, ok := n.streams[sub.id]; ok {
		delete(n.streams, sub.id)
		close(stream)
	}
}

// Recent returns a copy of the retained recent events, oldest first.
func (n *Notifier) Recent() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Event, len(n.queue))
	copy(out, n.queue)
	return out
}
