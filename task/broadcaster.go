package task

import "sync"

// UpdateEvent is broadcast on every task status transition (§6 "events").
type UpdateEvent struct {
	TaskID string
	Status string
}

// Broadcaster fans a single producer's updates out to any number of
// subscribers, grounded on engine.Engine's channel-based event forwarding
// (engine/engine.go:processEvents) but for task-level rather than
// agent-level events. Slow or absent subscribers never block the producer:
// a full subscriber channel simply drops that event.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan UpdateEvent]struct{}
}

// NewBroadcaster constructs an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan UpdateEvent]struct{})}
}

// Subscribe registers a new receiver and returns it along with an
// unsubscribe function the caller must invoke when done listening.
func (b *Broadcaster) Subscribe(buffer int) (<-chan UpdateEvent, func()) {
	ch := make(chan UpdateEvent, buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, unsubscribe
}

// Publish sends ev to every current subscriber, dropping it for any
// subscriber whose channel is full.
func (b *Broadcaster) Publish(ev UpdateEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
