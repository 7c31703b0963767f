package events

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultSubscriberBuffer is the per-subscriber queue depth used when the
// caller passes a non-positive buffer size to Subscribe.
const DefaultSubscriberBuffer = 256

// Bus is the process-wide broadcast point for domain events. Publishing is
// non-blocking: a subscriber that lags beyond its queue depth loses events
// rather than stalling the publisher. Events are delivered to the subscribers
// present at publish time; there is no replay.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	seq    int64
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Publish stamps the event with the next sequence number and current time,
// then fans it out to every subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.seq++
	ev.Sequence = b.seq
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	// Snapshot under the lock so a concurrent Close cannot hand us a
	// channel that is already closed.
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("event bus subscriber lagging, dropping event",
				"subscriber", id, "kind", ev.Kind, "instance", ev.InstanceID)
		}
	}
	b.mu.Unlock()
}

// Subscribe registers a new subscriber with the given queue depth and returns
// its channel plus a cancel function. The channel is closed on cancel or when
// the bus itself closes.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close shuts the bus down. All subscriber channels are closed, which causes
// any blocking lifecycle call waiting on the bus to fail fast.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
