package bus

import (
	"sync"
	"time"
)

// Kind identifies a connection lifecycle event.
type Kind string

const (
	// ConnectionOpened is published once the backend has verified the
	// charge point's identity.
	ConnectionOpened Kind = "connection_opened"
	// ConnectionClosed is published when the transport drops or the backend
	// revokes verification.
	ConnectionClosed Kind = "connection_closed"
)

// Event is a connection lifecycle notification.
type Event struct {
	Kind   Kind
	At     time.Time
	Reason string
}

// Bus provides fan-out pub/sub semantics for connection events.
// Each Subscribe call gets its own channel that receives every future
// publication. Past messages are not replayed. The implementation is safe for
// concurrent publishers and subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan Event
}

// New creates a ready-to-use Bus.
func New() *Bus { return &Bus{} }

// Subscribe returns a read-only channel that will receive all future events.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers the event to all subscribers without blocking. A
// subscriber whose buffer is full misses this event.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := make([]chan Event, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes every subscriber channel. Publishing after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
	b.mu.Unlock()
}
