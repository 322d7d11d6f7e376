// Package events fans sensor state changes out to subscribers (SSE clients,
// the daemon's logger).
package events

import (
	"sync"

	"github.com/micro-nova/imx415-go/internal/models"
)

const subBufferSize = 16

// Bus is a non-blocking publish-subscribe bus of session events. A slow
// subscriber loses events rather than stalling the session, which publishes
// while holding its lock.
type Bus struct {
	mu   sync.Mutex
	seq  uint64
	subs map[string]chan models.Event
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]chan models.Event),
	}
}

// Subscribe registers id and returns its event channel. Subscribing an id
// twice replaces the earlier channel, which is closed.
func (b *Bus) Subscribe(id string) <-chan models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.subs[id]; ok {
		close(old)
	}
	ch := make(chan models.Event, subBufferSize)
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish stamps ev with the next sequence number and delivers it to every
// subscriber with room in its buffer.
func (b *Bus) Publish(ev models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	ev.Seq = b.seq
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
