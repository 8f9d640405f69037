package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Bus is a lightweight in-process pub/sub fanout. Subscribers receive
// events on buffered channels; a slow subscriber drops events rather than
// blocking the publisher, since every event is advisory (clients can
// re-fetch current state at any time).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	bufferSize  int
	log         zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[int]chan Event),
		bufferSize:  64,
		log:         log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The unsubscribe function is idempotent.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.bufferSize)
	b.subscribers[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(sub)
			}
		})
	}

	return ch, unsubscribe
}

// Publish delivers a typed payload to all subscribers. Never blocks: full
// subscriber buffers drop the event with a warning.
func (b *Bus) Publish(data EventData) {
	b.PublishEvent(Event{
		Type:      data.EventType(),
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

// PublishEvent delivers a raw event envelope to all subscribers
func (b *Bus) PublishEvent(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.log.Warn().
				Int("subscriber", id).
				Str("event", string(event.Type)).
				Msg("Subscriber buffer full, dropping event")
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
