package notify

import (
	"log/slog"
	"sync"
)

// DefaultSubscriberBuffer is the number of events a subscriber may lag behind
const DefaultSubscriberBuffer = 256

// Hub keeps in-process subscribers, e.g. Server-Sent Events streams
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan Message
	nextID int
	buffer int
	log    *slog.Logger
}

func NewHub(log *slog.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{
		subs:   make(map[int]chan Message),
		buffer: buffer,
		log:    log.With(slog.String("service", "hub")),
	}
}

// Emit delivers the event to every subscriber with room for it.
// A subscriber whose buffer is full misses the event.
func (h *Hub) Emit(name string, payload any) {
	msg := Message{Event: name, Payload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- msg:
		default:
			h.log.Warn("subscriber is lagging, event dropped", slog.Int("subscriber", id), slog.String("event", name))
		}
	}
}

// Subscribe registers a new subscriber. The returned func unsubscribes
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Message, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan Message, h.buffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
