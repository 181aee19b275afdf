package tracking

import (
	"sync"

	"courier-dispatch/internal/domain"
)

const subscriberBuffer = 32

// Hub fans tracking events out to subscribers of a request.
// Delivery is non-blocking; a full subscriber misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan domain.TrackingEvent]struct{}
	closed bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan domain.TrackingEvent]struct{})}
}

// Publish sends ev to every subscriber of its request.
func (h *Hub) Publish(ev domain.TrackingEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for ch := range h.subs[ev.RequestID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a subscriber for requestID. The returned cancel func
// closes the channel and is safe to call more than once.
func (h *Hub) Subscribe(requestID string) (<-chan domain.TrackingEvent, func()) {
	ch := make(chan domain.TrackingEvent, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	set, ok := h.subs[requestID]
	if !ok {
		set = make(map[chan domain.TrackingEvent]struct{})
		h.subs[requestID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unsubscribe(requestID, ch) })
	}
}

func (h *Hub) unsubscribe(requestID string, ch chan domain.TrackingEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[requestID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(h.subs, requestID)
	}
	close(ch)
}

// Subscribers returns the number of subscribers of requestID.
func (h *Hub) Subscribers(requestID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[requestID])
}

// Close closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.subs {
		for ch := range set {
			close(ch)
		}
	}
	h.subs = nil
}
