package registry

import "sync"

type subscriber[E any] struct {
	id uint64
	fn func(E)
}

// Hub is an ordered observer list. The zero value is ready to use.
// Subscribers are called synchronously, in registration order, on the
// publishing goroutine. The list is snapshotted before each publish, so
// subscribing or unsubscribing from inside a callback takes effect on the next event.
type Hub[E any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscriber[E]
}

// Subscribe registers fn and returns a function that removes it.
func (h *Hub[E]) Subscribe(fn func(E)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, subscriber[E]{id: id, fn: fn})

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.subs {
			if s.id == id {
				h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of subscribers.
func (h *Hub[E]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish calls every subscriber with e.
func (h *Hub[E]) Publish(e E) {
	h.mu.Lock()
	if len(h.subs) == 0 {
		h.mu.Unlock()
		return
	}
	snapshot := h.subs
	h.mu.Unlock()

	for _, s := range snapshot {
		s.fn(e)
	}
}
