// Package broadcast provides a conflating publish/subscribe value holder.
//
// A Hub keeps the latest published value. Each subscriber owns a one-slot
// channel; publishing replaces an unread value instead of blocking, so a slow
// reader only ever observes the most recent state and never stalls the
// publisher.
package broadcast

import (
	"context"
	"sync"
)

type Hub[T any] struct {
	mu     sync.Mutex
	value  T
	has    bool
	closed bool
	done   chan struct{}
	subs   map[chan T]struct{}
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: map[chan T]struct{}{}, done: make(chan struct{})}
}

// Publish stores v as the latest value and offers it to every subscriber.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.value = v
	h.has = true
	for ch := range h.subs {
		offer(ch, v)
	}
}

// Latest returns the most recently published value.
func (h *Hub[T]) Latest() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value, h.has
}

// Subscribe returns a channel that receives the current value (if any)
// followed by later publications. The channel is closed when ctx is done or
// the hub is closed.
func (h *Hub[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	if h.has {
		offer(ch, h.value)
	}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-h.done:
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}()
	return ch
}

// Close closes every subscriber channel. Later publications are dropped.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

// offer must be called with the hub lock held; the publisher is the only sender.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
