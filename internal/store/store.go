// Package store holds the client-side state stores: session, transaction
// cache and notification list. Each store is an owned, mutex-guarded state
// object with an explicit subscription mechanism; there are no cross-store
// transactional guarantees.
package store

import "sync"

// Listener is invoked after a store mutation. Callbacks run synchronously on
// the mutating goroutine and must not block.
type Listener func()

type broadcaster struct {
	mu        sync.Mutex
	listeners map[int]Listener
	next      int
}

// Subscribe registers a listener and returns its unsubscribe function.
func (b *broadcaster) Subscribe(fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[int]Listener)
	}
	id := b.next
	b.next++
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

func (b *broadcaster) notify() {
	b.mu.Lock()
	fns := make([]Listener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
