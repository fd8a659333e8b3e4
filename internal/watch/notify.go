package watch

import (
	"slices"
	"sync"
)

// notifier fans values out to listeners in publication order.
//
// publish never calls a listener directly; it queues the value and makes sure
// exactly one drain goroutine is running. Owners may therefore publish while
// holding their own lock, and listeners may call back into the owner.
type notifier[T any] struct {
	mu        sync.Mutex
	listeners []func(T)
	queue     []T
	draining  bool
	closed    bool
}

// add registers a listener. It is ignored after close.
func (n *notifier[T]) add(fn func(T)) {
	if fn == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.listeners = append(n.listeners, fn)
}

// publish queues v for delivery to every listener.
func (n *notifier[T]) publish(v T) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.queue = append(n.queue, v)
	if !n.draining {
		n.draining = true
		go n.drain()
	}
}

func (n *notifier[T]) drain() {
	for {
		n.mu.Lock()
		if n.closed || len(n.queue) == 0 {
			n.draining = false
			n.mu.Unlock()
			return
		}
		v := n.queue[0]
		var zero T
		n.queue[0] = zero
		n.queue = n.queue[1:]
		listeners := slices.Clone(n.listeners)
		n.mu.Unlock()

		for _, fn := range listeners {
			fn(v)
		}
	}
}

// close detaches every listener and drops undelivered values.
func (n *notifier[T]) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.listeners = nil
	n.queue = nil
}
