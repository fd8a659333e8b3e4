package watch

import "sync/atomic"

// epoch is a monotonically increasing request counter. A response is acted on
// only if the epoch it was issued with is still the current one.
type epoch struct {
	n atomic.Uint64
}

// next invalidates every outstanding epoch and returns a fresh one.
func (e *epoch) next() uint64 {
	return e.n.Add(1)
}

// isCurrent reports whether v is still the latest issued epoch.
func (e *epoch) isCurrent(v uint64) bool {
	return e.n.Load() == v
}
