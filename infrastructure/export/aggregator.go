// Package export collects finished records from the fan-out workers and
// renders them as CSV plus a run summary.
package export

import "sync"

// Aggregator is a thread-safe, append-only result sink. Records arrive in
// completion order; any ordering the final export needs is a post-pass sort,
// not a property of collection.
type Aggregator[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewAggregator creates an empty sink.
func NewAggregator[T any]() *Aggregator[T] {
	return &Aggregator[T]{}
}

// Append adds records. Records must not be mutated after being handed in.
func (a *Aggregator[T]) Append(items ...T) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append(a.items, items...)
}

// Len returns the number of collected records.
func (a *Aggregator[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// Snapshot returns a copy of the collected records.
func (a *Aggregator[T]) Snapshot() []T {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]T(nil), a.items...)
}
