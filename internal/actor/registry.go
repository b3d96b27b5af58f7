// Package actor serializes work addressed to the same user.
package actor

import (
	"context"
	"sync"
)

// Registry runs functions one at a time per key. Different keys run concurrently.
// Entries are created on demand and dropped once no caller holds or awaits them.
type Registry struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

type entry struct {
	turn chan struct{} // capacity 1; holding the token means owning the actor
	refs int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int64]*entry)}
}

// Do runs fn as the only operation in flight for key.
// It returns ctx.Err() if the context ends while waiting for the turn.
func (r *Registry) Do(ctx context.Context, key int64, fn func(ctx context.Context) error) error {
	e := r.acquire(key)
	defer r.release(key, e)

	select {
	case e.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.turn }()

	return fn(ctx)
}

// Len reports how many keys currently have callers in flight.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) acquire(key int64) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{turn: make(chan struct{}, 1)}
		r.entries[key] = e
	}
	e.refs++
	return e
}

func (r *Registry) release(key int64, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(r.entries, key)
	}
}
