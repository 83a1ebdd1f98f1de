// Package keylock provides mutual exclusion keyed by string.
//
// Each key gets its own weight-1 semaphore, so holders of different keys never
// contend and waiters on the same key are served in the order they arrived.
// Idle keys are dropped from the table once no holder or waiter references
// them.
package keylock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type entry struct {
	sem  *semaphore.Weighted
	refs int // holders + waiters
}

// Table is a set of independent locks keyed by string. The zero value is not
// usable; call New.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty Table.
func New() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Acquire blocks until the lock for key is held or ctx is done. On success it
// returns a release func that must be called exactly once. On failure it
// returns ctx.Err() and the caller holds nothing.
func (t *Table) Acquire(ctx context.Context, key string) (func(), error) {
	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		t.entries[key] = e
	}
	e.refs++
	t.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		t.unref(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			t.unref(key, e)
		})
	}, nil
}

func (t *Table) unref(key string, e *entry) {
	t.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(t.entries, key)
	}
	t.mu.Unlock()
}

// Len reports how many keys currently have a holder or waiter.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
