// Package keylock provides lazily created, reference-counted locks keyed by string.
// Entries are dropped as soon as nobody holds or waits for them.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	ch   chan struct{} // one token; holding it means holding the lock
	refs int
}

// Arena hands out one exclusive section per key.
type Arena struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Arena {
	return &Arena{entries: make(map[string]*entry)}
}

// Lock blocks until the key is free or ctx is done. The returned func releases it.
func (a *Arena) Lock(ctx context.Context, key string) (func(), error) {
	a.mu.Lock()
	e, ok := a.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		a.entries[key] = e
	}
	e.refs++
	a.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		a.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			a.release(key, e)
		})
	}, nil
}

func (a *Arena) release(key string, e *entry) {
	a.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(a.entries, key)
	}
	a.mu.Unlock()
}

// Len reports how many keys currently have holders or waiters.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
