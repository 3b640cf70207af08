// Package live keeps in-process mirrors of the stored task and contact
// collections and fans snapshots out to streaming subscribers.
package live

import (
	"context"
	"sync"
)

// Loader fetches the full remote collection.
type Loader[T any] func(ctx context.Context) ([]T, error)

// Collection is a single-owner mirror of one remote collection. Only Refresh
// and Mutate write the list; readers get copies.
type Collection[T any] struct {
	mu     sync.Mutex
	items  []T
	loaded bool
	load   Loader[T]
	clone  func(T) T
	subs   map[int]chan []T
	nextID int
}

// NewCollection creates an empty collection. clone deep-copies one item; nil
// copies by value.
func NewCollection[T any](load Loader[T], clone func(T) T) *Collection[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Collection[T]{load: load, clone: clone, subs: make(map[int]chan []T)}
}

// Snapshot returns a copy of the current list.
func (c *Collection[T]) Snapshot() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

// Loaded reports whether the collection has been filled at least once.
func (c *Collection[T]) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Subscribe registers for snapshots. The channel holds at most one pending
// snapshot; a slow reader only ever sees the latest one. Call cancel to
// release the subscription; the channel is closed afterwards.
func (c *Collection[T]) Subscribe() (<-chan []T, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	ch := make(chan []T, 1)
	c.subs[id] = ch
	if c.loaded {
		ch <- c.copyLocked()
	}
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Refresh reloads the list from the remote collection and publishes it.
// On error the previous list is kept.
func (c *Collection[T]) Refresh(ctx context.Context) error {
	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	c.loaded = true
	c.publishLocked()
	return nil
}

// Mutate replaces the list with fn's result and publishes it. fn receives a
// copy it may modify freely.
func (c *Collection[T]) Mutate(fn func([]T) []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = fn(c.copyLocked())
	c.loaded = true
	c.publishLocked()
}

func (c *Collection[T]) copyLocked() []T {
	out := make([]T, len(c.items))
	for i, v := range c.items {
		out[i] = c.clone(v)
	}
	return out
}

func (c *Collection[T]) publishLocked() {
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- c.copyLocked()
	}
}
