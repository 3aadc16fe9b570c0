// Package storage persists small named values as serialized text and tells
// interested parties when a value changes, including changes made by other
// gateway processes sharing the same backend.
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by backends after Close.
var ErrClosed = errors.New("storage backend closed")

// Change describes a write or deletion of a key.
type Change struct {
	Key     string
	Value   string
	Deleted bool
}

// Backend is a key-value store of serialized text.
type Backend interface {
	// Get reports ok=false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Watch registers fn for every change seen by the backend. Local writes
	// are delivered synchronously before Set/Delete return.
	Watch(fn func(Change)) (cancel func())
	Ping(ctx context.Context) error
	Close() error
}

type watchers struct {
	mu   sync.RWMutex
	next uint64
	fns  map[uint64]func(Change)
}

func (w *watchers) add(fn func(Change)) func() {
	if fn == nil {
		return func() {}
	}
	w.mu.Lock()
	if w.fns == nil {
		w.fns = make(map[uint64]func(Change))
	}
	w.next++
	id := w.next
	w.fns[id] = fn
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.fns, id)
			w.mu.Unlock()
		})
	}
}

func (w *watchers) notify(c Change) {
	w.mu.RLock()
	fns := make([]func(Change), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

func (w *watchers) clear() {
	w.mu.Lock()
	w.fns = nil
	w.mu.Unlock()
}
