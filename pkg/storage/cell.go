package storage

import (
	"context"
	"encoding/json"
	"sync"

	pkgerrors "github.com/thaitruongdao01-afk/saintpaul/pkg/errors"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
)

// Cell is a persisted value with an in-memory mirror. Reads never fail:
// missing or malformed data reads as the default. Write failures are logged
// and the mirror keeps the new value.
type Cell[T any] struct {
	backend Backend
	key     string
	def     T
	logg    *logger.Logger

	// writeMu serializes mutations so persisted order matches mirror order.
	writeMu sync.Mutex

	mu      sync.RWMutex
	value   T
	raw     string
	present bool
	subs    map[uint64]func(T)
	nextSub uint64

	stopWatch func()
	closeOnce sync.Once
}

func NewCell[T any](backend Backend, key string, def T, logg *logger.Logger) *Cell[T] {
	if logg == nil {
		logg = logger.Nop()
	}
	c := &Cell[T]{
		backend: backend,
		key:     key,
		def:     def,
		logg:    logg,
		value:   def,
		subs:    make(map[uint64]func(T)),
	}
	c.stopWatch = backend.Watch(c.onChange)
	return c
}

func (c *Cell[T]) Key() string { return c.key }

func (c *Cell[T]) ctx(ctx context.Context) context.Context {
	return c.logg.WithField(ctx, "storage_key", c.key)
}

// Load reads the persisted value into the mirror and returns it.
func (c *Cell[T]) Load(ctx context.Context) T {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	raw, ok, err := c.backend.Get(ctx, c.key)
	if err != nil {
		c.logg.Error(c.withDump(ctx, err), "storage read failed, using default", err)
		ok = false
	}

	value, present := c.def, false
	if ok {
		if decoded, decErr := decode[T](raw); decErr == nil {
			value, present = decoded, true
		} else {
			c.logg.Warn(c.ctx(ctx), "malformed stored value, using default")
		}
	}

	c.mu.Lock()
	c.value, c.present = value, present
	if present {
		c.raw = raw
	} else {
		c.raw = ""
	}
	c.mu.Unlock()
	return value
}

// Get returns the mirrored value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Present reports whether the mirror holds a stored value rather than the default.
func (c *Cell[T]) Present() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.present
}

func (c *Cell[T]) Set(ctx context.Context, v T) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.setLocked(ctx, v)
}

// Update applies fn to the current value and stores the result.
func (c *Cell[T]) Update(ctx context.Context, fn func(T) T) T {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	next := fn(c.Get())
	c.setLocked(ctx, next)
	return next
}

func (c *Cell[T]) setLocked(ctx context.Context, v T) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logg.Error(c.ctx(ctx), "encode storage value", err)
		return
	}

	c.mu.Lock()
	c.value, c.raw, c.present = v, string(raw), true
	c.mu.Unlock()

	if err := c.backend.Set(ctx, c.key, string(raw)); err != nil {
		c.logg.Error(c.withDump(ctx, err), "storage write failed", err)
	}
	c.notify(v)
}

// Remove deletes the stored value and resets the mirror to the default.
func (c *Cell[T]) Remove(ctx context.Context) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	c.value, c.raw, c.present = c.def, "", false
	c.mu.Unlock()

	if err := c.backend.Delete(ctx, c.key); err != nil {
		c.logg.Error(c.withDump(ctx, err), "storage delete failed", err)
	}
	c.notify(c.def)
}

// Subscribe registers fn for every mirror change, local or external.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	c.mu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Cell[T]) Close() {
	c.closeOnce.Do(func() {
		if c.stopWatch != nil {
			c.stopWatch()
		}
		c.mu.Lock()
		c.subs = make(map[uint64]func(T))
		c.mu.Unlock()
	})
}

func (c *Cell[T]) onChange(ch Change) {
	if ch.Key != c.key {
		return
	}

	c.mu.Lock()
	switch {
	case ch.Deleted:
		if !c.present {
			c.mu.Unlock()
			return
		}
		c.value, c.raw, c.present = c.def, "", false
	case c.present && ch.Value == c.raw:
		c.mu.Unlock()
		return
	default:
		decoded, err := decode[T](ch.Value)
		if err != nil {
			c.value, c.raw, c.present = c.def, "", false
			c.mu.Unlock()
			c.logg.Warn(c.ctx(context.Background()), "malformed external storage value, using default")
			c.notify(c.def)
			return
		}
		c.value, c.raw, c.present = decoded, ch.Value, true
	}
	v := c.value
	c.mu.Unlock()

	c.notify(v)
}

func (c *Cell[T]) notify(v T) {
	c.mu.RLock()
	fns := make([]func(T), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (c *Cell[T]) withDump(ctx context.Context, err error) context.Context {
	return c.logg.WithFields(c.ctx(ctx), map[string]any{"error_dump": pkgerrors.Dump(err)})
}

func decode[T any](raw string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(raw), &v)
	return v, err
}
