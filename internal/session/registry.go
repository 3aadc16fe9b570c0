package session

import (
	"context"
	"sync"
	"time"

	"github.com/thaitruongdao01-afk/saintpaul/pkg/enums"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/storage"
	"golang.org/x/sync/singleflight"
)

// Registry hands out one Store per browser session id. Stores are an
// in-memory view of persisted state and may be dropped and rebuilt at will.
type Registry struct {
	backend storage.Backend
	auth    Authenticator
	opts    []Option
	logg    *logger.Logger

	mu      sync.Mutex
	entries map[string]*entry
	ended   []func(sessionID string)
	dropped []func(sessionID string)

	hydrations singleflight.Group
}

type entry struct {
	store    *Store
	unsub    func()
	refs     int
	lastUsed time.Time
}

func NewRegistry(backend storage.Backend, auth Authenticator, logg *logger.Logger, opts ...Option) *Registry {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Registry{
		backend: backend,
		auth:    auth,
		opts:    append([]Option{WithLogger(logg)}, opts...),
		logg:    logg,
		entries: make(map[string]*entry),
	}
}

// OnEnded registers fn to run whenever a session leaves the authenticated
// state, whether by logout, invalidation or a change from another instance.
func (r *Registry) OnEnded(fn func(sessionID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, fn)
}

// OnDropped registers fn to run after the store of a session is forgotten,
// so per-session state kept elsewhere can be released too.
func (r *Registry) OnDropped(fn func(sessionID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = append(r.dropped, fn)
}

// Get returns the store for id, creating it on first use. Hydration runs in
// the background at most once per id; use Store.WaitReady to wait for it.
func (r *Registry) Get(ctx context.Context, id string) *Store {
	store, _ := r.get(ctx, id, false)
	return store
}

// Acquire is Get for the duration of one request. Release drops the store
// again when no other request holds it and the session is unauthenticated.
func (r *Registry) Acquire(ctx context.Context, id string) (*Store, func()) {
	store, e := r.get(ctx, id, true)
	var once sync.Once
	return store, func() {
		once.Do(func() { r.release(id, e) })
	}
}

func (r *Registry) get(ctx context.Context, id string, hold bool) (*Store, *entry) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		store := NewStore(id, r.backend, r.auth, r.opts...)
		e = &entry{store: store}
		e.unsub = store.Subscribe(r.watch(id))
		r.entries[id] = e
	}
	e.lastUsed = time.Now()
	if hold {
		e.refs++
	}
	store := e.store
	r.mu.Unlock()

	if store.State() == enums.SessionUninitialized {
		hctx := context.WithoutCancel(ctx)
		r.hydrations.DoChan(id, func() (any, error) {
			store.Hydrate(hctx)
			return nil, nil
		})
	}
	return store, e
}

func (r *Registry) release(id string, e *entry) {
	r.mu.Lock()
	e.refs--
	current := r.entries[id] == e
	idle := current && e.refs <= 0 && e.store.State() == enums.SessionUnauthenticated
	if idle {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if idle {
		r.forget(id, e)
	}
}

// Lookup returns an existing store without creating one.
func (r *Registry) Lookup(id string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.store, true
}

// Logout ends the session and forgets its store.
func (r *Registry) Logout(ctx context.Context, id string) {
	store, ok := r.Lookup(id)
	if !ok {
		store = NewStore(id, r.backend, r.auth, r.opts...)
		store.Hydrate(ctx)
		defer store.Close()
	}
	store.Logout(ctx)
	r.Drop(id)
}

// Drop forgets the store for id without touching persisted state.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if ok {
		r.forget(id, e)
	}
}

// Sweep drops every store no request holds that was last used at or before
// now minus idle. It returns how many stores were dropped.
func (r *Registry) Sweep(now time.Time, idle time.Duration) int {
	cutoff := now.Add(-idle)
	expired := map[string]*entry{}

	r.mu.Lock()
	for id, e := range r.entries {
		if e.refs <= 0 && !e.lastUsed.After(cutoff) {
			expired[id] = e
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for id, e := range expired {
		r.forget(id, e)
	}
	return len(expired)
}

// RunSweeper sweeps every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.Sweep(now, idle); n > 0 {
				r.logg.Debug(r.logg.WithField(ctx, "evicted", n), "idle sessions evicted")
			}
		}
	}
}

// Len reports how many stores are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close drops every store.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for id, e := range all {
		r.forget(id, e)
	}
}

func (r *Registry) forget(id string, e *entry) {
	if e.unsub != nil {
		e.unsub()
	}
	e.store.Close()

	r.mu.Lock()
	hooks := append([]func(string){}, r.dropped...)
	r.mu.Unlock()
	for _, fn := range hooks {
		fn(id)
	}
}

func (r *Registry) watch(id string) func(Snapshot) {
	authenticated := false
	var mu sync.Mutex
	return func(s Snapshot) {
		mu.Lock()
		was := authenticated
		authenticated = s.IsAuthenticated()
		mu.Unlock()

		if !was || s.IsAuthenticated() {
			return
		}
		r.mu.Lock()
		hooks := append([]func(string){}, r.ended...)
		r.mu.Unlock()
		for _, fn := range hooks {
			fn(id)
		}
	}
}
