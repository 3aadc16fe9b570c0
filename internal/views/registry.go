package views

import (
	"context"
	"sync"

	"github.com/thaitruongdao01-afk/saintpaul/internal/listview"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/config"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/debounce"
	pkgerrors "github.com/thaitruongdao01-afk/saintpaul/pkg/errors"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/metrics"
)

type Option func(*Registry)

func WithLogger(logg *logger.Logger) Option {
	return func(r *Registry) {
		if logg != nil {
			r.logg = logg
		}
	}
}

func WithMetrics(m *metrics.ViewMetrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithListConfig sets page size and search debounce defaults.
func WithListConfig(cfg config.ListConfig) Option {
	return func(r *Registry) { r.lists = cfg }
}

func WithClock(clock debounce.Clock) Option {
	return func(r *Registry) { r.clock = clock }
}

// Registry keeps the live views of every session.
type Registry struct {
	fetcher Fetcher
	logg    *logger.Logger
	metrics *metrics.ViewMetrics
	lists   config.ListConfig
	clock   debounce.Clock

	mu       sync.Mutex
	sessions map[string]map[string]*View
}

func NewRegistry(fetcher Fetcher, opts ...Option) *Registry {
	r := &Registry{
		fetcher:  fetcher,
		logg:     logger.Nop(),
		lists:    config.ListConfig{DefaultPageSize: listview.DefaultPageSize, MaxPageSize: 100, SearchDebounce: listview.DefaultSearchDelay},
		sessions: make(map[string]map[string]*View),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the named view for a session, creating it and issuing its
// first fetch on first use.
func (r *Registry) Get(ctx context.Context, sessionID, name string, sess Session) (*View, error) {
	def, ok := Lookup(name)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown view").WithDetails(map[string]any{"view": name})
	}

	r.mu.Lock()
	views, ok := r.sessions[sessionID]
	if !ok {
		views = make(map[string]*View)
		r.sessions[sessionID] = views
	}
	v, ok := views[name]
	if ok {
		r.mu.Unlock()
		return v, nil
	}
	v = newView(r.logg.WithSessionID(ctx, sessionID), def, listview.NewController(r.controllerOptions(def)), r.fetcher, sess, r.logg, r.metrics)
	views[name] = v
	r.mu.Unlock()

	r.logg.Debug(r.logg.WithView(ctx, name), "view created")
	v.Refresh()
	return v, nil
}

func (r *Registry) controllerOptions(def Definition) listview.Options {
	size := def.PageSize
	if size <= 0 {
		size = r.lists.DefaultPageSize
	}
	delay := r.lists.SearchDebounce
	if delay <= 0 {
		delay = listview.NoSearchDelay
	}
	return listview.Options{
		PageSize:    size,
		MaxPageSize: r.lists.MaxPageSize,
		SearchDelay: delay,
		Clock:       r.clock,
	}
}

// Lookup returns an existing view without creating it.
func (r *Registry) Lookup(sessionID, name string) (*View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.sessions[sessionID][name]
	return v, ok
}

// DropSession closes every view of a session.
func (r *Registry) DropSession(sessionID string) {
	r.mu.Lock()
	views := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}

func (r *Registry) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) Close() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]map[string]*View)
	r.mu.Unlock()

	for _, views := range all {
		for _, v := range views {
			v.Close()
		}
	}
}
