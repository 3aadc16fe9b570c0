package preferences

import (
	"context"
	"sync"

	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/storage"
)

// Registry hands out one Sidebar per session id. Preferences outlive
// logout; Drop only releases the in-memory cells.
type Registry struct {
	backend storage.Backend
	logg    *logger.Logger

	mu       sync.Mutex
	sidebars map[string]*Sidebar
}

func NewRegistry(backend storage.Backend, logg *logger.Logger) *Registry {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Registry{backend: backend, logg: logg, sidebars: make(map[string]*Sidebar)}
}

// Sidebar returns the loaded sidebar preferences of sessionID.
func (r *Registry) Sidebar(ctx context.Context, sessionID string) *Sidebar {
	r.mu.Lock()
	s, ok := r.sidebars[sessionID]
	if !ok {
		s = NewSidebar(r.backend, sessionID, r.logg)
		r.sidebars[sessionID] = s
	}
	r.mu.Unlock()

	s.Load(r.logg.WithSessionID(ctx, sessionID))
	return s
}

func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	s, ok := r.sidebars[sessionID]
	delete(r.sidebars, sessionID)
	r.mu.Unlock()
	if ok {
		s.close()
	}
}

func (r *Registry) Close() {
	r.mu.Lock()
	all := r.sidebars
	r.sidebars = make(map[string]*Sidebar)
	r.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}
