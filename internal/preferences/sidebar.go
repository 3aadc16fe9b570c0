// Package preferences keeps per-session UI preferences in storage cells.
package preferences

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/storage"
)

const (
	keyOpen           = "sidebarOpen"
	keyCompact        = "sidebarCompact"
	keyExpandedGroups = "sidebarExpandedGroups"
	keyPinnedItems    = "sidebarPinnedItems"
)

// Key returns the storage key of one sidebar preference for a session.
func Key(sessionID, name string) string {
	return "prefs:" + sessionID + ":" + name
}

// SidebarState is the sidebar layout a session last chose.
type SidebarState struct {
	Open           bool     `json:"open"`
	Compact        bool     `json:"compact"`
	ExpandedGroups []string `json:"expandedGroups"`
	PinnedItems    []string `json:"pinnedItems"`
}

// DefaultSidebar is what a session sees before changing anything.
func DefaultSidebar() SidebarState {
	return SidebarState{Open: true, ExpandedGroups: []string{}, PinnedItems: []string{}}
}

// Sidebar persists the four sidebar preferences of one session.
type Sidebar struct {
	open     *storage.Cell[bool]
	compact  *storage.Cell[bool]
	expanded *storage.Cell[[]string]
	pinned   *storage.Cell[[]string]

	loadOnce sync.Once
}

func NewSidebar(backend storage.Backend, sessionID string, logg *logger.Logger) *Sidebar {
	return &Sidebar{
		open:     storage.NewCell(backend, Key(sessionID, keyOpen), true, logg),
		compact:  storage.NewCell(backend, Key(sessionID, keyCompact), false, logg),
		expanded: storage.NewCell(backend, Key(sessionID, keyExpandedGroups), []string{}, logg),
		pinned:   storage.NewCell(backend, Key(sessionID, keyPinnedItems), []string{}, logg),
	}
}

// Load reads the persisted values once; later calls are no-ops.
func (s *Sidebar) Load(ctx context.Context) {
	s.loadOnce.Do(func() {
		s.open.Load(ctx)
		s.compact.Load(ctx)
		s.expanded.Load(ctx)
		s.pinned.Load(ctx)
	})
}

func (s *Sidebar) Snapshot() SidebarState {
	return SidebarState{
		Open:           s.open.Get(),
		Compact:        s.compact.Get(),
		ExpandedGroups: nonNil(s.expanded.Get()),
		PinnedItems:    nonNil(s.pinned.Get()),
	}
}

func (s *Sidebar) Toggle(ctx context.Context) {
	s.open.Update(ctx, func(v bool) bool { return !v })
}

func (s *Sidebar) Open(ctx context.Context)  { s.open.Set(ctx, true) }
func (s *Sidebar) Close(ctx context.Context) { s.open.Set(ctx, false) }

func (s *Sidebar) ToggleCompact(ctx context.Context) {
	s.compact.Update(ctx, func(v bool) bool { return !v })
}

func (s *Sidebar) ToggleGroup(ctx context.Context, id string) {
	s.expanded.Update(ctx, func(ids []string) []string { return toggle(ids, id) })
}

func (s *Sidebar) ExpandGroup(ctx context.Context, id string) {
	s.expanded.Update(ctx, func(ids []string) []string { return add(ids, id) })
}

func (s *Sidebar) CollapseGroup(ctx context.Context, id string) {
	s.expanded.Update(ctx, func(ids []string) []string { return without(ids, id) })
}

func (s *Sidebar) CollapseAllGroups(ctx context.Context) {
	s.expanded.Set(ctx, []string{})
}

func (s *Sidebar) IsGroupExpanded(id string) bool {
	return slices.Contains(s.expanded.Get(), id)
}

func (s *Sidebar) TogglePin(ctx context.Context, id string) {
	s.pinned.Update(ctx, func(ids []string) []string { return toggle(ids, id) })
}

func (s *Sidebar) PinItem(ctx context.Context, id string) {
	s.pinned.Update(ctx, func(ids []string) []string { return add(ids, id) })
}

func (s *Sidebar) UnpinItem(ctx context.Context, id string) {
	s.pinned.Update(ctx, func(ids []string) []string { return without(ids, id) })
}

func (s *Sidebar) ClearPins(ctx context.Context) {
	s.pinned.Set(ctx, []string{})
}

func (s *Sidebar) IsPinned(id string) bool {
	return slices.Contains(s.pinned.Get(), id)
}

// Reset removes every stored sidebar preference; the defaults apply again.
func (s *Sidebar) Reset(ctx context.Context) {
	s.open.Remove(ctx)
	s.compact.Remove(ctx)
	s.expanded.Remove(ctx)
	s.pinned.Remove(ctx)
}

// Subscribe calls fn with the full state whenever any preference changes.
func (s *Sidebar) Subscribe(fn func(SidebarState)) func() {
	notify := func() { fn(s.Snapshot()) }
	unsubs := []func(){
		s.open.Subscribe(func(bool) { notify() }),
		s.compact.Subscribe(func(bool) { notify() }),
		s.expanded.Subscribe(func([]string) { notify() }),
		s.pinned.Subscribe(func([]string) { notify() }),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (s *Sidebar) close() {
	s.open.Close()
	s.compact.Close()
	s.expanded.Close()
	s.pinned.Close()
}

// toggle, add and without return fresh slices so the mirrored value is
// never mutated in place.
func toggle(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return without(ids, id)
	}
	return add(ids, id)
}

func add(ids []string, id string) []string {
	id = strings.TrimSpace(id)
	if id == "" || slices.Contains(ids, id) {
		return nonNil(slices.Clone(ids))
	}
	return append(slices.Clone(ids), id)
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
