// Package listview holds the pagination, sort, search and filter state of one
// list page and derives the backend query from it. It never fetches.
package listview

import (
	"strings"
	"sync"
	"time"

	"github.com/thaitruongdao01-afk/saintpaul/pkg/debounce"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/enums"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/pagination"
)

const (
	DefaultPageSize    = 10
	DefaultSearchDelay = 500 * time.Millisecond
	// NoSearchDelay settles every search term on the next timer tick.
	NoSearchDelay time.Duration = -1
)

type Options struct {
	InitialPage    int
	PageSize       int
	MaxPageSize    int
	SortBy         string
	SortOrder      enums.SortOrder
	InitialFilters map[string]any
	// SearchDelay defaults to DefaultSearchDelay when zero. Any negative
	// value, such as NoSearchDelay, disables the pause.
	SearchDelay time.Duration
	Clock       debounce.Clock
}

func (o Options) normalized() Options {
	if o.InitialPage < 1 {
		o.InitialPage = 1
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = pagination.MaxLimit
	}
	o.PageSize = pagination.NormalizeLimit(o.PageSize, DefaultPageSize, o.MaxPageSize)
	if !o.SortOrder.IsValid() {
		o.SortOrder = enums.SortAsc
	}
	switch {
	case o.SearchDelay == 0:
		o.SearchDelay = DefaultSearchDelay
	case o.SearchDelay < 0:
		o.SearchDelay = 0
	}
	o.InitialFilters = copyFilters(o.InitialFilters)
	return o
}

// State is a read-only picture of the controller.
type State struct {
	Page        int             `json:"page"`
	PageSize    int             `json:"pageSize"`
	TotalItems  int             `json:"totalItems"`
	TotalPages  int             `json:"totalPages"`
	SortBy      string          `json:"sortBy,omitempty"`
	SortOrder   enums.SortOrder `json:"sortOrder"`
	RawSearch   string          `json:"rawSearch"`
	Search      string          `json:"search"`
	Filters     map[string]any  `json:"filters"`
	HasNext     bool            `json:"hasNext"`
	HasPrevious bool            `json:"hasPrevious"`
}

// Controller is safe for concurrent use. Subscribers run synchronously after
// the mutation that changed the query, outside the controller lock, so two
// racing mutations may deliver out of order. Query.Revision orders them.
type Controller struct {
	opts Options

	mu          sync.Mutex
	page        int
	pageSize    int
	totalItems  int
	totalPages  int
	sortBy      string
	sortOrder   enums.SortOrder
	rawSearch   string
	search      string
	filters     map[string]any
	searchInput *debounce.Debouncer[string]
	searchGen   uint64
	lastKey     string
	revision    uint64
	closed      bool

	subs    map[uint64]func(Query)
	nextSub uint64
}

func NewController(opts Options) *Controller {
	c := &Controller{
		opts: opts.normalized(),
		subs: make(map[uint64]func(Query)),
	}
	c.resetLocked()
	c.lastKey = c.queryLocked().Key()
	return c
}

func (c *Controller) resetLocked() {
	c.page = c.opts.InitialPage
	c.pageSize = c.opts.PageSize
	c.totalItems = 0
	c.totalPages = 0
	c.sortBy = strings.TrimSpace(c.opts.SortBy)
	c.sortOrder = c.opts.SortOrder
	c.rawSearch = ""
	c.search = ""
	c.filters = copyFilters(c.opts.InitialFilters)
	if c.searchInput != nil {
		c.searchInput.Stop()
	}
	var opts []debounce.Option
	if c.opts.Clock != nil {
		opts = append(opts, debounce.WithClock(c.opts.Clock))
	}
	c.searchGen++
	gen := c.searchGen
	c.searchInput = debounce.New(c.opts.SearchDelay, "", func(term string) {
		c.onSearchSettled(gen, term)
	}, opts...)
}

// GoToPage moves to n when 1 <= n <= TotalPages; anything else is ignored.
func (c *Controller) GoToPage(n int) {
	c.mutate(func() {
		if n >= 1 && n <= c.totalPages {
			c.page = n
		}
	})
}

func (c *Controller) NextPage() {
	c.mutate(func() {
		if c.page < c.totalPages {
			c.page++
		}
	})
}

func (c *Controller) PreviousPage() {
	c.mutate(func() {
		if c.page > 1 {
			c.page--
		}
	})
}

func (c *Controller) FirstPage() {
	c.mutate(func() { c.page = 1 })
}

func (c *Controller) LastPage() {
	c.mutate(func() {
		if c.totalPages >= 1 {
			c.page = c.totalPages
		}
	})
}

// ChangePageSize ignores non-positive sizes and caps at the maximum.
func (c *Controller) ChangePageSize(size int) {
	if size <= 0 {
		return
	}
	c.mutate(func() {
		if size > c.opts.MaxPageSize {
			size = c.opts.MaxPageSize
		}
		c.pageSize = size
		c.totalPages = pagination.TotalPages(c.totalItems, c.pageSize)
		c.page = 1
	})
}

// HandleSort flips the order on the current field; a new field starts ascending.
func (c *Controller) HandleSort(field string) {
	field = strings.TrimSpace(field)
	if field == "" {
		return
	}
	c.mutate(func() {
		if field == c.sortBy {
			c.sortOrder = c.sortOrder.Toggle()
		} else {
			c.sortBy = field
			c.sortOrder = enums.SortAsc
		}
		c.page = 1
	})
}

// HandleSearch records the raw term now. The effective term follows once
// typing pauses, and only that change resets the page.
func (c *Controller) HandleSearch(term string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.rawSearch = term
	input := c.searchInput
	c.mu.Unlock()

	input.Set(term)
}

// CommitSearch applies the pending raw term immediately.
func (c *Controller) CommitSearch() {
	c.mu.Lock()
	input := c.searchInput
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		input.Flush()
	}
}

func (c *Controller) onSearchSettled(gen uint64, term string) {
	c.mutate(func() {
		// a reset replaced the debouncer that produced term
		if gen != c.searchGen || term == c.search {
			return
		}
		c.search = term
		c.page = 1
	})
}

func (c *Controller) UpdateFilter(key string, value any) {
	c.UpdateFilters(map[string]any{key: value})
}

// UpdateFilters merges partial into the filters. Empty strings and nil stay
// stored but are left out of the query.
func (c *Controller) UpdateFilters(partial map[string]any) {
	c.mutate(func() {
		for k, v := range partial {
			k = strings.TrimSpace(k)
			if k == "" {
				continue
			}
			c.filters[k] = v
		}
		c.page = 1
	})
}

func (c *Controller) RemoveFilter(key string) {
	c.mutate(func() {
		delete(c.filters, key)
		c.page = 1
	})
}

// ClearFilters restores the initial filters.
func (c *Controller) ClearFilters() {
	c.mutate(func() {
		c.filters = copyFilters(c.opts.InitialFilters)
		c.page = 1
	})
}

func (c *Controller) ActiveFilters() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeFiltersLocked()
}

func (c *Controller) HasActiveFilters() bool {
	return len(c.ActiveFilters()) > 0
}

// SetTotalItems records the backend total and pulls the page back inside
// [1, max(1, TotalPages)].
func (c *Controller) SetTotalItems(n int) {
	if n < 0 {
		n = 0
	}
	c.mutate(func() {
		c.totalItems = n
		c.totalPages = pagination.TotalPages(n, c.pageSize)
		c.page = pagination.ClampPage(c.page, c.totalPages)
	})
}

func (c *Controller) QueryParams() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queryLocked()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Page:        c.page,
		PageSize:    c.pageSize,
		TotalItems:  c.totalItems,
		TotalPages:  c.totalPages,
		SortBy:      c.sortBy,
		SortOrder:   c.sortOrder,
		RawSearch:   c.rawSearch,
		Search:      c.search,
		Filters:     copyFilters(c.filters),
		HasNext:     c.page < c.totalPages,
		HasPrevious: c.page > 1,
	}
}

// Subscribe registers fn for every change of the effective query.
func (c *Controller) Subscribe(fn func(Query)) func() {
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

// Reset returns to the initial options and drops any pending search.
func (c *Controller) Reset() {
	c.mutate(c.resetLocked)
}

// Close stops the search debouncer and drops subscribers.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.subs = make(map[uint64]func(Query))
	input := c.searchInput
	c.mu.Unlock()

	input.Stop()
}

func (c *Controller) mutate(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	fn()
	q := c.queryLocked()
	key := q.Key()
	if key == c.lastKey {
		c.mu.Unlock()
		return
	}
	c.lastKey = key
	c.revision++
	q.Revision = c.revision
	fns := make([]func(Query), 0, len(c.subs))
	for _, sub := range c.subs {
		fns = append(fns, sub)
	}
	c.mu.Unlock()

	for _, sub := range fns {
		sub(q)
	}
}

func (c *Controller) queryLocked() Query {
	return Query{
		Page:      c.page,
		Limit:     c.pageSize,
		SortBy:    c.sortBy,
		SortOrder: c.sortOrder,
		Search:    c.search,
		Filters:   c.activeFiltersLocked(),
		Revision:  c.revision,
	}
}

func (c *Controller) activeFiltersLocked() map[string]any {
	out := make(map[string]any, len(c.filters))
	for k, v := range c.filters {
		if isActive(v) {
			out[k] = v
		}
	}
	return out
}

func copyFilters(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
