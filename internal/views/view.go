package views

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/thaitruongdao01-afk/saintpaul/internal/backend"
	"github.com/thaitruongdao01-afk/saintpaul/internal/listview"
	pkgerrors "github.com/thaitruongdao01-afk/saintpaul/pkg/errors"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/metrics"
)

// Fetcher loads one page of a backend resource.
type Fetcher interface {
	List(ctx context.Context, token, resource string, params url.Values) (*backend.Page, error)
}

// Session is what a view needs from the session that owns it.
type Session interface {
	Token() string
	Invalidate(ctx context.Context, reason string)
}

// Notice is a user-facing, usually retryable, fetch failure.
type Notice struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Snapshot is what the UI renders for a view.
type Snapshot struct {
	View    string            `json:"view"`
	State   listview.State    `json:"state"`
	Items   []json.RawMessage `json:"items"`
	Loading bool              `json:"loading"`
	Loaded  bool              `json:"loaded"`
	Notice  *Notice           `json:"notice,omitempty"`
}

// View binds a list controller to the backend for one session.
type View struct {
	def     Definition
	ctrl    *listview.Controller
	fetcher Fetcher
	session Session
	logg    *logger.Logger
	metrics *metrics.ViewMetrics

	seq      listview.Sequencer
	revision uint64
	inflight sync.WaitGroup
	// base outlives the request that created the view; Close cancels it.
	base   context.Context
	cancel context.CancelFunc
	unsub  func()

	mu      sync.Mutex
	items   []json.RawMessage
	loading bool
	loaded  bool
	notice  *Notice
	closed  bool
}

func newView(ctx context.Context, def Definition, ctrl *listview.Controller, fetcher Fetcher, sess Session, logg *logger.Logger, m *metrics.ViewMetrics) *View {
	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	v := &View{
		def:     def,
		ctrl:    ctrl,
		fetcher: fetcher,
		session: sess,
		logg:    logg,
		metrics: m,
		base:    logg.WithView(base, def.Name),
		cancel:  cancel,
		items:   []json.RawMessage{},
	}
	v.unsub = ctrl.Subscribe(v.fetch)
	return v
}

func (v *View) Name() string                     { return v.def.Name }
func (v *View) Definition() Definition           { return v.def }
func (v *View) Controller() *listview.Controller { return v.ctrl }

// Refresh refetches the current query, e.g. after a failure notice.
func (v *View) Refresh() {
	v.fetch(v.ctrl.QueryParams())
}

// Sort applies a column click after checking the field is sortable.
func (v *View) Sort(field string) error {
	field = strings.TrimSpace(field)
	if !v.def.AllowsSort(field) {
		return pkgerrors.New(pkgerrors.CodeValidation, "field is not sortable").
			WithDetails(map[string]any{"field": field, "allowed": v.def.SortFields})
	}
	v.ctrl.HandleSort(field)
	return nil
}

// UpdateFilters merges filters after checking every key is allowed.
func (v *View) UpdateFilters(partial map[string]any) error {
	if err := v.checkFilterKeys(partial); err != nil {
		return err
	}
	v.ctrl.UpdateFilters(partial)
	return nil
}

func (v *View) RemoveFilter(key string) error {
	if err := v.checkFilterKeys(map[string]any{key: nil}); err != nil {
		return err
	}
	v.ctrl.RemoveFilter(key)
	return nil
}

func (v *View) checkFilterKeys(partial map[string]any) error {
	var rejected []string
	for k := range partial {
		if listview.IsReservedKey(k) || !v.def.AllowsFilter(k) {
			rejected = append(rejected, k)
		}
	}
	if len(rejected) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown filter").
			WithDetails(map[string]any{"filters": rejected, "allowed": v.def.FilterKeys})
	}
	return nil
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	var notice *Notice
	if v.notice != nil {
		n := *v.notice
		notice = &n
	}
	return Snapshot{
		View:    v.def.Name,
		State:   v.ctrl.State(),
		Items:   append([]json.RawMessage(nil), v.items...),
		Loading: v.loading,
		Loaded:  v.loaded,
		Notice:  notice,
	}
}

// WaitIdle blocks until no fetch is in flight or ctx ends.
func (v *View) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		v.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops fetching. In-flight responses are discarded.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()

	v.unsub()
	v.ctrl.Close()
	v.cancel()
}

func (v *View) fetch(q listview.Query) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	// a newer query was already delivered by a racing mutation
	if q.Revision < v.revision {
		v.mu.Unlock()
		v.metrics.IncStale(v.def.Name)
		v.logg.Debug(v.base, "dropping out-of-order list query")
		return
	}
	v.revision = q.Revision
	tag := v.seq.Next()
	v.loading = true
	v.inflight.Add(1)
	v.mu.Unlock()

	go func() {
		defer v.inflight.Done()
		v.run(tag, q)
	}()
}

func (v *View) run(tag uint64, q listview.Query) {
	ctx := v.base
	token := v.session.Token()

	start := time.Now()
	page, err := v.fetcher.List(ctx, token, v.def.Resource, q.Values())
	v.metrics.ObserveFetch(v.def.Name, time.Since(start))

	v.mu.Lock()
	if v.closed || !v.seq.IsLatest(tag) {
		v.mu.Unlock()
		v.metrics.IncStale(v.def.Name)
		v.logg.Debug(ctx, "discarding stale list response")
		return
	}
	v.loading = false
	if err != nil {
		typed := pkgerrors.As(err)
		if typed == nil {
			typed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list fetch failed")
		}
		v.notice = &Notice{
			Code:      string(typed.Code()),
			Message:   typed.Message(),
			Retryable: pkgerrors.IsRetryable(typed),
		}
		v.mu.Unlock()

		v.metrics.IncFailure(v.def.Name, string(typed.Code()))
		v.logg.Warn(v.logg.WithField(ctx, "error_code", typed.Code()), "list fetch failed, keeping previous items")
		if typed.Code() == pkgerrors.CodeUnauthorized {
			v.session.Invalidate(ctx, "backend rejected token")
		}
		return
	}

	items := page.Items
	if items == nil {
		items = []json.RawMessage{}
	}
	v.items = items
	v.notice = nil
	v.loaded = true
	v.mu.Unlock()

	// may clamp the page and trigger a follow-up fetch
	v.ctrl.SetTotalItems(page.Total)
}
