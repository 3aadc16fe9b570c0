package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	pkgauth "github.com/thaitruongdao01-afk/saintpaul/pkg/auth"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/enums"
	pkgerrors "github.com/thaitruongdao01-afk/saintpaul/pkg/errors"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/metrics"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/storage"
)

func TokenKey(sessionID string) string         { return "session:" + sessionID + ":token" }
func UserKey(sessionID string) string          { return "session:" + sessionID + ":user" }
func AuthenticatedKey(sessionID string) string { return "session:" + sessionID + ":authenticated" }

// Snapshot is a consistent view of the session. Token and User are either
// both set (Authenticated) or both empty.
type Snapshot struct {
	State enums.SessionState `json:"state"`
	Token string             `json:"-"`
	User  *User              `json:"user,omitempty"`
}

func (s Snapshot) IsAuthenticated() bool {
	return s.State == enums.SessionAuthenticated
}

type Option func(*Store)

func WithLogger(logg *logger.Logger) Option {
	return func(s *Store) {
		if logg != nil {
			s.logg = logg
		}
	}
}

func WithMetrics(m *metrics.SessionMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store owns one browser session. All mutations go through its methods.
type Store struct {
	id      string
	auth    Authenticator
	logg    *logger.Logger
	metrics *metrics.SessionMetrics
	now     func() time.Time

	tokenCell *storage.Cell[string]
	userCell  *storage.Cell[*User]
	flagCell  *storage.Cell[bool]
	unwatch   []func()

	// opMu serializes hydrate, login, logout and invalidate.
	opMu sync.Mutex
	// persisting is non-zero while the store writes its own cells.
	persisting atomic.Int32

	mu      sync.RWMutex
	snap    Snapshot
	subs    map[uint64]func(Snapshot)
	nextSub uint64

	ready     chan struct{}
	readyOnce sync.Once
}

func NewStore(id string, backend storage.Backend, auth Authenticator, opts ...Option) *Store {
	s := &Store{
		id:    id,
		auth:  auth,
		logg:  logger.Nop(),
		now:   time.Now,
		snap:  Snapshot{State: enums.SessionUninitialized},
		subs:  make(map[uint64]func(Snapshot)),
		ready: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tokenCell = storage.NewCell(backend, TokenKey(id), "", s.logg)
	s.userCell = storage.NewCell[*User](backend, UserKey(id), nil, s.logg)
	s.flagCell = storage.NewCell(backend, AuthenticatedKey(id), false, s.logg)
	s.unwatch = []func(){
		s.tokenCell.Subscribe(func(string) { s.onExternalChange() }),
		s.userCell.Subscribe(func(*User) { s.onExternalChange() }),
	}
	return s
}

func (s *Store) ID() string { return s.id }

func (s *Store) ctx(ctx context.Context) context.Context {
	return s.logg.WithSessionID(ctx, s.id)
}

// Hydrate restores the persisted session once. Malformed or partial data is
// cleared and the session starts logged out.
func (s *Store) Hydrate(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.State() != enums.SessionUninitialized {
		return
	}
	s.transition(Snapshot{State: enums.SessionHydrating})

	token := s.tokenCell.Load(ctx)
	user := s.userCell.Load(ctx)
	s.flagCell.Load(ctx)

	if s.validPair(token, user) {
		s.transition(Snapshot{State: enums.SessionAuthenticated, Token: token, User: user.Clone()})
		s.markReady()
		return
	}

	if s.tokenCell.Present() || s.userCell.Present() || s.flagCell.Present() {
		s.logg.Warn(s.ctx(ctx), "discarding incomplete persisted session")
		s.clearCells(ctx)
	}
	s.transition(Snapshot{State: enums.SessionUnauthenticated})
	s.markReady()
}

// Login authenticates against the backend. On failure the session is left
// exactly as it was.
func (s *Store) Login(ctx context.Context, creds Credentials) (*User, error) {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username and password are required")
	}
	ctx = s.ctx(ctx)

	s.opMu.Lock()
	defer s.opMu.Unlock()

	res, err := s.auth.Login(ctx, creds)
	if err != nil {
		err = classifyLoginError(err)
		s.metrics.IncLogin(strings.ToLower(string(pkgerrors.As(err).Code())))
		return nil, err
	}
	if res == nil || strings.TrimSpace(res.Token) == "" || !res.User.Valid() {
		s.metrics.IncLogin("incomplete")
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "backend returned an incomplete login response").
			WithDetails(map[string]any{"retryable": true})
	}

	user := res.User.Clone()
	s.transition(Snapshot{State: enums.SessionAuthenticated, Token: res.Token, User: user})

	s.persisting.Add(1)
	s.tokenCell.Set(ctx, res.Token)
	s.userCell.Set(ctx, user.Clone())
	s.flagCell.Set(ctx, true)
	s.persisting.Add(-1)

	s.metrics.IncLogin("success")
	s.markReady()
	s.logg.Info(s.logg.WithUserID(ctx, user.ID), "session authenticated")
	return user.Clone(), nil
}

// Logout ends the session locally. Backend failures are only logged.
func (s *Store) Logout(ctx context.Context) {
	ctx = s.ctx(ctx)

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if token := s.Token(); token != "" && s.auth != nil {
		if err := s.auth.Logout(ctx, token); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "backend logout failed")
		}
	}
	s.endLocked(ctx)
	s.logg.Info(ctx, "session logged out")
}

// Invalidate drops the session after the backend rejected its token.
func (s *Store) Invalidate(ctx context.Context, reason string) {
	ctx = s.ctx(ctx)

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if !s.IsAuthenticated() {
		return
	}
	s.endLocked(ctx)
	s.logg.Warn(s.logg.WithField(ctx, "reason", reason), "session invalidated")
}

func (s *Store) endLocked(ctx context.Context) {
	s.transition(Snapshot{State: enums.SessionUnauthenticated})
	s.clearCells(ctx)
	s.markReady()
}

func (s *Store) clearCells(ctx context.Context) {
	s.persisting.Add(1)
	defer s.persisting.Add(-1)
	s.tokenCell.Remove(ctx)
	s.userCell.Remove(ctx)
	s.flagCell.Remove(ctx)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	out.User = s.snap.User.Clone()
	return out
}

func (s *Store) State() enums.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.State
}

// CurrentUser is nil unless the session is authenticated.
func (s *Store) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.snap.IsAuthenticated() {
		return nil
	}
	return s.snap.User.Clone()
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.IsAuthenticated()
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.snap.IsAuthenticated() {
		return ""
	}
	return s.snap.Token
}

// Subscribe registers fn for every state transition. fn runs synchronously
// after the transition, outside the store lock.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// WaitReady blocks until hydration has settled or ctx is done.
func (s *Store) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) Close() {
	for _, fn := range s.unwatch {
		fn()
	}
	s.tokenCell.Close()
	s.userCell.Close()
	s.flagCell.Close()
}

func (s *Store) transition(next Snapshot) {
	s.mu.Lock()
	prev := s.snap.State
	s.snap = next
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	if prev != next.State {
		s.metrics.IncTransition(next.State.String())
	}
	out := next
	out.User = next.User.Clone()
	for _, fn := range fns {
		fn(out)
	}
}

func (s *Store) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// onExternalChange re-derives the state after another process rewrote the
// persisted pair. A partial pair reads as logged out; storage is left alone
// since the writer may not have finished.
func (s *Store) onExternalChange() {
	if s.persisting.Load() > 0 {
		return
	}
	if !s.State().Settled() {
		return
	}

	token := s.tokenCell.Get()
	user := s.userCell.Get()

	current := s.Snapshot()
	next := Snapshot{State: enums.SessionUnauthenticated}
	if s.validPair(token, user) {
		next = Snapshot{State: enums.SessionAuthenticated, Token: token, User: user.Clone()}
	}
	if next.State == current.State && next.Token == current.Token && next.User.equal(current.User) {
		return
	}
	s.transition(next)
	s.logg.Info(s.logg.WithField(s.ctx(context.Background()), "state", next.State.String()), "session changed by another instance")
}

func (s *Store) validPair(token string, user *User) bool {
	if strings.TrimSpace(token) == "" || !user.Valid() {
		return false
	}
	expired, err := pkgauth.BackendTokenExpired(token, s.now())
	if err != nil {
		// opaque tokens carry no expiry
		return errors.Is(err, pkgauth.ErrMalformedToken)
	}
	return !expired
}

// classifyLoginError keeps credential rejections as they are and reports
// everything else as a retryable dependency failure.
func classifyLoginError(err error) error {
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeUnauthorized, pkgerrors.CodeValidation,
			pkgerrors.CodeRateLimit, pkgerrors.CodeDependency:
			return typed
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "could not reach the authentication service")
}
