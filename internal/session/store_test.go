package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/enums"
	pkgerrors "github.com/thaitruongdao01-afk/saintpaul/pkg/errors"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/storage"
)

type fakeAuth struct {
	mu        sync.Mutex
	users     map[string]string
	loginErr  error
	logoutErr error
	logouts   []string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{users: map[string]string{"admin": "correct horse"}}
}

func (f *fakeAuth) Login(_ context.Context, creds Credentials) (*LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if pw, ok := f.users[creds.Username]; !ok || pw != creds.Password {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid username or password")
	}
	return &LoginResult{
		Token: "opaque-" + creds.Username,
		User: User{
			ID:          "u-1",
			Username:    creds.Username,
			Role:        enums.RoleAdmin,
			Permissions: []string{"sisters:read"},
		},
	}, nil
}

func (f *fakeAuth) Logout(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts = append(f.logouts, token)
	return f.logoutErr
}

func persisted(t *testing.T, backend storage.Backend, key string) (string, bool) {
	t.Helper()
	v, ok, err := backend.Get(context.Background(), key)
	require.NoError(t, err)
	return v, ok
}

func TestHydrate_EmptyStorageIsLoggedOut(t *testing.T) {
	store := NewStore("s1", storage.NewMemory(), newFakeAuth())
	defer store.Close()

	assert.Equal(t, enums.SessionUninitialized, store.State())
	store.Hydrate(context.Background())

	assert.Equal(t, enums.SessionUnauthenticated, store.State())
	assert.Nil(t, store.CurrentUser())
	require.NoError(t, store.WaitReady(context.Background()))
}

func TestHydrate_RestoresValidPair(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	require.NoError(t, backend.Set(ctx, TokenKey("s1"), `"opaque-token"`))
	require.NoError(t, backend.Set(ctx, UserKey("s1"), `{"id":"u-9","username":"sr.anna","role":"secretary"}`))

	store := NewStore("s1", backend, newFakeAuth())
	defer store.Close()
	store.Hydrate(ctx)

	require.True(t, store.IsAuthenticated())
	assert.Equal(t, "u-9", store.CurrentUser().ID)
	assert.Equal(t, enums.RoleSecretary, store.CurrentUser().Role)
	assert.Equal(t, "opaque-token", store.Token())
}

func TestHydrate_ClearsIncompleteOrMalformedData(t *testing.T) {
	cases := map[string]map[string]string{
		"token only":      {TokenKey("s1"): `"tok"`},
		"user only":       {UserKey("s1"): `{"id":"u-1"}`},
		"user without id": {TokenKey("s1"): `"tok"`, UserKey("s1"): `{"username":"x"}`},
		"malformed user":  {TokenKey("s1"): `"tok"`, UserKey("s1"): `{oops`},
		"empty token":     {TokenKey("s1"): `""`, UserKey("s1"): `{"id":"u-1"}`},
	}

	for name, seed := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			backend := storage.NewMemory()
			for k, v := range seed {
				require.NoError(t, backend.Set(ctx, k, v))
			}

			store := NewStore("s1", backend, newFakeAuth())
			defer store.Close()
			store.Hydrate(ctx)

			assert.Equal(t, enums.SessionUnauthenticated, store.State())
			for k := range seed {
				_, ok := persisted(t, backend, k)
				assert.False(t, ok, "expected %s to be cleared", k)
			}
		})
	}
}

func TestHydrate_RejectsExpiredJWT(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
	}).SignedString([]byte("backend"))
	require.NoError(t, err)

	backend := storage.NewMemory()
	require.NoError(t, backend.Set(ctx, TokenKey("s1"), `"`+token+`"`))
	require.NoError(t, backend.Set(ctx, UserKey("s1"), `{"id":"u-1"}`))

	store := NewStore("s1", backend, newFakeAuth(), WithNow(func() time.Time { return now }))
	defer store.Close()
	store.Hydrate(ctx)

	assert.False(t, store.IsAuthenticated())
}

func TestLogin_SuccessIsAtomicAndPersisted(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	store := NewStore("s1", backend, newFakeAuth())
	defer store.Close()
	store.Hydrate(ctx)

	var seen []Snapshot
	store.Subscribe(func(s Snapshot) { seen = append(seen, s) })

	user, err := store.Login(ctx, Credentials{Username: "admin", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)

	assert.True(t, store.IsAuthenticated())
	require.NotNil(t, store.CurrentUser())

	require.Len(t, seen, 1)
	assert.Equal(t, enums.SessionAuthenticated, seen[0].State)
	assert.Equal(t, "opaque-admin", seen[0].Token)

	tok, ok := persisted(t, backend, TokenKey("s1"))
	assert.True(t, ok)
	assert.Equal(t, `"opaque-admin"`, tok)
	flag, _ := persisted(t, backend, AuthenticatedKey("s1"))
	assert.Equal(t, "true", flag)

	// returned user is a copy
	user.Permissions[0] = "tampered"
	assert.Equal(t, "sisters:read", store.CurrentUser().Permissions[0])
}

func TestLogin_RejectedLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	store := NewStore("s1", backend, newFakeAuth())
	defer store.Close()
	store.Hydrate(ctx)

	user, err := store.Login(ctx, Credentials{Username: "admin", Password: "wrongpass"})
	require.Error(t, err)
	assert.Nil(t, user)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.NotEmpty(t, pkgerrors.As(err).Message())

	assert.Equal(t, enums.SessionUnauthenticated, store.State())
	_, ok := persisted(t, backend, TokenKey("s1"))
	assert.False(t, ok, "no partial token may be persisted")
}

func TestLogin_NetworkFailureIsDependencyError(t *testing.T) {
	ctx := context.Background()
	auth := newFakeAuth()
	auth.loginErr = errors.New("dial tcp: connection refused")
	store := NewStore("s1", storage.NewMemory(), auth)
	defer store.Close()
	store.Hydrate(ctx)

	_, err := store.Login(ctx, Credentials{Username: "admin", Password: "correct horse"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.True(t, pkgerrors.IsRetryable(err))
	assert.False(t, store.IsAuthenticated())
}

func TestLogin_RequiresCredentials(t *testing.T) {
	store := NewStore("s1", storage.NewMemory(), newFakeAuth())
	defer store.Close()

	_, err := store.Login(context.Background(), Credentials{Username: " "})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestLogout_AlwaysSucceedsLocally(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	auth := newFakeAuth()
	auth.logoutErr = errors.New("backend down")
	store := NewStore("s1", backend, auth)
	defer store.Close()
	store.Hydrate(ctx)

	_, err := store.Login(ctx, Credentials{Username: "admin", Password: "correct horse"})
	require.NoError(t, err)

	store.Logout(ctx)
	assert.False(t, store.IsAuthenticated())
	assert.Nil(t, store.CurrentUser())
	assert.Equal(t, "", store.Token())
	assert.Equal(t, []string{"opaque-admin"}, auth.logouts)

	for _, key := range []string{TokenKey("s1"), UserKey("s1"), AuthenticatedKey("s1")} {
		_, ok := persisted(t, backend, key)
		assert.False(t, ok, "expected %s cleared", key)
	}
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	auth := newFakeAuth()
	store := NewStore("s1", storage.NewMemory(), auth)
	defer store.Close()
	store.Hydrate(ctx)
	_, err := store.Login(ctx, Credentials{Username: "admin", Password: "correct horse"})
	require.NoError(t, err)

	transitions := 0
	store.Subscribe(func(Snapshot) { transitions++ })

	store.Invalidate(ctx, "backend returned 401")
	store.Invalidate(ctx, "again")

	assert.False(t, store.IsAuthenticated())
	assert.Equal(t, 1, transitions)
	assert.Empty(t, auth.logouts, "invalidation does not call the backend")
}

func TestExternalChangesFollowOtherInstance(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()

	a := NewStore("s1", backend, newFakeAuth())
	b := NewStore("s1", backend, newFakeAuth())
	defer a.Close()
	defer b.Close()
	a.Hydrate(ctx)
	b.Hydrate(ctx)

	_, err := a.Login(ctx, Credentials{Username: "admin", Password: "correct horse"})
	require.NoError(t, err)
	require.True(t, b.IsAuthenticated())
	assert.Equal(t, "u-1", b.CurrentUser().ID)

	a.Logout(ctx)
	assert.False(t, b.IsAuthenticated())

	// a lone token written elsewhere is not a session
	require.NoError(t, backend.Set(ctx, TokenKey("s1"), `"stray"`))
	assert.False(t, b.IsAuthenticated())
	_, ok := persisted(t, backend, TokenKey("s1"))
	assert.True(t, ok, "notification path leaves storage alone")
}

func TestReadersNeverSeeHalfASession(t *testing.T) {
	ctx := context.Background()
	store := NewStore("s1", storage.NewMemory(), newFakeAuth())
	defer store.Close()
	store.Hydrate(ctx)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var bad int
	var badMu sync.Mutex
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := store.Snapshot()
				if (snap.Token == "") != (snap.User == nil) || snap.IsAuthenticated() != (snap.User != nil) {
					badMu.Lock()
					bad++
					badMu.Unlock()
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		_, err := store.Login(ctx, Credentials{Username: "admin", Password: "correct horse"})
		require.NoError(t, err)
		store.Logout(ctx)
	}
	close(stop)
	wg.Wait()
	assert.Zero(t, bad)
}

func TestWaitReadyHonoursContext(t *testing.T) {
	store := NewStore("s1", storage.NewMemory(), newFakeAuth())
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, store.WaitReady(ctx), context.DeadlineExceeded)
}
