package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/internal/testutil/fakeapi"
	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) SessionChanged(_ context.Context, ch Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, ch)
}

func (r *recorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

type env struct {
	srv    *fakeapi.Server
	client *api.Client
	store  storage.Store
	mgr    *Manager
	rec    *recorder
}

func setup(t *testing.T) *env {
	t.Helper()
	srv := fakeapi.New(t)
	srv.AddUser(domain.User{ID: 1, Email: "asha@example.com", FirstName: "Asha", LastName: "Rao"}, "secret")
	srv.AddUser(domain.User{ID: 2, Email: "root@example.com", FirstName: "Root", IsAdmin: true}, "admin")

	client := api.New(srv.BaseURL(), api.WithLogger(logger.Discard()))
	store := storage.NewMemory()
	mgr := NewManager(client, store, WithLogger(logger.Discard()))
	client.Bind(mgr)

	rec := &recorder{}
	mgr.Subscribe(rec)
	return &env{srv: srv, client: client, store: store, mgr: mgr, rec: rec}
}

func TestLogin(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	require.NoError(t, e.mgr.Login(ctx, "asha@example.com", "secret"))

	assert.True(t, e.mgr.Authenticated())
	assert.False(t, e.mgr.IsAdmin())
	assert.Equal(t, "Asha Rao", e.mgr.User().FullName())

	stored, err := e.store.Get(ctx, storage.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, e.mgr.Token(), stored)

	changes := e.rec.all()
	require.Len(t, changes, 1)
	assert.True(t, changes[0].LoggedIn())
	assert.Equal(t, domain.UserID(1), changes[0].To.ID)
}

func TestLogin_BadCredentialsLeavesStateUnchanged(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	err := e.mgr.Login(ctx, "asha@example.com", "nope")

	var authErr *apperr.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Invalid email or password", apperr.Message(err))
	assert.False(t, e.mgr.Authenticated())
	assert.Empty(t, e.mgr.Token())
	assert.Empty(t, e.rec.all())

	_, err = e.store.Get(ctx, storage.KeyToken)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRegister(t *testing.T) {
	e := setup(t)

	err := e.mgr.Register(context.Background(), domain.Registration{
		Email: "new@example.com", Password: "pw", FirstName: "New", LastName: "User",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", e.mgr.User().Email)
	assert.Len(t, e.rec.all(), 1)

	err = e.mgr.Register(context.Background(), domain.Registration{
		Email: "new@example.com", Password: "pw", FirstName: "New", LastName: "User",
	})
	assert.Equal(t, "Email already registered", apperr.Message(err))
}

func TestLogout(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.mgr.Login(ctx, "root@example.com", "admin"))
	assert.True(t, e.mgr.IsAdmin())

	e.mgr.Logout(ctx)

	assert.False(t, e.mgr.Authenticated())
	assert.False(t, e.mgr.IsAdmin())
	assert.Nil(t, e.mgr.User())
	_, err := e.store.Get(ctx, storage.KeyToken)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	changes := e.rec.all()
	require.Len(t, changes, 2)
	assert.True(t, changes[1].LoggedOut())
}

func TestLogout_WhenAnonymousDoesNotNotify(t *testing.T) {
	e := setup(t)
	e.mgr.Logout(context.Background())
	assert.Empty(t, e.rec.all())
}

func TestUnauthorizedResponseForcesLogout(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.mgr.Login(ctx, "asha@example.com", "secret"))

	e.srv.Revoke(e.mgr.Token())
	_, err := e.client.Cart(ctx)

	assert.True(t, apperr.IsUnauthorized(err))
	assert.False(t, e.mgr.Authenticated())
	assert.Empty(t, e.mgr.Token())
	changes := e.rec.all()
	require.Len(t, changes, 2)
	assert.True(t, changes[1].LoggedOut())
}

func TestExpire_IgnoresStaleToken(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.mgr.Login(ctx, "asha@example.com", "secret"))
	old := e.mgr.Token()
	require.NoError(t, e.mgr.Login(ctx, "root@example.com", "admin"))

	e.mgr.Expire(ctx, old)
	assert.True(t, e.mgr.IsAdmin())

	e.mgr.Expire(ctx, "")
	assert.True(t, e.mgr.Authenticated())
}

func TestListenerTriggeredExpireIsDeliveredAfterCurrentChange(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	var order []string
	e.mgr.Subscribe(ListenerFunc(func(ctx context.Context, ch Change) {
		if ch.LoggedIn() {
			order = append(order, "in")
			// simulates a 401 seen while a listener talks to the server
			e.mgr.Expire(ctx, e.mgr.Token())
			order = append(order, "in-done")
			return
		}
		order = append(order, "out")
	}))

	require.NoError(t, e.mgr.Login(ctx, "asha@example.com", "secret"))

	assert.Equal(t, []string{"in", "in-done", "out"}, order)
	assert.False(t, e.mgr.Authenticated())
}

func TestRestore(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.store.Set(ctx, storage.KeyToken, e.srv.IssueToken(1, time.Now().Add(time.Hour))))

	e.mgr.Restore(ctx)

	require.True(t, e.mgr.Authenticated())
	assert.Equal(t, "asha@example.com", e.mgr.User().Email)
	changes := e.rec.all()
	require.Len(t, changes, 1)
	assert.True(t, changes[0].LoggedIn())
}

func TestRestore_ExpiredTokenIsRemoved(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.store.Set(ctx, storage.KeyToken, e.srv.IssueToken(1, time.Now().Add(-time.Minute))))

	e.mgr.Restore(ctx)

	assert.False(t, e.mgr.Authenticated())
	assert.Empty(t, e.mgr.Token())
	_, err := e.store.Get(ctx, storage.KeyToken)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Zero(t, e.srv.Calls("GET /api/auth/profile"))
}

func TestRestore_RejectedTokenIsRemoved(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	token := e.srv.IssueToken(1, time.Now().Add(time.Hour))
	e.srv.Revoke(token)
	require.NoError(t, e.store.Set(ctx, storage.KeyToken, token))

	e.mgr.Restore(ctx)

	assert.False(t, e.mgr.Authenticated())
	_, err := e.store.Get(ctx, storage.KeyToken)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Empty(t, e.rec.all())
}

func TestRestore_GarbageTokenIsRemoved(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.store.Set(ctx, storage.KeyToken, "not-a-jwt"))

	e.mgr.Restore(ctx)

	assert.False(t, e.mgr.Authenticated())
	_, err := e.store.Get(ctx, storage.KeyToken)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRestore_NoToken(t *testing.T) {
	e := setup(t)
	e.mgr.Restore(context.Background())
	assert.False(t, e.mgr.Authenticated())
	assert.Zero(t, e.srv.Calls("GET /api/auth/profile"))
}

func TestUpdateProfile(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	phone := "9876543210"
	err := e.mgr.UpdateProfile(ctx, domain.ProfileUpdate{Phone: &phone})
	assert.ErrorIs(t, err, apperr.ErrLoginRequired)

	require.NoError(t, e.mgr.Login(ctx, "asha@example.com", "secret"))
	require.NoError(t, e.mgr.UpdateProfile(ctx, domain.ProfileUpdate{Phone: &phone}))
	assert.Equal(t, phone, e.mgr.User().Phone)
}

type failingStore struct{ storage.Store }

func (failingStore) Set(context.Context, string, string) error { return errors.New("disk full") }

func TestLogin_PersistFailureLeavesStateUnchanged(t *testing.T) {
	e := setup(t)
	mgr := NewManager(e.client, failingStore{storage.NewMemory()}, WithLogger(logger.Discard()))

	err := mgr.Login(context.Background(), "asha@example.com", "secret")
	require.Error(t, err)
	assert.False(t, mgr.Authenticated())
	assert.Empty(t, mgr.Token())
}

// gatedAuth holds Login and Profile calls until release is closed.
type gatedAuth struct {
	AuthAPI
	entered chan struct{}
	release chan struct{}
}

func (g *gatedAuth) Login(ctx context.Context, email, password string) (*api.AuthResult, error) {
	close(g.entered)
	<-g.release
	return g.AuthAPI.Login(ctx, email, password)
}

func (g *gatedAuth) Profile(ctx context.Context) (*domain.User, error) {
	close(g.entered)
	<-g.release
	return g.AuthAPI.Profile(ctx)
}

func newGatedAuth(a AuthAPI) *gatedAuth {
	return &gatedAuth{AuthAPI: a, entered: make(chan struct{}), release: make(chan struct{})}
}

func TestLogin_OvertakenByLogoutIsDiscarded(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	gate := newGatedAuth(e.client)
	store := storage.NewMemory()
	mgr := NewManager(gate, store, WithLogger(logger.Discard()))
	rec := &recorder{}
	mgr.Subscribe(rec)

	done := make(chan error, 1)
	go func() { done <- mgr.Login(ctx, "asha@example.com", "secret") }()
	<-gate.entered

	mgr.Logout(ctx)
	close(gate.release)
	err := <-done

	assert.ErrorIs(t, err, apperr.ErrSessionChanged)
	assert.False(t, mgr.Authenticated())
	assert.Empty(t, mgr.Token())
	assert.Empty(t, rec.all())
	_, err = store.Get(ctx, storage.KeyToken)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, mgr.Login(ctx, "asha@example.com", "secret"))
	assert.True(t, mgr.Authenticated())
}

func TestRestore_OvertakenByLogoutIsDiscarded(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	gate := newGatedAuth(e.client)
	store := storage.NewMemory()
	require.NoError(t, store.Set(ctx, storage.KeyToken, e.srv.IssueToken(1, time.Now().Add(time.Hour))))
	mgr := NewManager(gate, store, WithLogger(logger.Discard()))
	e.client.Bind(mgr)

	done := make(chan struct{})
	go func() {
		mgr.Restore(ctx)
		close(done)
	}()
	<-gate.entered

	mgr.Logout(ctx)
	close(gate.release)
	<-done

	assert.False(t, mgr.Authenticated())
	assert.Empty(t, mgr.Token())
}

func signed(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	sig, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: []byte("0123456789abcdef0123456789abcdef")}, nil)
	require.NoError(t, err)
	raw, err := jwt.Signed(sig).Claims(claims).Serialize()
	require.NoError(t, err)
	return raw
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	expired, err := tokenExpired(signed(t, jwt.Claims{Expiry: jwt.NewNumericDate(now.Add(time.Second))}), now)
	require.NoError(t, err)
	assert.False(t, expired)

	expired, err = tokenExpired(signed(t, jwt.Claims{Expiry: jwt.NewNumericDate(now)}), now)
	require.NoError(t, err)
	assert.True(t, expired)

	expired, err = tokenExpired(signed(t, jwt.Claims{Subject: "1"}), now)
	require.NoError(t, err)
	assert.False(t, expired)

	_, err = tokenExpired("a.b", now)
	assert.Error(t, err)
}
