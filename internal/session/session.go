// Package session owns the authenticated identity and its bearer token.
//
// Other components observe transitions through Listener. Deliveries are
// queued and run in commit order by whichever goroutine committed first, so a
// transition triggered from inside a listener (a 401 seen while merging the
// cart, say) is delivered after the current one instead of re-entering it.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storage"
)

// AuthAPI is the slice of the REST client the session needs.
// Consumers define this interface.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*api.AuthResult, error)
	Register(ctx context.Context, profile domain.Registration) (*api.AuthResult, error)
	Profile(ctx context.Context) (*domain.User, error)
	UpdateProfile(ctx context.Context, patch domain.ProfileUpdate) (*domain.User, error)
}

// Change describes a session transition. A nil user means anonymous.
type Change struct {
	From *domain.User
	To   *domain.User
}

func (c Change) LoggedIn() bool  { return c.From == nil && c.To != nil }
func (c Change) LoggedOut() bool { return c.From != nil && c.To == nil }

type Listener interface {
	SessionChanged(ctx context.Context, ch Change)
}

type ListenerFunc func(ctx context.Context, ch Change)

func (f ListenerFunc) SessionChanged(ctx context.Context, ch Change) { f(ctx, ch) }

type Manager struct {
	api   AuthAPI
	store storage.Store
	log   *slog.Logger
	now   func() time.Time

	// opMu serializes Login, Register, Restore and UpdateProfile. Logout and
	// Expire never take it.
	opMu sync.Mutex

	mu    sync.RWMutex
	token string
	user  *domain.User
	// gen is bumped by Logout and Expire. Login, Register and Restore commit
	// only if it has not moved since they started.
	gen uint64

	notifyMu  sync.Mutex
	listeners []Listener
	pending   []Change
	draining  bool
}

type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithClock overrides the clock used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(authAPI AuthAPI, store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		api:   authAPI,
		store: store,
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers l for every later transition, in registration order.
func (m *Manager) Subscribe(l Listener) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// User returns a copy of the current identity, or nil when anonymous.
func (m *Manager) User() *domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil
}

func (m *Manager) IsAdmin() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil && m.user.IsAdmin
}

func (m *Manager) Login(ctx context.Context, email, password string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	gen := m.generation()
	res, err := m.api.Login(ctx, email, password)
	if err != nil {
		return &apperr.AuthError{Op: "login", Err: err}
	}
	if err := m.establish(ctx, res, gen); err != nil {
		return &apperr.AuthError{Op: "login", Err: err}
	}
	m.log.InfoContext(ctx, "user logged in", "user_id", res.User.ID)
	return nil
}

func (m *Manager) Register(ctx context.Context, profile domain.Registration) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	gen := m.generation()
	res, err := m.api.Register(ctx, profile)
	if err != nil {
		return &apperr.AuthError{Op: "register", Err: err}
	}
	if err := m.establish(ctx, res, gen); err != nil {
		return &apperr.AuthError{Op: "register", Err: err}
	}
	m.log.InfoContext(ctx, "user registered", "user_id", res.User.ID)
	return nil
}

func (m *Manager) generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

// establish persists the token, then commits the identity. Nothing changes
// if the token cannot be persisted or a logout happened since gen was read.
func (m *Manager) establish(ctx context.Context, res *api.AuthResult, gen uint64) error {
	if res.Token == "" {
		return errors.New("server returned no token")
	}
	if m.generation() != gen {
		return apperr.ErrSessionChanged
	}
	if err := m.store.Set(ctx, storage.KeyToken, res.Token); err != nil {
		return err
	}
	user := res.User

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.forgetToken(ctx)
		return apperr.ErrSessionChanged
	}
	ch := Change{From: m.user, To: &user}
	m.token = res.Token
	m.user = &user
	m.mu.Unlock()

	m.notify(ctx, ch)
	return nil
}

// Logout clears the session unconditionally.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	ch := Change{From: m.user}
	m.token = ""
	m.user = nil
	m.gen++
	m.mu.Unlock()

	m.forgetToken(ctx)
	m.log.InfoContext(ctx, "user logged out")
	m.notify(ctx, ch)
}

// Expire drops the session after the server rejected token. A token that is
// no longer current is ignored, so a late 401 cannot log out a newer login.
func (m *Manager) Expire(ctx context.Context, token string) {
	m.mu.Lock()
	if token == "" || m.token != token {
		m.mu.Unlock()
		return
	}
	ch := Change{From: m.user}
	m.token = ""
	m.user = nil
	m.gen++
	m.mu.Unlock()

	m.forgetToken(ctx)
	m.log.WarnContext(ctx, "session expired")
	m.notify(ctx, ch)
}

// Restore resumes a persisted session. It never fails: any problem with the
// stored token leaves the session anonymous and the token removed.
func (m *Manager) Restore(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	gen := m.generation()
	token, err := m.store.Get(ctx, storage.KeyToken)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && token == "") {
		return
	}
	if err != nil {
		m.log.WarnContext(ctx, "failed to read stored token", "error", err)
		return
	}

	expired, err := tokenExpired(token, m.now())
	if err != nil || expired {
		m.log.InfoContext(ctx, "discarding stored token", "expired", expired, "error", err)
		m.forgetToken(ctx)
		return
	}

	// The profile request must carry the token, so it is installed before
	// the identity is known.
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.token = token
	m.mu.Unlock()

	user, err := m.api.Profile(ctx)
	if err != nil {
		m.log.WarnContext(ctx, "failed to restore session", "error", err)
		m.mu.Lock()
		if m.token == token {
			m.token = ""
		}
		m.mu.Unlock()
		m.forgetToken(ctx)
		return
	}

	m.mu.Lock()
	if m.gen != gen || m.token != token {
		// logged out or expired while the profile was in flight
		m.mu.Unlock()
		return
	}
	ch := Change{From: m.user, To: user}
	m.user = user
	m.mu.Unlock()

	m.log.InfoContext(ctx, "session restored", "user_id", user.ID)
	m.notify(ctx, ch)
}

// UpdateProfile replaces the cached identity with the server's answer.
func (m *Manager) UpdateProfile(ctx context.Context, patch domain.ProfileUpdate) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	token := m.Token()
	if !m.Authenticated() {
		return &apperr.AuthError{Op: "update profile", Err: apperr.ErrLoginRequired}
	}
	user, err := m.api.UpdateProfile(ctx, patch)
	if err != nil {
		return &apperr.AuthError{Op: "update profile", Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != token {
		return &apperr.AuthError{Op: "update profile", Err: apperr.ErrSessionChanged}
	}
	m.user = user
	return nil
}

func (m *Manager) forgetToken(ctx context.Context) {
	if err := m.store.Remove(ctx, storage.KeyToken); err != nil {
		m.log.WarnContext(ctx, "failed to remove stored token", "error", err)
	}
}

// notify queues ch and, unless another goroutine is already delivering,
// delivers the queue in order.
func (m *Manager) notify(ctx context.Context, ch Change) {
	if ch.From == nil && ch.To == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	m.notifyMu.Lock()
	m.pending = append(m.pending, ch)
	if m.draining {
		m.notifyMu.Unlock()
		return
	}
	m.draining = true
	for len(m.pending) > 0 {
		next := m.pending[0]
		m.pending = m.pending[1:]
		listeners := append([]Listener(nil), m.listeners...)
		m.notifyMu.Unlock()

		for _, l := range listeners {
			l.SessionChanged(ctx, next)
		}

		m.notifyMu.Lock()
	}
	m.draining = false
	m.notifyMu.Unlock()
}
