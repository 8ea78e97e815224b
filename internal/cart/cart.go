// Package cart keeps the shopping cart of the current session.
//
// Guests get a cart persisted in local storage; authenticated users get the
// server's cart. The switch follows session transitions, and on login the
// guest lines are merged into the server cart.
package cart

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"golang.org/x/sync/singleflight"
)

// RemoteCart is the server-side cart API.
// Consumers define this interface.
type RemoteCart interface {
	Cart(ctx context.Context) (domain.Cart, error)
	AddCartItem(ctx context.Context, id domain.ProductID, qty int) error
	UpdateCartItem(ctx context.Context, id domain.ProductID, qty int) error
	RemoveCartItem(ctx context.Context, id domain.ProductID) error
	ClearCart(ctx context.Context) error
}

// Catalog resolves product snapshots for guest lines.
type Catalog interface {
	Product(ctx context.Context, id domain.ProductID) (*domain.Product, error)
}

type Service struct {
	local   *localBacking
	remote  *remoteBacking
	api     RemoteCart
	log     *slog.Logger
	metrics *metrics.Metrics
	sfg     singleflight.Group

	// opMu serializes mutations. Session transitions do not take it; they
	// bump gen instead so an operation in flight discards its result.
	opMu sync.Mutex

	mu      sync.RWMutex
	active  backing
	cart    domain.Cart
	gen     uint64
	loading bool
	lastErr error
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService returns a guest cart. Call Load to read persisted lines.
func NewService(remote RemoteCart, catalog Catalog, store storage.Store, opts ...Option) *Service {
	s := &Service{
		api: remote,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.local = &localBacking{store: store, catalog: catalog, log: s.log}
	s.remote = &remoteBacking{api: remote, fetch: s.fetchRemote}
	s.active = s.local
	return s
}

// fetchRemote collapses concurrent refetches into one request.
func (s *Service) fetchRemote(ctx context.Context) (domain.Cart, error) {
	v, err, _ := s.sfg.Do("cart", func() (any, error) {
		return s.api.Cart(ctx)
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return v.(domain.Cart).Clone(), nil
}

// Load reads the active backing into memory.
func (s *Service) Load(ctx context.Context) error {
	return s.Refresh(ctx)
}

// Refresh re-reads the active backing, replacing the in-memory lines.
func (s *Service) Refresh(ctx context.Context) error {
	return s.mutate(ctx, "refresh", func(ctx context.Context, b backing, _ domain.Cart) (domain.Cart, error) {
		return b.load(ctx)
	})
}

func (s *Service) AddItem(ctx context.Context, id domain.ProductID, qty int) error {
	if qty < 1 {
		return &apperr.CartError{Op: "add item", Err: apperr.ErrInvalidQuantity}
	}
	return s.mutate(ctx, "add item", func(ctx context.Context, b backing, cur domain.Cart) (domain.Cart, error) {
		return b.add(ctx, cur, id, qty)
	})
}

// UpdateQuantity sets a line's quantity. Guest carts ignore unknown products.
func (s *Service) UpdateQuantity(ctx context.Context, id domain.ProductID, qty int) error {
	if qty < 1 {
		return &apperr.CartError{Op: "update quantity", Err: apperr.ErrInvalidQuantity}
	}
	return s.mutate(ctx, "update quantity", func(ctx context.Context, b backing, cur domain.Cart) (domain.Cart, error) {
		return b.update(ctx, cur, id, qty)
	})
}

// RemoveItem is idempotent.
func (s *Service) RemoveItem(ctx context.Context, id domain.ProductID) error {
	return s.mutate(ctx, "remove item", func(ctx context.Context, b backing, cur domain.Cart) (domain.Cart, error) {
		return b.remove(ctx, cur, id)
	})
}

func (s *Service) Clear(ctx context.Context) error {
	return s.mutate(ctx, "clear", func(ctx context.Context, b backing, _ domain.Cart) (domain.Cart, error) {
		return b.clear(ctx)
	})
}

func (s *Service) mutate(ctx context.Context, op string, fn func(context.Context, backing, domain.Cart) (domain.Cart, error)) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	b, cur, gen := s.active, s.cart.Clone(), s.gen
	s.loading = true
	s.mu.Unlock()

	next, err := fn(ctx, b, cur)

	s.mu.Lock()
	defer s.mu.Unlock()
	stale := s.gen != gen
	if !stale {
		s.loading = false
	}
	if err == nil && stale {
		err = apperr.ErrSessionChanged
	}
	if err == nil {
		// Written under mu: a session change either merges these lines or
		// rejects the mutation, never both.
		err = b.commit(ctx, next)
	}
	s.metrics.CartMutation(ctx, op, b.mode().String(), err)
	if err != nil {
		cerr := &apperr.CartError{Op: op, Err: err}
		if !stale {
			s.lastErr = cerr
		}
		s.log.WarnContext(ctx, "cart operation failed", "op", op, "mode", b.mode(), "error", err)
		return cerr
	}
	s.cart = next
	s.lastErr = nil
	return nil
}

func (s *Service) Snapshot() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

func (s *Service) Lines() []domain.CartLine {
	return s.Snapshot().Lines
}

func (s *Service) Totals() domain.Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Totals()
}

func (s *Service) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.mode()
}

func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err is the error of the last failed operation, cleared by the next success.
func (s *Service) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

var _ session.Listener = (*Service)(nil)

// SessionChanged switches backing on login and logout. The session delivers
// changes one at a time, so a merge never overlaps a reload.
func (s *Service) SessionChanged(ctx context.Context, ch session.Change) {
	if ch.To == nil {
		s.toLocal(ctx)
		return
	}
	s.toRemote(ctx)
}

func (s *Service) toLocal(ctx context.Context) {
	c, err := s.local.load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.active = s.local
	s.cart = c
	s.loading = false
	s.lastErr = err
	if err != nil {
		s.log.WarnContext(ctx, "failed to reload guest cart", "error", err)
	}
}

func (s *Service) toRemote(ctx context.Context) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.active = s.remote
	s.cart = domain.Cart{}
	s.loading = true
	s.mu.Unlock()

	mergeErr := s.merge(ctx)
	c, err := s.fetchRemote(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.loading = false
	switch {
	case err != nil:
		s.lastErr = err
		s.log.WarnContext(ctx, "failed to load server cart", "error", err)
	default:
		s.cart = c
		s.lastErr = mergeErr
	}
}
