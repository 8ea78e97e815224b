// Package wishlist keeps the saved-for-later list of the current session,
// stored the same way as the cart.
package wishlist

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

// RemoteWishlist is the server-side wishlist API.
// Consumers define this interface.
type RemoteWishlist interface {
	Wishlist(ctx context.Context) (domain.Wishlist, error)
	AddWishlistItem(ctx context.Context, id domain.ProductID) error
	RemoveWishlistItem(ctx context.Context, id domain.ProductID) error
	ClearWishlist(ctx context.Context) error
	MoveWishlistToCart(ctx context.Context) error
}

type Catalog interface {
	Product(ctx context.Context, id domain.ProductID) (*domain.Product, error)
}

// Cart receives moved entries.
type Cart interface {
	AddItem(ctx context.Context, id domain.ProductID, qty int) error
	Refresh(ctx context.Context) error
}

type Service struct {
	local   *localBacking
	remote  *remoteBacking
	api     RemoteWishlist
	cart    Cart
	log     *slog.Logger
	metrics *metrics.Metrics
	sfg     singleflight.Group

	opMu sync.Mutex

	mu       sync.RWMutex
	active   backing
	wishlist domain.Wishlist
	gen      uint64
	loading  bool
	lastErr  error
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(remote RemoteWishlist, catalog Catalog, cart Cart, store storage.Store, opts ...Option) *Service {
	s := &Service{
		api:  remote,
		cart: cart,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.local = &localBacking{store: store, catalog: catalog, log: s.log}
	s.remote = &remoteBacking{api: remote, fetch: s.fetchRemote}
	s.active = s.local
	return s
}

func (s *Service) fetchRemote(ctx context.Context) (domain.Wishlist, error) {
	v, err, _ := s.sfg.Do("wishlist", func() (any, error) {
		return s.api.Wishlist(ctx)
	})
	if err != nil {
		return domain.Wishlist{}, err
	}
	w := v.(domain.Wishlist)
	return domain.Wishlist{Entries: append([]domain.WishlistEntry(nil), w.Entries...)}, nil
}

func (s *Service) Load(ctx context.Context) error {
	return s.Refresh(ctx)
}

func (s *Service) Refresh(ctx context.Context) error {
	return s.mutate(ctx, "refresh", func(ctx context.Context, b backing, cur domain.Wishlist) (domain.Wishlist, error) {
		w, err := b.load(ctx)
		if err != nil {
			return cur, err
		}
		return w, nil
	})
}

// AddItem is a no-op for a product already present.
func (s *Service) AddItem(ctx context.Context, id domain.ProductID) error {
	return s.mutate(ctx, "add item", func(ctx context.Context, b backing, cur domain.Wishlist) (domain.Wishlist, error) {
		return b.add(ctx, cur, id)
	})
}

func (s *Service) RemoveItem(ctx context.Context, id domain.ProductID) error {
	return s.mutate(ctx, "remove item", func(ctx context.Context, b backing, cur domain.Wishlist) (domain.Wishlist, error) {
		return b.remove(ctx, cur, id)
	})
}

func (s *Service) Clear(ctx context.Context) error {
	return s.mutate(ctx, "clear", func(ctx context.Context, b backing, cur domain.Wishlist) (domain.Wishlist, error) {
		return b.clear(ctx, cur)
	})
}

// MoveAllToCart adds one of each entry to the cart and empties the wishlist.
// For a guest the entries are moved one by one; if one fails, those already
// moved leave the wishlist and the rest stay.
func (s *Service) MoveAllToCart(ctx context.Context) error {
	return s.mutate(ctx, "move to cart", func(ctx context.Context, b backing, cur domain.Wishlist) (domain.Wishlist, error) {
		if b.mode() == ModeRemote {
			return s.moveRemote(ctx, cur)
		}
		return s.moveLocal(ctx, cur)
	})
}

func (s *Service) moveLocal(ctx context.Context, cur domain.Wishlist) (domain.Wishlist, error) {
	moved := 0
	var moveErr error
	for _, e := range cur.Entries {
		if moveErr = s.cart.AddItem(ctx, e.ProductID, 1); moveErr != nil {
			break
		}
		moved++
	}
	if moved == 0 {
		return cur, moveErr
	}

	return domain.Wishlist{Entries: append([]domain.WishlistEntry(nil), cur.Entries[moved:]...)}, moveErr
}

func (s *Service) moveRemote(ctx context.Context, cur domain.Wishlist) (domain.Wishlist, error) {
	if err := s.api.MoveWishlistToCart(ctx); err != nil {
		return cur, err
	}
	if err := s.cart.Refresh(ctx); err != nil {
		s.log.WarnContext(ctx, "failed to refresh cart after move", "error", err)
	}
	return s.remote.refetch(ctx, cur)
}

// mutate runs fn against the active backing and commits what it returns,
// failure included, unless the session changed meanwhile.
func (s *Service) mutate(ctx context.Context, op string, fn func(context.Context, backing, domain.Wishlist) (domain.Wishlist, error)) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	b, cur, gen := s.active, s.wishlist, s.gen
	s.loading = true
	s.mu.Unlock()

	next, err := fn(ctx, b, cur)

	s.mu.Lock()
	defer s.mu.Unlock()
	stale := s.gen != gen
	if err == nil && stale {
		err = apperr.ErrSessionChanged
	}
	if stale {
		s.metrics.WishlistMutation(ctx, op, string(b.mode()), err)
		return &apperr.WishlistError{Op: op, Err: err}
	}

	s.loading = false
	if !sameEntries(cur, next) {
		// Written under mu: a session change either merges these entries or
		// rejects the mutation, never both.
		if cerr := b.commit(ctx, next); cerr != nil {
			next = cur
			if err == nil {
				err = cerr
			}
		}
	}
	s.wishlist = next
	s.metrics.WishlistMutation(ctx, op, string(b.mode()), err)
	if err != nil {
		werr := &apperr.WishlistError{Op: op, Err: err}
		s.lastErr = werr
		s.log.WarnContext(ctx, "wishlist operation failed", "op", op, "mode", b.mode(), "error", err)
		return werr
	}
	s.lastErr = nil
	return nil
}

func sameEntries(a, b domain.Wishlist) bool {
	if len(a.Entries) != len(b.Entries) {
		return false
	}
	for i := range a.Entries {
		if a.Entries[i].ProductID != b.Entries[i].ProductID {
			return false
		}
	}
	return true
}

func (s *Service) Entries() []domain.WishlistEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.WishlistEntry(nil), s.wishlist.Entries...)
}

func (s *Service) IsPresent(id domain.ProductID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wishlist.Contains(id)
}

func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wishlist.Entries)
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

func (s *Service) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

var _ session.Listener = (*Service)(nil)

func (s *Service) SessionChanged(ctx context.Context, ch session.Change) {
	if ch.To == nil {
		w, err := s.local.load(ctx)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.gen++
		s.active = s.local
		s.wishlist = w
		s.loading = false
		s.lastErr = err
		return
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.active = s.remote
	s.wishlist = domain.Wishlist{}
	s.loading = true
	s.mu.Unlock()

	mergeErr := s.merge(ctx)
	w, err := s.fetchRemote(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.loading = false
	if err != nil {
		s.lastErr = err
		s.log.WarnContext(ctx, "failed to load server wishlist", "error", err)
		return
	}
	s.wishlist = w
	s.lastErr = mergeErr
}

// merge sends guest entries to the server the way the cart merge does.
func (s *Service) merge(ctx context.Context) error {
	guest, err := s.local.load(ctx)
	if err != nil || len(guest.Entries) == 0 {
		return err
	}

	var pending []domain.WishlistEntry
	var mergeErr error
	for i, e := range guest.Entries {
		err := s.api.AddWishlistItem(ctx, e.ProductID)
		if err == nil {
			continue
		}
		if apperr.IsRejected(err) {
			s.log.WarnContext(ctx, "server refused guest wishlist entry", "product_id", e.ProductID, "error", err)
			continue
		}
		pending = guest.Entries[i:]
		mergeErr = err
		break
	}

	if err := s.local.persist(ctx, domain.Wishlist{Entries: pending}); err != nil {
		s.log.WarnContext(ctx, "failed to update guest wishlist after merge", "error", err)
	}
	s.metrics.WishlistMutation(ctx, "merge", string(ModeRemote), mergeErr)
	if mergeErr != nil {
		return &apperr.WishlistError{Op: "merge", Err: mergeErr}
	}
	return nil
}
