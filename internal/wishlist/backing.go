package wishlist

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storage"
)

type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// backing mirrors the cart's: guest entries in local storage, the server's
// list once authenticated. On failure a method returns the entries that are
// actually in effect, which is cur unless the failure was partial. commit
// stores the result; the server already holds it.
type backing interface {
	mode() Mode
	load(ctx context.Context) (domain.Wishlist, error)
	commit(ctx context.Context, w domain.Wishlist) error
	add(ctx context.Context, cur domain.Wishlist, id domain.ProductID) (domain.Wishlist, error)
	remove(ctx context.Context, cur domain.Wishlist, id domain.ProductID) (domain.Wishlist, error)
	clear(ctx context.Context, cur domain.Wishlist) (domain.Wishlist, error)
}

type localBacking struct {
	store   storage.Store
	catalog Catalog
	log     *slog.Logger
}

func (b *localBacking) mode() Mode { return ModeLocal }

func (b *localBacking) load(ctx context.Context) (domain.Wishlist, error) {
	raw, err := b.store.Get(ctx, storage.KeyWishlist)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Wishlist{}, nil
	}
	if err != nil {
		return domain.Wishlist{}, err
	}

	var entries []domain.WishlistEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		b.log.WarnContext(ctx, "discarding malformed stored wishlist", "error", err)
		return domain.Wishlist{}, nil
	}
	var w domain.Wishlist
	for _, e := range entries {
		if !w.Contains(e.ProductID) {
			w.Entries = append(w.Entries, e)
		}
	}
	return w, nil
}

func (b *localBacking) persist(ctx context.Context, w domain.Wishlist) error {
	if len(w.Entries) == 0 {
		return b.store.Remove(ctx, storage.KeyWishlist)
	}
	raw, err := json.Marshal(w.Entries)
	if err != nil {
		return err
	}
	return b.store.Set(ctx, storage.KeyWishlist, string(raw))
}

func (b *localBacking) commit(ctx context.Context, w domain.Wishlist) error {
	return b.persist(ctx, w)
}

func (b *localBacking) add(ctx context.Context, cur domain.Wishlist, id domain.ProductID) (domain.Wishlist, error) {
	if cur.Contains(id) {
		return cur, nil
	}
	p, err := b.catalog.Product(ctx, id)
	if err != nil {
		return cur, err
	}
	next := domain.Wishlist{Entries: append(append([]domain.WishlistEntry(nil), cur.Entries...), domain.WishlistEntry{ProductID: id, Product: *p})}
	return next, nil
}

func (b *localBacking) remove(ctx context.Context, cur domain.Wishlist, id domain.ProductID) (domain.Wishlist, error) {
	if !cur.Contains(id) {
		return cur, nil
	}
	next := cur.Without(id)
	return next, nil
}

func (b *localBacking) clear(context.Context, domain.Wishlist) (domain.Wishlist, error) {
	return domain.Wishlist{}, nil
}

type remoteBacking struct {
	api   RemoteWishlist
	fetch func(ctx context.Context) (domain.Wishlist, error)
}

func (b *remoteBacking) mode() Mode { return ModeRemote }

func (b *remoteBacking) commit(context.Context, domain.Wishlist) error { return nil }

func (b *remoteBacking) load(ctx context.Context) (domain.Wishlist, error) {
	return b.fetch(ctx)
}

// refetch reads the server's list after a mutation. If that read fails the
// caller keeps cur; the next refresh picks up the change.
func (b *remoteBacking) refetch(ctx context.Context, cur domain.Wishlist) (domain.Wishlist, error) {
	w, err := b.fetch(ctx)
	if err != nil {
		return cur, err
	}
	return w, nil
}

func (b *remoteBacking) add(ctx context.Context, cur domain.Wishlist, id domain.ProductID) (domain.Wishlist, error) {
	if err := b.api.AddWishlistItem(ctx, id); err != nil {
		return cur, err
	}
	return b.refetch(ctx, cur)
}

func (b *remoteBacking) remove(ctx context.Context, cur domain.Wishlist, id domain.ProductID) (domain.Wishlist, error) {
	err := b.api.RemoveWishlistItem(ctx, id)
	if err != nil && apperr.Status(err) != http.StatusNotFound {
		return cur, err
	}
	return b.refetch(ctx, cur)
}

func (b *remoteBacking) clear(ctx context.Context, cur domain.Wishlist) (domain.Wishlist, error) {
	if err := b.api.ClearWishlist(ctx); err != nil {
		return cur, err
	}
	return domain.Wishlist{}, nil
}
