package cart

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

func (m Mode) String() string { return string(m) }

// backing is where the cart of the current session lives: durable local
// storage for guests, the server for authenticated users. Every method takes
// the current lines and returns the lines to commit. commit makes the result
// durable; it is a no-op for the server, which already holds it.
type backing interface {
	mode() Mode
	load(ctx context.Context) (domain.Cart, error)
	commit(ctx context.Context, c domain.Cart) error
	add(ctx context.Context, cur domain.Cart, id domain.ProductID, qty int) (domain.Cart, error)
	update(ctx context.Context, cur domain.Cart, id domain.ProductID, qty int) (domain.Cart, error)
	remove(ctx context.Context, cur domain.Cart, id domain.ProductID) (domain.Cart, error)
	clear(ctx context.Context) (domain.Cart, error)
}

type localBacking struct {
	store   storage.Store
	catalog Catalog
	log     *slog.Logger
}

func (b *localBacking) mode() Mode { return ModeLocal }

// load reads the persisted lines. Unreadable data is logged and treated as
// an empty cart.
func (b *localBacking) load(ctx context.Context) (domain.Cart, error) {
	raw, err := b.store.Get(ctx, storage.KeyCart)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Cart{}, nil
	}
	if err != nil {
		return domain.Cart{}, err
	}

	var lines []domain.CartLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		b.log.WarnContext(ctx, "discarding malformed stored cart", "error", err)
		return domain.Cart{}, nil
	}

	c := domain.Cart{Lines: make([]domain.CartLine, 0, len(lines))}
	for _, l := range lines {
		if l.Quantity < 1 {
			continue
		}
		if i, ok := c.Find(l.ProductID); ok {
			c.Lines[i].Quantity += l.Quantity
			continue
		}
		c.Lines = append(c.Lines, l)
	}
	return c, nil
}

func (b *localBacking) persist(ctx context.Context, c domain.Cart) error {
	if c.Empty() {
		return b.store.Remove(ctx, storage.KeyCart)
	}
	raw, err := json.Marshal(c.Lines)
	if err != nil {
		return err
	}
	return b.store.Set(ctx, storage.KeyCart, string(raw))
}

func (b *localBacking) commit(ctx context.Context, c domain.Cart) error {
	return b.persist(ctx, c)
}

func (b *localBacking) add(ctx context.Context, cur domain.Cart, id domain.ProductID, qty int) (domain.Cart, error) {
	next := cur.Clone()
	if i, ok := next.Find(id); ok {
		line := &next.Lines[i]
		if line.Quantity+qty > line.Product.Stock {
			return cur, apperr.ErrInsufficientStock
		}
		line.Quantity += qty
	} else {
		p, err := b.catalog.Product(ctx, id)
		if err != nil {
			return cur, err
		}
		if qty > p.Stock {
			return cur, apperr.ErrInsufficientStock
		}
		next.Lines = append(next.Lines, domain.CartLine{ProductID: id, Quantity: qty, Product: *p})
	}
	return next, nil
}

func (b *localBacking) update(ctx context.Context, cur domain.Cart, id domain.ProductID, qty int) (domain.Cart, error) {
	i, ok := cur.Find(id)
	if !ok {
		return cur, nil
	}
	if qty > cur.Lines[i].Product.Stock {
		return cur, apperr.ErrInsufficientStock
	}
	next := cur.Clone()
	next.Lines[i].Quantity = qty
	return next, nil
}

func (b *localBacking) remove(ctx context.Context, cur domain.Cart, id domain.ProductID) (domain.Cart, error) {
	if _, ok := cur.Find(id); !ok {
		return cur, nil
	}
	next := cur.Without(id)
	return next, nil
}

func (b *localBacking) clear(context.Context) (domain.Cart, error) {
	return domain.Cart{}, nil
}

// remoteBacking sends each mutation to the server, then refetches the
// authoritative lines.
type remoteBacking struct {
	api   RemoteCart
	fetch func(ctx context.Context) (domain.Cart, error)
}

func (b *remoteBacking) mode() Mode { return ModeRemote }

func (b *remoteBacking) load(ctx context.Context) (domain.Cart, error) {
	return b.fetch(ctx)
}

func (b *remoteBacking) commit(context.Context, domain.Cart) error { return nil }

func (b *remoteBacking) add(ctx context.Context, cur domain.Cart, id domain.ProductID, qty int) (domain.Cart, error) {
	if err := b.api.AddCartItem(ctx, id, qty); err != nil {
		return cur, err
	}
	return b.fetch(ctx)
}

func (b *remoteBacking) update(ctx context.Context, cur domain.Cart, id domain.ProductID, qty int) (domain.Cart, error) {
	if err := b.api.UpdateCartItem(ctx, id, qty); err != nil {
		return cur, err
	}
	return b.fetch(ctx)
}

func (b *remoteBacking) remove(ctx context.Context, cur domain.Cart, id domain.ProductID) (domain.Cart, error) {
	err := b.api.RemoveCartItem(ctx, id)
	if err != nil && apperr.Status(err) != http.StatusNotFound {
		return cur, err
	}
	return b.fetch(ctx)
}

func (b *remoteBacking) clear(ctx context.Context) (domain.Cart, error) {
	if err := b.api.ClearCart(ctx); err != nil {
		return domain.Cart{}, err
	}
	return domain.Cart{}, nil
}
