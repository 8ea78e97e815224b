// Package catalog serves product browsing on top of the REST API, with an
// optional product cache.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Products is the catalog API.
// Consumers define this interface.
type Products interface {
	Product(ctx context.Context, id domain.ProductID) (*domain.Product, error)
	Products(ctx context.Context, f domain.ProductFilter) (*domain.ProductPage, error)
	Categories(ctx context.Context) ([]string, error)
}

type Service struct {
	api     Products
	admin   Backoffice
	session Session
	cache   ProductCache
	log     *slog.Logger
	sfg     singleflight.Group
}

type Option func(*Service)

func WithCache(c ProductCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(api Products, opts ...Option) *Service {
	s := &Service{api: api, cache: noCache{}, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Product returns a snapshot, from the cache when possible. Concurrent
// misses for one product share a single request, which outlives any one
// caller giving up.
func (s *Service) Product(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	ch := s.sfg.DoChan(strconv.FormatInt(int64(id), 10), func() (any, error) {
		return s.lookup(context.WithoutCancel(ctx), id)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		p := *res.Val.(*domain.Product)
		return &p, nil
	}
}

func (s *Service) lookup(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	p, err := s.cache.Get(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.log.WarnContext(ctx, "product cache get failed", "product_id", id, "error", err)
	}

	p, err = s.api.Product(ctx, id)
	if err != nil {
		return nil, err
	}

	go func(p domain.Product) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.cache.Set(ctx, &p); err != nil {
			s.log.Warn("product cache set failed", "product_id", p.ID, "error", err)
		}
	}(*p)
	return p, nil
}

// Products lists one page. Listed products refresh the cache.
func (s *Service) Products(ctx context.Context, f domain.ProductFilter) (*domain.ProductPage, error) {
	page, err := s.api.Products(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range page.Products {
		if err := s.cache.Set(ctx, &page.Products[i]); err != nil {
			s.log.WarnContext(ctx, "product cache set failed", "product_id", page.Products[i].ID, "error", err)
			break
		}
	}
	return page, nil
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.api.Categories(ctx)
}

// Invalidate drops a cached snapshot after the product changed.
func (s *Service) Invalidate(ctx context.Context, id domain.ProductID) {
	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.WarnContext(ctx, "product cache delete failed", "product_id", id, "error", err)
	}
}
