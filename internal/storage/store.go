// Package storage provides the durable key-value store that keeps guest
// state (cart, wishlist, auth token) across restarts.
package storage

import (
	"context"
	"errors"
)

// Store is the durable local key-value store. Set must be durable before it
// returns.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

var ErrNotFound = errors.New("key not found")

// Well-known keys.
const (
	KeyCart     = "cart"
	KeyWishlist = "wishlist"
	KeyToken    = "token"
)

// Namespaced prefixes every key with ns + ":" so several storefronts can
// share one backing store.
func Namespaced(s Store, ns string) Store {
	if ns == "" {
		return s
	}
	return &namespaced{store: s, prefix: ns + ":"}
}

type namespaced struct {
	store  Store
	prefix string
}

func (n *namespaced) Get(ctx context.Context, key string) (string, error) {
	return n.store.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key, value string) error {
	return n.store.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Remove(ctx context.Context, key string) error {
	return n.store.Remove(ctx, n.prefix+key)
}
