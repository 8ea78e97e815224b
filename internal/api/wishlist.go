package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func (c *Client) Wishlist(ctx context.Context) (domain.Wishlist, error) {
	var res struct {
		Items []domain.WishlistEntry `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/wishlist", nil, &res); err != nil {
		return domain.Wishlist{}, err
	}
	if res.Items == nil {
		res.Items = []domain.WishlistEntry{}
	}
	return domain.Wishlist{Entries: res.Items}, nil
}

func (c *Client) AddWishlistItem(ctx context.Context, id domain.ProductID) error {
	return c.do(ctx, http.MethodPost, "/wishlist/add", addItemRequest{ProductID: id}, nil)
}

func (c *Client) RemoveWishlistItem(ctx context.Context, id domain.ProductID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/wishlist/remove/%d", id), nil, nil)
}

func (c *Client) ClearWishlist(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/wishlist/clear", nil, nil)
}

func (c *Client) MoveWishlistToCart(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/wishlist/move-to-cart", nil, nil)
}
