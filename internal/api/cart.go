package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type cartItemDTO struct {
	ID        int64            `json:"id"`
	ProductID domain.ProductID `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Product   domain.Product   `json:"product"`
}

type cartDTO struct {
	Items []cartItemDTO `json:"cart_items"`
}

type addItemRequest struct {
	ProductID domain.ProductID `json:"product_id"`
	Quantity  int              `json:"quantity,omitempty"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// Cart returns the server-side cart. Totals are not taken from the response;
// callers derive them from the lines.
func (c *Client) Cart(ctx context.Context) (domain.Cart, error) {
	var res cartDTO
	if err := c.do(ctx, http.MethodGet, "/cart", nil, &res); err != nil {
		return domain.Cart{}, err
	}
	lines := make([]domain.CartLine, 0, len(res.Items))
	for _, it := range res.Items {
		lines = append(lines, domain.CartLine{ProductID: it.ProductID, Quantity: it.Quantity, Product: it.Product})
	}
	return domain.Cart{Lines: lines}, nil
}

func (c *Client) AddCartItem(ctx context.Context, id domain.ProductID, qty int) error {
	return c.do(ctx, http.MethodPost, "/cart/add", addItemRequest{ProductID: id, Quantity: qty}, nil)
}

func (c *Client) UpdateCartItem(ctx context.Context, id domain.ProductID, qty int) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/cart/update/%d", id), quantityRequest{Quantity: qty}, nil)
}

func (c *Client) RemoveCartItem(ctx context.Context, id domain.ProductID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/cart/remove/%d", id), nil, nil)
}

func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/cart/clear", nil, nil)
}
