package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type orderEnvelope struct {
	Order domain.Order `json:"order"`
}

// CreateOrder creates an order from the server's view of the cart. The
// idempotency key lets the server collapse resubmissions of one checkout.
func (c *Client) CreateOrder(ctx context.Context, shippingAddress, idempotencyKey string) (*domain.Order, error) {
	in := struct {
		ShippingAddress string `json:"shipping_address"`
	}{shippingAddress}

	var res orderEnvelope
	err := c.do(ctx, http.MethodPost, "/orders", in, &res, header{"Idempotency-Key", idempotencyKey})
	if err != nil {
		return nil, err
	}
	return &res.Order, nil
}

func (c *Client) Orders(ctx context.Context, f domain.OrderFilter) (*domain.OrderPage, error) {
	var page domain.OrderPage
	if err := c.do(ctx, http.MethodGet, "/orders"+orderQuery(f), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Order(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	var o domain.Order
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", id), nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) CancelOrder(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	var res orderEnvelope
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/orders/%d/cancel", id), nil, &res); err != nil {
		return nil, err
	}
	return &res.Order, nil
}

func (c *Client) AdminOrders(ctx context.Context, f domain.OrderFilter) (*domain.OrderPage, error) {
	var page domain.OrderPage
	if err := c.do(ctx, http.MethodGet, "/orders/admin"+orderQuery(f), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id domain.OrderID, status domain.OrderStatus) (*domain.Order, error) {
	in := struct {
		Status domain.OrderStatus `json:"status"`
	}{status}

	var res orderEnvelope
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/orders/admin/%d/status", id), in, &res); err != nil {
		return nil, err
	}
	return &res.Order, nil
}

func orderQuery(f domain.OrderFilter) string {
	q := url.Values{}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(f.PerPage))
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
