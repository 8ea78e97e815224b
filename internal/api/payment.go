package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func (c *Client) CreatePaymentSession(ctx context.Context, orderID domain.OrderID) (*domain.PaymentSession, error) {
	var s domain.PaymentSession
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/payment/create-order/%d", orderID), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// VerifyPayment sends the gateway's signed identifiers to the server. Any
// non-2xx answer means the payment is not confirmed.
func (c *Client) VerifyPayment(ctx context.Context, v domain.PaymentVerification) (*domain.Order, error) {
	var res orderEnvelope
	if err := c.do(ctx, http.MethodPost, "/payment/verify", v, &res); err != nil {
		return nil, err
	}
	return &res.Order, nil
}

func (c *Client) PaymentStatus(ctx context.Context, paymentID string) (*domain.PaymentStatus, error) {
	var res struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/payment/status/"+url.PathEscape(paymentID), nil, &res); err != nil {
		return nil, err
	}
	return &domain.PaymentStatus{PaymentID: paymentID, Status: res.Status}, nil
}
