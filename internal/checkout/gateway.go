package checkout

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// GatewayOptions configures the hosted payment widget.
type GatewayOptions struct {
	Key         string            `json:"key"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	OrderID     string            `json:"order_id"`
	Prefill     Prefill           `json:"prefill"`
	Notes       map[string]string `json:"notes"`
}

type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

var hundred = decimal.NewFromInt(100)

// GatewayOptions is zero until a payment session exists. Amount is in
// minor currency units.
func (f *Flow) GatewayOptions() GatewayOptions {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.payment == nil || f.order == nil {
		return GatewayOptions{}
	}
	orderID := strconv.FormatInt(int64(f.order.ID), 10)
	return GatewayOptions{
		Key:         f.svc.cfg.KeyID,
		Amount:      f.payment.Amount.Mul(hundred).Round(0).IntPart(),
		Currency:    f.payment.Currency,
		Name:        f.svc.cfg.StoreName,
		Description: fmt.Sprintf("Order #%d", f.order.ID),
		OrderID:     f.payment.GatewayOrderID,
		Prefill: Prefill{
			Name:    f.shipping.FirstName + " " + f.shipping.LastName,
			Email:   f.shipping.Email,
			Contact: f.shipping.Phone,
		},
		Notes: map[string]string{"order_id": orderID},
	}
}

// Summary is the price breakdown shown before paying. It is informational;
// the server decides the amount charged.
type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

func (f *Flow) Summary() Summary {
	return f.svc.Summary()
}

// Summary prices the current cart.
func (s *Service) Summary() Summary {
	subtotal := s.cart.Snapshot().Totals().Amount
	tax := subtotal.Mul(s.cfg.TaxRate).Round(2)
	return Summary{
		Subtotal: subtotal,
		Shipping: decimal.Zero,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}
