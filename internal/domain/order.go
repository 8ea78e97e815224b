package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderID int64

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending
}

type OrderItem struct {
	ID        int64           `json:"id"`
	ProductID ProductID       `json:"product_id"`
	Product   *Product        `json:"product,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Order struct {
	ID              OrderID         `json:"id"`
	UserID          UserID          `json:"user_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          OrderStatus     `json:"status"`
	PaymentID       string          `json:"payment_id,omitempty"`
	ShippingAddress string          `json:"shipping_address"`
	Items           []OrderItem     `json:"order_items"`
	CreatedAt       time.Time       `json:"created_at,omitzero"`
	UpdatedAt       time.Time       `json:"updated_at,omitzero"`
}

type OrderFilter struct {
	Page    int
	PerPage int
	Status  OrderStatus
}

type OrderPage struct {
	Orders      []Order `json:"orders"`
	Total       int     `json:"total"`
	Pages       int     `json:"pages"`
	CurrentPage int     `json:"current_page"`
}
