package domain

import "github.com/shopspring/decimal"

// PaymentSession is the opaque bundle the gateway widget is opened with.
type PaymentSession struct {
	GatewayOrderID string          `json:"order_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
}

// PaymentResult holds the signed identifiers the gateway hands back on success.
type PaymentResult struct {
	GatewayOrderID   string `json:"razorpay_order_id"`
	GatewayPaymentID string `json:"razorpay_payment_id"`
	Signature        string `json:"razorpay_signature"`
}

type PaymentVerification struct {
	PaymentResult
	OrderID OrderID `json:"order_id"`
}

type PaymentStatus struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}
