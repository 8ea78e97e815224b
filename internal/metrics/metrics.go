// Package metrics defines the OpenTelemetry instruments the storefront records.
package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/fjod/go_cart/storefront"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	cartMutations     metric.Int64Counter
	wishlistMutations metric.Int64Counter
	checkoutOutcomes  metric.Int64Counter
	apiRequests       metric.Int64Counter
	apiDuration       metric.Float64Histogram
}

func New(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.cartMutations, err = meter.Int64Counter("storefront.cart.mutations",
		metric.WithDescription("Cart mutations by operation, backing mode and result"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create cart mutations counter: %w", err)
	}
	if m.wishlistMutations, err = meter.Int64Counter("storefront.wishlist.mutations",
		metric.WithDescription("Wishlist mutations by operation, backing mode and result"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create wishlist mutations counter: %w", err)
	}
	if m.checkoutOutcomes, err = meter.Int64Counter("storefront.checkout.outcomes",
		metric.WithDescription("Checkout attempts by terminal or failed step"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create checkout outcomes counter: %w", err)
	}
	if m.apiRequests, err = meter.Int64Counter("storefront.api.requests",
		metric.WithDescription("Outbound API requests by method and status"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create api requests counter: %w", err)
	}
	if m.apiDuration, err = meter.Float64Histogram("storefront.api.duration",
		metric.WithDescription("Outbound API request latency"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("failed to create api duration histogram: %w", err)
	}
	return m, nil
}

// Noop returns instruments bound to a no-op provider.
func Noop() *Metrics {
	m, _ := New(noop.NewMeterProvider())
	return m
}

func (m *Metrics) CartMutation(ctx context.Context, op, mode string, err error) {
	if m == nil {
		return
	}
	m.cartMutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("mode", mode),
		attribute.String("result", result(err)),
	))
}

func (m *Metrics) WishlistMutation(ctx context.Context, op, mode string, err error) {
	if m == nil {
		return
	}
	m.wishlistMutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("mode", mode),
		attribute.String("result", result(err)),
	))
}

func (m *Metrics) CheckoutOutcome(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.checkoutOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// APIRequest records one outbound call; status 0 means no response was received.
func (m *Metrics) APIRequest(ctx context.Context, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", statusLabel(status)),
	)
	m.apiRequests.Add(ctx, 1, attrs)
	m.apiDuration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func statusLabel(status int) string {
	if status == 0 {
		return "network_error"
	}
	return strconv.Itoa(status)
}
