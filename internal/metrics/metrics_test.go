package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := New(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.CartMutation(ctx, "add_item", "local", nil)
	m.CartMutation(ctx, "add_item", "remote", errors.New("boom"))
	m.WishlistMutation(ctx, "clear", "local", nil)
	m.CheckoutOutcome(ctx, "success")
	m.APIRequest(ctx, "GET", 200, 12*time.Millisecond)
	m.APIRequest(ctx, "POST", 0, time.Millisecond)

	sums := collect(t, reader)
	assert.Equal(t, int64(2), sums["storefront.cart.mutations"])
	assert.Equal(t, int64(1), sums["storefront.wishlist.mutations"])
	assert.Equal(t, int64(1), sums["storefront.checkout.outcomes"])
	assert.Equal(t, int64(2), sums["storefront.api.requests"])
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CartMutation(context.Background(), "clear", "local", nil)
		m.CheckoutOutcome(context.Background(), "aborted")
		m.APIRequest(context.Background(), "GET", 500, time.Second)
	})
	assert.NotNil(t, Noop())
}
