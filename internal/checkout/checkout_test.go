package checkout

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/internal/testutil/fakeapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signingGateway struct {
	opened []GatewayOptions
	err    error
	forge  bool
}

func (g *signingGateway) Open(_ context.Context, opts GatewayOptions) (domain.PaymentResult, error) {
	g.opened = append(g.opened, opts)
	if g.err != nil {
		return domain.PaymentResult{}, g.err
	}
	sig := fakeapi.Sign(opts.OrderID, "pay_123")
	if g.forge {
		sig = "forged"
	}
	return domain.PaymentResult{GatewayOrderID: opts.OrderID, GatewayPaymentID: "pay_123", Signature: sig}, nil
}

type env struct {
	srv      *fakeapi.Server
	session  *session.Manager
	cart     *cart.Service
	checkout *Service
}

func setup(t *testing.T) *env {
	t.Helper()
	srv := fakeapi.New(t)
	srv.AddProduct(domain.Product{ID: 1, Name: "RTX 4070", Price: decimal.RequireFromString("599.99"), Stock: 5})
	srv.AddProduct(domain.Product{ID: 2, Name: "Case fan", Price: decimal.RequireFromString("10"), Stock: 50})
	srv.AddUser(domain.User{ID: 1, Email: "asha@example.com", FirstName: "Asha", LastName: "Rao", Phone: "9876543210", Address: "12 MG Road"}, "secret")

	client := api.New(srv.BaseURL(), api.WithLogger(logger.Discard()))
	store := storage.NewMemory()
	mgr := session.NewManager(client, store, session.WithLogger(logger.Discard()))
	client.Bind(mgr)
	c := cart.NewService(client, client, store, cart.WithLogger(logger.Discard()))
	mgr.Subscribe(c)

	svc := NewService(client, c, mgr, Config{
		KeyID:     "rzp_test_key",
		StoreName: "Hardware Store",
		TaxRate:   decimal.RequireFromString("0.18"),
	}, WithLogger(logger.Discard()))

	return &env{srv: srv, session: mgr, cart: c, checkout: svc}
}

func (e *env) loginWithCart(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.session.Login(ctx, "asha@example.com", "secret"))
	require.NoError(t, e.cart.AddItem(ctx, 1, 1))
	require.NoError(t, e.cart.AddItem(ctx, 2, 2))
}

func validShipping() ShippingInfo {
	return ShippingInfo{
		FirstName: "Asha", LastName: "Rao", Email: "asha@example.com", Phone: "9876543210",
		Address: "12 MG Road", City: "Bengaluru", State: "KA", ZipCode: "560001",
	}
}

func toConfirmation(t *testing.T, e *env) *Flow {
	t.Helper()
	ctx := context.Background()
	f, err := e.checkout.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, f.SubmitShipping(ctx, validShipping()))
	require.NoError(t, f.SubmitPaymentMethod(ctx, MethodGateway))
	require.Equal(t, StepConfirmation, f.Step())
	return f
}

func TestCheckout_HappyPath(t *testing.T) {
	e := setup(t)
	e.loginWithCart(t)
	ctx := context.Background()

	f, err := e.checkout.Begin(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepShippingInfo, f.Step())
	st := f.State()
	assert.Equal(t, "Asha", st.Shipping.FirstName)
	assert.Equal(t, "9876543210", st.Shipping.Phone)
	assert.Equal(t, "India", st.Shipping.Country)

	require.NoError(t, f.SubmitShipping(ctx, validShipping()))
	assert.Equal(t, StepPaymentMethod, f.Step())
	assert.Zero(t, e.srv.OrderCount())

	require.NoError(t, f.SubmitPaymentMethod(ctx, MethodGateway))
	assert.Equal(t, StepConfirmation, f.Step())
	orderID, ok := f.OrderID()
	require.True(t, ok)

	order, ok := e.srv.Order(orderID)
	require.True(t, ok)
	assert.Equal(t, "Asha Rao, 12 MG Road, Bengaluru, KA, 560001, India. Phone: 9876543210", order.ShippingAddress)

	opts := f.GatewayOptions()
	assert.Equal(t, int64(61999), opts.Amount)
	assert.Equal(t, "INR", opts.Currency)
	assert.Equal(t, "rzp_test_key", opts.Key)
	assert.Equal(t, "Hardware Store", opts.Name)
	assert.Equal(t, "Order #1", opts.Description)
	assert.Equal(t, "Asha Rao", opts.Prefill.Name)
	assert.Equal(t, "1", opts.Notes["order_id"])

	gw := &signingGateway{}
	require.NoError(t, f.Pay(ctx, gw))

	assert.Equal(t, StepSuccess, f.Step())
	assert.True(t, e.cart.Snapshot().Empty())
	paid, _ := e.srv.Order(orderID)
	assert.Equal(t, domain.OrderStatusPaid, paid.Status)
	assert.Equal(t, domain.OrderStatusPaid, f.State().Order.Status)
}

func TestCheckout_BeginPreconditions(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.checkout.Begin(ctx)
	assert.ErrorIs(t, err, apperr.ErrLoginRequired)

	require.NoError(t, e.session.Login(ctx, "asha@example.com", "secret"))
	_, err = e.checkout.Begin(ctx)
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
}

func TestCheckout_InvalidShippingStaysOnStep(t *testing.T) {
	e := setup(t)
	e.loginWithCart(t)
	ctx := context.Background()
	f, err := e.checkout.Begin(ctx)
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(*ShippingInfo)
		field   string
		message string
	}{
		{"missing city", func(s *ShippingInfo) { s.City = "" }, "city", "City is required"},
		{"bad email", func(s *ShippingInfo) { s.Email = "asha@" }, "email", "Please enter a valid email address"},
		{"short phone", func(s *ShippingInfo) { s.Phone = "12345" }, "phone", "Please enter a valid 10-digit phone number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := validShipping()
			tt.mutate(&info)
			err := f.SubmitShipping(ctx, info)

			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, tt.message, apperr.Message(err))
			assert.Equal(t, StepShippingInfo, f.Step())
		})
	}
}

func TestCheckout_Back(t *testing.T) {
	e := setup(t)
	e.loginWithCart(t)
	ctx := context.Background()
	f, err := e.checkout.Begin(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, f.Back(ctx), ErrIllegalTransition)

	require.NoError(t, f.SubmitShipping(ctx, validShipping()))
	require.NoError(t, f.Back(ctx))
	assert.Equal(t, StepShippingInfo, f.Step())
}

func TestCheckout_PaymentSessionRetryReusesOrder(t *testing.T) {
	e := setup(t)
	e.loginWithCart(t)
	ctx := context.Background()
	f, err := e.checkout.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, f.SubmitShipping(ctx, validShipping()))

	e.srv.FailNext("POST /api/payment/create-order/1", http.StatusBadGateway, 1)
	err = f.SubmitPaymentMethod(ctx, MethodGateway)
	require.Error(t, err)
	assert.Equal(t, StepPaymentMethod, f.Step())
	_, placed := f.OrderID()
	assert.True(t, placed)

	assert.ErrorIs(t, f.Back(ctx), ErrBackAfterOrder)

	require.NoError(t, f.SubmitPaymentMethod(ctx, MethodGateway))
	assert.Equal(t, StepConfirmation, f.Step())
	assert.Equal(t, 1, e.srv.OrderCount())
	assert.Equal(t, 1, e.srv.Calls("POST /api/orders"))
}

func TestCheckout_OrderCreationFailureCanBeRetried(t *testing.T) {
	e := setup(t)
	e.loginWithCart(t)
	ctx := context.Background()
	f, err := e.checkout.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, f.SubmitShipping(ctx, validShipping()))

	e.srv.FailNext("POST /api/orders", http.StatusInternalServerError, 1)
	err = f.SubmitPaymentMethod(ctx, MethodGateway)
	assert.Equal(t, "injected failure", apperr.Message(err))
	assert.Equal(t, StepPaymentMethod, f.Step())
	assert.Equal(t, "injected failure", f.State().Error)

	require.NoError(t, f.SubmitPaymentMethod(ctx, MethodGateway))
	assert.Equal(t, 1, e.srv.OrderCount())
}

func TestCheckout_GatewayDismissedIsRetryable(t *testing.T) {
	e := setup(t)
	e.loginWithCart(t)
	ctx := context.Background()
	f := toConfirmation(t, e)

	gw := &signingGateway{err: errors.New("modal closed")}
	err := f.Pay(ctx, gw)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Equal(t, StepConfirmation, f.Step())
	assert.False(t, e.cart.Snapshot().Empty())

	gw.err = nil
	require.NoError(t, f.Pay(ctx, gw))
	assert.Equal(t, StepSuccess, f.Step())
	assert.Len(t, gw.opened, 2)
}

func TestCheckout_VerificationFailureIsTerminal(t *testing.T) {
	e := setup(t)
	e.loginWithCart(t)
	ctx := context.Background()
	f := toConfirmation(t, e)
	before := e.cart.Snapshot()

	err := f.Pay(ctx, &signingGateway{forge: true})

	assert.ErrorIs(t, err, ErrPaymentVerification)
	assert.Equal(t, "Payment verification failed", apperr.Message(err))
	assert.Equal(t, StepPaymentFailed, f.Step())
	assert.Equal(t, before, e.cart.Snapshot())
	orderID, _ := f.OrderID()
	order, _ := e.srv.Order(orderID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)

	assert.ErrorIs(t, f.Pay(ctx, &signingGateway{}), ErrIllegalTransition)
}

func TestCheckout_CompletePayment(t *testing.T) {
	e := setup(t)
	e.loginWithCart(t)
	ctx := context.Background()
	f := toConfirmation(t, e)
	opts := f.GatewayOptions()

	err := f.CompletePayment(ctx, domain.PaymentResult{
		GatewayOrderID:   opts.OrderID,
		GatewayPaymentID: "pay_9",
		Signature:        fakeapi.Sign(opts.OrderID, "pay_9"),
	})
	require.NoError(t, err)
	assert.Equal(t, StepSuccess, f.Step())
	assert.Equal(t, "pay_9", f.State().Order.PaymentID)
}

func TestCheckout_EmptiedCartAborts(t *testing.T) {
	e := setup(t)
	e.loginWithCart(t)
	ctx := context.Background()
	f, err := e.checkout.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, e.cart.Clear(ctx))
	err = f.SubmitShipping(ctx, validShipping())

	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
	assert.Equal(t, StepAborted, f.Step())
	assert.Zero(t, e.srv.OrderCount())
}

func TestCheckout_LogoutBeforeOrderAborts(t *testing.T) {
	e := setup(t)
	e.loginWithCart(t)
	ctx := context.Background()
	f, err := e.checkout.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, f.SubmitShipping(ctx, validShipping()))

	e.session.Logout(ctx)
	err = f.SubmitPaymentMethod(ctx, MethodGateway)

	assert.ErrorIs(t, err, apperr.ErrLoginRequired)
	assert.Equal(t, StepAborted, f.Step())
}

func TestCheckout_AbortAndLookup(t *testing.T) {
	e := setup(t)
	e.loginWithCart(t)
	ctx := context.Background()
	f, err := e.checkout.Begin(ctx)
	require.NoError(t, err)

	got, err := e.checkout.Flow(f.ID())
	require.NoError(t, err)
	assert.Same(t, f, got)

	require.NoError(t, f.Abort(ctx))
	assert.Equal(t, StepAborted, f.Step())
	assert.ErrorIs(t, f.Abort(ctx), ErrIllegalTransition)

	_, err = e.checkout.Flow("missing")
	assert.ErrorIs(t, err, ErrUnknownFlow)
}

func TestCheckout_Summary(t *testing.T) {
	e := setup(t)
	e.loginWithCart(t)

	s := e.checkout.Summary()
	assert.True(t, decimal.RequireFromString("619.99").Equal(s.Subtotal), s.Subtotal.String())
	assert.True(t, decimal.RequireFromString("111.60").Equal(s.Tax), s.Tax.String())
	assert.True(t, s.Shipping.IsZero())
	assert.True(t, decimal.RequireFromString("731.59").Equal(s.Total), s.Total.String())
}

func TestCanTransitionTo(t *testing.T) {
	assert.True(t, CanTransitionTo(StepShippingInfo, StepPaymentMethod))
	assert.True(t, CanTransitionTo(StepPaymentMethod, StepShippingInfo))
	assert.True(t, CanTransitionTo(StepConfirmation, StepPaymentFailed))
	assert.False(t, CanTransitionTo(StepConfirmation, StepPaymentMethod))
	assert.False(t, CanTransitionTo(StepSuccess, StepAborted))
	for _, s := range []Step{StepSuccess, StepAborted, StepPaymentFailed} {
		assert.True(t, s.IsTerminal(), s.String())
	}
}

func TestFlow_StepChangesFollowTheStepGraph(t *testing.T) {
	e := setup(t)
	e.loginWithCart(t)
	ctx := context.Background()
	f, err := e.checkout.Begin(ctx)
	require.NoError(t, err)

	steps := []Step{StepShippingInfo, StepPaymentMethod, StepConfirmation, StepSuccess, StepAborted, StepPaymentFailed}
	for _, from := range steps {
		for _, to := range steps {
			f.mu.Lock()
			f.step = from
			f.mu.Unlock()

			err := f.advance(ctx, "test", to, nil)
			if CanTransitionTo(from, to) {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, f.Step())
				continue
			}
			assert.ErrorIs(t, err, ErrIllegalTransition, "%s -> %s", from, to)
			assert.Equal(t, from, f.Step())
		}
	}
}

func TestCheckout_VerificationAfterAbortIsRefused(t *testing.T) {
	e := setup(t)
	e.loginWithCart(t)
	ctx := context.Background()
	f := toConfirmation(t, e)

	require.NoError(t, f.Abort(ctx))
	err := f.CompletePayment(ctx, domain.PaymentResult{GatewayPaymentID: "pay_123"})

	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, StepAborted, f.Step())
	assert.False(t, e.cart.Snapshot().Empty())
}

func TestCheckout_FlowIsBoundToItsUser(t *testing.T) {
	e := setup(t)
	e.srv.AddUser(domain.User{ID: 2, Email: "ravi@example.com", FirstName: "Ravi"}, "other")
	e.loginWithCart(t)
	ctx := context.Background()
	f, err := e.checkout.Begin(ctx)
	require.NoError(t, err)

	e.session.Logout(ctx)
	_, err = e.checkout.Flow(f.ID())
	assert.ErrorIs(t, err, ErrUnknownFlow)

	require.NoError(t, e.session.Login(ctx, "ravi@example.com", "other"))
	_, err = e.checkout.Flow(f.ID())
	assert.ErrorIs(t, err, ErrUnknownFlow)
}

func TestCheckout_SessionChangeEvictsFlows(t *testing.T) {
	e := setup(t)
	e.session.Subscribe(e.checkout)
	e.loginWithCart(t)
	ctx := context.Background()
	f, err := e.checkout.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, f.SubmitShipping(ctx, validShipping()))

	e.session.Logout(ctx)

	assert.Equal(t, StepAborted, f.Step())
	assert.ErrorIs(t, f.Err(), apperr.ErrSessionChanged)

	require.NoError(t, e.session.Login(ctx, "asha@example.com", "secret"))
	_, err = e.checkout.Flow(f.ID())
	assert.ErrorIs(t, err, ErrUnknownFlow)
	assert.ErrorIs(t, f.SubmitPaymentMethod(ctx, MethodGateway), ErrIllegalTransition)
	assert.Zero(t, e.srv.OrderCount())
}
