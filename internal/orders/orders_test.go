package orders

import (
	"context"
	"net/http"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/internal/testutil/fakeapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	srv     *fakeapi.Server
	client  *api.Client
	session *session.Manager
	orders  *Service
}

func setup(t *testing.T) *env {
	t.Helper()
	srv := fakeapi.New(t)
	srv.AddProduct(domain.Product{ID: 1, Name: "RTX 4070", Price: decimal.RequireFromString("599.99"), Stock: 5})
	srv.AddUser(domain.User{ID: 1, Email: "asha@example.com", FirstName: "Asha"}, "secret")
	srv.AddUser(domain.User{ID: 2, Email: "root@example.com", FirstName: "Root", IsAdmin: true}, "admin")

	client := api.New(srv.BaseURL(), api.WithLogger(logger.Discard()))
	mgr := session.NewManager(client, storage.NewMemory(), session.WithLogger(logger.Discard()))
	client.Bind(mgr)

	return &env{srv: srv, client: client, session: mgr, orders: NewService(client, mgr, logger.Discard())}
}

func (e *env) placeOrder(t *testing.T) domain.OrderID {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.client.AddCartItem(ctx, 1, 1))
	o, err := e.client.CreateOrder(ctx, "addr", "")
	require.NoError(t, err)
	return o.ID
}

func TestShopperOrders(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.orders.List(ctx, domain.OrderFilter{})
	assert.ErrorIs(t, err, apperr.ErrLoginRequired)

	require.NoError(t, e.session.Login(ctx, "asha@example.com", "secret"))
	id := e.placeOrder(t)

	page, err := e.orders.List(ctx, domain.OrderFilter{Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, id, page.Orders[0].ID)

	o, err := e.orders.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, o.Status)

	o, err = e.orders.Cancel(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, o.Status)

	_, err = e.orders.Cancel(ctx, id)
	assert.Equal(t, http.StatusBadRequest, apperr.Status(err))
}

func TestAdminRequiresAdmin(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.session.Login(ctx, "asha@example.com", "secret"))
	id := e.placeOrder(t)

	_, err := e.orders.AdminList(ctx, domain.OrderFilter{})
	assert.ErrorIs(t, err, apperr.ErrAdminRequired)
	_, err = e.orders.AdminUpdateStatus(ctx, id, domain.OrderStatusShipped)
	assert.ErrorIs(t, err, apperr.ErrAdminRequired)
	assert.Zero(t, e.srv.Calls("GET /api/orders/admin"))

	require.NoError(t, e.session.Login(ctx, "root@example.com", "admin"))

	page, err := e.orders.AdminList(ctx, domain.OrderFilter{Status: domain.OrderStatusPending})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)

	o, err := e.orders.AdminUpdateStatus(ctx, id, domain.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, o.Status)

	_, err = e.orders.AdminUpdateStatus(ctx, id, "teleported")
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestPaymentStatus(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.session.Login(ctx, "asha@example.com", "secret"))
	id := e.placeOrder(t)

	sess, err := e.client.CreatePaymentSession(ctx, id)
	require.NoError(t, err)
	_, err = e.client.VerifyPayment(ctx, domain.PaymentVerification{
		PaymentResult: domain.PaymentResult{
			GatewayOrderID: sess.GatewayOrderID, GatewayPaymentID: "pay_7",
			Signature: fakeapi.Sign(sess.GatewayOrderID, "pay_7"),
		},
		OrderID: id,
	})
	require.NoError(t, err)

	st, err := e.orders.PaymentStatus(ctx, "pay_7")
	require.NoError(t, err)
	assert.Equal(t, "pay_7", st.PaymentID)
	assert.Equal(t, "captured", st.Status)
}
