// Package checkout drives the multi-step purchase flow: shipping details,
// payment method, order and payment session creation, the hosted payment
// gateway and server-side verification.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrIllegalTransition   = errors.New("illegal transition of checkout step")
	ErrBackAfterOrder      = errors.New("cannot go back once the order is placed")
	ErrPaymentFailed       = errors.New("payment was not completed")
	ErrPaymentVerification = errors.New("payment verification failed")
	ErrUnknownFlow         = errors.New("checkout not found")
)

// Orders is the server side of checkout.
// Consumers define this interface.
type Orders interface {
	CreateOrder(ctx context.Context, shippingAddress, idempotencyKey string) (*domain.Order, error)
	CreatePaymentSession(ctx context.Context, id domain.OrderID) (*domain.PaymentSession, error)
	VerifyPayment(ctx context.Context, v domain.PaymentVerification) (*domain.Order, error)
}

type Cart interface {
	Snapshot() domain.Cart
	Clear(ctx context.Context) error
}

type Session interface {
	User() *domain.User
}

// Gateway opens the hosted payment widget and blocks until the shopper pays
// or gives up.
type Gateway interface {
	Open(ctx context.Context, opts GatewayOptions) (domain.PaymentResult, error)
}

type Config struct {
	KeyID     string
	StoreName string
	TaxRate   decimal.Decimal
	Country   string
}

type Service struct {
	orders  Orders
	cart    Cart
	session Session
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	flows map[string]*Flow
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(orders Orders, cart Cart, session Session, cfg Config, opts ...Option) *Service {
	if cfg.Country == "" {
		cfg.Country = "India"
	}
	s := &Service{
		orders:  orders,
		cart:    cart,
		session: session,
		cfg:     cfg,
		log:     slog.Default(),
		flows:   make(map[string]*Flow),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin starts a flow for the signed-in shopper's current cart.
func (s *Service) Begin(ctx context.Context) (*Flow, error) {
	user := s.session.User()
	if user == nil {
		return nil, &apperr.CheckoutError{Op: "begin", Err: apperr.ErrLoginRequired}
	}
	if s.cart.Snapshot().Empty() {
		return nil, &apperr.CheckoutError{Op: "begin", Err: apperr.ErrEmptyCart}
	}

	f := &Flow{
		id:       uuid.NewString(),
		svc:      s,
		userID:   user.ID,
		step:     StepShippingInfo,
		shipping: prefill(user, s.cfg.Country),
		method:   MethodGateway,
	}

	s.mu.Lock()
	for id, old := range s.flows {
		if old.Step().IsTerminal() {
			delete(s.flows, id)
		}
	}
	s.flows[f.id] = f
	s.mu.Unlock()

	s.log.InfoContext(ctx, "checkout started", "checkout_id", f.id, "user_id", user.ID)
	return f, nil
}

// Flow looks up a flow the signed-in shopper started with Begin. Another
// user's flow is reported as unknown.
func (s *Service) Flow(id string) (*Flow, error) {
	user := s.session.User()
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[id]
	if !ok || user == nil || f.userID != user.ID {
		return nil, ErrUnknownFlow
	}
	return f, nil
}

var _ session.Listener = (*Service)(nil)

// SessionChanged forgets every flow. Unfinished flows are aborted too,
// except one busy with an operation, which is only dropped from the index.
func (s *Service) SessionChanged(ctx context.Context, _ session.Change) {
	s.mu.Lock()
	flows := s.flows
	s.flows = make(map[string]*Flow)
	s.mu.Unlock()

	for _, f := range flows {
		if f.Step().IsTerminal() || !f.opMu.TryLock() {
			continue
		}
		_ = f.abort(ctx, "session changed", apperr.ErrSessionChanged)
		f.opMu.Unlock()
	}
}
