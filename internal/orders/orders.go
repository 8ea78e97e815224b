// Package orders exposes order history to shoppers and order management to
// administrators.
package orders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

// API is the server side of order management.
// Consumers define this interface.
type API interface {
	Orders(ctx context.Context, f domain.OrderFilter) (*domain.OrderPage, error)
	Order(ctx context.Context, id domain.OrderID) (*domain.Order, error)
	CancelOrder(ctx context.Context, id domain.OrderID) (*domain.Order, error)
	AdminOrders(ctx context.Context, f domain.OrderFilter) (*domain.OrderPage, error)
	UpdateOrderStatus(ctx context.Context, id domain.OrderID, status domain.OrderStatus) (*domain.Order, error)
	PaymentStatus(ctx context.Context, paymentID string) (*domain.PaymentStatus, error)
}

type Session interface {
	Authenticated() bool
	IsAdmin() bool
}

type Service struct {
	api     API
	session Session
	log     *slog.Logger
}

func NewService(api API, session Session, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{api: api, session: session, log: log}
}

func (s *Service) requireUser() error {
	if !s.session.Authenticated() {
		return apperr.ErrLoginRequired
	}
	return nil
}

func (s *Service) requireAdmin() error {
	if err := s.requireUser(); err != nil {
		return err
	}
	if !s.session.IsAdmin() {
		return apperr.ErrAdminRequired
	}
	return nil
}

func (s *Service) List(ctx context.Context, f domain.OrderFilter) (*domain.OrderPage, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}
	return s.api.Orders(ctx, f)
}

func (s *Service) Get(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}
	return s.api.Order(ctx, id)
}

// Cancel cancels a pending order; the server refuses any other status.
func (s *Service) Cancel(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}
	o, err := s.api.CancelOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "order cancelled", "order_id", id)
	return o, nil
}

func (s *Service) AdminList(ctx context.Context, f domain.OrderFilter) (*domain.OrderPage, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, &apperr.ValidationError{Field: "status", Message: fmt.Sprintf("Unknown order status %q", f.Status)}
	}
	return s.api.AdminOrders(ctx, f)
}

func (s *Service) AdminUpdateStatus(ctx context.Context, id domain.OrderID, status domain.OrderStatus) (*domain.Order, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, &apperr.ValidationError{Field: "status", Message: fmt.Sprintf("Unknown order status %q", status)}
	}
	o, err := s.api.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "order status updated", "order_id", id, "status", status)
	return o, nil
}

func (s *Service) PaymentStatus(ctx context.Context, paymentID string) (*domain.PaymentStatus, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}
	st, err := s.api.PaymentStatus(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if st.PaymentID == "" {
		st.PaymentID = paymentID
	}
	return st, nil
}
