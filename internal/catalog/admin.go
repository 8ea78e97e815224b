package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

// Backoffice is the administrator side of the catalog API.
// Consumers define this interface.
type Backoffice interface {
	CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id domain.ProductID, patch domain.ProductUpdate) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id domain.ProductID) error
}

type Session interface {
	Authenticated() bool
	IsAdmin() bool
}

var ErrAdminUnavailable = errors.New("catalog administration is not configured")

// WithAdmin enables product management for administrators.
func WithAdmin(api Backoffice, session Session) Option {
	return func(s *Service) {
		s.admin = api
		s.session = session
	}
}

func (s *Service) requireAdmin() error {
	if s.admin == nil || s.session == nil {
		return ErrAdminUnavailable
	}
	if !s.session.Authenticated() {
		return apperr.ErrLoginRequired
	}
	if !s.session.IsAdmin() {
		return apperr.ErrAdminRequired
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	p, err := s.admin.CreateProduct(ctx, in)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "product created", "product_id", p.ID, "name", p.Name)
	return p, nil
}

// UpdateProduct changes the set fields and drops the cached snapshot.
func (s *Service) UpdateProduct(ctx context.Context, id domain.ProductID, patch domain.ProductUpdate) (*domain.Product, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	if err := validateUpdate(patch); err != nil {
		return nil, err
	}
	p, err := s.admin.UpdateProduct(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, id)
	s.log.InfoContext(ctx, "product updated", "product_id", id)
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id domain.ProductID) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if err := s.admin.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.Invalidate(ctx, id)
	s.log.InfoContext(ctx, "product deleted", "product_id", id)
	return nil
}

func validateInput(in domain.ProductInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return &apperr.ValidationError{Field: "name", Message: "Name is required"}
	}
	if strings.TrimSpace(in.Category) == "" {
		return &apperr.ValidationError{Field: "category", Message: "Category is required"}
	}
	if in.Price.IsNegative() {
		return &apperr.ValidationError{Field: "price", Message: "Price cannot be negative"}
	}
	if in.Stock < 0 {
		return &apperr.ValidationError{Field: "stock", Message: "Stock cannot be negative"}
	}
	return nil
}

func validateUpdate(u domain.ProductUpdate) error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return &apperr.ValidationError{Field: "name", Message: "Name cannot be empty"}
	}
	if u.Category != nil && strings.TrimSpace(*u.Category) == "" {
		return &apperr.ValidationError{Field: "category", Message: "Category cannot be empty"}
	}
	if u.Price != nil && u.Price.IsNegative() {
		return &apperr.ValidationError{Field: "price", Message: "Price cannot be negative"}
	}
	if u.Stock != nil && *u.Stock < 0 {
		return &apperr.ValidationError{Field: "stock", Message: "Stock cannot be negative"}
	}
	return nil
}
