// Package apperr holds the error taxonomy shared by the storefront services.
//
// Component errors (AuthError, CartError, WishlistError, CheckoutError) wrap
// the underlying cause, so callers match on the component with errors.As and
// on the cause with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInsufficientStock = errors.New("insufficient stock available")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrLoginRequired     = errors.New("login required")
	ErrAdminRequired     = errors.New("admin privileges required")
	ErrSessionChanged    = errors.New("session changed while the operation was in flight")
	ErrBusy              = errors.New("another operation is in progress")
)

// APIError is an error body returned by the remote API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// NetworkError means no response was received at all.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string { return "auth: " + e.Op + ": " + e.Err.Error() }

func (e *AuthError) Unwrap() error { return e.Err }

type CartError struct {
	Op  string
	Err error
}

func (e *CartError) Error() string { return "cart: " + e.Op + ": " + e.Err.Error() }

func (e *CartError) Unwrap() error { return e.Err }

type WishlistError struct {
	Op  string
	Err error
}

func (e *WishlistError) Error() string { return "wishlist: " + e.Op + ": " + e.Err.Error() }

func (e *WishlistError) Unwrap() error { return e.Err }

type CheckoutError struct {
	Op  string
	Err error
}

func (e *CheckoutError) Error() string { return "checkout: " + e.Op + ": " + e.Err.Error() }

func (e *CheckoutError) Unwrap() error { return e.Err }

// Status returns the HTTP status of the first APIError in the chain, or 0.
func Status(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func IsUnauthorized(err error) bool {
	return Status(err) == http.StatusUnauthorized
}

func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsRejected reports whether the server answered with a client error other
// than 401, i.e. the request itself will never succeed as sent.
func IsRejected(err error) bool {
	s := Status(err)
	return s >= 400 && s < 500 && s != http.StatusUnauthorized
}
