package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComponentErrorsUnwrap(t *testing.T) {
	cause := &APIError{Status: http.StatusNotFound, Message: "Product not found"}
	err := fmt.Errorf("refresh: %w", &CartError{Op: "add item", Err: cause})

	var cartErr *CartError
	assert.ErrorAs(t, err, &cartErr)
	assert.Equal(t, "add item", cartErr.Op)
	assert.Equal(t, http.StatusNotFound, Status(err))
	assert.Equal(t, "cart: add item: api error: status 404: Product not found", cartErr.Error())

	wrapped := &WishlistError{Op: "move to cart", Err: ErrInsufficientStock}
	assert.ErrorIs(t, wrapped, ErrInsufficientStock)
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		unauthorized bool
		network      bool
		rejected     bool
	}{
		{"unauthorized", &APIError{Status: 401}, true, false, false},
		{"bad request", &APIError{Status: 400}, false, false, true},
		{"not found wrapped", &CartError{Op: "x", Err: &APIError{Status: 404}}, false, false, true},
		{"server error", &APIError{Status: 503}, false, false, false},
		{"network", &NetworkError{Op: "GET /cart", Err: errors.New("refused")}, false, true, false},
		{"plain", errors.New("x"), false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unauthorized, IsUnauthorized(tt.err))
			assert.Equal(t, tt.network, IsNetwork(tt.err))
			assert.Equal(t, tt.rejected, IsRejected(tt.err))
		})
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&APIError{Status: 400, Message: "Insufficient stock available"}, "Insufficient stock available"},
		{&APIError{Status: 401}, "You are not authorized. Please log in again."},
		{&APIError{Status: 403}, "You do not have permission to access this resource."},
		{&APIError{Status: 404}, "The requested resource was not found."},
		{&APIError{Status: 422}, "Validation error. Please check your input."},
		{&APIError{Status: 500}, "Internal server error. Please try again later."},
		{&APIError{Status: 418}, "Error: 418"},
		{&NetworkError{Op: "GET /cart", Err: errors.New("refused")}, "No response from server. Please check your internet connection."},
		{&CartError{Op: "update", Err: ErrInvalidQuantity}, "Quantity must be at least 1."},
		{&CheckoutError{Op: "begin", Err: ErrEmptyCart}, "Your cart is empty."},
		{&ValidationError{Field: "phone", Message: "Phone number must be 10 digits"}, "Phone number must be 10 digits"},
		{errors.New("boom"), "An unexpected error occurred. Please try again."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Message(tt.err))
	}
}
