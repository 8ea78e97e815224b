package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Message turns an error into the text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return statusMessage(apiErr.Status)
	}

	if IsNetwork(err) {
		return "No response from server. Please check your internet connection."
	}

	switch {
	case errors.Is(err, ErrInvalidQuantity):
		return "Quantity must be at least 1."
	case errors.Is(err, ErrInsufficientStock):
		return "Insufficient stock available."
	case errors.Is(err, ErrEmptyCart):
		return "Your cart is empty."
	case errors.Is(err, ErrLoginRequired):
		return "Please log in to continue."
	case errors.Is(err, ErrAdminRequired):
		return "You do not have permission to access this resource."
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}

	return "An unexpected error occurred. Please try again."
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Bad request. Please check your input and try again."
	case http.StatusUnauthorized:
		return "You are not authorized. Please log in again."
	case http.StatusForbidden:
		return "You do not have permission to access this resource."
	case http.StatusNotFound:
		return "The requested resource was not found."
	case http.StatusUnprocessableEntity:
		return "Validation error. Please check your input."
	case http.StatusInternalServerError:
		return "Internal server error. Please try again later."
	}
	return fmt.Sprintf("Error: %d", status)
}

// ValidationError reports a single invalid form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
