package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/go-chi/chi/v5"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondErr maps a service error onto an HTTP status and a stable code.
// The message is the user-facing text from apperr.Message.
func respondErr(w http.ResponseWriter, err error) {
	status, code := classify(err)
	respondJSON(w, status, ErrorResponse{Error: apperr.Message(err), Code: code})
}

func classify(err error) (int, string) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperr.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, apperr.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, apperr.ErrEmptyCart):
		return http.StatusConflict, "empty_cart"
	case errors.Is(err, apperr.ErrLoginRequired):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, apperr.ErrAdminRequired):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, apperr.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, apperr.ErrSessionChanged):
		return http.StatusConflict, "session_changed"
	case errors.Is(err, catalog.ErrAdminUnavailable):
		return http.StatusNotImplemented, "not_implemented"
	case errors.Is(err, checkout.ErrUnknownFlow):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, checkout.ErrIllegalTransition), errors.Is(err, checkout.ErrBackAfterOrder):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, checkout.ErrPaymentVerification):
		return http.StatusPaymentRequired, "payment_verification_failed"
	case errors.Is(err, checkout.ErrPaymentFailed):
		return http.StatusPaymentRequired, "payment_failed"
	case apperr.IsNetwork(err):
		return http.StatusServiceUnavailable, "service_unavailable"
	}

	switch status := apperr.Status(err); {
	case status == http.StatusUnauthorized:
		return status, "unauthenticated"
	case status == http.StatusForbidden:
		return status, "permission_denied"
	case status == http.StatusNotFound:
		return status, "not_found"
	case status >= 400 && status < 500:
		return status, "rejected"
	case status >= 500:
		return http.StatusBadGateway, "upstream_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// pathID parses a positive integer URL parameter, answering 400 otherwise.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}
