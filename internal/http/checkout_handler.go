package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type Checkout interface {
	Begin(ctx context.Context) (*checkout.Flow, error)
	Flow(id string) (*checkout.Flow, error)
}

type CheckoutHandler struct {
	checkout Checkout
	timeout  time.Duration
}

func NewCheckoutHandler(c Checkout, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{checkout: c, timeout: timeout}
}

type PaymentMethodRequestDTO struct {
	PaymentMethod checkout.PaymentMethod `json:"payment_method"`
}

type CheckoutResponse struct {
	checkout.State
	Summary checkout.Summary         `json:"summary"`
	Gateway *checkout.GatewayOptions `json:"gateway,omitempty"`
}

func checkoutView(f *checkout.Flow) CheckoutResponse {
	resp := CheckoutResponse{State: f.State(), Summary: f.Summary()}
	if resp.Step == checkout.StepConfirmation {
		opts := f.GatewayOptions()
		resp.Gateway = &opts
	}
	return resp
}

// flow resolves the {checkout_id} URL parameter.
func (h *CheckoutHandler) flow(w http.ResponseWriter, r *http.Request) (*checkout.Flow, bool) {
	f, err := h.checkout.Flow(chi.URLParam(r, "checkout_id"))
	if err != nil {
		respondErr(w, err)
		return nil, false
	}
	return f, true
}

func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	f, err := h.checkout.Begin(ctx)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, checkoutView(f))
}

func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	f, ok := h.flow(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, checkoutView(f))
}

func (h *CheckoutHandler) GatewayOptions(w http.ResponseWriter, r *http.Request) {
	f, ok := h.flow(w, r)
	if !ok {
		return
	}
	if f.Step() != checkout.StepConfirmation {
		respondError(w, http.StatusConflict, "illegal_transition", "payment is not ready")
		return
	}
	respondJSON(w, http.StatusOK, f.GatewayOptions())
}

func (h *CheckoutHandler) SubmitShipping(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	f, ok := h.flow(w, r)
	if !ok {
		return
	}
	var req checkout.ShippingInfo
	if !decodeJSON(w, r, &req) {
		return
	}
	h.step(w, f, f.SubmitShipping(ctx, req))
}

func (h *CheckoutHandler) SubmitPaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	f, ok := h.flow(w, r)
	if !ok {
		return
	}
	var req PaymentMethodRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = checkout.MethodGateway
	}
	h.step(w, f, f.SubmitPaymentMethod(ctx, req.PaymentMethod))
}

func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	f, ok := h.flow(w, r)
	if !ok {
		return
	}
	h.step(w, f, f.Back(r.Context()))
}

// Complete takes the signed result the payment widget returned to the browser.
func (h *CheckoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	f, ok := h.flow(w, r)
	if !ok {
		return
	}
	var req domain.PaymentResult
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.Signature == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "order id, payment id and signature are required")
		return
	}
	h.step(w, f, f.CompletePayment(ctx, req))
}

func (h *CheckoutHandler) Abort(w http.ResponseWriter, r *http.Request) {
	f, ok := h.flow(w, r)
	if !ok {
		return
	}
	h.step(w, f, f.Abort(r.Context()))
}

func (h *CheckoutHandler) step(w http.ResponseWriter, f *checkout.Flow, err error) {
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, checkoutView(f))
}
