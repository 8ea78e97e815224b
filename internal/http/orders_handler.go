package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type Orders interface {
	List(ctx context.Context, f domain.OrderFilter) (*domain.OrderPage, error)
	Get(ctx context.Context, id domain.OrderID) (*domain.Order, error)
	Cancel(ctx context.Context, id domain.OrderID) (*domain.Order, error)
	AdminList(ctx context.Context, f domain.OrderFilter) (*domain.OrderPage, error)
	AdminUpdateStatus(ctx context.Context, id domain.OrderID, status domain.OrderStatus) (*domain.Order, error)
	PaymentStatus(ctx context.Context, paymentID string) (*domain.PaymentStatus, error)
}

type OrdersHandler struct {
	orders  Orders
	timeout time.Duration
}

func NewOrdersHandler(o Orders, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{orders: o, timeout: timeout}
}

type UpdateStatusRequestDTO struct {
	Status domain.OrderStatus `json:"status"`
}

func orderFilter(r *http.Request) domain.OrderFilter {
	return domain.OrderFilter{
		Page:    queryInt(r, "page"),
		PerPage: queryInt(r, "per_page"),
		Status:  domain.OrderStatus(r.URL.Query().Get("status")),
	}
}

func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, err := h.orders.List(ctx, orderFilter(r))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "order_id")
	if !ok {
		return
	}
	o, err := h.orders.Get(ctx, domain.OrderID(id))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "order_id")
	if !ok {
		return
	}
	o, err := h.orders.Cancel(ctx, domain.OrderID(id))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, err := h.orders.AdminList(ctx, orderFilter(r))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *OrdersHandler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "order_id")
	if !ok {
		return
	}
	var req UpdateStatusRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.orders.AdminUpdateStatus(ctx, domain.OrderID(id), req.Status)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	st, err := h.orders.PaymentStatus(ctx, chi.URLParam(r, "payment_id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}
