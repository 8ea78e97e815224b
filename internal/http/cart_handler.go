package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

type Cart interface {
	AddItem(ctx context.Context, id domain.ProductID, qty int) error
	UpdateQuantity(ctx context.Context, id domain.ProductID, qty int) error
	RemoveItem(ctx context.Context, id domain.ProductID) error
	Clear(ctx context.Context) error
	Refresh(ctx context.Context) error
	Snapshot() domain.Cart
	Mode() cart.Mode
	Loading() bool
	Err() error
}

type CartHandler struct {
	cart    Cart
	timeout time.Duration
}

func NewCartHandler(c Cart, timeout time.Duration) *CartHandler {
	return &CartHandler{cart: c, timeout: timeout}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	Items   []domain.CartLine `json:"items"`
	Totals  domain.Totals     `json:"totals"`
	Mode    cart.Mode         `json:"mode"`
	Loading bool              `json:"loading"`
	Error   string            `json:"error,omitempty"`
}

func (h *CartHandler) view() CartResponse {
	snap := h.cart.Snapshot()
	resp := CartResponse{
		Items:   snap.Lines,
		Totals:  snap.Totals(),
		Mode:    h.cart.Mode(),
		Loading: h.cart.Loading(),
	}
	if resp.Items == nil {
		resp.Items = []domain.CartLine{}
	}
	if err := h.cart.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := h.cart.Refresh(ctx); err != nil {
			respondErr(w, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, h.view())
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if err := h.cart.AddItem(ctx, domain.ProductID(req.ProductID), req.Quantity); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.view())
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := pathID(w, r, "product_id")
	if !ok {
		return
	}
	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.cart.UpdateQuantity(ctx, domain.ProductID(productID), req.Quantity); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view())
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := pathID(w, r, "product_id")
	if !ok {
		return
	}
	if err := h.cart.RemoveItem(ctx, domain.ProductID(productID)); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view())
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cart.Clear(ctx); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view())
}
