package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/wishlist"
)

type Wishlist interface {
	AddItem(ctx context.Context, id domain.ProductID) error
	RemoveItem(ctx context.Context, id domain.ProductID) error
	Clear(ctx context.Context) error
	MoveAllToCart(ctx context.Context) error
	Entries() []domain.WishlistEntry
	Mode() wishlist.Mode
}

type WishlistHandler struct {
	wishlist Wishlist
	timeout  time.Duration
}

func NewWishlistHandler(w Wishlist, timeout time.Duration) *WishlistHandler {
	return &WishlistHandler{wishlist: w, timeout: timeout}
}

type WishlistResponse struct {
	Items []domain.WishlistEntry `json:"items"`
	Mode  wishlist.Mode          `json:"mode"`
}

func (h *WishlistHandler) view() WishlistResponse {
	items := h.wishlist.Entries()
	if items == nil {
		items = []domain.WishlistEntry{}
	}
	return WishlistResponse{Items: items, Mode: h.wishlist.Mode()}
}

func (h *WishlistHandler) Get(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.view())
}

func (h *WishlistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
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
	if err := h.wishlist.AddItem(ctx, domain.ProductID(req.ProductID)); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.view())
}

func (h *WishlistHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := pathID(w, r, "product_id")
	if !ok {
		return
	}
	if err := h.wishlist.RemoveItem(ctx, domain.ProductID(productID)); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view())
}

func (h *WishlistHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.wishlist.Clear(ctx); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view())
}

func (h *WishlistHandler) MoveToCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.wishlist.MoveAllToCart(ctx); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view())
}
