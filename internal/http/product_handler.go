package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type Catalog interface {
	Product(ctx context.Context, id domain.ProductID) (*domain.Product, error)
	Products(ctx context.Context, f domain.ProductFilter) (*domain.ProductPage, error)
	Categories(ctx context.Context) ([]string, error)
	CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id domain.ProductID, patch domain.ProductUpdate) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id domain.ProductID) error
}

type ProductHandler struct {
	catalog Catalog
	timeout time.Duration
}

func NewProductHandler(c Catalog, timeout time.Duration) *ProductHandler {
	return &ProductHandler{catalog: c, timeout: timeout}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, err := h.catalog.Products(ctx, domain.ProductFilter{
		Page:     queryInt(r, "page"),
		PerPage:  queryInt(r, "per_page"),
		Category: r.URL.Query().Get("category"),
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "product_id")
	if !ok {
		return
	}
	p, err := h.catalog.Product(ctx, domain.ProductID(id))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cats, err := h.catalog.Categories(ctx)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]string{"categories": cats})
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var in domain.ProductInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := h.catalog.CreateProduct(ctx, in)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "product_id")
	if !ok {
		return
	}
	var patch domain.ProductUpdate
	if !decodeJSON(w, r, &patch) {
		return
	}
	p, err := h.catalog.UpdateProduct(ctx, domain.ProductID(id), patch)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "product_id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(ctx, domain.ProductID(id)); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
