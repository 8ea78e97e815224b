package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func (c *Client) Product(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Products(ctx context.Context, f domain.ProductFilter) (*domain.ProductPage, error) {
	q := url.Values{}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(f.PerPage))
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}

	path := "/products"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page domain.ProductPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var res struct {
		Categories []string `json:"categories"`
	}
	if err := c.do(ctx, http.MethodGet, "/products/categories", nil, &res); err != nil {
		return nil, err
	}
	return res.Categories, nil
}

// CreateProduct, UpdateProduct and DeleteProduct need an administrator's
// token; the server answers 403 otherwise.
func (c *Client) CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, http.MethodPost, "/products", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id domain.ProductID, patch domain.ProductUpdate) (*domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/products/%d", id), patch, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id domain.ProductID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/products/%d", id), nil, nil)
}
