package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductID int64

type ProductImage struct {
	ID        int64     `json:"id"`
	ProductID ProductID `json:"product_id"`
	ImageURL  string    `json:"image_url"`
	IsPrimary bool      `json:"is_primary"`
}

// Product is the denormalized snapshot a cart line or wishlist entry carries.
type Product struct {
	ID             ProductID         `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Price          decimal.Decimal   `json:"price"`
	Stock          int               `json:"stock"`
	Category       string            `json:"category,omitempty"`
	Specifications map[string]string `json:"specifications,omitempty"`
	Images         []ProductImage    `json:"images,omitempty"`
	CreatedAt      time.Time         `json:"created_at,omitzero"`
}

func (p Product) InStock() bool {
	return p.Stock > 0
}

// PrimaryImage returns the primary image URL, falling back to the first image.
func (p Product) PrimaryImage() string {
	for _, img := range p.Images {
		if img.IsPrimary {
			return img.ImageURL
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0].ImageURL
	}
	return ""
}

type ProductFilter struct {
	Page     int
	PerPage  int
	Category string
}

type ProductPage struct {
	Products    []Product `json:"products"`
	Total       int       `json:"total"`
	Pages       int       `json:"pages"`
	CurrentPage int       `json:"current_page"`
}

// ProductInput is a product as an administrator creates it.
type ProductInput struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Price          decimal.Decimal   `json:"price"`
	Stock          int               `json:"stock"`
	Category       string            `json:"category"`
	Specifications map[string]string `json:"specifications"`
	Images         []ProductImage    `json:"images,omitempty"`
}

// ProductUpdate carries only the fields being changed. Non-nil Images
// replace every existing image.
type ProductUpdate struct {
	Name           *string           `json:"name,omitempty"`
	Description    *string           `json:"description,omitempty"`
	Price          *decimal.Decimal  `json:"price,omitempty"`
	Stock          *int              `json:"stock,omitempty"`
	Category       *string           `json:"category,omitempty"`
	Specifications map[string]string `json:"specifications,omitempty"`
	Images         []ProductImage    `json:"images,omitempty"`
}

// Apply copies the set fields onto p.
func (u ProductUpdate) Apply(p *Product) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Specifications != nil {
		p.Specifications = u.Specifications
	}
	if u.Images != nil {
		p.Images = u.Images
	}
}
