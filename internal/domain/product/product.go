package product

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/luxe-store/internal/domain/apperr"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = apperr.NotFound("product not found")
	// ErrOutOfStock is returned when a product or one of its sizes is not in stock.
	ErrOutOfStock = apperr.Conflict("product variant is out of stock")
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID            string
	Name          string
	Description   string
	Price         decimal.Decimal
	OriginalPrice decimal.NullDecimal
	Category      string
	Subcategory   string
	Images        []string
	Colors        []Color
	Sizes         []Size
	Rating        float64
	Reviews       int
	Flags         Flags
	CreatedAt     time.Time
}

// Color is a purchasable color option with its swatch value and image.
type Color struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Image string `json:"image,omitempty"`
}

// Size is a purchasable size option with its own stock flag.
type Size struct {
	Name    string `json:"name"`
	InStock bool   `json:"inStock"`
}

// Flags holds the merchandising booleans of a product.
type Flags struct {
	IsNew   bool
	IsSale  bool
	InStock bool
}

// Validate checks the fields an admin must provide on create and update.
func (p *Product) Validate() error {
	f := apperr.FieldErrors{}
	f.Require("name", p.Name, "Product name is required")
	f.Require("category", p.Category, "Category is required")
	if p.Price.IsNegative() {
		f["price"] = "Price must be a positive number"
	}
	if len(p.Images) == 0 {
		f["images"] = "At least one image is required"
	}
	return f.Err("invalid product")
}

// ResolveVariant verifies that color and size name a purchasable variant of p
// and returns their canonical spelling. Products without color or size
// options accept an empty name for that axis.
func (p *Product) ResolveVariant(color, size string) (string, string, error) {
	if !p.Flags.InStock {
		return "", "", ErrOutOfStock
	}

	f := apperr.FieldErrors{}
	c, ok := p.color(color)
	if !ok {
		f["color"] = "Unknown color " + color
	}
	sz, ok := p.size(size)
	if !ok {
		f["size"] = "Unknown size " + size
	}
	if err := f.Err("invalid variant"); err != nil {
		return "", "", err
	}

	sizeName := ""
	if sz != nil {
		if !sz.InStock {
			return "", "", ErrOutOfStock
		}
		sizeName = sz.Name
	}
	return c, sizeName, nil
}

func (p *Product) color(name string) (string, bool) {
	if len(p.Colors) == 0 {
		return "", name == ""
	}
	for _, c := range p.Colors {
		if strings.EqualFold(c.Name, name) {
			return c.Name, true
		}
	}
	return "", false
}

func (p *Product) size(name string) (*Size, bool) {
	if len(p.Sizes) == 0 {
		return nil, name == ""
	}
	for i := range p.Sizes {
		if strings.EqualFold(p.Sizes[i].Name, name) {
			return &p.Sizes[i], true
		}
	}
	return nil, false
}

// Category is an entry of the fixed storefront category table.
type Category struct {
	ID          int
	Name        string
	Slug        string
	Description string
}

var categories = []Category{
	{ID: 1, Name: "Women", Slug: "women", Description: "Elegant fashion for women"},
	{ID: 2, Name: "Men", Slug: "men", Description: "Sophisticated menswear"},
	{ID: 3, Name: "Accessories", Slug: "accessories", Description: "Premium accessories"},
	{ID: 4, Name: "Shoes", Slug: "shoes", Description: "Luxury footwear"},
	{ID: 5, Name: "Bags", Slug: "bags", Description: "Designer handbags"},
	{ID: 6, Name: "Jewelry", Slug: "jewelry", Description: "Fine jewelry collection"},
}

// Categories returns a copy of the category table.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	// Find returns the page of products selected by q and the total number of
	// matching products before pagination.
	Find(ctx context.Context, q Query) ([]Product, int, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}
