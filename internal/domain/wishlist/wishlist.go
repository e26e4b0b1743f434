// Package wishlist keeps a per-owner list of saved products.
package wishlist

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/luxe-store/internal/domain/apperr"
	"github.com/xenking/luxe-store/internal/domain/product"
)

// Entry is a saved product.
type Entry struct {
	ProductID string
	AddedAt   time.Time
}

// Repository persists wishlists. Add is idempotent per product and reports
// whether a new entry was stored.
type Repository interface {
	List(ctx context.Context, ownerID string) ([]Entry, error)
	Add(ctx context.Context, ownerID string, e Entry) (bool, error)
	Remove(ctx context.Context, ownerID, productID string) error
}

// ProductReader loads catalog entries for display.
type ProductReader interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

// Service is the wishlist service.
type Service struct {
	repo     Repository
	products ProductReader
	now      func() time.Time
}

// NewService creates a wishlist Service.
func NewService(repo Repository, products ProductReader) *Service {
	return &Service{repo: repo, products: products, now: time.Now}
}

// List returns the saved products in the order they were added. Products
// removed from the catalog are skipped.
func (s *Service) List(ctx context.Context, ownerID string) ([]product.Product, error) {
	entries, err := s.repo.List(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "list wishlist")
	}
	if len(entries) == 0 {
		return []product.Product{}, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ProductID
	}
	found, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load wishlist products")
	}
	byID := make(map[string]product.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	out := make([]product.Product, 0, len(entries))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Add saves productID. Saving an already saved product is a no-op.
func (s *Service) Add(ctx context.Context, ownerID, productID string) ([]product.Product, error) {
	if productID == "" {
		return nil, apperr.Validation("invalid wishlist item", map[string]string{
			"productId": "Product is required",
		})
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	if _, err := s.repo.Add(ctx, ownerID, Entry{ProductID: productID, AddedAt: s.now().UTC()}); err != nil {
		return nil, errors.Wrap(err, "add to wishlist")
	}
	return s.List(ctx, ownerID)
}

// Remove deletes productID. Removing an absent product is a no-op.
func (s *Service) Remove(ctx context.Context, ownerID, productID string) ([]product.Product, error) {
	if err := s.repo.Remove(ctx, ownerID, productID); err != nil {
		return nil, errors.Wrap(err, "remove from wishlist")
	}
	return s.List(ctx, ownerID)
}
