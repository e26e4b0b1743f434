package memory

import (
	"context"
	"slices"

	"github.com/xenking/luxe-store/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository.
type ProductRepository struct {
	db *DB
}

// Find filters, sorts and paginates the catalog.
func (r *ProductRepository) Find(_ context.Context, q product.Query) ([]product.Product, int, error) {
	r.db.mu.RLock()
	matched := make([]*product.Product, 0, len(r.db.products))
	for id := range r.db.products {
		p := r.db.products[id]
		if q.Matches(&p) {
			matched = append(matched, &p)
		}
	}
	r.db.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *product.Product) int {
		switch {
		case q.Less(a, b):
			return -1
		case q.Less(b, a):
			return 1
		}
		return 0
	})

	total := len(matched)
	start := min(q.Offset(), total)
	end := start + min(q.Limit, total-start)

	out := make([]product.Product, 0, end-start)
	for _, p := range matched[start:end] {
		out = append(out, clone(*p))
	}
	return out, total, nil
}

// GetByID returns a product or product.ErrNotFound.
func (r *ProductRepository) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := clone(p)
	return &cp, nil
}

// GetByIDs returns the products that exist among ids, in no particular order.
func (r *ProductRepository) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.db.products[id]; ok {
			out = append(out, clone(p))
		}
	}
	return out, nil
}

// Create stores p.
func (r *ProductRepository) Create(_ context.Context, p *product.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.products[p.ID] = clone(*p)
	return nil
}

// Update replaces the stored product with p.ID.
func (r *ProductRepository) Update(_ context.Context, p *product.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.products[p.ID]; !ok {
		return product.ErrNotFound
	}
	r.db.products[p.ID] = clone(*p)
	return nil
}

// Delete removes the product with id and its reviews.
func (r *ProductRepository) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.products[id]; !ok {
		return product.ErrNotFound
	}
	delete(r.db.products, id)
	delete(r.db.reviews, id)
	return nil
}

func clone(p product.Product) product.Product {
	p.Images = slices.Clone(p.Images)
	p.Colors = slices.Clone(p.Colors)
	p.Sizes = slices.Clone(p.Sizes)
	return p
}
