package memory

import (
	"context"
	"slices"

	"github.com/xenking/luxe-store/internal/domain/product"
	"github.com/xenking/luxe-store/internal/domain/review"
)

var _ review.Repository = (*ReviewRepository)(nil)

// ReviewRepository implements review.Repository.
type ReviewRepository struct {
	db *DB
}

// ListByProduct returns the reviews of productID, newest first.
func (r *ReviewRepository) ListByProduct(_ context.Context, productID string) ([]review.Review, error) {
	r.db.mu.RLock()
	out := slices.Clone(r.db.reviews[productID])
	r.db.mu.RUnlock()

	slices.Reverse(out)
	return out, nil
}

// Create appends rv and updates the product's rating under the same lock.
func (r *ReviewRepository) Create(_ context.Context, rv *review.Review) (review.Summary, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.products[rv.ProductID]
	if !ok {
		return review.Summary{}, product.ErrNotFound
	}
	sum := review.Summary{Rating: p.Rating, Count: p.Reviews}.With(rv.Rating)
	p.Rating, p.Reviews = sum.Rating, sum.Count
	r.db.products[rv.ProductID] = p
	r.db.reviews[rv.ProductID] = append(r.db.reviews[rv.ProductID], *rv)
	return sum, nil
}
