package memory

import (
	"context"
	"slices"

	"github.com/xenking/luxe-store/internal/domain/wishlist"
)

var _ wishlist.Repository = (*WishlistRepository)(nil)

// WishlistRepository implements wishlist.Repository.
type WishlistRepository struct {
	db *DB
}

// List returns the owner's entries in insertion order.
func (r *WishlistRepository) List(_ context.Context, ownerID string) ([]wishlist.Entry, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return slices.Clone(r.db.wishlists[ownerID]), nil
}

// Add appends e unless the product is already saved.
func (r *WishlistRepository) Add(_ context.Context, ownerID string, e wishlist.Entry) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	entries := r.db.wishlists[ownerID]
	if slices.ContainsFunc(entries, func(x wishlist.Entry) bool { return x.ProductID == e.ProductID }) {
		return false, nil
	}
	r.db.wishlists[ownerID] = append(entries, e)
	return true, nil
}

// Remove deletes the entry for productID if present.
func (r *WishlistRepository) Remove(_ context.Context, ownerID, productID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.wishlists[ownerID] = slices.DeleteFunc(r.db.wishlists[ownerID], func(x wishlist.Entry) bool {
		return x.ProductID == productID
	})
	return nil
}
