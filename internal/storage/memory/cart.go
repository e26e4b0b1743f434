package memory

import (
	"context"
	"time"

	"github.com/xenking/luxe-store/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository with a per-owner lock.
type CartRepository struct {
	db *DB
}

// Get returns a copy of the owner's cart, or an empty cart.
func (r *CartRepository) Get(_ context.Context, ownerID string) (*cart.Cart, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.cartLocked(ownerID).Clone(), nil
}

// Mutate applies fn to the owner's cart. Calls for one owner are serialized;
// the cart is stored only when fn succeeds.
func (r *CartRepository) Mutate(ctx context.Context, ownerID string, fn func(*cart.Cart) error) (*cart.Cart, error) {
	unlock := r.db.owners.lock(ownerID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.db.mu.RLock()
	next := r.db.cartLocked(ownerID).Clone()
	r.db.mu.RUnlock()

	if err := fn(next); err != nil {
		return nil, err
	}
	next.Version++
	next.UpdatedAt = time.Now().UTC()

	r.db.mu.Lock()
	r.db.carts[ownerID] = next
	r.db.mu.Unlock()

	return next.Clone(), nil
}

func (db *DB) cartLocked(ownerID string) *cart.Cart {
	if c, ok := db.carts[ownerID]; ok {
		return c
	}
	return &cart.Cart{OwnerID: ownerID}
}
