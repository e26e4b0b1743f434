package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/xenking/luxe-store/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository.
type OrderRepository struct {
	db *DB
}

// Commit stores o and clears the owner's cart while holding the owner lock,
// so no cart mutation can interleave.
func (r *OrderRepository) Commit(_ context.Context, o *order.Order, cartVersion int64) error {
	unlock := r.db.owners.lock(o.OwnerID)
	defer unlock()

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c := r.db.cartLocked(o.OwnerID)
	if c.Version != cartVersion {
		return order.ErrCartChanged
	}
	if c.IsEmpty() {
		return order.ErrEmptyCart
	}

	stored := *o
	stored.Items = slices.Clone(o.Items)
	r.db.orders[o.ID] = &stored

	cleared := c.Clone()
	cleared.Clear()
	cleared.Version++
	cleared.UpdatedAt = o.CreatedAt
	r.db.carts[o.OwnerID] = cleared
	return nil
}

// GetByID returns an order or order.ErrNotFound.
func (r *OrderRepository) GetByID(_ context.Context, id string) (*order.Order, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := copyOrder(o)
	return &cp, nil
}

// ListByOwner returns the owner's orders, newest first.
func (r *OrderRepository) ListByOwner(_ context.Context, ownerID string) ([]order.Order, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []order.Order
	for _, o := range r.db.orders {
		if o.OwnerID == ownerID {
			out = append(out, copyOrder(o))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// List returns orders matching f, newest first, and the unpaginated count.
func (r *OrderRepository) List(_ context.Context, f order.Filter) ([]order.Order, int, error) {
	r.db.mu.RLock()
	var out []order.Order
	for _, o := range r.db.orders {
		if f.Status == "" || o.Status == f.Status {
			out = append(out, copyOrder(o))
		}
	}
	r.db.mu.RUnlock()

	sortNewestFirst(out)
	total := len(out)
	start := min(f.Offset, total)
	end := total
	if f.Limit > 0 {
		end = start + min(f.Limit, total-start)
	}
	return out[start:end], total, nil
}

// SetStatus moves the order from one status to another.
func (r *OrderRepository) SetStatus(_ context.Context, id string, from, to order.Status, at time.Time) (*order.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.Status != from {
		return nil, order.ErrInvalidTransition
	}
	o.Status = to
	o.UpdatedAt = at
	cp := copyOrder(o)
	return &cp, nil
}

func copyOrder(o *order.Order) order.Order {
	cp := *o
	cp.Items = slices.Clone(o.Items)
	return cp
}

func sortNewestFirst(orders []order.Order) {
	slices.SortFunc(orders, func(a, b order.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.Number, a.Number)
	})
}
