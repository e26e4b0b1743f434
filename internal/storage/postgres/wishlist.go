package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/luxe-store/internal/domain/wishlist"
)

const (
	listWishlistSQL = `SELECT product_id, added_at FROM wishlist_items
		WHERE owner_id = $1 ORDER BY added_at, product_id`
	addWishlistSQL = `INSERT INTO wishlist_items (owner_id, product_id, added_at)
		VALUES ($1, $2, $3) ON CONFLICT (owner_id, product_id) DO NOTHING`
	removeWishlistSQL = `DELETE FROM wishlist_items WHERE owner_id = $1 AND product_id = $2`
)

var _ wishlist.Repository = (*WishlistRepository)(nil)

// WishlistRepository implements wishlist.Repository backed by PostgreSQL.
type WishlistRepository struct {
	pool *pgxpool.Pool
}

// NewWishlistRepository returns a WishlistRepository that uses the given pool.
func NewWishlistRepository(pool *pgxpool.Pool) *WishlistRepository {
	return &WishlistRepository{pool: pool}
}

// List returns the owner's entries, oldest first.
func (r *WishlistRepository) List(ctx context.Context, ownerID string) ([]wishlist.Entry, error) {
	rows, err := r.pool.Query(ctx, listWishlistSQL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing wishlist of %q: %w", ownerID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (wishlist.Entry, error) {
		var e wishlist.Entry
		err := row.Scan(&e.ProductID, &e.AddedAt)
		return e, err
	})
}

// Add stores e unless the product is already saved.
func (r *WishlistRepository) Add(ctx context.Context, ownerID string, e wishlist.Entry) (bool, error) {
	tag, err := r.pool.Exec(ctx, addWishlistSQL, ownerID, e.ProductID, e.AddedAt)
	if err != nil {
		return false, fmt.Errorf("adding %q to wishlist: %w", e.ProductID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Remove deletes the entry for productID if present.
func (r *WishlistRepository) Remove(ctx context.Context, ownerID, productID string) error {
	if _, err := r.pool.Exec(ctx, removeWishlistSQL, ownerID, productID); err != nil {
		return fmt.Errorf("removing %q from wishlist: %w", productID, err)
	}
	return nil
}
