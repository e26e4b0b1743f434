package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/luxe-store/internal/domain/cart"
)

const (
	ensureCartSQL = `INSERT INTO carts (owner_id) VALUES ($1) ON CONFLICT (owner_id) DO NOTHING`
	lockCartSQL   = `SELECT version, updated_at FROM carts WHERE owner_id = $1 FOR UPDATE`
	getCartSQL    = `SELECT version, updated_at FROM carts WHERE owner_id = $1`

	listCartItemsSQL = `SELECT product_id, color, size, name, image, quantity, unit_price
		FROM cart_items WHERE owner_id = $1 ORDER BY position`

	clearCartItemsSQL = `DELETE FROM cart_items WHERE owner_id = $1`
	bumpCartSQL       = `UPDATE carts SET version = version + 1, updated_at = now()
		WHERE owner_id = $1 RETURNING version, updated_at`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository. Mutations for one owner are
// serialized by a row lock on the carts table.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the owner's cart, or an empty cart when none is stored.
func (r *CartRepository) Get(ctx context.Context, ownerID string) (*cart.Cart, error) {
	c := &cart.Cart{OwnerID: ownerID}
	err := r.pool.QueryRow(ctx, getCartSQL, ownerID).Scan(&c.Version, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c, nil
		}
		return nil, fmt.Errorf("getting cart of %q: %w", ownerID, err)
	}
	items, err := loadCartItems(ctx, r.pool, ownerID)
	if err != nil {
		return nil, err
	}
	c.Items = items
	return c, nil
}

// Mutate locks the owner's cart row, applies fn and rewrites the items.
func (r *CartRepository) Mutate(ctx context.Context, ownerID string, fn func(*cart.Cart) error) (*cart.Cart, error) {
	var out *cart.Cart
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		c, err := lockCart(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		if err := writeCartItems(ctx, tx, c); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, bumpCartSQL, ownerID).Scan(&c.Version, &c.UpdatedAt); err != nil {
			return fmt.Errorf("bumping cart version: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockCart creates the cart row if needed and locks it for the rest of tx.
func lockCart(ctx context.Context, tx pgx.Tx, ownerID string) (*cart.Cart, error) {
	if _, err := tx.Exec(ctx, ensureCartSQL, ownerID); err != nil {
		return nil, fmt.Errorf("ensuring cart of %q: %w", ownerID, err)
	}
	c := &cart.Cart{OwnerID: ownerID}
	if err := tx.QueryRow(ctx, lockCartSQL, ownerID).Scan(&c.Version, &c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("locking cart of %q: %w", ownerID, err)
	}
	items, err := loadCartItems(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}
	c.Items = items
	return c, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadCartItems(ctx context.Context, q querier, ownerID string) ([]cart.Item, error) {
	rows, err := q.Query(ctx, listCartItemsSQL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var it cart.Item
		err := row.Scan(&it.Key.ProductID, &it.Key.Color, &it.Key.Size,
			&it.Name, &it.Image, &it.Quantity, &it.UnitPrice)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	return items, nil
}

func writeCartItems(ctx context.Context, tx pgx.Tx, c *cart.Cart) error {
	if _, err := tx.Exec(ctx, clearCartItemsSQL, c.OwnerID); err != nil {
		return fmt.Errorf("clearing cart items: %w", err)
	}
	if len(c.Items) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"cart_items"},
		[]string{"owner_id", "product_id", "color", "size", "name", "image", "quantity", "unit_price", "position"},
		pgx.CopyFromSlice(len(c.Items), func(i int) ([]any, error) {
			it := c.Items[i]
			return []any{c.OwnerID, it.Key.ProductID, it.Key.Color, it.Key.Size,
				it.Name, it.Image, it.Quantity, it.UnitPrice, i}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("writing cart items: %w", err)
	}
	return nil
}
