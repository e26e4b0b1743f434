package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/luxe-store/internal/domain/order"
	"github.com/xenking/luxe-store/internal/domain/pricing"
)

const orderColumns = `id, number, owner_id, items, shipping_address, billing_address, shipping_method,
	payment_token, payment_last4, promo_code, subtotal, discount, shipping, tax, total,
	status, created_at, estimated_delivery, updated_at`

const (
	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	getOrderSQL          = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	listOrdersByOwnerSQL = `SELECT ` + orderColumns + ` FROM orders WHERE owner_id = $1
		ORDER BY created_at DESC, number DESC`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, number DESC
		LIMIT $2 OFFSET $3`
	countOrdersSQL = `SELECT count(*) FROM orders WHERE ($1 = '' OR status = $1)`

	setStatusSQL = `UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + orderColumns
	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Commit inserts o and clears the owner's cart in one transaction. The cart
// row is locked first so concurrent cart mutations wait for the commit.
func (r *OrderRepository) Commit(ctx context.Context, o *order.Order, cartVersion int64) error {
	args, err := orderArgs(o)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		c, err := lockCart(ctx, tx, o.OwnerID)
		if err != nil {
			return err
		}
		if c.Version != cartVersion {
			return order.ErrCartChanged
		}
		if c.IsEmpty() {
			return order.ErrEmptyCart
		}

		if _, err := tx.Exec(ctx, insertOrderSQL, args...); err != nil {
			return fmt.Errorf("creating order %q: %w", o.ID, err)
		}
		if _, err := tx.Exec(ctx, clearCartItemsSQL, o.OwnerID); err != nil {
			return fmt.Errorf("clearing cart items: %w", err)
		}
		if _, err := tx.Exec(ctx, bumpCartSQL, o.OwnerID); err != nil {
			return fmt.Errorf("bumping cart version: %w", err)
		}
		return nil
	})
}

// GetByID returns an order or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByOwner returns the owner's orders, newest first.
func (r *OrderRepository) ListByOwner(ctx context.Context, ownerID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByOwnerSQL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", ownerID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns orders matching f, newest first, and the unpaginated count.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, countOrdersSQL, string(f.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	var limit *int
	if f.Limit > 0 {
		limit = &f.Limit
	}
	rows, err := r.pool.Query(ctx, listOrdersSQL, string(f.Status), limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	return orders, total, nil
}

// SetStatus moves the order from one status to another with a conditional
// update.
func (r *OrderRepository) SetStatus(ctx context.Context, id string, from, to order.Status, at time.Time) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, setStatusSQL, id, string(from), string(to), at)
	if err != nil {
		return nil, fmt.Errorf("updating order %q status: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err == nil {
		return &o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("updating order %q status: %w", id, err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking order %q: %w", id, err)
	}
	if !exists {
		return nil, order.ErrNotFound
	}
	return nil, order.ErrInvalidTransition
}

func orderArgs(o *order.Order) ([]any, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("marshaling order items: %w", err)
	}
	shipping, err := json.Marshal(o.Shipping)
	if err != nil {
		return nil, fmt.Errorf("marshaling shipping address: %w", err)
	}
	billing, err := json.Marshal(o.Billing)
	if err != nil {
		return nil, fmt.Errorf("marshaling billing address: %w", err)
	}
	return []any{
		o.ID, o.Number, o.OwnerID, items, shipping, billing, string(o.Method),
		o.Payment.Token, o.Payment.Last4, o.PromoCode,
		o.Price.Subtotal, o.Price.Discount, o.Price.Shipping, o.Price.Tax, o.Price.Total,
		string(o.Status), o.CreatedAt, o.EstimatedDelivery, o.UpdatedAt,
	}, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                        order.Order
		items, shipping, billing []byte
		method, status           string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.OwnerID, &items, &shipping, &billing, &method,
		&o.Payment.Token, &o.Payment.Last4, &o.PromoCode,
		&o.Price.Subtotal, &o.Price.Discount, &o.Price.Shipping, &o.Price.Tax, &o.Price.Total,
		&status, &o.CreatedAt, &o.EstimatedDelivery, &o.UpdatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}
	o.Method = pricing.ShippingMethod(method)
	o.Status = order.Status(status)

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("decoding items of order %q: %w", o.ID, err)
	}
	if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
		return order.Order{}, fmt.Errorf("decoding shipping address of order %q: %w", o.ID, err)
	}
	if err := json.Unmarshal(billing, &o.Billing); err != nil {
		return order.Order{}, fmt.Errorf("decoding billing address of order %q: %w", o.ID, err)
	}
	return o, nil
}
