package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/luxe-store/internal/domain/product"
	"github.com/xenking/luxe-store/internal/domain/review"
)

const (
	listReviewsSQL = `SELECT id, product_id, user_id, rating, title, comment, created_at
		FROM reviews WHERE product_id = $1 ORDER BY created_at DESC, id DESC`
	insertReviewSQL = `INSERT INTO reviews (id, product_id, user_id, rating, title, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	rateProductSQL = `UPDATE products
		SET rating = (rating * reviews + $2) / (reviews + 1), reviews = reviews + 1
		WHERE id = $1
		RETURNING rating, reviews`
)

var _ review.Repository = (*ReviewRepository)(nil)

// ReviewRepository implements review.Repository backed by PostgreSQL.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository returns a ReviewRepository that uses the given pool.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// ListByProduct returns the reviews of productID, newest first.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string) ([]review.Review, error) {
	rows, err := r.pool.Query(ctx, listReviewsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing reviews of %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (review.Review, error) {
		var rv review.Review
		err := row.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.Rating, &rv.Title, &rv.Comment, &rv.CreatedAt)
		return rv, err
	})
}

// Create updates the product aggregate and inserts rv in one transaction. The
// product row lock serializes concurrent reviews of one product.
func (r *ReviewRepository) Create(ctx context.Context, rv *review.Review) (review.Summary, error) {
	var sum review.Summary
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, rateProductSQL, rv.ProductID, float64(rv.Rating)).Scan(&sum.Rating, &sum.Count)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return product.ErrNotFound
			}
			return fmt.Errorf("rating product %q: %w", rv.ProductID, err)
		}
		if _, err := tx.Exec(ctx, insertReviewSQL,
			rv.ID, rv.ProductID, rv.UserID, rv.Rating, rv.Title, rv.Comment, rv.CreatedAt,
		); err != nil {
			return fmt.Errorf("creating review %q: %w", rv.ID, err)
		}
		return nil
	})
	if err != nil {
		return review.Summary{}, err
	}
	return sum, nil
}
