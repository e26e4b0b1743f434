package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/luxe-store/internal/domain/product"
)

const productColumns = `id, name, description, price, original_price, category, subcategory,
	images, colors, sizes, rating, reviews, is_new, is_sale, in_stock, created_at`

const (
	getProductByIDSQL   = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	insertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	upsertProductSQL = insertProductSQL + `
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description, price = EXCLUDED.price,
			original_price = EXCLUDED.original_price, category = EXCLUDED.category,
			subcategory = EXCLUDED.subcategory, images = EXCLUDED.images, colors = EXCLUDED.colors,
			sizes = EXCLUDED.sizes, rating = EXCLUDED.rating, reviews = EXCLUDED.reviews,
			is_new = EXCLUDED.is_new, is_sale = EXCLUDED.is_sale, in_stock = EXCLUDED.in_stock`

	updateProductSQL = `UPDATE products SET
		name = $2, description = $3, price = $4, original_price = $5, category = $6, subcategory = $7,
		images = $8, colors = $9, sizes = $10, rating = $11, reviews = $12,
		is_new = $13, is_sale = $14, in_stock = $15
		WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var sortColumns = map[product.SortField]string{
	product.SortByName:      "name",
	product.SortByPrice:     "price",
	product.SortByRating:    "rating",
	product.SortByCreatedAt: "created_at",
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// whereClause renders the filters of q as a SQL condition with positional
// arguments.
func whereClause(q product.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if q.Category != "" {
		conds = append(conds, "category = "+arg(q.Category))
	}
	if q.Subcategory != "" {
		conds = append(conds, "subcategory = "+arg(q.Subcategory))
	}
	if q.Search != "" {
		p := arg(strings.ToLower(q.Search))
		conds = append(conds, fmt.Sprintf(
			"(strpos(lower(name), %[1]s) > 0 OR strpos(lower(description), %[1]s) > 0 OR strpos(lower(category), %[1]s) > 0)", p))
	}
	if q.MinPrice != nil {
		conds = append(conds, "price >= "+arg(*q.MinPrice))
	}
	if q.MaxPrice != nil {
		conds = append(conds, "price <= "+arg(*q.MaxPrice))
	}
	if q.IsNew {
		conds = append(conds, "is_new")
	}
	if q.IsSale {
		conds = append(conds, "is_sale")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Find returns the requested page of matching products and the total match count.
func (r *ProductRepository) Find(ctx context.Context, q product.Query) ([]product.Product, int, error) {
	where, args := whereClause(q)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM products"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	stmt := fmt.Sprintf("SELECT %s FROM products%s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d",
		productColumns, where, sortColumns[q.SortBy], dir, q.Limit, q.Offset())

	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	return items, total, nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts p.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	args, err := productArgs(p)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, insertProductSQL, args...); err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Upsert inserts p or replaces the stored product with the same id.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	args, err := productArgs(p)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, upsertProductSQL, args...); err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// Update replaces the stored product with p.ID.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	args, err := productArgs(p)
	if err != nil {
		return err
	}
	// created_at is immutable.
	tag, err := r.pool.Exec(ctx, updateProductSQL, args[:15]...)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes the product with id.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func productArgs(p *product.Product) ([]any, error) {
	images, err := json.Marshal(nonNil(p.Images))
	if err != nil {
		return nil, fmt.Errorf("marshaling product images: %w", err)
	}
	colors, err := json.Marshal(nonNil(p.Colors))
	if err != nil {
		return nil, fmt.Errorf("marshaling product colors: %w", err)
	}
	sizes, err := json.Marshal(nonNil(p.Sizes))
	if err != nil {
		return nil, fmt.Errorf("marshaling product sizes: %w", err)
	}
	return []any{
		p.ID, p.Name, p.Description, p.Price, p.OriginalPrice, p.Category, p.Subcategory,
		images, colors, sizes, p.Rating, p.Reviews,
		p.Flags.IsNew, p.Flags.IsSale, p.Flags.InStock, p.CreatedAt,
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p                     product.Product
		images, colors, sizes []byte
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.OriginalPrice, &p.Category, &p.Subcategory,
		&images, &colors, &sizes, &p.Rating, &p.Reviews,
		&p.Flags.IsNew, &p.Flags.IsSale, &p.Flags.InStock, &p.CreatedAt,
	)
	if err != nil {
		return product.Product{}, err
	}
	if err := json.Unmarshal(images, &p.Images); err != nil {
		return product.Product{}, fmt.Errorf("decoding images of %q: %w", p.ID, err)
	}
	if err := json.Unmarshal(colors, &p.Colors); err != nil {
		return product.Product{}, fmt.Errorf("decoding colors of %q: %w", p.ID, err)
	}
	if err := json.Unmarshal(sizes, &p.Sizes); err != nil {
		return product.Product{}, fmt.Errorf("decoding sizes of %q: %w", p.ID, err)
	}
	return p, nil
}
