//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/luxe-store/internal/domain/cart"
	"github.com/xenking/luxe-store/internal/domain/order"
	"github.com/xenking/luxe-store/internal/domain/pricing"
	"github.com/xenking/luxe-store/internal/domain/product"
	"github.com/xenking/luxe-store/internal/domain/review"
	"github.com/xenking/luxe-store/internal/domain/wishlist"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "luxe",
				"POSTGRES_PASSWORD": "luxe",
				"POSTGRES_DB":       "luxe",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := ctr.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://luxe:luxe@%s:%s/luxe?sslmode=disable", host, port.Port())
	testPool, err = NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	return m.Run()
}

// --- Helpers ---

func seedProduct(t *testing.T, id, name, category string, price string) product.Product {
	t.Helper()

	p := product.Product{
		ID:          id,
		Name:        name,
		Description: name + " description",
		Price:       decimal.RequireFromString(price),
		Category:    category,
		Images:      []string{"/img/" + id + ".jpg"},
		Colors:      []product.Color{{Name: "Black", Value: "#000000"}},
		Sizes:       []product.Size{{Name: "M", InStock: true}},
		Rating:      4.5,
		Reviews:     10,
		Flags:       product.Flags{InStock: true},
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, NewProductRepository(testPool).Upsert(context.Background(), &p))
	return p
}

// --- Tests ---

func TestProductRepository_RoundTripAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testPool)

	seedProduct(t, "it-p1", "Velvet Blazer", "Women", "420.00")
	seedProduct(t, "it-p2", "Oxford Shirt", "Men", "95.50")
	seedProduct(t, "it-p3", "Velvet Loafer", "Shoes", "310.00")

	got, err := repo.GetByID(ctx, "it-p1")
	require.NoError(t, err)
	assert.Equal(t, "Velvet Blazer", got.Name)
	assert.True(t, decimal.RequireFromString("420").Equal(got.Price))
	assert.Equal(t, []product.Color{{Name: "Black", Value: "#000000"}}, got.Colors)

	items, total, err := repo.Find(ctx, product.Filters{Search: "velvet", SortBy: "price"}.Normalize())
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, "it-p3", items[0].ID)
	assert.Equal(t, "it-p1", items[1].ID)

	_, err = repo.GetByID(ctx, "it-missing")
	require.ErrorIs(t, err, product.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "it-p2"))
	require.ErrorIs(t, repo.Delete(ctx, "it-p2"), product.ErrNotFound)
}

func TestCartRepository_MutateSerializes(t *testing.T) {
	ctx := context.Background()
	repo := NewCartRepository(testPool)
	p := seedProduct(t, "it-cart", "Silk Scarf", "Accessories", "120.00")
	key := cart.VariantKey{ProductID: p.ID, Color: "Black", Size: "M"}

	const workers = 16
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Mutate(ctx, "it-owner-cart", func(c *cart.Cart) error {
				c.Add(cart.Item{Key: key, Name: p.Name, Quantity: 1, UnitPrice: p.Price})
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := repo.Get(ctx, "it-owner-cart")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, workers, c.Items[0].Quantity)
	assert.EqualValues(t, workers, c.Version)
}

func TestOrderRepository_CommitClearsCart(t *testing.T) {
	ctx := context.Background()
	carts := NewCartRepository(testPool)
	orders := NewOrderRepository(testPool)
	p := seedProduct(t, "it-order", "Leather Tote", "Bags", "250.00")
	owner := "it-owner-order"

	c, err := carts.Mutate(ctx, owner, func(c *cart.Cart) error {
		c.Add(cart.Item{Key: cart.VariantKey{ProductID: p.ID}, Name: p.Name, Quantity: 2, UnitPrice: p.Price})
		return nil
	})
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	items := order.ItemsFromCart(c.Items)
	o := &order.Order{
		ID:                "it-order-1",
		Number:            "LUXE-1",
		OwnerID:           owner,
		Items:             items,
		Shipping:          order.Address{FirstName: "Ada", Email: "ada@example.com"},
		Billing:           order.Address{FirstName: "Ada", Email: "ada@example.com"},
		Method:            pricing.Standard,
		Payment:           order.PaymentRef{Token: "tok_1", Last4: "4242"},
		Price:             pricing.DefaultCalculator().Compute(order.PricingLines(items), decimal.Zero, pricing.Standard),
		Status:            order.StatusProcessing,
		CreatedAt:         now,
		EstimatedDelivery: now.AddDate(0, 0, 7),
		UpdatedAt:         now,
	}

	require.ErrorIs(t, orders.Commit(ctx, o, c.Version-1), order.ErrCartChanged)
	require.NoError(t, orders.Commit(ctx, o, c.Version))

	after, err := carts.Get(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, after.Items)
	assert.Greater(t, after.Version, c.Version)

	o.ID, o.Number = "it-order-2", "LUXE-2"
	require.ErrorIs(t, orders.Commit(ctx, o, after.Version), order.ErrEmptyCart)

	got, err := orders.GetByID(ctx, "it-order-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.True(t, p.Price.Equal(got.Items[0].UnitPrice))
	assert.True(t, o.Price.Total.Equal(got.Price.Total))

	list, err := orders.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)

	shipped, err := orders.SetStatus(ctx, "it-order-1", order.StatusProcessing, order.StatusShipped, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, shipped.Status)

	_, err = orders.SetStatus(ctx, "it-order-1", order.StatusProcessing, order.StatusCancelled, now)
	require.ErrorIs(t, err, order.ErrInvalidTransition)
	_, err = orders.SetStatus(ctx, "it-order-missing", order.StatusProcessing, order.StatusShipped, now)
	require.ErrorIs(t, err, order.ErrNotFound)

	all, total, err := orders.List(ctx, order.Filter{Status: order.StatusShipped})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, all, 1)
}

func TestWishlistRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewWishlistRepository(testPool)
	owner := "it-owner-wish"
	now := time.Now().UTC()

	added, err := repo.Add(ctx, owner, wishlist.Entry{ProductID: "p1", AddedAt: now})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.Add(ctx, owner, wishlist.Entry{ProductID: "p1", AddedAt: now.Add(time.Second)})
	require.NoError(t, err)
	assert.False(t, added)

	_, err = repo.Add(ctx, owner, wishlist.Entry{ProductID: "p2", AddedAt: now.Add(time.Minute)})
	require.NoError(t, err)

	entries, err := repo.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "p1", entries[0].ProductID)

	require.NoError(t, repo.Remove(ctx, owner, "p1"))
	require.NoError(t, repo.Remove(ctx, owner, "p1"))
	entries, err = repo.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestReviewRepository(t *testing.T) {
	ctx := context.Background()
	p := seedProduct(t, "it-review-1", "Reviewed Bag", "Bags", "300.00")
	repo := NewReviewRepository(testPool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	sum, err := repo.Create(ctx, &review.Review{
		ID: "r1", ProductID: p.ID, UserID: "u1", Rating: 1, Title: "Scuffed", CreatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, 11, sum.Count)
	assert.InDelta(t, (4.5*10+1)/11, sum.Rating, 1e-9)

	_, err = repo.Create(ctx, &review.Review{ID: "r2", ProductID: p.ID, UserID: "u2", Rating: 5, CreatedAt: now.Add(time.Minute)})
	require.NoError(t, err)

	got, err := NewProductRepository(testPool).GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Reviews)

	list, err := repo.ListByProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r2", list[0].ID, "newest first")
	assert.Equal(t, "Scuffed", list[1].Title)

	_, err = repo.Create(ctx, &review.Review{ID: "r3", ProductID: "it-missing", UserID: "u1", Rating: 3, CreatedAt: now})
	require.ErrorIs(t, err, product.ErrNotFound)
}
