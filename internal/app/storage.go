package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/luxe-store/db"
	"github.com/xenking/luxe-store/internal/domain/cart"
	"github.com/xenking/luxe-store/internal/domain/order"
	"github.com/xenking/luxe-store/internal/domain/product"
	"github.com/xenking/luxe-store/internal/domain/review"
	"github.com/xenking/luxe-store/internal/domain/wishlist"
	"github.com/xenking/luxe-store/internal/storage/memory"
	"github.com/xenking/luxe-store/internal/storage/postgres"
	redisstore "github.com/xenking/luxe-store/internal/storage/redis"
	"github.com/xenking/luxe-store/pkg/health"
)

// repositories is the storage backend selected by configuration.
type repositories struct {
	products  product.Repository
	carts     cart.Repository
	orders    order.Repository
	wishlists wishlist.Repository
	reviews   review.Repository
	redis     redis.UniversalClient
	cache     *redisstore.ProductCache
	closers   []func()
}

func (r *repositories) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// openStorage connects the configured backend and registers its readiness
// checks on hs. Callers must Close the result.
func openStorage(ctx context.Context, lg *zap.Logger, cfg *Config, hs *health.Health) (_ *repositories, rerr error) {
	repos := &repositories{}
	defer func() {
		if rerr != nil {
			repos.Close()
		}
	}()

	switch cfg.Storage.Driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		repos.closers = append(repos.closers, pool.Close)

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		hs.Add(health.Readiness, "postgres", pool.Ping)

		repos.products = postgres.NewProductRepository(pool)
		repos.carts = postgres.NewCartRepository(pool)
		repos.orders = postgres.NewOrderRepository(pool)
		repos.wishlists = postgres.NewWishlistRepository(pool)
		repos.reviews = postgres.NewReviewRepository(pool)
	case DriverMemory:
		mdb := memory.New()
		if cfg.Storage.Seed {
			n, err := seedMemory(ctx, mdb)
			if err != nil {
				return nil, errors.Wrap(err, "seed memory storage")
			}
			lg.Info("Seeded in-memory catalog", zap.Int("products", n))
		}
		repos.products = mdb.Products()
		repos.carts = mdb.Carts()
		repos.orders = mdb.Orders()
		repos.wishlists = mdb.Wishlists()
		repos.reviews = mdb.Reviews()
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		repos.closers = append(repos.closers, func() {
			if err := client.Close(); err != nil {
				lg.Warn("Close redis", zap.Error(err))
			}
		})
		hs.Add(health.Readiness, "redis", redisstore.Ping(client))

		repos.redis = client
		repos.cache = redisstore.NewProductCache(repos.products, client, cfg.Redis.CacheTTL)
		repos.products = repos.cache
		lg.Info("Redis product cache enabled",
			zap.String("addr", cfg.Redis.Addr),
			zap.Duration("ttl", cfg.Redis.CacheTTL),
		)
	}

	return repos, nil
}

func seedMemory(ctx context.Context, mdb *memory.DB) (int, error) {
	items, err := product.DecodeList(db.SeedProducts)
	if err != nil {
		return 0, err
	}
	repo := mdb.Products()
	for i := range items {
		if err := repo.Create(ctx, &items[i]); err != nil {
			return 0, errors.Wrapf(err, "create %s", items[i].ID)
		}
	}
	return len(items), nil
}
