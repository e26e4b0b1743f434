// Package redis implements the Redis-backed catalog cache and the shared
// rate limiter store.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/luxe-store/internal/domain/product"
	"github.com/xenking/luxe-store/internal/domain/review"
)

const productKeyPrefix = "luxe:product:"

var (
	_ product.Repository = (*ProductCache)(nil)
	_ review.Invalidator = (*ProductCache)(nil)
)

// ProductCache is a read-through cache for single product lookups in front of
// another product.Repository. Writes go to the underlying repository first and
// then invalidate the cached entry. Cache failures never fail a request.
type ProductCache struct {
	next   product.Repository
	client redis.UniversalClient
	ttl    time.Duration
	group  singleflight.Group
}

// NewProductCache wraps next with a cache stored in client.
func NewProductCache(next product.Repository, client redis.UniversalClient, ttl time.Duration) *ProductCache {
	return &ProductCache{next: next, client: client, ttl: ttl}
}

func productKey(id string) string { return productKeyPrefix + id }

// GetByID returns the cached product or loads it from the underlying
// repository. Concurrent misses for one id share a single load.
func (c *ProductCache) GetByID(ctx context.Context, id string) (*product.Product, error) {
	data, err := c.client.Get(ctx, productKey(id)).Bytes()
	switch {
	case err == nil:
		var p product.Product
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		zctx.From(ctx).Warn("Dropping undecodable cache entry", zap.String("product_id", id))
	case !errors.Is(err, redis.Nil):
		zctx.From(ctx).Warn("Product cache read failed", zap.String("product_id", id), zap.Error(err))
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		p, err := c.next.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		c.store(ctx, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	cp := *v.(*product.Product)
	return &cp, nil
}

func (c *ProductCache) store(ctx context.Context, p *product.Product) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, productKey(p.ID), data, c.ttl).Err(); err != nil {
		zctx.From(ctx).Warn("Product cache write failed", zap.String("product_id", p.ID), zap.Error(err))
	}
}

// Invalidate drops the cached copy of product id.
func (c *ProductCache) Invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, productKey(id)).Err(); err != nil {
		zctx.From(ctx).Warn("Product cache invalidation failed", zap.String("product_id", id), zap.Error(err))
	}
}

// Find is not cached; catalog queries are too varied to key.
func (c *ProductCache) Find(ctx context.Context, q product.Query) ([]product.Product, int, error) {
	return c.next.Find(ctx, q)
}

// GetByIDs serves hits from the cache and loads the misses in one call.
func (c *ProductCache) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		zctx.From(ctx).Warn("Product cache read failed", zap.Error(err))
		return c.next.GetByIDs(ctx, ids)
	}

	found := make(map[string]product.Product, len(ids))
	var missing []string
	for i, v := range vals {
		s, ok := v.(string)
		if ok {
			var p product.Product
			if err := json.Unmarshal([]byte(s), &p); err == nil {
				found[ids[i]] = p
				continue
			}
		}
		missing = append(missing, ids[i])
	}
	if len(missing) > 0 {
		loaded, err := c.next.GetByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		for i := range loaded {
			found[loaded[i].ID] = loaded[i]
			c.store(ctx, &loaded[i])
		}
	}

	out := make([]product.Product, 0, len(found))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Create stores p in the underlying repository.
func (c *ProductCache) Create(ctx context.Context, p *product.Product) error {
	return c.next.Create(ctx, p)
}

// Update writes p through and drops the cached copy.
func (c *ProductCache) Update(ctx context.Context, p *product.Product) error {
	if err := c.next.Update(ctx, p); err != nil {
		return err
	}
	c.Invalidate(ctx, p.ID)
	return nil
}

// Delete removes the product and drops the cached copy.
func (c *ProductCache) Delete(ctx context.Context, id string) error {
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	c.Invalidate(ctx, id)
	return nil
}

// Ping reports whether the Redis server is reachable.
func Ping(client redis.UniversalClient) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		return nil
	}
}
