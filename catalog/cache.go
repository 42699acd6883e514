package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront-service/models"

	"github.com/redis/go-redis/v9"
)

const (
	productListCachePrefix = "storefront:products:v:"
	cacheVersionKey        = "storefront:products:version"
)

// ProductCache stores the product list between content store queries.
type ProductCache interface {
	// GetProducts returns the cached list and whether it was present.
	GetProducts(ctx context.Context) ([]models.Product, bool, error)
	SetProducts(ctx context.Context, products []models.Product) error
	// Invalidate makes every previously cached list unreachable.
	Invalidate(ctx context.Context) error
}

// RedisCache is a ProductCache with versioned keys; invalidation bumps the
// version instead of deleting keys, and stale entries age out via TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a RedisCache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) GetProducts(ctx context.Context) ([]models.Product, bool, error) {
	version, err := c.version(ctx)
	if err != nil {
		return nil, false, err
	}

	raw, err := c.client.Get(ctx, listKey(version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read product cache: %w", err)
	}

	var products []models.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, false, fmt.Errorf("decode product cache: %w", err)
	}
	return products, true, nil
}

func (c *RedisCache) SetProducts(ctx context.Context, products []models.Product) error {
	version, err := c.version(ctx)
	if err != nil {
		return err
	}
	b, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("encode product cache: %w", err)
	}
	if err := c.client.Set(ctx, listKey(version), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("write product cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, cacheVersionKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate product cache: %w", err)
	}
	return nil
}

// version returns the current cache version, initialising it to 1.
func (c *RedisCache) version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == nil && v > 0 {
		return v, nil
	}
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, fmt.Errorf("init product cache version: %w", err)
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err == nil {
		err = fmt.Errorf("invalid product cache version %d", v)
	}
	return 0, fmt.Errorf("read product cache version: %w", err)
}

func listKey(version int64) string {
	return fmt.Sprintf("%s%d", productListCachePrefix, version)
}
