package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go-inventory-tree/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache stores lookup results per cleaned barcode. Failures are logged and
// treated as misses.
type Cache interface {
	Get(ctx context.Context, code string) ([]Product, bool)
	Set(ctx context.Context, code string, products []Product)
}

type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]Product, bool) { return nil, false }
func (NopCache) Set(context.Context, string, []Product)        {}

type redisCache struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisCache(rdb redis.UniversalClient, prefix string, ttl time.Duration) Cache {
	return &redisCache{rdb: rdb, prefix: prefix + "lookup:", ttl: ttl}
}

func (c *redisCache) Get(ctx context.Context, code string) ([]Product, bool) {
	raw, err := c.rdb.Get(ctx, c.prefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.Warn("lookup cache read failed", zap.String("barcode", code), zap.Error(err))
		return nil, false
	}
	var products []Product
	if err := json.Unmarshal(raw, &products); err != nil {
		logger.Warn("lookup cache entry corrupt", zap.String("barcode", code), zap.Error(err))
		return nil, false
	}
	return products, true
}

// Set skips empty results so a catalog outage is not remembered for a day.
func (c *redisCache) Set(ctx context.Context, code string, products []Product) {
	if len(products) == 0 {
		return
	}
	raw, err := json.Marshal(products)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+code, raw, c.ttl).Err(); err != nil {
		logger.Warn("lookup cache write failed", zap.String("barcode", code), zap.Error(err))
	}
}
