// Package redis keeps a shared snapshot of the layer catalog in Redis so
// viewer instances started together hit the catalog endpoint once.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/urban-heat-viewer/internal/domain"
	"github.com/couchcryptid/urban-heat-viewer/internal/observability"
)

// kv is the subset of the Redis client the cache uses.
type kv interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
}

// CatalogCache wraps a CatalogSource with a Redis snapshot.
type CatalogCache struct {
	inner   domain.CatalogSource
	client  kv
	key     string
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient opens a Redis client. It does not dial until first use.
func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
}

// NewCatalogCache creates a cache decorator around a catalog source.
func NewCatalogCache(inner domain.CatalogSource, client kv, key string, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *CatalogCache {
	return &CatalogCache{
		inner:   inner,
		client:  client,
		key:     key,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch returns the cached snapshot when present, otherwise fetches from
// the inner source and stores the result. Redis failures never fail the fetch.
func (c *CatalogCache) Fetch(ctx context.Context) ([]domain.LayerDescriptor, error) {
	if layers, ok := c.lookup(ctx); ok {
		return layers, nil
	}

	layers, err := c.inner.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, layers)
	return layers, nil
}

func (c *CatalogCache) lookup(ctx context.Context) ([]domain.LayerDescriptor, bool) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		c.metrics.CatalogCache.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		c.metrics.CatalogCache.WithLabelValues("error").Inc()
		c.logger.Warn("catalog cache read failed", "key", c.key, "error", err)
		return nil, false
	}

	var layers []domain.LayerDescriptor
	if err := json.Unmarshal(data, &layers); err != nil {
		c.metrics.CatalogCache.WithLabelValues("error").Inc()
		c.logger.Warn("catalog cache entry corrupt", "key", c.key, "error", err)
		return nil, false
	}
	c.metrics.CatalogCache.WithLabelValues("hit").Inc()
	return layers, true
}

func (c *CatalogCache) store(ctx context.Context, layers []domain.LayerDescriptor) {
	data, err := json.Marshal(layers)
	if err != nil {
		c.logger.Warn("catalog cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write failed", "key", c.key, "error", err)
	}
}
