// Package cache provides a Redis-backed lookaside cache for items.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/item-service/internal/model"
)

// DefaultTTL is the time-to-live for cached items.
const DefaultTTL = 5 * time.Minute

const itemKeyPrefix = "item"

// ErrMiss is returned by Get when the item is not cached.
var ErrMiss = errors.New("cache miss")

// ItemCache stores items as Redis hashes under "item:{id}", or
// "{namespace}:item:{id}" when a namespace is set.
type ItemCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisClient parses url, applies pool settings and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}

// NewItemCache creates an ItemCache on client. A non-positive ttl uses DefaultTTL.
// Caches with different namespaces never see each other's entries; a store whose
// contents do not outlive the process should use a fresh namespace per process.
func NewItemCache(client *redis.Client, ttl time.Duration, namespace string) *ItemCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	prefix := itemKeyPrefix
	if namespace != "" {
		prefix = namespace + ":" + itemKeyPrefix
	}
	return &ItemCache{client: client, ttl: ttl, prefix: prefix}
}

// Get returns the cached item or ErrMiss.
func (c *ItemCache) Get(ctx context.Context, id int64) (*model.Item, error) {
	vals, err := c.client.HGetAll(ctx, c.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrMiss
	}
	return decodeItem(vals)
}

// Set writes the item hash and its TTL in one pipeline.
func (c *ItemCache) Set(ctx context.Context, item model.Item) error {
	k := c.key(item.ID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, k, encodeItem(item))
	pipe.Expire(ctx, k, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Delete removes a cached item.
func (c *ItemCache) Delete(ctx context.Context, id int64) error {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (c *ItemCache) key(id int64) string {
	return fmt.Sprintf("%s:%d", c.prefix, id)
}

func encodeItem(item model.Item) map[string]any {
	return map[string]any{
		"id":          strconv.FormatInt(item.ID, 10),
		"name":        item.Name,
		"description": item.Description,
	}
}

// decodeItem rebuilds an item from its hash fields. A hash without a valid id
// is rejected rather than served as item 0.
func decodeItem(vals map[string]string) (*model.Item, error) {
	id, err := strconv.ParseInt(vals["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cache parse id: %w", err)
	}
	return &model.Item{
		ID:          id,
		Name:        vals["name"],
		Description: vals["description"],
	}, nil
}
