package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	models "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
	"github.com/arnaud-morvan/v6-api/internal/observability"

	"github.com/go-redis/redis/v8"
)

const documentKeyPrefix = "document:"

// DocumentCache stores hydrated documents in Redis.
type DocumentCache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewRedisClient parses url, connects and pings.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewDocumentCache wraps a connected client.
func NewDocumentCache(client *redis.Client, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *DocumentCache {
	return &DocumentCache{client: client, ttl: ttl, metrics: metrics, logger: logger}
}

func documentKey(id int64) string {
	return fmt.Sprintf("%s%d", documentKeyPrefix, id)
}

// Get returns the cached document, or (nil, nil) on a miss.
func (c *DocumentCache) Get(ctx context.Context, id int64) (*models.Document, error) {
	key := documentKey(id)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.metrics.RecordCacheLookup("documents", false)
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		// corrupt entry, drop it
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	c.metrics.RecordCacheLookup("documents", true)
	return &doc, nil
}

// Set stores a document under its id.
func (c *DocumentCache) Set(ctx context.Context, doc *models.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	return c.client.Set(ctx, documentKey(doc.ID), data, c.ttl).Err()
}

// Invalidate removes the given documents.
func (c *DocumentCache) Invalidate(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = documentKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	c.logger.Debug("documents invalidated", "ids", ids)
	return nil
}
