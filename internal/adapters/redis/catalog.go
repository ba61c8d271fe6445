// Package redis caches catalog snapshots in Redis in front of a slower
// source, typically the database. Graph saves snapshot the catalogs on every
// request, so this read path is hot.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/arcnem/agentgraph/pkg/graph"
	"github.com/arcnem/agentgraph/pkg/ports"
)

// CatalogCache implements ports.CatalogSource with cache-aside reads.
type CatalogCache struct {
	client *backend.Client
	source ports.CatalogSource
	prefix string
	ttl    time.Duration
}

type Option func(*CatalogCache)

// WithTTL sets the expiration for cached snapshots.
func WithTTL(ttl time.Duration) Option {
	return func(c *CatalogCache) {
		c.ttl = ttl
	}
}

// WithPrefix sets the cache key prefix.
func WithPrefix(prefix string) Option {
	return func(c *CatalogCache) {
		c.prefix = prefix
	}
}

// New creates a cache in front of source with its own client.
func New(address, password string, db int, source ports.CatalogSource, opts ...Option) *CatalogCache {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, source, opts...)
}

// NewFromClient creates a cache in front of source on an existing client.
func NewFromClient(client *backend.Client, source ports.CatalogSource, opts ...Option) *CatalogCache {
	cache := &CatalogCache{
		client: client,
		source: source,
		prefix: "agentgraph:catalog:",
		ttl:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

var _ ports.CatalogSource = (*CatalogCache)(nil)

func (c *CatalogCache) modelsKey() string { return c.prefix + "models" }
func (c *CatalogCache) toolsKey() string  { return c.prefix + "tools" }

// Models returns the cached model registry, filling the cache from the
// source on a miss.
func (c *CatalogCache) Models(ctx context.Context) ([]graph.Model, error) {
	var models []graph.Model
	hit, err := c.load(ctx, c.modelsKey(), &models)
	if err != nil {
		return nil, err
	}
	if hit {
		return models, nil
	}

	models, err = c.source.Models(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.store(ctx, c.modelsKey(), models); err != nil {
		return nil, err
	}
	return models, nil
}

// Tools returns the cached tool registry, filling the cache from the source
// on a miss.
func (c *CatalogCache) Tools(ctx context.Context) ([]graph.Tool, error) {
	var tools []graph.Tool
	hit, err := c.load(ctx, c.toolsKey(), &tools)
	if err != nil {
		return nil, err
	}
	if hit {
		return tools, nil
	}

	tools, err = c.source.Tools(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.store(ctx, c.toolsKey(), tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// Invalidate drops both snapshots. Called when the registries change so the
// next read refetches.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.modelsKey(), c.toolsKey()).Err()
}

func (c *CatalogCache) load(ctx context.Context, key string, out any) (bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == backend.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading catalog cache: %w", err)
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		// A corrupt entry behaves like a miss.
		return false, nil
	}
	return true, nil
}

func (c *CatalogCache) store(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling catalog snapshot: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing catalog cache: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (c *CatalogCache) Close() error {
	return c.client.Close()
}
