// Package cache holds the Redis-backed pieces of the service: key owner
// lookups, settings, rate limit buckets and per-user locks.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes every key written by this package.
const DefaultNamespace = "zeenbase"

// Cache wraps a Redis client.
type Cache struct {
	client    *redis.Client
	namespace string
	logger    *slog.Logger
}

// Option customizes a Cache.
type Option func(*Cache)

// WithNamespace sets the key prefix. An empty namespace writes bare keys.
func WithNamespace(ns string) Option {
	return func(c *Cache) { c.namespace = ns }
}

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New connects to redisURL and verifies the connection.
func New(ctx context.Context, redisURL string, opts ...Option) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 20
	opt.MinIdleConns = 2
	opt.PoolTimeout = 2 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return NewFromClient(client, opts...), nil
}

// NewFromClient wraps an existing client without pinging it.
func NewFromClient(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{
		client:    client,
		namespace: DefaultNamespace,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client for test cleanup.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// key joins parts under the namespace: "ns:a:b".
func (c *Cache) key(parts ...string) string {
	k := strings.Join(parts, ":")
	if c.namespace == "" {
		return k
	}
	return c.namespace + ":" + k
}
