package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces every key so the redis database can be shared.
const keyPrefix = "taskmanager:"

// Client is a fail-safe redis cache: connectivity errors are logged and treated as misses.
// A nil *Client is valid and behaves like an always-empty cache.
type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// New creates a new Redis client. The connection is established lazily.
func New(addr, password string, db int) *Client {
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     password,
			DB:           db,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		}),
		logger: slog.Default().With("component", "cache"),
	}
}

func (c *Client) disabled() bool {
	return c == nil || c.rdb == nil
}

// Ping reports whether redis is reachable. Callers use it for startup logging only.
func (c *Client) Ping(ctx context.Context) error {
	if c.disabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if c.disabled() {
		return nil
	}
	return c.rdb.Close()
}

// Get returns the stored bytes, or nil on a miss or when redis is unavailable.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c.disabled() {
		return nil, nil
	}
	res, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	switch {
	case stderrors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		c.logger.DebugContext(ctx, "cache get failed", "key", key, "error", err)
		return nil, nil
	}
	return res, nil
}

// Set stores value with TTL. Redis failures are logged, never returned.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.disabled() {
		return nil
	}
	if err := c.rdb.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache set failed", "key", key, "error", err)
	}
	return nil
}

// Delete removes a key. Redis failures are logged, never returned.
func (c *Client) Delete(ctx context.Context, key string) error {
	if c.disabled() {
		return nil
	}
	if err := c.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache delete failed", "key", key, "error", err)
	}
	return nil
}

// Write stores value with TTL and returns the redis error, for callers whose
// correctness depends on the write landing. A nil client still accepts writes.
func (c *Client) Write(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.disabled() {
		return nil
	}
	if err := c.rdb.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache write %s: %w", key, err)
	}
	return nil
}

// Remove deletes a key and returns the redis error.
func (c *Client) Remove(ctx context.Context, key string) error {
	if c.disabled() {
		return nil
	}
	if err := c.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("cache remove %s: %w", key, err)
	}
	return nil
}

// GetJSON decodes the cached value into dst. It reports false on a miss or a decode failure.
func (c *Client) GetJSON(ctx context.Context, key string, dst any) bool {
	data, _ := c.Get(ctx, key)
	if data == nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

// SetJSON encodes v and stores it with TTL. Encoding failures are skipped like redis errors.
func (c *Client) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.Set(ctx, key, payload, ttl)
}
