// Package redis wraps go-redis with the short-lived locks used for
// deduplicating webhook deliveries and recurring schedule fires.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	URL       string
	KeyPrefix string
}

// Client represents a Redis client
type Client struct {
	client *goredis.Client
	prefix string
	logger *slog.Logger
}

// NewClient parses the URL and verifies connectivity.
func NewClient(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	opts, err := goredis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("Successfully connected to Redis",
		slog.String("addr", opts.Addr),
		slog.Int("db", opts.DB),
	)

	return &Client{
		client: client,
		prefix: config.KeyPrefix,
		logger: logger,
	}, nil
}

func (c *Client) key(name string) string {
	return prefixed(c.prefix, name)
}

func prefixed(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + ":" + name
}

// Acquire sets the key only if it does not exist yet. It reports whether this
// caller now holds it. The key expires after ttl.
func (c *Client) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if name == "" {
		return false, errors.New("lock name cannot be empty")
	}
	if ttl <= 0 {
		ttl = time.Second
	}

	status, err := c.client.SetArgs(ctx, c.key(name), time.Now().UTC().Format(time.RFC3339), goredis.SetArgs{Mode: "NX", TTL: ttl}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis SET NX: %w", err)
	}
	return status == "OK", nil
}

// AcquireFor is Acquire with an owner stored as the value. A caller presenting
// the same owner gets the lock back, which lets a retried job pass a guard its
// crashed run left behind.
func (c *Client) AcquireFor(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	if name == "" || owner == "" {
		return false, errors.New("lock name and owner cannot be empty")
	}
	if ttl <= 0 {
		ttl = time.Second
	}

	key := c.key(name)
	for range 2 {
		ok, err := c.client.SetNX(ctx, key, owner, ttl).Result()
		if err != nil {
			return false, fmt.Errorf("redis SET NX: %w", err)
		}
		if ok {
			return true, nil
		}

		current, err := c.client.Get(ctx, key).Result()
		if errors.Is(err, goredis.Nil) {
			// expired between SET and GET
			continue
		}
		if err != nil {
			return false, fmt.Errorf("redis GET: %w", err)
		}
		if current != owner {
			return false, nil
		}
		if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
			return false, fmt.Errorf("redis EXPIRE: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// Release drops the key so the next Acquire succeeds.
func (c *Client) Release(ctx context.Context, name string) error {
	if err := c.client.Del(ctx, c.key(name)).Err(); err != nil {
		return fmt.Errorf("redis DEL: %w", err)
	}
	return nil
}

// HealthCheck pings Redis.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	c.logger.Info("Closing Redis connection")
	return c.client.Close()
}
