// Package redis connects to the optional Redis instance that backs the
// activation-code store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nerrad567/area-core/internal/infrastructure/config"
)

const connectTimeout = 5 * time.Second

// ErrDisabled is returned by Connect when Redis is switched off in config.
var ErrDisabled = errors.New("redis is disabled")

// Client wraps a go-redis client that answered PING at connect time.
type Client struct {
	client *goredis.Client
}

// Connect dials Redis and verifies the connection with PING.
func Connect(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	c := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		c.Close() //nolint:errcheck // best effort on error path
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &Client{client: c}, nil
}

// Redis returns the underlying client for stores that need the full API.
func (c *Client) Redis() *goredis.Client {
	return c.client
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.client.Close()
}
