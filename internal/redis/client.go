// Package redis confines go-redis to a single package. Stores receive the
// aliases declared here instead of importing the driver.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// UniversalClient is the command and pub/sub surface of go-redis. The
// shared token store needs both to publish and observe change notifications.
type UniversalClient = redis.UniversalClient

// Pipeliner is a type alias for redis.Pipeliner.
type Pipeliner = redis.Pipeliner

// Config holds the parameters needed to connect to a Redis instance.
type Config struct {
	Addr         string
	Password     string
	DB           int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Client wraps a go-redis client. The RDB field satisfies the
// UniversalClient interface and is the handle stores use.
type Client struct {
	RDB *redis.Client
}

// NewClient creates a new Redis client configured from cfg.
func NewClient(cfg Config) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.ReadTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	return &Client{RDB: rdb}
}

// Ping verifies the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.RDB.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	return c.RDB.Close()
}
