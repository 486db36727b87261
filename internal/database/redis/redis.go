package redis

import (
	"context"
	"fmt"
	"time"

	"agriguard/internal/config"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis client used for automation-cycle locks.
type Client struct {
	client *redis.Client
}

func NewRedisClient(cfg config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

// AcquireCycleLock takes the per-station automation lock for one cadence
// interval. Returns false when another cycle already holds it, so overlapping
// cycles for the same station are rejected rather than run concurrently.
func (c *Client) AcquireCycleLock(ctx context.Context, stationID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("agriguard:cycle-lock:%s", stationID)
	ok, err := c.client.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire cycle lock for %s: %w", stationID, err)
	}
	return ok, nil
}

// ReleaseCycleLock drops the per-station lock at the end of a cycle.
func (c *Client) ReleaseCycleLock(ctx context.Context, stationID string) error {
	key := fmt.Sprintf("agriguard:cycle-lock:%s", stationID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release cycle lock for %s: %w", stationID, err)
	}
	return nil
}

func (c *Client) GetClient() *redis.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}
