package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shortage-service/internal/models"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func inventoryKey(sku string) string {
	return fmt.Sprintf("inventory:%s", sku)
}

// GetSkuInventory returns a cached inventory lookup for a SKU.
// Returns (nil, nil) on a cache miss.
func (c *Client) GetSkuInventory(ctx context.Context, sku string) (*models.SkuInventory, error) {
	data, err := c.rdb.Get(ctx, inventoryKey(sku)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("inventory cache get failed: %w", err)
	}

	var inv models.SkuInventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("inventory cache decode failed: %w", err)
	}
	return &inv, nil
}

// SetSkuInventory caches an inventory lookup with a TTL.
func (c *Client) SetSkuInventory(ctx context.Context, inv *models.SkuInventory, ttl time.Duration) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("inventory cache encode failed: %w", err)
	}
	return c.rdb.Set(ctx, inventoryKey(inv.SKU), data, ttl).Err()
}

// AcquireRefreshLock takes the per-source refresh lock. Reconciliation
// of one source must run serially; a held lock means another refresh is
// in flight and the caller skips this cycle.
func (c *Client) AcquireRefreshLock(ctx context.Context, source models.Source, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:refresh:%s", source), "1", ttl).Result()
}

// ReleaseRefreshLock releases the per-source refresh lock.
func (c *Client) ReleaseRefreshLock(ctx context.Context, source models.Source) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:refresh:%s", source)).Err()
}
