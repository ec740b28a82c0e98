package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/reserve_stock.lua
var reserveStockScript string

//go:embed scripts/release_stock.lua
var releaseStockScript string

//go:embed scripts/commit_stock.lua
var commitStockScript string

// Client mirrors inventory counters per (warehouse, product) key and
// serializes van assignment with SetNX locks. The Lua scripts make
// check-and-reserve a single atomic step on the Redis side.
type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
	commitScript  *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
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

	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveStockScript),
		releaseScript: redis.NewScript(releaseStockScript),
		commitScript:  redis.NewScript(commitStockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func inventoryKey(warehouseID, productID string) string {
	return fmt.Sprintf("inventory:%s:%s", warehouseID, productID)
}

// ReserveStock atomically reserves stock for one (warehouse, product) pair.
// ok reports whether the reservation fit; mirrored is false when the pair
// is not present in Redis and the caller must fall back to the database.
func (c *Client) ReserveStock(ctx context.Context, warehouseID, productID string, quantity int) (ok, mirrored bool, err error) {
	result, err := c.reserveScript.Run(ctx, c.rdb,
		[]string{inventoryKey(warehouseID, productID)}, quantity).Result()
	if err != nil {
		return false, false, fmt.Errorf("reserve stock script failed: %w", err)
	}

	code, isInt := result.(int64)
	if !isInt {
		return false, false, fmt.Errorf("unexpected script result type %T", result)
	}

	switch code {
	case 1:
		return true, true, nil
	case 0:
		return false, true, nil
	default:
		return false, false, nil
	}
}

// ReleaseStock atomically releases reserved stock (compensation)
func (c *Client) ReleaseStock(ctx context.Context, warehouseID, productID string, quantity int) error {
	_, err := c.releaseScript.Run(ctx, c.rdb,
		[]string{inventoryKey(warehouseID, productID)}, quantity).Result()
	if err != nil {
		return fmt.Errorf("release stock script failed: %w", err)
	}
	return nil
}

// CommitStock atomically commits reserved stock (final deduction)
func (c *Client) CommitStock(ctx context.Context, warehouseID, productID string, quantity int) error {
	_, err := c.commitScript.Run(ctx, c.rdb,
		[]string{inventoryKey(warehouseID, productID)}, quantity).Result()
	if err != nil {
		return fmt.Errorf("commit stock script failed: %w", err)
	}
	return nil
}

// InitInventory mirrors one inventory record into Redis.
func (c *Client) InitInventory(ctx context.Context, warehouseID, productID string, stock, reserved int) error {
	key := inventoryKey(warehouseID, productID)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, "stock", stock)
	pipe.HSet(ctx, key, "reserved", reserved)

	_, err := pipe.Exec(ctx)
	return err
}

// GetInventory retrieves mirrored counters for one pair.
func (c *Client) GetInventory(ctx context.Context, warehouseID, productID string) (stock, reserved int, err error) {
	result, err := c.rdb.HGetAll(ctx, inventoryKey(warehouseID, productID)).Result()
	if err != nil {
		return 0, 0, err
	}
	if len(result) == 0 {
		return 0, 0, fmt.Errorf("inventory not mirrored for %s/%s", warehouseID, productID)
	}

	fmt.Sscanf(result["stock"], "%d", &stock)
	fmt.Sscanf(result["reserved"], "%d", &reserved)
	return stock, reserved, nil
}

// AcquireLock acquires a short-lived lock, used to serialize van
// assignment per vehicle.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a lock acquired with AcquireLock.
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
