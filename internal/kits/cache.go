package kits

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Cache stores derived buildable quantities per location as a Redis hash. It is
// a materialized view over stock_entries, never authoritative: whenever
// component stock changes at a location the hash must be recomputed before it
// is read again.
type Cache struct {
	client *redis.Client
}

// NewCache instantiates the cache helper. A nil client degrades to cache misses.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func locationKey(locationID int64) string {
	return fmt.Sprintf("kits:avail:%d", locationID)
}

// Get returns the cached buildable quantity and whether it was present.
func (c *Cache) Get(ctx context.Context, kitID, locationID int64) (int, bool, error) {
	if c == nil || c.client == nil {
		return 0, false, nil
	}
	raw, err := c.client.HGet(ctx, locationKey(locationID), strconv.FormatInt(kitID, 10)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	qty, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, err
	}
	return qty, true, nil
}

// Put stores one kit's quantity.
func (c *Cache) Put(ctx context.Context, locationID, kitID int64, qty int) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.HSet(ctx, locationKey(locationID), strconv.FormatInt(kitID, 10), qty).Err()
}

// ReplaceLocation atomically overwrites the whole hash for one location.
func (c *Cache) ReplaceLocation(ctx context.Context, locationID int64, quantities map[int64]int) error {
	if c == nil || c.client == nil {
		return nil
	}
	key := locationKey(locationID)
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(quantities) > 0 {
		fields := make(map[string]interface{}, len(quantities))
		for kitID, qty := range quantities {
			fields[strconv.FormatInt(kitID, 10)] = qty
		}
		pipe.HSet(ctx, key, fields)
	}
	_, err := pipe.Exec(ctx)
	return err
}
