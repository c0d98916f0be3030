// Package cache implements the short-TTL per-raffle ticket-count cache.
// The cache absorbs read bursts on the raffle detail page and is never the
// system of record: the allocator makes claim decisions against the
// database only, and every successful mutation (claim, sale confirmation,
// expiry release) deletes the raffle's entry so the next read recomputes.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/raffle-reservation/internal/config"
	"github.com/iliyamo/raffle-reservation/internal/model"
)

// redisCommands is the slice of the go-redis client the cache depends on.
// Tests substitute a stub built from the redis.New*Result helpers.
type redisCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CountCache stores model.TicketCounts aggregates as JSON under
// "counts:{raffleID}". A nil client disables the cache entirely: Get always
// misses and writes are no-ops, so read paths silently fall back to the
// source of truth.
type CountCache struct {
	rdb    redisCommands
	ttl    time.Duration
	prefix string
}

// New builds a CountCache. Pass a nil client to run with caching disabled.
func New(rdb *redis.Client, cfg config.CountCacheConfig) *CountCache {
	c := &CountCache{ttl: cfg.TTL, prefix: cfg.Prefix}
	if cfg.Enabled && rdb != nil {
		c.rdb = rdb
	}
	return c
}

// newWithCommands is the test seam; production code goes through New.
func newWithCommands(rdb redisCommands, cfg config.CountCacheConfig) *CountCache {
	c := &CountCache{ttl: cfg.TTL, prefix: cfg.Prefix}
	if cfg.Enabled {
		c.rdb = rdb
	}
	return c
}

// Get returns the cached counts for a raffle. The second return value is
// false on a miss, on any Redis error, and whenever caching is disabled;
// callers treat all three identically and recompute.
func (c *CountCache) Get(ctx context.Context, raffleID uint64) (*model.TicketCounts, bool) {
	if c.rdb == nil {
		return nil, false
	}
	payload, err := c.rdb.Get(ctx, c.key(raffleID)).Bytes()
	if err != nil {
		return nil, false
	}
	var counts model.TicketCounts
	if err := json.Unmarshal(payload, &counts); err != nil {
		return nil, false
	}
	return &counts, true
}

// Set stores freshly computed counts with the configured TTL. Failures are
// swallowed: a missed population only costs the next reader a recompute.
func (c *CountCache) Set(ctx context.Context, raffleID uint64, counts *model.TicketCounts) {
	if c.rdb == nil || counts == nil {
		return
	}
	payload, err := json.Marshal(counts)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, c.key(raffleID), payload, c.ttl).Err()
}

// Invalidate deletes the raffle's entry. Called after every successful
// mutation; the short TTL backstops any invalidation that fails here.
func (c *CountCache) Invalidate(ctx context.Context, raffleID uint64) {
	if c.rdb == nil {
		return
	}
	_ = c.rdb.Del(ctx, c.key(raffleID)).Err()
}

func (c *CountCache) key(raffleID uint64) string {
	return fmt.Sprintf("%s:%d", c.prefix, raffleID)
}
