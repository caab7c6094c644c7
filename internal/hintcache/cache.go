// Package hintcache caches non-authoritative UI hints in Redis. Hints only
// speed up the storefront; the authoritative answer always comes from order
// history, so a stale or missing entry is harmless.
package hintcache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const newCustomerTTL = 10 * time.Minute

// Cache stores per-client eligibility hints. A nil *Cache is valid and
// behaves as a permanent miss, so callers never branch on whether Redis is
// configured.
type Cache struct {
	rdb *redis.Client
}

// New creates a Cache over the given Redis client.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// GetNewCustomerHint returns the cached new-customer eligibility for the
// client. ok is false on a miss or when the cache is disabled.
func (c *Cache) GetNewCustomerHint(ctx context.Context, clientID string) (eligible, ok bool) {
	if c == nil {
		return false, false
	}
	val, err := c.rdb.Get(ctx, newCustomerKey(clientID)).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

// SetNewCustomerHint caches the client's new-customer eligibility. Failures
// are dropped.
func (c *Cache) SetNewCustomerHint(ctx context.Context, clientID string, eligible bool) {
	if c == nil {
		return
	}
	val := "0"
	if eligible {
		val = "1"
	}
	c.rdb.Set(ctx, newCustomerKey(clientID), val, newCustomerTTL)
}

// InvalidateNewCustomerHint drops the cached eligibility, called after an
// order consumes the discount.
func (c *Cache) InvalidateNewCustomerHint(ctx context.Context, clientID string) {
	if c == nil {
		return
	}
	c.rdb.Del(ctx, newCustomerKey(clientID))
}

func newCustomerKey(clientID string) string {
	return "hint:newcustomer:" + clientID
}
