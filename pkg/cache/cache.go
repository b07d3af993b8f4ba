package cache

import (
	"context"
	"time"
)

// Cache is the contract of the cache layer (Redis or in-process)
type Cache interface {
	// Get unmarshals the cached value into dest.
	// found = false on a miss, dest untouched.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set stores value (JSON encoded) with a TTL
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Delete(ctx context.Context, keys ...string) error

	// DeletePattern removes every key matching a glob pattern, e.g. "coupon:*"
	DeletePattern(ctx context.Context, pattern string) error

	Ping(ctx context.Context) error
}
