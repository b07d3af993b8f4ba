package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	goCache "github.com/patrickmn/go-cache"
)

const (
	// DefaultExpiration applies when Set is called with ttl <= 0
	DefaultExpiration = 5 * time.Minute
	// DefaultCleanupInterval is how often expired items are purged
	DefaultCleanupInterval = 10 * time.Minute
)

// MemoryCache implements Cache on github.com/patrickmn/go-cache.
// Values are stored JSON encoded so Get behaves exactly like the Redis cache.
type MemoryCache struct {
	cache *goCache.Cache
}

func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultExpiration
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &MemoryCache{cache: goCache.New(defaultTTL, cleanupInterval)}
}

var _ Cache = (*MemoryCache)(nil)

func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	raw, found := m.cache.Get(key)
	if !found {
		return false, nil
	}
	data, ok := raw.([]byte)
	if !ok {
		return false, fmt.Errorf("memory cache: unexpected value type %T for key %s", raw, key)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("memory cache: unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("memory cache: marshal %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = goCache.DefaultExpiration
	}
	m.cache.Set(key, data, ttl)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.cache.Delete(k)
	}
	return nil
}

// DeletePattern supports the same glob syntax as Redis SCAN MATCH for * and ?
func (m *MemoryCache) DeletePattern(_ context.Context, pattern string) error {
	for key := range m.cache.Items() {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return fmt.Errorf("memory cache: bad pattern %q: %w", pattern, err)
		}
		if matched {
			m.cache.Delete(key)
		}
	}
	return nil
}

func (m *MemoryCache) Ping(_ context.Context) error {
	return nil
}

// Flush drops every entry
func (m *MemoryCache) Flush() {
	m.cache.Flush()
}
