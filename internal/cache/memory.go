package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryCache is a process-local Cache used in tests and single-node
// deployments.
type MemoryCache struct {
	mu     sync.RWMutex
	items  map[string]memoryItem
	config Config
	hits   atomic.Int64
	misses atomic.Int64
	closed atomic.Bool
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(cfg Config) *MemoryCache {
	return &MemoryCache{
		items:  make(map[string]memoryItem),
		config: cfg,
	}
}

// Get retrieves a value from the cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || item.expired(time.Now()) {
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}
	c.hits.Add(1)
	return item.value, nil
}

// Set stores a value with the given TTL.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.config.DefaultTTL
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config.MaxItems > 0 && len(c.items) >= c.config.MaxItems {
		c.evictLocked()
	}
	c.items[key] = memoryItem{value: value, expiresAt: expiresAt}
	return nil
}

// evictLocked drops expired entries, then an arbitrary entry if still full.
func (c *MemoryCache) evictLocked() {
	now := time.Now()
	for k, item := range c.items {
		if item.expired(now) {
			delete(c.items, k)
		}
	}
	if c.config.MaxItems > 0 && len(c.items) >= c.config.MaxItems {
		for k := range c.items {
			delete(c.items, k)
			break
		}
	}
}

// Delete removes a key from the cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

// Exists checks if a key exists in the cache.
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.Get(ctx, key)
	if err == ErrCacheMiss {
		return false, nil
	}
	return err == nil, err
}

// GetJSON retrieves and unmarshals a JSON value from the cache.
func (c *MemoryCache) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	return nil
}

// SetJSON marshals and stores a value as JSON.
func (c *MemoryCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return c.Set(ctx, key, data, ttl)
}

// DeletePattern deletes all keys matching the glob pattern.
func (c *MemoryCache) DeletePattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.items {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.items, k)
		}
	}
	return nil
}

// Incr atomically increments a counter key.
func (c *MemoryCache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	if item, ok := c.items[key]; ok && !item.expired(time.Now()) {
		if err := json.Unmarshal(item.value, &n); err != nil {
			return 0, fmt.Errorf("incr on non-numeric key %s", key)
		}
	}
	n++
	c.items[key] = memoryItem{value: []byte(fmt.Sprintf("%d", n))}
	return n, nil
}

// Close marks the cache closed and drops all entries.
func (c *MemoryCache) Close() error {
	c.closed.Store(true)
	c.mu.Lock()
	c.items = make(map[string]memoryItem)
	c.mu.Unlock()
	return nil
}

// Health reports whether the cache is usable.
func (c *MemoryCache) Health(_ context.Context) error {
	if c.closed.Load() {
		return fmt.Errorf("memory cache closed")
	}
	return nil
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	keys := int64(len(c.items))
	c.mu.RUnlock()

	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Keys:   keys,
	}
}
