package snow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fivetwenty-io/snow/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrCacheKeyNotFound  = errors.New("key not found")
	ErrCacheEntryExpired = errors.New("entry expired")
)

// Cache is a key/value store for response bodies.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
}

// CacheEntry is a cached body and its expiry.
type CacheEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its expiry. A zero expiry never expires.
func (e *CacheEntry) Expired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// CacheOptions are applied to any backend.
type CacheOptions struct {
	// TTL is how long a cached metadata response stays valid.
	TTL time.Duration
}

// DefaultCacheOptions returns default cache options.
func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{TTL: constants.DefaultCacheTTL}
}

// MemoryCache is an in-process Cache bounded by entry count.
type MemoryCache struct {
	mutex   sync.RWMutex
	entries map[string]*CacheEntry
	maxSize int
}

// NewMemoryCache creates a memory cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = constants.DefaultCacheSize
	}

	return &MemoryCache{
		entries: make(map[string]*CacheEntry),
		maxSize: maxSize,
	}
}

// Get returns the entry for key.
func (c *MemoryCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	c.mutex.RLock()
	entry, ok := c.entries[key]
	c.mutex.RUnlock()

	if !ok {
		return nil, ErrCacheKeyNotFound
	}

	if entry.Expired() {
		_ = c.Delete(ctx, key)

		return nil, ErrCacheEntryExpired
	}

	return entry, nil
}

// Set stores entry under key, evicting the entry closest to expiry when full.
func (c *MemoryCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.entries[key] = entry

	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, key)

	return nil
}

// Clear removes every entry.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*CacheEntry)

	return nil
}

// Has reports whether key holds an unexpired entry.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, ok := c.entries[key]

	return ok && !entry.Expired()
}

// Cleanup drops expired entries.
func (c *MemoryCache) Cleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key, entry := range c.entries {
		if entry.Expired() {
			delete(c.entries, key)
		}
	}
}

// StartCleanup runs Cleanup every interval until ctx ends.
func (c *MemoryCache) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// evictLocked drops the entry closest to expiry. Entries without an expiry
// are only evicted when no entry has one.
func (c *MemoryCache) evictLocked() {
	var (
		victim   string
		earliest time.Time
		found    bool
	)

	for key, entry := range c.entries {
		switch {
		case !found:
		case entry.ExpiresAt.IsZero():
			continue
		case earliest.IsZero() || entry.ExpiresAt.Before(earliest):
		default:
			continue
		}

		victim, earliest, found = key, entry.ExpiresAt, true
	}

	if found {
		delete(c.entries, victim)
	}
}
