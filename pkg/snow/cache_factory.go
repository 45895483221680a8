package snow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fivetwenty-io/snow/internal/constants"
)

// CacheType selects the metadata cache backend.
type CacheType string

const (
	// CacheTypeMemory keeps entries in process.
	CacheTypeMemory CacheType = "memory"
	// CacheTypeNATS keeps entries in a NATS JetStream key/value bucket.
	CacheTypeNATS CacheType = "nats"
	// CacheTypeTiered puts a memory cache in front of a NATS bucket.
	CacheTypeTiered CacheType = "tiered"
	// CacheTypeNone disables caching.
	CacheTypeNone CacheType = "none"
)

var (
	ErrNATSConfigRequired    = errors.New("NATS configuration required for NATS cache")
	ErrUnsupportedCacheType  = errors.New("unsupported cache type")
	ErrCacheDisabled         = errors.New("cache disabled")
	ErrKeyNotFoundInAnyCache = errors.New("key not found in any cache")
)

// CacheConfig configures the metadata cache.
type CacheConfig struct {
	Type CacheType

	Memory *MemoryCacheConfig
	NATS   *NATSKVConfig

	// Options apply to any backend. Nil means DefaultCacheOptions().
	Options *CacheOptions
}

// TTL returns how long entries stay valid. It is safe on a nil config.
func (c *CacheConfig) TTL() time.Duration {
	if c == nil || c.Options == nil || c.Options.TTL <= 0 {
		return constants.DefaultCacheTTL
	}

	return c.Options.TTL
}

// MemoryCacheConfig configures the in-process backend.
type MemoryCacheConfig struct {
	MaxSize int
	// CleanupInterval enables periodic removal of expired entries. Zero disables it.
	CleanupInterval time.Duration
}

// DefaultCacheConfig is a memory cache swept once a minute.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Type:    CacheTypeMemory,
		Memory:  &MemoryCacheConfig{MaxSize: constants.DefaultCacheSize, CleanupInterval: time.Minute},
		Options: DefaultCacheOptions(),
	}
}

// NewCacheFromConfig builds the configured backend. A nil config means
// DefaultCacheConfig(). Background sweeping of memory caches stops when ctx ends.
func NewCacheFromConfig(ctx context.Context, config *CacheConfig) (Cache, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	switch config.Type {
	case CacheTypeMemory:
		return NewMemoryCacheFromConfig(ctx, config.Memory), nil
	case CacheTypeNATS, CacheTypeTiered:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		shared, err := NewNATSKVCache(config.NATS)
		if err != nil {
			return nil, err
		}

		if config.Type == CacheTypeNATS {
			return shared, nil
		}

		return NewCacheChain(NewMemoryCacheFromConfig(ctx, config.Memory), shared), nil
	case CacheTypeNone:
		return NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCacheType, config.Type)
	}
}

// NewMemoryCacheFromConfig builds a memory cache, sweeping it while ctx lives
// when a cleanup interval is set.
func NewMemoryCacheFromConfig(ctx context.Context, config *MemoryCacheConfig) *MemoryCache {
	if config == nil {
		return NewMemoryCache(constants.DefaultCacheSize)
	}

	cache := NewMemoryCache(config.MaxSize)
	if config.CleanupInterval > 0 {
		cache.StartCleanup(ctx, config.CleanupInterval)
	}

	return cache
}

// NoOpCache never stores anything.
type NoOpCache struct{}

// NewNoOpCache creates a cache that stores nothing.
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (*NoOpCache) Get(context.Context, string) (*CacheEntry, error) { return nil, ErrCacheDisabled }
func (*NoOpCache) Set(context.Context, string, *CacheEntry) error   { return nil }
func (*NoOpCache) Delete(context.Context, string) error             { return nil }
func (*NoOpCache) Clear(context.Context) error                      { return nil }
func (*NoOpCache) Has(context.Context, string) bool                 { return false }

// CacheChain layers caches, fastest first. Reads fall through the layers and
// fill the faster ones on a hit; writes go to every layer.
type CacheChain struct {
	layers []Cache
}

// NewCacheChain layers caches in the given order.
func NewCacheChain(layers ...Cache) *CacheChain {
	return &CacheChain{layers: layers}
}

// Get returns the entry from the first layer holding it.
func (c *CacheChain) Get(ctx context.Context, key string) (*CacheEntry, error) {
	for i, layer := range c.layers {
		entry, err := layer.Get(ctx, key)
		if err != nil {
			continue
		}

		for _, faster := range c.layers[:i] {
			_ = faster.Set(ctx, key, entry)
		}

		return entry, nil
	}

	return nil, ErrKeyNotFoundInAnyCache
}

// Set stores the entry in every layer.
func (c *CacheChain) Set(ctx context.Context, key string, entry *CacheEntry) error {
	return c.each(func(layer Cache) error { return layer.Set(ctx, key, entry) })
}

// Delete removes the key from every layer.
func (c *CacheChain) Delete(ctx context.Context, key string) error {
	return c.each(func(layer Cache) error { return layer.Delete(ctx, key) })
}

// Clear empties every layer.
func (c *CacheChain) Clear(ctx context.Context) error {
	return c.each(func(layer Cache) error { return layer.Clear(ctx) })
}

// Has reports whether any layer holds the key.
func (c *CacheChain) Has(ctx context.Context, key string) bool {
	for _, layer := range c.layers {
		if layer.Has(ctx, key) {
			return true
		}
	}

	return false
}

// Close closes every layer that holds a connection.
func (c *CacheChain) Close() {
	for _, layer := range c.layers {
		if closer, ok := layer.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

func (c *CacheChain) each(apply func(Cache) error) error {
	errs := make([]error, 0, len(c.layers))
	for _, layer := range c.layers {
		errs = append(errs, apply(layer))
	}

	return errors.Join(errs...)
}
