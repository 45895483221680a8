package snow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fivetwenty-io/snow/internal/constants"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSKVConfig configures a JetStream key/value cache.
type NATSKVConfig struct {
	// URL of the NATS server. Ignored when Conn is set.
	URL string
	// Conn is an existing connection. The cache does not close it.
	Conn *nats.Conn
	// Bucket is created if it does not exist.
	Bucket string
	// TTL is the bucket-level expiry; entries also carry their own.
	TTL time.Duration
}

// NATSKVCache stores entries in a NATS JetStream key/value bucket so that
// several processes can share them.
type NATSKVCache struct {
	conn     *nats.Conn
	ownsConn bool
	kv       jetstream.KeyValue
}

// NewNATSKVCache connects to NATS and opens the bucket.
func NewNATSKVCache(config *NATSKVConfig) (*NATSKVCache, error) {
	if config == nil {
		return nil, ErrNATSConfigRequired
	}

	conn := config.Conn
	ownsConn := false

	if conn == nil {
		url := config.URL
		if url == "" {
			url = nats.DefaultURL
		}

		var err error

		conn, err = nats.Connect(url, nats.Name("snow-cache"))
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}

		ownsConn = true
	}

	bucket := config.Bucket
	if bucket == "" {
		bucket = constants.DefaultNATSBucket
	}

	js, err := jetstream.New(conn)
	if err != nil {
		closeIfOwned(conn, ownsConn)

		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.ShortHTTPTimeout)
	defer cancel()

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    config.TTL,
	})
	if err != nil {
		closeIfOwned(conn, ownsConn)

		return nil, fmt.Errorf("opening key value bucket %s: %w", bucket, err)
	}

	return &NATSKVCache{conn: conn, ownsConn: ownsConn, kv: kv}, nil
}

func closeIfOwned(conn *nats.Conn, owned bool) {
	if owned {
		conn.Close()
	}
}

// kvKey maps arbitrary cache keys onto the NATS key alphabet.
func kvKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// Get returns the entry for key.
func (c *NATSKVCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	value, err := c.kv.Get(ctx, kvKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrCacheKeyNotFound
		}

		return nil, fmt.Errorf("getting %s from NATS: %w", key, err)
	}

	var entry CacheEntry

	err = json.Unmarshal(value.Value(), &entry)
	if err != nil {
		return nil, fmt.Errorf("decoding cache entry %s: %w", key, err)
	}

	if entry.Expired() {
		_ = c.Delete(ctx, key)

		return nil, ErrCacheEntryExpired
	}

	return &entry, nil
}

// Set stores entry under key.
func (c *NATSKVCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", key, err)
	}

	_, err = c.kv.Put(ctx, kvKey(key), data)
	if err != nil {
		return fmt.Errorf("putting %s to NATS: %w", key, err)
	}

	return nil
}

// Delete removes key.
func (c *NATSKVCache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, kvKey(key))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("deleting %s from NATS: %w", key, err)
	}

	return nil
}

// Clear removes every key in the bucket.
func (c *NATSKVCache) Clear(ctx context.Context) error {
	lister, err := c.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil
		}

		return fmt.Errorf("listing NATS keys: %w", err)
	}

	defer func() { _ = lister.Stop() }()

	for key := range lister.Keys() {
		err := c.kv.Delete(ctx, key)
		if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("deleting NATS key: %w", err)
		}
	}

	return nil
}

// Has reports whether key holds an unexpired entry.
func (c *NATSKVCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Close releases the connection if the cache opened it.
func (c *NATSKVCache) Close() {
	closeIfOwned(c.conn, c.ownsConn)
}
