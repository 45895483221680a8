package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fivetwenty-io/snow/internal/constants"
	"github.com/fivetwenty-io/snow/internal/http"
	"github.com/fivetwenty-io/snow/pkg/snow"
)

const metaCachePrefix = "meta/"

// MetaClient implements snow.MetaClient. Results are cached when a cache is
// configured.
type MetaClient struct {
	httpClient *http.Client
	cache      snow.Cache
	ttl        time.Duration
}

// NewMetaClient creates a new metadata client. A nil cache disables caching.
func NewMetaClient(httpClient *http.Client, cache snow.Cache, ttl time.Duration) *MetaClient {
	if ttl <= 0 {
		ttl = constants.DefaultCacheTTL
	}

	return &MetaClient{
		httpClient: httpClient,
		cache:      cache,
		ttl:        ttl,
	}
}

// GetForClass implements snow.MetaClient.GetForClass.
func (c *MetaClient) GetForClass(ctx context.Context, className string) (*snow.MetaDataResult, error) {
	if className == "" {
		return nil, snow.ErrClassNameRequired
	}

	key := metaCachePrefix + className

	if c.cache != nil {
		entry, err := c.cache.Get(ctx, key)
		if err == nil {
			var cached snow.MetaDataResult

			if json.Unmarshal(entry.Data, &cached) == nil {
				return &cached, nil
			}
		}
	}

	resp, err := c.httpClient.Get(ctx, constants.CMDBMetaPath+"/"+className, nil)
	if err != nil {
		return nil, fmt.Errorf("getting metadata for %s: %w", className, err)
	}

	result, err := decodeSingle[snow.MetaDataResult](resp.Body, className+" metadata")
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		data, marshalErr := json.Marshal(result)
		if marshalErr == nil {
			_ = c.cache.Set(ctx, key, &snow.CacheEntry{
				Data:      data,
				ExpiresAt: time.Now().Add(c.ttl),
			})
		}
	}

	return result, nil
}
