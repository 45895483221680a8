package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/snow/internal/auth"
	"github.com/fivetwenty-io/snow/internal/constants"
	"github.com/fivetwenty-io/snow/internal/http"
	"github.com/fivetwenty-io/snow/pkg/snow"
)

// Static errors for err113 compliance.
var (
	ErrNoTokenManagerConfigured = errors.New("no token manager configured")
)

// Client implements the snow.Client interface.
type Client struct {
	httpClient   *http.Client
	tokenManager auth.TokenManager
	baseURL      string
	logger       snow.Logger
	cache        snow.Cache
	metrics      *snow.MetricsCollector
	defaults     snow.PaginationOptions

	attachments *AttachmentsClient
	meta        *MetaClient
	links       *LinksClient
}

// BaseURL resolves the instance base URL from config.
func BaseURL(config *snow.Config) (string, error) {
	if config.BaseURL != "" {
		return strings.TrimRight(config.BaseURL, "/"), nil
	}

	if config.Instance == "" {
		return "", snow.ErrInstanceRequired
	}

	if strings.Contains(config.Instance, "://") {
		return strings.TrimRight(config.Instance, "/"), nil
	}

	return fmt.Sprintf(constants.InstanceURLTemplate, config.Instance), nil
}

// createTokenManager picks the bearer token source for config. It returns
// nil when requests should use basic auth or no authentication.
func createTokenManager(config *snow.Config, baseURL string) auth.TokenManager {
	if config.ClientID != "" && config.ClientSecret != "" {
		return auth.NewOAuth2TokenManager(&auth.OAuth2Config{
			TokenURL:     getTokenURL(config, baseURL),
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Username:     config.Username,
			Password:     config.Password,
			RefreshToken: config.RefreshToken,
			AccessToken:  config.AccessToken,
		})
	}

	if config.AccessToken != "" {
		return auth.NewStaticTokenManager(config.AccessToken)
	}

	return nil
}

// getTokenURL returns token URL from config or the instance default.
func getTokenURL(config *snow.Config, baseURL string) string {
	if config.TokenURL != "" {
		return config.TokenURL
	}

	return auth.TokenURL(baseURL)
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *snow.Config, chain *snow.InterceptorChain) []http.Option {
	httpOpts := []http.Option{http.WithInterceptors(chain)}

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(config.Logger))
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeout(config.HTTPTimeout))
	}

	if config.Username != "" && config.Password != "" {
		httpOpts = append(httpOpts, http.WithBasicAuth(config.Username, config.Password))
	}

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, http.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	return httpOpts
}

// createInterceptorChain wires rate limiting, metrics and error logging.
func createInterceptorChain(config *snow.Config, metrics *snow.MetricsCollector) *snow.InterceptorChain {
	chain := snow.NewInterceptorChain()

	if config.RateLimit > 0 {
		burst := int(config.RateLimit)
		chain.AddRequestInterceptor(snow.RateLimitInterceptor(config.RateLimit, burst))
	}

	chain.AddRequestInterceptor(snow.MetricsRequestInterceptor(metrics))
	chain.AddResponseInterceptor(snow.MetricsResponseInterceptor(metrics))

	if config.Logger != nil {
		chain.AddResponseInterceptor(snow.LoggingResponseInterceptor(config.Logger))
	}

	return chain
}

func paginationDefaults(config *snow.Config) snow.PaginationOptions {
	defaults := *snow.DefaultPaginationOptions()

	if config.PageSize > 0 {
		defaults.PageSize = config.PageSize
	}

	defaults.StrictCount = config.ValidateCountItemsReturned

	if config.Logger != nil {
		defaults.Logger = config.Logger
	}

	return defaults
}

// New creates a new client for the configured instance.
func New(ctx context.Context, config *snow.Config) (*Client, error) {
	if config == nil {
		return nil, snow.ErrConfigRequired
	}

	baseURL, err := BaseURL(config)
	if err != nil {
		return nil, err
	}

	return NewWithTokenManager(ctx, config, createTokenManager(config, baseURL))
}

// NewWithTokenManager creates a new client with a custom token manager. A nil
// token manager falls back to basic auth when credentials are configured.
func NewWithTokenManager(ctx context.Context, config *snow.Config, tokenManager auth.TokenManager) (*Client, error) {
	if config == nil {
		return nil, snow.ErrConfigRequired
	}

	baseURL, err := BaseURL(config)
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = snow.NopLogger{}
	}

	var cache snow.Cache

	if config.Cache != nil {
		cache, err = snow.NewCacheFromConfig(ctx, config.Cache)
		if err != nil {
			return nil, fmt.Errorf("creating cache: %w", err)
		}
	}

	metrics := snow.NewMetricsCollector()
	chain := createInterceptorChain(config, metrics)
	httpClient := http.NewClient(baseURL, tokenManager, createHTTPClientOptions(config, chain)...)

	client := &Client{
		httpClient:   httpClient,
		tokenManager: tokenManager,
		baseURL:      baseURL,
		logger:       logger,
		cache:        cache,
		metrics:      metrics,
		defaults:     paginationDefaults(config),
	}

	client.attachments = NewAttachmentsClient(httpClient)
	client.meta = NewMetaClient(httpClient, cache, config.Cache.TTL())
	client.links = NewLinksClient(httpClient)

	return client, nil
}

// Table implements snow.Client.Table.
func (c *Client) Table(name string) snow.TableClient[snow.Record] {
	return NewTypedTable[snow.Record](c, name)
}

// NewTypedTable returns a table client that decodes rows as T.
func NewTypedTable[T any](c *Client, name string) *TableClient[T] {
	defaults := c.defaults

	return NewTableClient[T](c.httpClient, name, &defaults)
}

// Attachments implements snow.Client.Attachments.
func (c *Client) Attachments() snow.AttachmentsClient {
	return c.attachments
}

// Meta implements snow.Client.Meta.
func (c *Client) Meta() snow.MetaClient {
	return c.meta
}

// Links implements snow.Client.Links.
func (c *Client) Links() snow.LinksClient {
	return c.links
}

// BaseURL returns the instance base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Metrics returns the per-endpoint request metrics.
func (c *Client) Metrics() *snow.MetricsCollector {
	return c.metrics
}

// GetTokenManager returns the token manager for this client.
func (c *Client) GetTokenManager() auth.TokenManager {
	return c.tokenManager
}

// GetToken returns the current access token from the token manager.
func (c *Client) GetToken(ctx context.Context) (string, error) {
	if c.tokenManager == nil {
		return "", ErrNoTokenManagerConfigured
	}

	token, err := c.tokenManager.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}

	return token, nil
}

// Close releases the cache connection, if any.
func (c *Client) Close() {
	if closer, ok := c.cache.(interface{ Close() }); ok {
		closer.Close()
	}
}
