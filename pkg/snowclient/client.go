package snowclient

import (
	"context"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/fivetwenty-io/snow/internal/client"
	"github.com/fivetwenty-io/snow/pkg/snow"
)

// EnvPrefix is the prefix of the environment variables read by NewFromEnv.
const EnvPrefix = "SNOW"

// Client is a Table API client. It implements snow.Client.
type Client = client.Client

// TableClient is a table client for rows decoded as T.
type TableClient[T any] = client.TableClient[T]

// EnvConfig holds client settings read from the environment.
type EnvConfig struct {
	Instance     string        `envconfig:"INSTANCE"`
	BaseURL      string        `envconfig:"BASE_URL"`
	Username     string        `envconfig:"USERNAME"`
	Password     string        `envconfig:"PASSWORD"`
	ClientID     string        `envconfig:"CLIENT_ID"`
	ClientSecret string        `envconfig:"CLIENT_SECRET"`
	AccessToken  string        `envconfig:"ACCESS_TOKEN"`
	RefreshToken string        `envconfig:"REFRESH_TOKEN"`
	TokenURL     string        `envconfig:"TOKEN_URL"`
	Timeout      time.Duration `envconfig:"TIMEOUT"       default:"30s"`
	RetryMax     int           `envconfig:"RETRY_MAX"     default:"0"`
	RateLimit    float64       `envconfig:"RATE_LIMIT"    default:"0"`
	PageSize     int           `envconfig:"PAGE_SIZE"     default:"1000"`
	StrictCount  bool          `envconfig:"STRICT_COUNT"  default:"false"`
	Debug        bool          `envconfig:"DEBUG"         default:"false"`
	LogLevel     string        `envconfig:"LOG_LEVEL"`
}

// LoadEnvConfig reads SNOW_* environment variables.
func LoadEnvConfig() (*EnvConfig, error) {
	var env EnvConfig

	err := envconfig.Process(EnvPrefix, &env)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &env, nil
}

// Config converts the environment settings to a client config. A zap logger
// is attached when LogLevel is set or Debug is enabled.
func (e *EnvConfig) Config() (*snow.Config, error) {
	config := &snow.Config{
		Instance:                   e.Instance,
		BaseURL:                    e.BaseURL,
		Username:                   e.Username,
		Password:                   e.Password,
		ClientID:                   e.ClientID,
		ClientSecret:               e.ClientSecret,
		AccessToken:                e.AccessToken,
		RefreshToken:               e.RefreshToken,
		TokenURL:                   e.TokenURL,
		HTTPTimeout:                e.Timeout,
		RetryMax:                   e.RetryMax,
		RateLimit:                  e.RateLimit,
		PageSize:                   e.PageSize,
		ValidateCountItemsReturned: e.StrictCount,
		Debug:                      e.Debug,
	}

	level := e.LogLevel
	if level == "" && e.Debug {
		level = "debug"
	}

	if level != "" {
		logger, err := snow.NewZapLoggerWithLevel(level)
		if err != nil {
			return nil, err
		}

		config.Logger = logger
	}

	return config, nil
}

// New creates a new Table API client.
func New(ctx context.Context, config *snow.Config) (*Client, error) {
	if config == nil {
		return nil, snow.ErrConfigRequired
	}

	cli, err := client.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return cli, nil
}

// NewFromEnv creates a client configured from SNOW_* environment variables.
func NewFromEnv(ctx context.Context) (*Client, error) {
	env, err := LoadEnvConfig()
	if err != nil {
		return nil, err
	}

	config, err := env.Config()
	if err != nil {
		return nil, err
	}

	return New(ctx, config)
}

// NewWithInstance creates an unauthenticated client for an instance name or URL.
func NewWithInstance(ctx context.Context, instance string) (*Client, error) {
	return New(ctx, &snow.Config{
		Instance: instance,
	})
}

// NewWithToken creates a client that sends a fixed bearer token.
func NewWithToken(ctx context.Context, instance, token string) (*Client, error) {
	return New(ctx, &snow.Config{
		Instance:    instance,
		AccessToken: token,
	})
}

// NewWithBasicAuth creates a client using HTTP basic authentication.
func NewWithBasicAuth(ctx context.Context, instance, username, password string) (*Client, error) {
	return New(ctx, &snow.Config{
		Instance: instance,
		Username: username,
		Password: password,
	})
}

// NewWithClientCredentials creates a client using the OAuth2 client credentials grant.
func NewWithClientCredentials(ctx context.Context, instance, clientID, clientSecret string) (*Client, error) {
	return New(ctx, &snow.Config{
		Instance:     instance,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
}

// NewWithPassword creates a client using the OAuth2 password grant.
func NewWithPassword(ctx context.Context, instance, clientID, clientSecret, username, password string) (*Client, error) {
	return New(ctx, &snow.Config{
		Instance:     instance,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Username:     username,
		Password:     password,
	})
}

// Table returns a client for the table named by T.
func Table[T snow.Table](cli *Client) *TableClient[T] {
	var row T

	return client.NewTypedTable[T](cli, row.TableName())
}
