package snow

import (
	"context"
	"time"
)

// TableClient reads and writes the rows of one table.
type TableClient[T any] interface {
	// TableName returns the table the client operates on.
	TableName() string
	// GetPage fetches one page of rows.
	GetPage(ctx context.Context, request PageRequest) (*Page[T], error)
	// GetAll fetches every row matching the query. A nil opts uses the client defaults.
	GetAll(ctx context.Context, query QueryRequest, opts *PaginationOptions) (*AggregatedResult[T], error)
	Get(ctx context.Context, sysID string, fields []string) (*T, error)
	Create(ctx context.Context, item *T) (*T, error)
	Update(ctx context.Context, sysID string, item *T) (*T, error)
	Patch(ctx context.Context, sysID string, item *T) (*T, error)
	Delete(ctx context.Context, sysID string) error
}

// AttachmentsClient lists and downloads row attachments.
type AttachmentsClient interface {
	List(ctx context.Context, tableName, tableSysID string) ([]Attachment, error)
	Get(ctx context.Context, sysID string) (*Attachment, error)
	// Download writes the attachment to outputDir and returns the file path.
	// An empty filename uses the attachment's file name.
	Download(ctx context.Context, attachment *Attachment, outputDir, filename string) (string, error)
}

// MetaClient reads CMDB class metadata.
type MetaClient interface {
	GetForClass(ctx context.Context, className string) (*MetaDataResult, error)
}

// LinksClient follows reference links returned inside rows.
type LinksClient interface {
	Resolve(ctx context.Context, link string, fields []string) (Record, error)
}

// Client is the entry point to a Table API instance.
type Client interface {
	Table(name string) TableClient[Record]
	Attachments() AttachmentsClient
	Meta() MetaClient
	Links() LinksClient
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config represents client configuration for building a snow.Client.
//
// # Authentication precedence
//
// The concrete client (see pkg/snowclient and internal/client) picks the
// first available scheme:
//  1. AccessToken: sent directly as a static Bearer token.
//  2. ClientID/ClientSecret: OAuth2 against TokenURL. Username/Password, if
//     also set, select the password grant; otherwise client_credentials.
//     A RefreshToken is used to renew expired tokens.
//  3. Username/Password: HTTP basic authentication.
//  4. No credentials: requests are sent without authentication.
//
// # Paging defaults
//
// PageSize and ValidateCountItemsReturned are the defaults for
// TableClient.GetAll when it is called without options.
type Config struct {
	// Instance is the instance name; the base URL becomes
	// "https://<instance>.service-now.com". Ignored when BaseURL is set.
	Instance string
	// BaseURL overrides the instance URL (e.g. for a proxy or tests).
	BaseURL string

	// Username and Password authenticate with basic auth, or with the
	// OAuth2 password grant when ClientID is also set.
	Username string
	Password string
	// ClientID and ClientSecret select OAuth2.
	ClientID     string
	ClientSecret string
	// AccessToken, if set, is used as a static Bearer token.
	AccessToken string
	// RefreshToken renews OAuth2 access tokens.
	RefreshToken string
	// TokenURL is the OAuth2 token endpoint. Defaults to "<base>/oauth_token.do".
	TokenURL string

	// HTTPTimeout bounds each HTTP exchange. Zero uses the transport default.
	HTTPTimeout time.Duration
	// RetryMax enables transport retries of 429, 5xx and connection errors.
	// Zero disables retries.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RateLimit caps outgoing requests per second. Zero disables limiting.
	RateLimit float64
	// Debug enables request/response logging when a Logger is provided.
	Debug  bool
	Logger Logger
	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// PageSize is the default number of rows per page.
	PageSize int
	// ValidateCountItemsReturned enables strict count checks by default.
	ValidateCountItemsReturned bool

	// Cache configures the metadata cache. Nil disables caching.
	Cache *CacheConfig
}
