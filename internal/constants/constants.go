package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600

	// DownloadDirPerm is the permission for attachment download directories.
	DownloadDirPerm = 0750

	// DownloadFilePerm is the permission for downloaded attachments.
	DownloadFilePerm = 0640
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DownloadHTTPTimeout is used for attachment downloads.
	DownloadHTTPTimeout = 5 * time.Minute

	// ShortHTTPTimeout is used for quick operations.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits.
const (
	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 30 * time.Second
)

// Concurrency limits.
const (
	// DefaultConcurrencyLimit limits concurrent batch operations.
	DefaultConcurrencyLimit = 5
)

// Cache defaults.
const (
	// DefaultCacheSize is the default maximum number of cached entries.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is how long cached metadata stays valid.
	DefaultCacheTTL = 15 * time.Minute

	// DefaultNATSBucket is the key/value bucket used by the NATS cache.
	DefaultNATSBucket = "snow_cache"
)

// Service endpoints and naming.
const (
	// InstanceURLTemplate builds the base URL from an instance name.
	InstanceURLTemplate = "https://%s.service-now.com"

	// TablePath is the prefix of every Table API path.
	TablePath = "api/now/table"

	// AttachmentPath is the Attachment API path.
	AttachmentPath = "api/now/attachment"

	// CMDBMetaPath is the CMDB metadata API path.
	CMDBMetaPath = "api/now/cmdb/meta"

	// OAuthTokenPath is the OAuth2 token endpoint relative to the base URL.
	OAuthTokenPath = "/oauth_token.do"

	// DefaultUserAgent is sent when none is configured.
	DefaultUserAgent = "snow-go-client/1.0"
)

// Output formats.
const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"
)

// CLI defaults.
const (
	// DefaultCLIPageSize is the page size used by "table list" without --all.
	DefaultCLIPageSize = 20

	// MaxTableCellWidth truncates long values in table output.
	MaxTableCellWidth = 60

	// MinimumArgumentCount is the argument count of KEY VALUE and TABLE SYS_ID commands.
	MinimumArgumentCount = 2

	// ConfigDirName is the CLI config directory under the user's home.
	ConfigDirName = ".snow"

	// ConfigFileName is the CLI config file name.
	ConfigFileName = "config.yml"

	// EnvPrefix prefixes environment variables read by the CLI.
	EnvPrefix = "SNOW"
)
