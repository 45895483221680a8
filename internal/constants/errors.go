package constants

import "errors"

// Configuration errors.
var (
	ErrNoInstanceConfigured = errors.New("no instance configured, use 'snow login' or set SNOW_INSTANCE")
	ErrNoCredentials        = errors.New("no credentials configured, use 'snow login' or set SNOW_USERNAME and SNOW_PASSWORD")
	ErrUnknownConfigKey     = errors.New("unknown configuration key")
	ErrInvalidConfigValue   = errors.New("invalid configuration value")
)

// Command input errors.
var (
	ErrDataRequired        = errors.New("either --data or --file is required")
	ErrDataAndFileExcluded = errors.New("--data and --file cannot be used together")
	ErrInvalidOutputFormat = errors.New("invalid output format")
	ErrAttachmentNotFound  = errors.New("attachment not found")
	ErrDeleteFailed        = errors.New("delete failed")
)

// Authentication errors.
var (
	ErrStaticTokenCannotRefresh = errors.New("static token cannot be refreshed")
	ErrNoValidCredentials       = errors.New("no valid credentials available")
	ErrTokenRequestFailed       = errors.New("token request failed")
	ErrPasswordReadFailed       = errors.New("failed to read password")
)

// Download errors.
var (
	ErrInvalidFileName = errors.New("invalid file name")
	ErrDownloadFailed  = errors.New("download failed")
)
