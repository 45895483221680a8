package snow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is the error object the Table API returns in failure bodies.
type APIError struct {
	Message string `json:"message" yaml:"message"`
	Detail  string `json:"detail"  yaml:"detail"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail == "" {
		return e.Message
	}

	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// errorBody is the failure envelope: {"error": {...}, "status": "failure"}.
type errorBody struct {
	Error  *APIError `json:"error"`
	Status string    `json:"status"`
}

// ParseAPIError extracts the API error object from a failure response body.
func ParseAPIError(data []byte) (*APIError, error) {
	var body errorBody

	err := json.Unmarshal(data, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal response error: %w", err)
	}

	if body.Error == nil {
		return nil, ErrNoErrorObject
	}

	return body.Error, nil
}

// TransportError is returned when an exchange with the service did not
// complete or completed with a non-success status.
//
// For status failures StatusCode, Status and Body are populated. For network
// failures Err holds the underlying error and StatusCode is zero.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       string
	APIError   *APIError
	Timeout    bool
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		if e.Timeout {
			return fmt.Sprintf("%s %s timed out: %v", e.Method, e.Path, e.Err)
		}

		return fmt.Sprintf("%s %s failed: %v", e.Method, e.Path, e.Err)
	}

	return fmt.Sprintf("server error %d (%s) for %s %s: %s", e.StatusCode, e.Status, e.Method, e.Path, e.Body)
}

// Unwrap returns the underlying network error, if any.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a response body is not the expected envelope.
// Body always holds the raw response text.
type DecodeError struct {
	Body string
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("a problem occurred decoding the response body: %v. Content:\n%s", e.Err, e.Body)
}

// Unwrap returns the JSON error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// CountMismatchError is returned by strict aggregations whose item count
// disagrees with the server-reported total.
type CountMismatchError struct {
	Expected int
	Actual   int
}

// Error implements the error interface.
func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("expected %d items but retrieved %d", e.Expected, e.Actual)
}

// Static errors for err113 compliance.
var (
	ErrCanceled          = errors.New("operation canceled")
	ErrNoErrorObject     = errors.New("response body has no error object")
	ErrSysIDRequired     = errors.New("sys_id is required")
	ErrTableNameRequired = errors.New("table name is required")
	ErrInvalidPageSize   = errors.New("page size must be positive")
	ErrInvalidOffset     = errors.New("offset must not be negative")
	ErrInvalidLink       = errors.New("link does not reference an API path")
	ErrNilResult         = errors.New("response has no result")
	ErrConfigRequired    = errors.New("config is required")
	ErrInstanceRequired  = errors.New("instance or base URL is required")
	ErrClassNameRequired = errors.New("class name is required")
	ErrNoMoreItems       = errors.New("no more items")
)

// Canceled wraps a context error so it matches both ErrCanceled and the
// original context error.
func Canceled(err error) error {
	return fmt.Errorf("%w: %w", ErrCanceled, err)
}

func transportError(err error) *TransportError {
	transportErr := &TransportError{}
	if errors.As(err, &transportErr) {
		return transportErr
	}

	return nil
}

// IsNotFound checks if the error is a 404 from the service.
func IsNotFound(err error) bool {
	te := transportError(err)

	return te != nil && te.StatusCode == http.StatusNotFound
}

// IsUnauthorized checks if the error is a 401 from the service.
func IsUnauthorized(err error) bool {
	te := transportError(err)

	return te != nil && te.StatusCode == http.StatusUnauthorized
}

// IsForbidden checks if the error is a 403 from the service.
func IsForbidden(err error) bool {
	te := transportError(err)

	return te != nil && te.StatusCode == http.StatusForbidden
}

// IsCanceled reports whether the operation was aborted by its context.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// IsTimeout reports whether the error is a transport timeout.
func IsTimeout(err error) bool {
	te := transportError(err)
	if te != nil && te.Timeout {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}

// IsRetriable reports whether repeating the same request may succeed:
// timeouts, network failures, throttling and server errors.
func IsRetriable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	if IsTimeout(err) {
		return true
	}

	te := transportError(err)
	if te == nil {
		return false
	}

	if te.StatusCode == 0 {
		return true
	}

	return te.StatusCode == http.StatusTooManyRequests || te.StatusCode >= http.StatusInternalServerError
}
