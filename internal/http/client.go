package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/snow/internal/auth"
	"github.com/fivetwenty-io/snow/internal/constants"
	"github.com/fivetwenty-io/snow/pkg/snow"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	contentTypeJSON = "application/json"
	bytesPerKB      = 1024
)

// Logger is the logging interface used by the transport.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Request is one API exchange. Path is relative to the base URL.
type Request struct {
	Method string
	Path   string
	// Query is encoded with url.Values.Encode. RawQuery, when set, is used verbatim instead.
	Query    url.Values
	RawQuery string
	// Body is sent as JSON. A []byte body is sent unchanged.
	Body    interface{}
	Headers map[string]string
}

// Response is a completed exchange with the body fully read.
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
}

// Client sends authenticated JSON requests to one instance.
type Client struct {
	baseURL      string
	httpClient   *retryablehttp.Client
	tokenManager auth.TokenManager
	username     string
	password     string
	userAgent    string
	logger       Logger
	debug        bool
	interceptors *snow.InterceptorChain
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request and response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig enables retries of connection errors, 429 and 5xx responses.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = retryMax
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithTimeout bounds each HTTP exchange.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// WithBasicAuth authenticates with a username and password when no token
// manager is configured.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithInterceptors runs the chain around every request.
func WithInterceptors(chain *snow.InterceptorChain) Option {
	return func(c *Client) {
		if chain != nil {
			c.interceptors = chain
		}
	}
}

// NewClient creates a client for baseURL. A nil tokenManager sends requests
// without a bearer token.
func NewClient(baseURL string, tokenManager auth.TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.CheckRetry = retryablehttp.DefaultRetryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retryClient.Logger = nil

	client := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   retryClient,
		tokenManager: tokenManager,
		userAgent:    constants.DefaultUserAgent,
		interceptors: snow.NewInterceptorChain(),
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.logger != nil {
		retryClient.Logger = &retryLogger{logger: client.logger}
	}

	return client
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends req and reads the full response. For status failures both the
// response and a *snow.TransportError are returned.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	intercepted := &snow.Request{
		Method:   req.Method,
		Path:     req.Path,
		RawQuery: c.rawQuery(req),
		Headers:  make(http.Header),
		Body:     body,
	}

	for key, value := range req.Headers {
		intercepted.Headers.Set(key, value)
	}

	err = c.interceptors.ExecuteRequestInterceptors(ctx, intercepted)
	if err != nil {
		if ctx.Err() != nil {
			return nil, snow.Canceled(ctx.Err())
		}

		return nil, &snow.TransportError{Method: req.Method, Path: req.Path, Err: err}
	}

	resp, err := c.send(ctx, intercepted, true)

	response := &snow.Response{Error: err}
	if resp != nil {
		response.StatusCode = resp.StatusCode
		response.Headers = resp.Headers
		response.Body = resp.Body
	}

	interceptErr := c.interceptors.ExecuteResponseInterceptors(ctx, intercepted, response)
	if err == nil && interceptErr != nil {
		return resp, interceptErr
	}

	return resp, err
}

func (c *Client) send(ctx context.Context, req *snow.Request, allowRefresh bool) (*Response, error) {
	requestID := uuid.NewString()
	fullURL := c.buildURL(req.Path, req.RawQuery)

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, bodyOrNil(req.Body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Accept", contentTypeJSON)
	httpReq.Header.Set("User-Agent", c.userAgent)

	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", contentTypeJSON)
	}

	for key, values := range req.Headers {
		httpReq.Header[key] = values
	}

	err = c.authenticate(ctx, httpReq.Request)
	if err != nil {
		return nil, err
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"request_id": requestID,
			"method":     req.Method,
			"url":        fullURL,
		})
	}

	start := time.Now()

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.networkError(ctx, req, err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, c.networkError(ctx, req, err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    httpResp.Header,
		Body:       respBody,
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"request_id": requestID,
			"status":     resp.StatusCode,
			"elapsed":    time.Since(start).String(),
			"size_kb":    float64(len(respBody)) / bytesPerKB,
		})
	}

	if resp.StatusCode == http.StatusUnauthorized && allowRefresh && c.tokenManager != nil {
		refreshErr := c.tokenManager.RefreshToken(ctx)
		if refreshErr == nil {
			return c.send(ctx, req, false)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return resp, statusError(req, resp)
	}

	return resp, nil
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// GetRaw sends a GET request with an already encoded query string.
func (c *Client) GetRaw(ctx context.Context, path, rawQuery string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, RawQuery: rawQuery})
}

// Post sends a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put sends a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch sends a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// Stream sends a GET request and returns the open response body. The caller
// must close it. Interceptors see the call like any other; the response they
// get carries no body.
func (c *Client) Stream(ctx context.Context, path, rawQuery string) (io.ReadCloser, http.Header, error) {
	req := &snow.Request{Method: http.MethodGet, Path: path, RawQuery: rawQuery, Headers: make(http.Header)}

	err := c.interceptors.ExecuteRequestInterceptors(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, snow.Canceled(ctx.Err())
		}

		return nil, nil, &snow.TransportError{Method: req.Method, Path: req.Path, Err: err}
	}

	httpResp, err := c.open(ctx, req, true)

	response := &snow.Response{Error: err}
	if httpResp != nil {
		response.StatusCode = httpResp.StatusCode
		response.Headers = httpResp.Header
	} else {
		var transportErr *snow.TransportError
		if errors.As(err, &transportErr) {
			response.StatusCode = transportErr.StatusCode
		}
	}

	interceptErr := c.interceptors.ExecuteResponseInterceptors(ctx, req, response)

	switch {
	case err != nil:
		return nil, nil, err
	case interceptErr != nil:
		_ = httpResp.Body.Close()

		return nil, nil, interceptErr
	}

	return httpResp.Body, httpResp.Header, nil
}

// open performs a streaming GET. Status failures are read, closed and
// returned as a *snow.TransportError.
func (c *Client) open(ctx context.Context, req *snow.Request, allowRefresh bool) (*http.Response, error) {
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, c.buildURL(req.Path, req.RawQuery), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Accept", "*/*")
	httpReq.Header.Set("User-Agent", c.userAgent)

	for key, values := range req.Headers {
		httpReq.Header[key] = values
	}

	err = c.authenticate(ctx, httpReq.Request)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.networkError(ctx, req, err)
	}

	if httpResp.StatusCode < http.StatusBadRequest {
		return httpResp, nil
	}

	body, _ := io.ReadAll(httpResp.Body)
	_ = httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusUnauthorized && allowRefresh && c.tokenManager != nil {
		if c.tokenManager.RefreshToken(ctx) == nil {
			return c.open(ctx, req, false)
		}
	}

	return nil, statusError(req, &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    httpResp.Header,
		Body:       body,
	})
}

func (c *Client) authenticate(ctx context.Context, req *http.Request) error {
	if c.tokenManager != nil {
		token, err := c.tokenManager.GetToken(ctx)
		if err != nil {
			return fmt.Errorf("getting token: %w", err)
		}

		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		return nil
	}

	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	return nil
}

func (c *Client) rawQuery(req *Request) string {
	if req.RawQuery != "" {
		return req.RawQuery
	}

	if len(req.Query) > 0 {
		return req.Query.Encode()
	}

	return ""
}

func (c *Client) buildURL(path, rawQuery string) string {
	fullURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if rawQuery != "" {
		fullURL += "?" + rawQuery
	}

	return fullURL
}

func (c *Client) networkError(ctx context.Context, req *snow.Request, err error) error {
	if ctx.Err() != nil {
		return snow.Canceled(ctx.Err())
	}

	return &snow.TransportError{
		Method:  req.Method,
		Path:    req.Path,
		Timeout: isTimeout(err),
		Err:     err,
	}
}

func statusError(req *snow.Request, resp *Response) *snow.TransportError {
	transportErr := &snow.TransportError{
		Method:     req.Method,
		Path:       req.Path,
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Body:       string(resp.Body),
	}

	apiErr, err := snow.ParseAPIError(resp.Body)
	if err == nil {
		transportErr.APIError = apiErr
	}

	return transportErr
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

func encodeBody(body interface{}) ([]byte, error) {
	switch value := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return value, nil
	default:
		return json.Marshal(value)
	}
}

func bodyOrNil(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}

	return bytes.NewReader(body)
}

// retryLogger forwards retryablehttp warnings and errors to Logger.
type retryLogger struct {
	logger Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, keyValueFields(keysAndValues))
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keyValueFields(keysAndValues))
}

func (l *retryLogger) Info(string, ...interface{})  {}
func (l *retryLogger) Debug(string, ...interface{}) {}

func keyValueFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}

	return fields
}
