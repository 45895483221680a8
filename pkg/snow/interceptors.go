package snow

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Request is the view of an outgoing call that interceptors see. Changes to
// Headers are sent with the request.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Headers  http.Header
	Body     []byte
	Metadata map[string]interface{}
}

// Response is the outcome of a call. Error is set for network failures and
// interceptor errors; HTTP error statuses only set StatusCode.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Error      error
}

// RequestInterceptor runs before a request is sent. An error aborts the request.
type RequestInterceptor func(ctx context.Context, req *Request) error

// ResponseInterceptor runs after a response is received or the call failed.
type ResponseInterceptor func(ctx context.Context, req *Request, resp *Response) error

// InterceptorChain runs interceptors in the order they were added.
type InterceptorChain struct {
	before []RequestInterceptor
	after  []ResponseInterceptor
}

// NewInterceptorChain creates an empty chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{}
}

// AddRequestInterceptor appends request interceptors.
func (c *InterceptorChain) AddRequestInterceptor(interceptors ...RequestInterceptor) {
	c.before = append(c.before, interceptors...)
}

// AddResponseInterceptor appends response interceptors.
func (c *InterceptorChain) AddResponseInterceptor(interceptors ...ResponseInterceptor) {
	c.after = append(c.after, interceptors...)
}

// Len returns the total number of interceptors.
func (c *InterceptorChain) Len() int {
	return len(c.before) + len(c.after)
}

// ExecuteRequestInterceptors stops at the first failing interceptor.
func (c *InterceptorChain) ExecuteRequestInterceptors(ctx context.Context, req *Request) error {
	for i, intercept := range c.before {
		if err := intercept(ctx, req); err != nil {
			return fmt.Errorf("request interceptor %d: %w", i, err)
		}
	}

	return nil
}

// ExecuteResponseInterceptors stops at the first failing interceptor.
func (c *InterceptorChain) ExecuteResponseInterceptors(ctx context.Context, req *Request, resp *Response) error {
	for i, intercept := range c.after {
		if err := intercept(ctx, req, resp); err != nil {
			return fmt.Errorf("response interceptor %d: %w", i, err)
		}
	}

	return nil
}

// LoggingInterceptor logs each outgoing call at debug level.
func LoggingInterceptor(logger Logger) RequestInterceptor {
	return func(_ context.Context, req *Request) error {
		logger.Debug("table api call", map[string]interface{}{
			"method":   req.Method,
			"endpoint": Endpoint(req.Path),
			"query":    req.RawQuery,
		})

		return nil
	}
}

// LoggingResponseInterceptor logs failed calls at error level and the rest
// at debug level.
func LoggingResponseInterceptor(logger Logger) ResponseInterceptor {
	return func(_ context.Context, req *Request, resp *Response) error {
		fields := map[string]interface{}{
			"method":   req.Method,
			"endpoint": Endpoint(req.Path),
			"status":   resp.StatusCode,
		}

		switch {
		case resp.Error != nil:
			fields["error"] = resp.Error.Error()
			logger.Error("table api call failed", fields)
		case resp.StatusCode >= http.StatusBadRequest:
			logger.Warn("table api call rejected", fields)
		default:
			logger.Debug("table api call done", fields)
		}

		return nil
	}
}

// RateLimitInterceptor allows requestsPerSecond calls with the given burst.
// Calls wait for their turn or fail when ctx ends first.
func RateLimitInterceptor(requestsPerSecond float64, burst int) RequestInterceptor {
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), max(burst, 1))

	return func(ctx context.Context, _ *Request) error {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}

		return nil
	}
}

// HeaderInterceptor sets fixed headers on every request.
func HeaderInterceptor(headers map[string]string) RequestInterceptor {
	return func(_ context.Context, req *Request) error {
		if req.Headers == nil {
			req.Headers = make(http.Header, len(headers))
		}

		for name, value := range headers {
			req.Headers.Set(name, value)
		}

		return nil
	}
}

var sysIDSegment = regexp.MustCompile(`/[0-9a-f]{32}(/|$)`)

// Endpoint collapses record sys_ids in a path so that calls on different
// records of one table share an endpoint:
// "api/now/table/incident/<sys_id>" becomes "api/now/table/incident/{sys_id}".
func Endpoint(path string) string {
	return sysIDSegment.ReplaceAllString(path, "/{sys_id}$1")
}

// Metrics are the counters of one endpoint.
type Metrics struct {
	TotalRequests   int64
	TotalErrors     int64
	TotalLatency    time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time
}

// MetricsCollector counts calls per "METHOD endpoint", see Endpoint.
type MetricsCollector struct {
	mutex     sync.Mutex
	endpoints map[string]*Metrics
	onChange  func(endpoint string, metrics Metrics)
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{endpoints: make(map[string]*Metrics)}
}

// SetOnChange registers fn to be called with a snapshot after every call.
func (m *MetricsCollector) SetOnChange(fn func(endpoint string, metrics Metrics)) {
	m.mutex.Lock()
	m.onChange = fn
	m.mutex.Unlock()
}

// GetMetrics returns a snapshot for "METHOD endpoint", or nil when no call
// was recorded.
func (m *MetricsCollector) GetMetrics(key string) *Metrics {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	metrics, ok := m.endpoints[key]
	if !ok {
		return nil
	}

	snapshot := *metrics

	return &snapshot
}

// Snapshot returns a copy of every endpoint's counters.
func (m *MetricsCollector) Snapshot() map[string]Metrics {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	snapshot := make(map[string]Metrics, len(m.endpoints))
	for key, metrics := range m.endpoints {
		snapshot[key] = *metrics
	}

	return snapshot
}

func (m *MetricsCollector) observe(key string, latency time.Duration, failed bool) {
	m.mutex.Lock()

	metrics := m.endpoints[key]
	if metrics == nil {
		metrics = &Metrics{}
		m.endpoints[key] = metrics
	}

	metrics.TotalRequests++
	metrics.LastRequestTime = time.Now()
	metrics.TotalLatency += latency
	metrics.AverageLatency = metrics.TotalLatency / time.Duration(metrics.TotalRequests)

	if failed {
		metrics.TotalErrors++
	}

	snapshot, notify := *metrics, m.onChange
	m.mutex.Unlock()

	if notify != nil {
		notify(key, snapshot)
	}
}

const metricsStartKey = "metrics.start"

// MetricsRequestInterceptor stamps the request start time.
func MetricsRequestInterceptor(_ *MetricsCollector) RequestInterceptor {
	return func(_ context.Context, req *Request) error {
		if req.Metadata == nil {
			req.Metadata = make(map[string]interface{})
		}

		req.Metadata[metricsStartKey] = time.Now()

		return nil
	}
}

// MetricsResponseInterceptor records the call in collector. Network errors
// and 4xx/5xx statuses count as errors.
func MetricsResponseInterceptor(collector *MetricsCollector) ResponseInterceptor {
	return func(_ context.Context, req *Request, resp *Response) error {
		var latency time.Duration
		if started, ok := req.Metadata[metricsStartKey].(time.Time); ok {
			latency = time.Since(started)
		}

		failed := resp.Error != nil || resp.StatusCode >= http.StatusBadRequest
		collector.observe(req.Method+" "+Endpoint(req.Path), latency, failed)

		return nil
	}
}
