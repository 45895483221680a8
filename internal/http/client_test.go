package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	snowhttp "github.com/fivetwenty-io/snow/internal/http"
	"github.com/fivetwenty-io/snow/pkg/snow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedToken struct {
	token string
	err   error
}

func (f *fixedToken) GetToken(context.Context) (string, error) { return f.token, f.err }
func (f *fixedToken) RefreshToken(context.Context) error { return nil }
func (f *fixedToken) SetToken(token string, _ time.Time) { f.token = token }

type logLine struct {
	level  string
	msg    string
	fields map[string]interface{}
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (r *recordingLogger) add(level, msg string, fields map[string]interface{}) {
	r.mu.Lock()
	r.lines = append(r.lines, logLine{level: level, msg: msg, fields: fields})
	r.mu.Unlock()
}

func (r *recordingLogger) Debug(msg string, fields map[string]interface{}) { r.add("debug", msg, fields) }
func (r *recordingLogger) Info(msg string, fields map[string]interface{}) { r.add("info", msg, fields) }
func (r *recordingLogger) Warn(msg string, fields map[string]interface{}) { r.add("warn", msg, fields) }
func (r *recordingLogger) Error(msg string, fields map[string]interface{}) { r.add("error", msg, fields) }

const incidentPath = "api/now/table/incident"

//nolint:funlen
func TestClient_Do(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		token      string
		req        snowhttp.Request
		check      func(t *testing.T, r *http.Request)
		status     int
		reply      string
		wantStatus int
	}{
		{
			name:  "bearer token and json accept",
			token: "test-token",
			req:   snowhttp.Request{Method: http.MethodGet, Path: "/" + incidentPath},
			check: func(t *testing.T, r *http.Request) {
				t.Helper()
				assert.Equal(t, "/"+incidentPath, r.URL.Path)
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Accept"))
			},
			reply:      `{"result":{"sys_id":"abc123","number":"INC0010001"}}`,
			wantStatus: http.StatusOK,
		},
		{
			name: "query values are encoded",
			req: snowhttp.Request{
				Method: http.MethodGet,
				Path:   incidentPath,
				Query:  url.Values{"sysparm_offset": []string{"2"}},
			},
			check: func(t *testing.T, r *http.Request) {
				t.Helper()
				assert.Equal(t, "sysparm_offset=2", r.URL.RawQuery)
				assert.Empty(t, r.Header.Get("Authorization"))
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "body is sent as json",
			req: snowhttp.Request{
				Method: http.MethodPost,
				Path:   incidentPath,
				Body:   map[string]string{"short_description": "Printer on fire"},
			},
			check: func(t *testing.T, r *http.Request) {
				t.Helper()
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var row map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&row))
				assert.Equal(t, "Printer on fire", row["short_description"])
			},
			status:     http.StatusCreated,
			wantStatus: http.StatusCreated,
		},
		{
			name: "raw bytes are sent unchanged",
			req:  snowhttp.Request{Method: http.MethodPut, Path: incidentPath, Body: []byte(`{"state":"7"}`)},
			check: func(t *testing.T, r *http.Request) {
				t.Helper()

				body, _ := io.ReadAll(r.Body)
				assert.JSONEq(t, `{"state":"7"}`, string(body))
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "request headers",
			req: snowhttp.Request{
				Method:  http.MethodGet,
				Path:    incidentPath,
				Headers: map[string]string{"X-no-response-body": "true"},
			},
			check: func(t *testing.T, r *http.Request) {
				t.Helper()
				assert.Equal(t, "true", r.Header.Get("X-No-Response-Body"))
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tt.check(t, r)

				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}

				_, _ = io.WriteString(w, tt.reply)
			}))
			defer server.Close()

			var tokens *fixedToken
			if tt.token != "" {
				tokens = &fixedToken{token: tt.token}
			}

			var client *snowhttp.Client
			if tokens != nil {
				client = snowhttp.NewClient(server.URL, tokens)
			} else {
				client = snowhttp.NewClient(server.URL, nil)
			}

			req := tt.req
			resp, err := client.Do(context.Background(), &req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.reply, string(resp.Body))
		})
	}
}

func TestClient_FailureBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"message":"No Record found","detail":"Record doesn't exist or ACL restricts the record retrieval"},"status":"failure"}`)
	}))
	defer server.Close()

	resp, err := snowhttp.NewClient(server.URL, nil).Get(context.Background(), incidentPath+"/missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var transportErr *snow.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusNotFound, transportErr.StatusCode)
	assert.Equal(t, http.MethodGet, transportErr.Method)
	assert.Contains(t, transportErr.Body, "No Record found")
	require.NotNil(t, transportErr.APIError)
	assert.Equal(t, "No Record found", transportErr.APIError.Message)
	assert.True(t, snow.IsNotFound(err))
}

func TestClient_DebugLogging(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"result":[]}`)
	}))
	defer server.Close()

	logger := &recordingLogger{}
	client := snowhttp.NewClient(server.URL, nil, snowhttp.WithLogger(logger), snowhttp.WithDebug(true))

	_, err := client.Get(context.Background(), incidentPath, nil)
	require.NoError(t, err)

	require.Len(t, logger.lines, 2)
	assert.Equal(t, "HTTP Request", logger.lines[0].msg)
	assert.Equal(t, "HTTP Response", logger.lines[1].msg)
	assert.Equal(t, logger.lines[0].fields["request_id"], logger.lines[1].fields["request_id"])
	assert.Equal(t, http.StatusOK, logger.lines[1].fields["status"])
}

func TestClient_Verbs(t *testing.T) {
	t.Parallel()

	const recordPath = "api/now/table/incident/0123456789abcdef0123456789abcdef"

	row := map[string]string{"state": "2"}

	tests := map[string]func(*snowhttp.Client, context.Context) (*snowhttp.Response, error){
		http.MethodGet: func(c *snowhttp.Client, ctx context.Context) (*snowhttp.Response, error) {
			return c.Get(ctx, recordPath, nil)
		},
		http.MethodPost: func(c *snowhttp.Client, ctx context.Context) (*snowhttp.Response, error) {
			return c.Post(ctx, recordPath, row)
		},
		http.MethodPut: func(c *snowhttp.Client, ctx context.Context) (*snowhttp.Response, error) {
			return c.Put(ctx, recordPath, row)
		},
		http.MethodPatch: func(c *snowhttp.Client, ctx context.Context) (*snowhttp.Response, error) {
			return c.Patch(ctx, recordPath, row)
		},
		http.MethodDelete: func(c *snowhttp.Client, ctx context.Context) (*snowhttp.Response, error) {
			return c.Delete(ctx, recordPath)
		},
	}

	for method, call := range tests {
		t.Run(method, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				assert.Equal(t, method, request.Method)
				assert.Equal(t, "/"+recordPath, request.URL.Path)

				body, _ := io.ReadAll(request.Body)
				if method == http.MethodGet || method == http.MethodDelete {
					assert.Empty(t, body)
				} else {
					assert.JSONEq(t, `{"state":"2"}`, string(body))
				}

				writer.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			resp, err := call(snowhttp.NewClient(server.URL, nil), context.Background())
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}

func TestClient_Retries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		statuses     []int
		retryMax     int
		wantStatus   int
		wantAttempts int32
		wantErr      bool
	}{
		{name: "server errors are retried", statuses: []int{500, 503, 200}, retryMax: 3, wantStatus: 200, wantAttempts: 3},
		{name: "throttling is retried", statuses: []int{429, 200}, retryMax: 3, wantStatus: 200, wantAttempts: 2},
		{name: "client errors are not retried", statuses: []int{400}, retryMax: 3, wantStatus: 400, wantAttempts: 1, wantErr: true},
		{name: "retries are off by default", statuses: []int{503, 200}, wantStatus: 503, wantAttempts: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var attempts atomic.Int32

			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				n := int(attempts.Add(1)) - 1
				writer.WriteHeader(tt.statuses[min(n, len(tt.statuses)-1)])
			}))
			defer server.Close()

			var opts []snowhttp.Option
			if tt.retryMax > 0 {
				opts = append(opts, snowhttp.WithRetryConfig(tt.retryMax, 5*time.Millisecond, 20*time.Millisecond))
			}

			resp, err := snowhttp.NewClient(server.URL, nil, opts...).Get(context.Background(), "api/now/table/incident", nil)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantAttempts, attempts.Load())
		})
	}
}

func TestClient_Authentication(t *testing.T) {
	t.Parallel()

	t.Run("basic auth without token manager", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			username, password, ok := request.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "admin", username)
			assert.Equal(t, "secret", password)
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := snowhttp.NewClient(server.URL, nil, snowhttp.WithBasicAuth("admin", "secret"))

		_, err := client.Get(context.Background(), "api/now/table/incident", nil)
		require.NoError(t, err)
	})

	t.Run("refreshes token once on 401", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			attempts.Add(1)

			if request.Header.Get("Authorization") != "Bearer fresh-token" {
				writer.WriteHeader(http.StatusUnauthorized)

				return
			}

			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		tokenManager := &refreshingTokenManager{token: "stale-token", next: "fresh-token"}
		client := snowhttp.NewClient(server.URL, tokenManager)

		resp, err := client.Get(context.Background(), "api/now/table/incident", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(2), attempts.Load())
	})

	t.Run("token error is returned", func(t *testing.T) {
		t.Parallel()

		client := snowhttp.NewClient("http://127.0.0.1:1", &fixedToken{err: errTokenUnavailable})

		_, err := client.Get(context.Background(), "api/now/table/incident", nil)
		require.ErrorIs(t, err, errTokenUnavailable)
	})
}

var errTokenUnavailable = errors.New("token unavailable")

type refreshingTokenManager struct {
	mutex sync.Mutex
	token string
	next  string
}

func (m *refreshingTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.token, nil
}

func (m *refreshingTokenManager) RefreshToken(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.token = m.next

	return nil
}

func (m *refreshingTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.token = token
}

func TestClient_RawQueryAndHeaders(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/api/now/table/incident", request.URL.Path)
		assert.Equal(t, "sysparm_offset=0&sysparm_limit=10&sysparm_query=ORDERBYsys_created_on", request.URL.RawQuery)

		writer.Header().Set("X-Total-Count", "27")
		_, _ = writer.Write([]byte(`{"result":[]}`))
	}))
	defer server.Close()

	client := snowhttp.NewClient(server.URL+"/", nil)
	assert.Equal(t, server.URL, client.BaseURL())

	resp, err := client.GetRaw(context.Background(), "api/now/table/incident", "sysparm_offset=0&sysparm_limit=10&sysparm_query=ORDERBYsys_created_on")
	require.NoError(t, err)
	assert.Equal(t, "27", resp.Headers.Get("X-Total-Count"))
	assert.JSONEq(t, `{"result":[]}`, string(resp.Body))
}

func TestClient_Interceptors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "intercepted", request.Header.Get("X-Trace"))
		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	collector := snow.NewMetricsCollector()
	chain := snow.NewInterceptorChain()
	chain.AddRequestInterceptor(snow.HeaderInterceptor(map[string]string{"X-Trace": "intercepted"}))
	chain.AddRequestInterceptor(snow.MetricsRequestInterceptor(collector))
	chain.AddResponseInterceptor(snow.MetricsResponseInterceptor(collector))

	client := snowhttp.NewClient(server.URL, nil, snowhttp.WithInterceptors(chain))

	_, err := client.Get(context.Background(), "api/now/table/incident", nil)
	require.NoError(t, err)

	metrics := collector.GetMetrics("GET api/now/table/incident")
	require.NotNil(t, metrics)
	assert.Equal(t, int64(1), metrics.TotalRequests)
	assert.Equal(t, int64(0), metrics.TotalErrors)
}

func TestClient_NetworkErrors(t *testing.T) {
	t.Parallel()

	t.Run("connection refused", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		serverURL := server.URL
		server.Close()

		client := snowhttp.NewClient(serverURL, nil)

		resp, err := client.Get(context.Background(), "api/now/table/incident", nil)
		require.Error(t, err)
		assert.Nil(t, resp)

		transportErr := &snow.TransportError{}
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, 0, transportErr.StatusCode)
		assert.True(t, snow.IsRetriable(err))
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			select {
			case <-release:
			case <-request.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		client := snowhttp.NewClient(server.URL, nil, snowhttp.WithTimeout(50*time.Millisecond))

		_, err := client.Get(context.Background(), "api/now/table/incident", nil)
		require.Error(t, err)
		assert.True(t, snow.IsTimeout(err))
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		client := snowhttp.NewClient(server.URL, nil)

		_, err := client.Get(ctx, "api/now/table/incident", nil)
		require.ErrorIs(t, err, snow.ErrCanceled)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestClient_Stream(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path == "/api/now/attachment/missing/file" {
			writer.WriteHeader(http.StatusNotFound)

			return
		}

		assert.Equal(t, "/api/now/attachment/a1/file", request.URL.Path)
		writer.Header().Set("Content-Type", "text/plain")
		_, _ = writer.Write([]byte("attachment body"))
	}))
	defer server.Close()

	client := snowhttp.NewClient(server.URL, nil, snowhttp.WithBasicAuth("admin", "secret"))

	body, headers, err := client.Stream(context.Background(), "api/now/attachment/a1/file", "")
	require.NoError(t, err)

	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "attachment body", string(data))
	assert.Equal(t, "text/plain", headers.Get("Content-Type"))

	_, _, err = client.Stream(context.Background(), "api/now/attachment/missing/file", "")
	require.Error(t, err)
	assert.True(t, snow.IsNotFound(err))
}

func TestClient_StreamInterceptorsAndRefresh(t *testing.T) {
	t.Parallel()

	const filePath = "api/now/attachment/0123456789abcdef0123456789abcdef/file"

	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		attempts.Add(1)
		assert.Equal(t, "intercepted", request.Header.Get("X-Trace"))

		if request.Header.Get("Authorization") != "Bearer renewed" {
			writer.WriteHeader(http.StatusUnauthorized)

			return
		}

		_, _ = io.WriteString(writer, "report.pdf bytes")
	}))
	defer server.Close()

	collector := snow.NewMetricsCollector()
	chain := snow.NewInterceptorChain()
	chain.AddRequestInterceptor(
		snow.HeaderInterceptor(map[string]string{"X-Trace": "intercepted"}),
		snow.MetricsRequestInterceptor(collector),
	)
	chain.AddResponseInterceptor(snow.MetricsResponseInterceptor(collector))

	tokens := &refreshingTokenManager{token: "stale", next: "renewed"}
	client := snowhttp.NewClient(server.URL, tokens, snowhttp.WithInterceptors(chain))

	body, _, err := client.Stream(context.Background(), filePath, "")
	require.NoError(t, err)

	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf bytes", string(data))
	assert.Equal(t, int32(2), attempts.Load())

	metrics := collector.GetMetrics("GET api/now/attachment/{sys_id}/file")
	require.NotNil(t, metrics)
	assert.Equal(t, int64(1), metrics.TotalRequests)
	assert.Equal(t, int64(0), metrics.TotalErrors)

	tokens.SetToken("stale", time.Time{})
	tokens.next = "stale"

	_, _, err = client.Stream(context.Background(), filePath, "")
	require.Error(t, err)
	assert.True(t, snow.IsUnauthorized(err))

	metrics = collector.GetMetrics("GET api/now/attachment/{sys_id}/file")
	require.NotNil(t, metrics)
	assert.Equal(t, int64(2), metrics.TotalRequests)
	assert.Equal(t, int64(1), metrics.TotalErrors)
}
