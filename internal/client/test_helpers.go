package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/snow/pkg/snow"
)

// Test static errors.
var (
	ErrTestSomeError = errors.New("some error")
)

// NewTestClient creates a client for baseURL without authentication.
func NewTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	client, err := New(context.Background(), &snow.Config{BaseURL: baseURL})
	require.NoError(t, err)

	return client
}

// WriteResult writes result wrapped in the Table API envelope. A non-negative
// total is sent as X-Total-Count.
func WriteResult(writer http.ResponseWriter, statusCode int, result interface{}, total int) {
	writer.Header().Set("Content-Type", "application/json")

	if total >= 0 {
		writer.Header().Set(snow.HeaderTotalCount, strconv.Itoa(total))
	}

	writer.WriteHeader(statusCode)
	_ = json.NewEncoder(writer).Encode(map[string]interface{}{"result": result})
}

// WriteFailure writes a Table API failure body.
func WriteFailure(writer http.ResponseWriter, statusCode int, message, detail string) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)
	_ = json.NewEncoder(writer).Encode(map[string]interface{}{
		"error":  map[string]string{"message": message, "detail": detail},
		"status": "failure",
	})
}

// TestTableOperation describes one table client call against a canned response.
type TestTableOperation struct {
	Name          string
	ExpectedPath  string
	ExpectedVerb  string
	ExpectedQuery string
	ExpectedBody  map[string]interface{}
	StatusCode    int
	Response      interface{}
	WantErr       bool
	ErrMessage    string
	Call          func(ctx context.Context, table snow.TableClient[snow.Record]) (interface{}, error)
}

// RunTableOperationTests runs table client calls against a test server that
// checks the method, path, query and body of each request.
func RunTableOperationTests(t *testing.T, tableName string, tests []TestTableOperation) {
	t.Helper()

	for _, testCase := range tests {
		t.Run(testCase.Name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				assert.Equal(t, testCase.ExpectedPath, request.URL.Path)
				assert.Equal(t, testCase.ExpectedVerb, request.Method)

				if testCase.ExpectedQuery != "" {
					assert.Equal(t, testCase.ExpectedQuery, request.URL.RawQuery)
				}

				if testCase.ExpectedBody != nil {
					data, err := io.ReadAll(request.Body)
					assert.NoError(t, err)

					var body map[string]interface{}

					assert.NoError(t, json.Unmarshal(data, &body))
					assert.Equal(t, testCase.ExpectedBody, body)
				}

				if testCase.WantErr {
					WriteFailure(writer, testCase.StatusCode, testCase.ErrMessage, "")

					return
				}

				if testCase.Response == nil {
					writer.WriteHeader(testCase.StatusCode)

					return
				}

				WriteResult(writer, testCase.StatusCode, testCase.Response, -1)
			}))
			defer server.Close()

			client := NewTestClient(t, server.URL)

			result, err := testCase.Call(context.Background(), client.Table(tableName))

			if testCase.WantErr {
				require.Error(t, err)

				if testCase.ErrMessage != "" {
					assert.Contains(t, err.Error(), testCase.ErrMessage)
				}

				return
			}

			require.NoError(t, err)

			if testCase.Response != nil {
				require.NotNil(t, result)
			}
		})
	}
}
