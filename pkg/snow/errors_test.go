package snow_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/fivetwenty-io/snow/pkg/snow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConnectionRefused = errors.New("connection refused")

func TestParseAPIError(t *testing.T) {
	t.Parallel()

	apiErr, err := snow.ParseAPIError([]byte(`{"error":{"message":"No Record found","detail":"Record doesn't exist"},"status":"failure"}`))
	require.NoError(t, err)
	assert.Equal(t, "No Record found", apiErr.Message)
	assert.Equal(t, "No Record found: Record doesn't exist", apiErr.Error())

	_, err = snow.ParseAPIError([]byte(`{"status":"failure"}`))
	require.ErrorIs(t, err, snow.ErrNoErrorObject)

	_, err = snow.ParseAPIError([]byte("<html>"))
	require.Error(t, err)

	assert.Equal(t, "only message", (&snow.APIError{Message: "only message"}).Error())
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	t.Run("status failure", func(t *testing.T) {
		t.Parallel()

		err := &snow.TransportError{
			Method:     http.MethodGet,
			Path:       "api/now/table/incident/x",
			StatusCode: http.StatusNotFound,
			Status:     "Not Found",
			Body:       `{"error":{}}`,
		}

		assert.Contains(t, err.Error(), "server error 404 (Not Found)")
		assert.Contains(t, err.Error(), `{"error":{}}`)
		assert.True(t, snow.IsNotFound(err))
		assert.True(t, snow.IsNotFound(fmt.Errorf("getting incident: %w", err)))
		assert.False(t, snow.IsUnauthorized(err))
		assert.False(t, snow.IsRetriable(err))
	})

	t.Run("network failure", func(t *testing.T) {
		t.Parallel()

		err := &snow.TransportError{Method: http.MethodGet, Path: "api/now/table/incident", Err: errConnectionRefused}

		require.ErrorIs(t, err, errConnectionRefused)
		assert.Contains(t, err.Error(), "failed: connection refused")
		assert.True(t, snow.IsRetriable(err))
		assert.False(t, snow.IsTimeout(err))
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		err := &snow.TransportError{Method: http.MethodGet, Path: "p", Timeout: true, Err: context.DeadlineExceeded}

		assert.Contains(t, err.Error(), "timed out")
		assert.True(t, snow.IsTimeout(err))
		assert.True(t, snow.IsRetriable(err))
	})
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		err          error
		unauthorized bool
		forbidden    bool
		retriable    bool
	}{
		{name: "401", err: &snow.TransportError{StatusCode: http.StatusUnauthorized}, unauthorized: true},
		{name: "403", err: &snow.TransportError{StatusCode: http.StatusForbidden}, forbidden: true},
		{name: "429", err: &snow.TransportError{StatusCode: http.StatusTooManyRequests}, retriable: true},
		{name: "503", err: &snow.TransportError{StatusCode: http.StatusServiceUnavailable}, retriable: true},
		{name: "400", err: &snow.TransportError{StatusCode: http.StatusBadRequest}},
		{name: "decode", err: &snow.DecodeError{Body: "x", Err: snow.ErrNilResult}},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.unauthorized, snow.IsUnauthorized(tt.err))
			assert.Equal(t, tt.forbidden, snow.IsForbidden(tt.err))
			assert.Equal(t, tt.retriable, snow.IsRetriable(tt.err))
		})
	}
}

func TestCanceled(t *testing.T) {
	t.Parallel()

	err := snow.Canceled(context.Canceled)

	require.ErrorIs(t, err, snow.ErrCanceled)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, snow.IsCanceled(err))
	assert.False(t, snow.IsRetriable(err))

	deadline := snow.Canceled(context.DeadlineExceeded)
	assert.True(t, snow.IsCanceled(deadline))
	assert.True(t, snow.IsTimeout(deadline))
}

func TestCountMismatchError(t *testing.T) {
	t.Parallel()

	err := &snow.CountMismatchError{Expected: 10, Actual: 9}
	assert.Equal(t, "expected 10 items but retrieved 9", err.Error())
}
