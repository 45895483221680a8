package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fivetwenty-io/snow/internal/client"
	"github.com/fivetwenty-io/snow/internal/constants"
	"github.com/fivetwenty-io/snow/pkg/snow"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useTestInstance points the CLI at server with basic auth credentials.
func useTestInstance(t *testing.T, server *httptest.Server) {
	t.Helper()

	useTempConfig(t)
	viper.Set("base_url", server.URL)
	viper.Set("username", "admin")
	viper.Set("password", "secret")
}

func runTableCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := NewTableCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestNewTableCommand(t *testing.T) {
	cmd := NewTableCommand()
	assert.Equal(t, "table", cmd.Use)
	assert.Equal(t, []string{"tables", "t"}, cmd.Aliases)

	for _, name := range []string{"list", "get", "create", "update", "patch", "delete"} {
		assert.NotNil(t, findSubcommand(cmd, name), "subcommand %s should exist", name)
	}

	list := findSubcommand(cmd, "list")
	for _, flagName := range []string{"query", "fields", "extra", "offset", "limit", "all", "page-size", "strict"} {
		assert.NotNil(t, list.Flags().Lookup(flagName), "flag %s should exist", flagName)
	}

	assert.Equal(t, "20", list.Flags().Lookup("limit").DefValue)

	deleteCmd := findSubcommand(cmd, "delete")
	assert.Equal(t, "f", deleteCmd.Flags().Lookup("force").Shorthand)
	assert.Equal(t, "false", deleteCmd.Flags().Lookup("force").DefValue)
}

func TestTableListCommand(t *testing.T) {
	var query string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/now/table/incident", r.URL.Path)

		username, password, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", username)
		assert.Equal(t, "secret", password)

		query = r.URL.RawQuery
		client.WriteResult(w, http.StatusOK, []snow.Record{
			{"sys_id": "abc123", "number": "INC0010001"},
		}, 7)
	}))
	defer server.Close()

	useTestInstance(t, server)

	output, err := runTableCommand(t, "", "list", "incident", "-q", "active=true", "--offset", "5", "--limit", "1")
	require.NoError(t, err)

	assert.Equal(t, "sysparm_offset=5&sysparm_limit=1&sysparm_query=active%3Dtrue%5EORDERBYsys_created_on", query)
	assert.Contains(t, output, "INC0010001")
	assert.Contains(t, output, "Showing 1 records from offset 5 (total 7)")
}

func TestTableListAllCommand(t *testing.T) {
	var requests int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++

		if r.URL.Query().Get("sysparm_offset") == "0" {
			client.WriteResult(w, http.StatusOK, []snow.Record{{"sys_id": "1"}, {"sys_id": "2"}}, 3)

			return
		}

		client.WriteResult(w, http.StatusOK, []snow.Record{{"sys_id": "3"}}, 3)
	}))
	defer server.Close()

	useTestInstance(t, server)
	viper.Set("output", constants.FormatJSON)

	output, err := runTableCommand(t, "", "list", "incident", "--all", "--page-size", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, requests)

	var records []snow.Record
	require.NoError(t, json.Unmarshal([]byte(output), &records))
	require.Len(t, records, 3)
	assert.Equal(t, "3", records[2].SysID())
}

func TestTableCreateCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Printer on fire", body["short_description"])

		body["sys_id"] = "new123"
		client.WriteResult(w, http.StatusCreated, body, -1)
	}))
	defer server.Close()

	useTestInstance(t, server)
	viper.Set("output", constants.FormatJSON)

	output, err := runTableCommand(t, `{"short_description":"Printer on fire"}`, "create", "incident", "--file", "-")
	require.NoError(t, err)
	assert.Contains(t, output, `"sys_id": "new123"`)
}

func TestTableDeleteCommand(t *testing.T) {
	var (
		mu      sync.Mutex
		deleted []string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)

		sysID := filepath.Base(r.URL.Path)
		if sysID == "missing" {
			client.WriteFailure(w, http.StatusNotFound, "No Record found", "Record doesn't exist")

			return
		}

		mu.Lock()
		deleted = append(deleted, sysID)
		mu.Unlock()

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	useTestInstance(t, server)

	t.Run("forced", func(t *testing.T) {
		output, err := runTableCommand(t, "", "delete", "incident", "a1", "b2", "--force")
		require.NoError(t, err)
		assert.Contains(t, output, "Deleted incident/a1")
		assert.Contains(t, output, "Deleted incident/b2")
		assert.ElementsMatch(t, []string{"a1", "b2"}, deleted)
	})

	t.Run("declined", func(t *testing.T) {
		output, err := runTableCommand(t, "n\n", "delete", "incident", "c3")
		require.NoError(t, err)
		assert.Contains(t, output, "Delete cancelled")
		assert.NotContains(t, deleted, "c3")
	})

	t.Run("confirmed with failure", func(t *testing.T) {
		output, err := runTableCommand(t, "y\n", "delete", "incident", "d4", "missing")
		require.ErrorIs(t, err, constants.ErrDeleteFailed)
		assert.Contains(t, output, "Deleted incident/d4")
		assert.Contains(t, output, "Failed to delete missing")
	})
}

func TestReadRecordData(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "record.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"state":"2"}`), 0o600))

	tests := []struct {
		name    string
		stdin   string
		data    string
		file    string
		want    snow.Record
		wantErr error
	}{
		{name: "inline", data: `{"state":"1"}`, want: snow.Record{"state": "1"}},
		{name: "file", file: path, want: snow.Record{"state": "2"}},
		{name: "stdin", stdin: `{"state":"3"}`, file: "-", want: snow.Record{"state": "3"}},
		{name: "both", data: "{}", file: path, wantErr: constants.ErrDataAndFileExcluded},
		{name: "neither", wantErr: constants.ErrDataRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			record, err := readRecordData(strings.NewReader(tt.stdin), tt.data, tt.file)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, record)
		})
	}

	_, err := readRecordData(strings.NewReader(""), "not json", "")
	require.Error(t, err)
}

func TestConfirm(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	assert.True(t, confirm(strings.NewReader("y\n"), &out, "? "))
	assert.True(t, confirm(strings.NewReader("YES\n"), &out, "? "))
	assert.False(t, confirm(strings.NewReader("\n"), &out, "? "))
	assert.False(t, confirm(strings.NewReader(""), &out, "? "))
}
