package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fivetwenty-io/snow/internal/constants"
	"github.com/fivetwenty-io/snow/pkg/snow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderStructured(t *testing.T) {
	t.Parallel()

	data := map[string]string{"number": "INC0010001"}

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		handled, err := renderStructured(&buf, constants.FormatJSON, data)
		require.NoError(t, err)
		assert.True(t, handled)
		assert.JSONEq(t, `{"number":"INC0010001"}`, buf.String())
	})

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		handled, err := renderStructured(&buf, constants.FormatYAML, data)
		require.NoError(t, err)
		assert.True(t, handled)
		assert.Equal(t, "number: INC0010001\n", buf.String())
	})

	t.Run("table is left to the caller", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		handled, err := renderStructured(&buf, constants.FormatTable, data)
		require.NoError(t, err)
		assert.False(t, handled)
		assert.Empty(t, buf.String())
	})

	t.Run("invalid format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		handled, err := renderStructured(&buf, "xml", data)
		assert.True(t, handled)
		require.ErrorIs(t, err, constants.ErrInvalidOutputFormat)
	})
}

func TestRecordColumns(t *testing.T) {
	t.Parallel()

	records := []snow.Record{
		{"sys_id": "1", "short_description": "a", "number": "INC1"},
		{"sys_id": "2", "priority": "1"},
	}

	assert.Equal(t, []string{"sys_id", "number", "priority", "short_description"}, recordColumns(records, nil))
	assert.Equal(t, []string{"number"}, recordColumns(records, []string{"number"}))
}

func TestTruncateCell(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", truncateCell("short"))

	long := strings.Repeat("x", constants.MaxTableCellWidth+10)
	truncated := truncateCell(long)
	assert.Len(t, truncated, constants.MaxTableCellWidth)
	assert.True(t, strings.HasSuffix(truncated, "..."))
}

func TestRenderRecords(t *testing.T) {
	t.Parallel()

	records := []snow.Record{
		{"sys_id": "abc123", "number": "INC0010001"},
		{"sys_id": "def456", "number": "INC0010002"},
	}

	t.Run("table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		require.NoError(t, renderRecords(&buf, constants.FormatTable, records, nil))
		assert.Contains(t, buf.String(), "abc123")
		assert.Contains(t, buf.String(), "INC0010002")
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		require.NoError(t, renderRecords(&buf, constants.FormatJSON, records, nil))

		var decoded []snow.Record
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, records, decoded)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		require.NoError(t, renderRecords(&buf, constants.FormatTable, nil, nil))
		assert.Equal(t, "No records found\n", buf.String())
	})
}

func TestRenderRecord(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, renderRecord(&buf, constants.FormatTable, snow.Record{"sys_id": "abc123", "state": "2"}))
	assert.Contains(t, buf.String(), "abc123")
	assert.Contains(t, buf.String(), "state")
}

func TestRenderMetaTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	meta := &snow.MetaDataResult{
		Name:     "cmdb_ci_linux_server",
		Label:    "Linux Server",
		Parent:   "cmdb_ci_server",
		Children: []string{"cmdb_ci_esx_server"},
		Attributes: []snow.MetaDataAttribute{
			{Name: "os_version", Label: "OS Version", Type: "string", IsMandatory: "false"},
		},
		RelationshipRules: []snow.RelationshipRule{
			{Parent: "cmdb_ci_linux_server", Relation: "Runs on::Runs", Child: "cmdb_ci_app_server"},
		},
	}

	require.NoError(t, renderMetaTable(&buf, meta))

	output := buf.String()
	assert.Contains(t, output, "Class:    cmdb_ci_linux_server (Linux Server)")
	assert.Contains(t, output, "Children: cmdb_ci_esx_server")
	assert.Contains(t, output, "os_version")
	assert.Contains(t, output, "Runs on::Runs")
}
