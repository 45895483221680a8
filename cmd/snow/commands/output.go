package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/fivetwenty-io/snow/internal/constants"
	"github.com/fivetwenty-io/snow/pkg/snow"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

func isValidOutputFormat(format string) bool {
	switch format {
	case constants.FormatJSON, constants.FormatYAML, constants.FormatTable:
		return true
	default:
		return false
	}
}

// renderStructured writes data as JSON or YAML. It reports false for the
// table format, which callers render themselves.
func renderStructured(out io.Writer, format string, data interface{}) (bool, error) {
	switch format {
	case constants.FormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")

		return true, encoder.Encode(data)
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(out)
		defer func() { _ = encoder.Close() }()

		return true, encoder.Encode(data)
	case constants.FormatTable, "":
		return false, nil
	default:
		return true, fmt.Errorf("%w: %q", constants.ErrInvalidOutputFormat, format)
	}
}

// recordColumns returns fields, or every key of records with sys_id first.
func recordColumns(records []snow.Record, fields []string) []string {
	if len(fields) > 0 {
		return fields
	}

	seen := make(map[string]bool)
	columns := make([]string, 0)

	for _, record := range records {
		for key := range record {
			if !seen[key] && key != snow.FieldSysID {
				seen[key] = true
				columns = append(columns, key)
			}
		}
	}

	sort.Strings(columns)

	return append([]string{snow.FieldSysID}, columns...)
}

func truncateCell(value string) string {
	runes := []rune(value)
	if len(runes) <= constants.MaxTableCellWidth {
		return value
	}

	return string(runes[:constants.MaxTableCellWidth-3]) + "..."
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, value := range values {
		cells[i] = value
	}

	return cells
}

// renderRecords writes rows in the requested format. Table output has one
// column per field.
func renderRecords(out io.Writer, format string, records []snow.Record, fields []string) error {
	handled, err := renderStructured(out, format, records)
	if handled {
		return err
	}

	if len(records) == 0 {
		_, _ = fmt.Fprintln(out, "No records found")

		return nil
	}

	columns := recordColumns(records, fields)

	table := tablewriter.NewWriter(out)
	table.Header(toCells(columns)...)

	for _, record := range records {
		row := make([]string, len(columns))
		for i, column := range columns {
			row[i] = truncateCell(record.String(column))
		}

		_ = table.Append(toCells(row)...)
	}

	err = table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// renderRecord writes one row; table output lists field/value pairs.
func renderRecord(out io.Writer, format string, record snow.Record) error {
	handled, err := renderStructured(out, format, record)
	if handled {
		return err
	}

	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	table := tablewriter.NewWriter(out)
	table.Header("Field", "Value")

	for _, key := range keys {
		_ = table.Append(key, truncateCell(record.String(key)))
	}

	err = table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}
