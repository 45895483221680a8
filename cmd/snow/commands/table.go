package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fivetwenty-io/snow/internal/constants"
	"github.com/fivetwenty-io/snow/pkg/snow"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewTableCommand creates the table command group.
func NewTableCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "table",
		Aliases: []string{"tables", "t"},
		Short:   "Manage table records",
		Long:    "Query, create, update and delete records of any table",
	}

	cmd.AddCommand(newTableListCommand())
	cmd.AddCommand(newTableGetCommand())
	cmd.AddCommand(newTableCreateCommand())
	cmd.AddCommand(newTableWriteCommand("update", "Replace a record", "Replace the fields of a record (PUT)"))
	cmd.AddCommand(newTableWriteCommand("patch", "Patch a record", "Update only the given fields of a record (PATCH)"))
	cmd.AddCommand(newTableDeleteCommand())

	return cmd
}

func newTableListCommand() *cobra.Command {
	var (
		query       string
		fields      []string
		extra       string
		offset      int
		limit       int
		allPages    bool
		pageSize    int
		strictCount bool
	)

	cmd := &cobra.Command{
		Use:   "list TABLE",
		Short: "List records",
		Long: `List the records of a table matching an encoded query.

Results are ordered by sys_created_on unless the query has an ORDERBY clause.
With --all every page is fetched; otherwise a single page of --limit rows
starting at --offset is shown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			defer client.Close()

			table := client.Table(args[0])
			out := cmd.OutOrStdout()
			output := viper.GetString("output")

			if allPages {
				opts := &snow.PaginationOptions{
					PageSize:    pageSize,
					StrictCount: strictCount || viper.GetBool("strict_count"),
				}

				if opts.PageSize <= 0 {
					opts.PageSize = viper.GetInt("page_size")
				}

				if opts.PageSize <= 0 {
					opts.PageSize = snow.DefaultPageSize
				}

				result, err := table.GetAll(ctx, snow.QueryRequest{Query: query, Fields: fields, Extra: extra}, opts)
				if err != nil {
					return fmt.Errorf("failed to list %s records: %w", args[0], err)
				}

				err = renderRecords(out, output, result.Items, fields)
				if err != nil {
					return err
				}

				if output == constants.FormatTable || output == "" {
					_, _ = fmt.Fprintf(out, "\nRetrieved %d records in %d pages%s\n",
						len(result.Items), result.Pages, formatTotal(result.TotalCount))
				}

				return nil
			}

			page, err := table.GetPage(ctx, snow.PageRequest{
				Offset: offset,
				Limit:  limit,
				Query:  query,
				Fields: fields,
				Extra:  extra,
			})
			if err != nil {
				return fmt.Errorf("failed to list %s records: %w", args[0], err)
			}

			err = renderRecords(out, output, page.Items, fields)
			if err != nil {
				return err
			}

			if output == constants.FormatTable || output == "" {
				_, _ = fmt.Fprintf(out, "\nShowing %d records from offset %d%s\n",
					len(page.Items), offset, formatTotal(page.TotalCount))
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "encoded query, e.g. active=true^priority=1")
	cmd.Flags().StringSliceVarP(&fields, "fields", "f", nil, "fields to return")
	cmd.Flags().StringVar(&extra, "extra", "", "extra encoded query parameters, e.g. sysparm_display_value=true")
	cmd.Flags().IntVar(&offset, "offset", 0, "index of the first record")
	cmd.Flags().IntVar(&limit, "limit", constants.DefaultCLIPageSize, "records per page")
	cmd.Flags().BoolVar(&allPages, "all", false, "fetch all pages")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "page size used with --all")
	cmd.Flags().BoolVar(&strictCount, "strict", false, "fail when the record count differs from the reported total")

	return cmd
}

func formatTotal(total *int) string {
	if total == nil {
		return ""
	}

	return fmt.Sprintf(" (total %d)", *total)
}

func newTableGetCommand() *cobra.Command {
	var fields []string

	cmd := &cobra.Command{
		Use:   "get TABLE SYS_ID",
		Short: "Get a record",
		Long:  "Display a single record by sys_id",
		Args:  cobra.ExactArgs(constants.MinimumArgumentCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			defer client.Close()

			record, err := client.Table(args[0]).Get(cmd.Context(), args[1], fields)
			if err != nil {
				return fmt.Errorf("failed to get %s record: %w", args[0], err)
			}

			return renderRecord(cmd.OutOrStdout(), viper.GetString("output"), *record)
		},
	}

	cmd.Flags().StringSliceVarP(&fields, "fields", "f", nil, "fields to return")

	return cmd
}

func newTableCreateCommand() *cobra.Command {
	var data, file string

	cmd := &cobra.Command{
		Use:   "create TABLE",
		Short: "Create a record",
		Long:  "Create a record from a JSON object given with --data or --file (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := readRecordData(cmd.InOrStdin(), data, file)
			if err != nil {
				return err
			}

			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			defer client.Close()

			created, err := client.Table(args[0]).Create(cmd.Context(), &record)
			if err != nil {
				return fmt.Errorf("failed to create %s record: %w", args[0], err)
			}

			return renderRecord(cmd.OutOrStdout(), viper.GetString("output"), *created)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "record fields as a JSON object")
	cmd.Flags().StringVar(&file, "file", "", "file holding the record JSON")

	return cmd
}

func newTableWriteCommand(use, short, long string) *cobra.Command {
	var data, file string

	cmd := &cobra.Command{
		Use:   use + " TABLE SYS_ID",
		Short: short,
		Long:  long + " from a JSON object given with --data or --file (- reads stdin)",
		Args:  cobra.ExactArgs(constants.MinimumArgumentCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := readRecordData(cmd.InOrStdin(), data, file)
			if err != nil {
				return err
			}

			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			defer client.Close()

			table := client.Table(args[0])

			write := table.Patch
			if use == "update" {
				write = table.Update
			}

			updated, err := write(cmd.Context(), args[1], &record)
			if err != nil {
				return fmt.Errorf("failed to %s %s record: %w", use, args[0], err)
			}

			return renderRecord(cmd.OutOrStdout(), viper.GetString("output"), *updated)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "record fields as a JSON object")
	cmd.Flags().StringVar(&file, "file", "", "file holding the record JSON")

	return cmd
}

func newTableDeleteCommand() *cobra.Command {
	var (
		force       bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "delete TABLE SYS_ID...",
		Short: "Delete records",
		Long:  "Delete one or more records by sys_id. Several records are deleted concurrently.",
		Args:  cobra.MinimumNArgs(constants.MinimumArgumentCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			tableName, sysIDs := args[0], args[1:]
			out := cmd.OutOrStdout()

			if !force && !confirm(cmd.InOrStdin(), out, fmt.Sprintf("Delete %d record(s) from %s? (y/N): ", len(sysIDs), tableName)) {
				_, _ = fmt.Fprintln(out, "Delete cancelled")

				return nil
			}

			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			defer client.Close()

			builder := snow.NewBatchBuilder[snow.Record]()
			for _, sysID := range sysIDs {
				builder.AddDelete(sysID, sysID)
			}

			executor := snow.NewBatchExecutor(client.Table(tableName), concurrency)
			results := executor.Execute(cmd.Context(), builder.Build())

			failed := 0

			for _, result := range results {
				if result.Error != nil {
					failed++

					_, _ = fmt.Fprintf(out, "Failed to delete %s: %v\n", result.ID, result.Error)

					continue
				}

				_, _ = fmt.Fprintf(out, "Deleted %s/%s\n", tableName, result.ID)
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d deletes failed", constants.ErrDeleteFailed, failed, len(results))
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "delete without confirmation")
	cmd.Flags().IntVar(&concurrency, "concurrency", constants.DefaultConcurrencyLimit, "parallel deletes")

	return cmd
}

// readRecordData parses the record JSON from --data or --file.
func readRecordData(stdin io.Reader, data, file string) (snow.Record, error) {
	if data != "" && file != "" {
		return nil, constants.ErrDataAndFileExcluded
	}

	var raw []byte

	switch {
	case data != "":
		raw = []byte(data)
	case file == "-":
		content, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}

		raw = content
	case file != "":
		content, err := os.ReadFile(file) // #nosec G304 -- user-selected input file
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}

		raw = content
	default:
		return nil, constants.ErrDataRequired
	}

	var record snow.Record

	err := json.Unmarshal(raw, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to parse record JSON: %w", err)
	}

	return record, nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	_, _ = fmt.Fprint(out, prompt)

	answer, _ := bufio.NewReader(in).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))

	return answer == "y" || answer == "yes"
}
