package commands

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/snow/internal/constants"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewAttachmentsCommand creates the attachments command group.
func NewAttachmentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "attachments",
		Aliases: []string{"attachment", "att"},
		Short:   "Manage record attachments",
		Long:    "List and download files attached to table records",
	}

	cmd.AddCommand(newAttachmentsListCommand())
	cmd.AddCommand(newAttachmentsDownloadCommand())

	return cmd
}

func newAttachmentsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list TABLE SYS_ID",
		Short: "List attachments of a record",
		Long:  "List the files attached to a table record",
		Args:  cobra.ExactArgs(constants.MinimumArgumentCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			defer client.Close()

			attachments, err := client.Attachments().List(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to list attachments: %w", err)
			}

			out := cmd.OutOrStdout()

			handled, err := renderStructured(out, viper.GetString("output"), attachments)
			if handled {
				return err
			}

			if len(attachments) == 0 {
				_, _ = fmt.Fprintf(out, "No attachments found for %s/%s\n", args[0], args[1])

				return nil
			}

			table := tablewriter.NewWriter(out)
			table.Header("Sys ID", "File Name", "Content Type", "Size (bytes)", "Created")

			for _, attachment := range attachments {
				_ = table.Append(attachment.SysID, attachment.FileName, attachment.ContentType,
					attachment.SizeBytes, attachment.SysCreatedOn)
			}

			err = table.Render()
			if err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}

func newAttachmentsDownloadCommand() *cobra.Command {
	var (
		outputDir string
		fileName  string
	)

	cmd := &cobra.Command{
		Use:   "download ATTACHMENT_SYS_ID",
		Short: "Download an attachment",
		Long:  "Download an attachment to a directory, keeping its file name unless --name is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.DownloadHTTPTimeout)
			defer cancel()

			attachment, err := client.Attachments().Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get attachment: %w", err)
			}

			path, err := client.Attachments().Download(ctx, attachment, outputDir, fileName)
			if err != nil {
				return fmt.Errorf("failed to download attachment: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s to %s\n", attachment.FileName, path)

			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "dir", ".", "output directory")
	cmd.Flags().StringVar(&fileName, "name", "", "file name to write (default: the attachment's name)")

	return cmd
}
