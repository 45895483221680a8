package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewLinkCommand creates the link command.
func NewLinkCommand() *cobra.Command {
	var fields []string

	cmd := &cobra.Command{
		Use:   "link URL",
		Short: "Resolve a reference link",
		Long:  "Fetch the record a reference field's link points at",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			defer client.Close()

			record, err := client.Links().Resolve(cmd.Context(), args[0], fields)
			if err != nil {
				return fmt.Errorf("failed to resolve link: %w", err)
			}

			return renderRecord(cmd.OutOrStdout(), viper.GetString("output"), record)
		},
	}

	cmd.Flags().StringSliceVarP(&fields, "fields", "f", nil, "fields to return")

	return cmd
}
