package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fivetwenty-io/snow/pkg/snow"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewMetaCommand creates the meta command.
func NewMetaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "meta CLASS",
		Short: "Show CMDB class metadata",
		Long:  "Display the attributes, children and relationship rules of a CMDB class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			defer client.Close()

			meta, err := client.Meta().GetForClass(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get metadata for %s: %w", args[0], err)
			}

			handled, err := renderStructured(cmd.OutOrStdout(), viper.GetString("output"), meta)
			if handled {
				return err
			}

			return renderMetaTable(cmd.OutOrStdout(), meta)
		},
	}
}

func renderMetaTable(out io.Writer, meta *snow.MetaDataResult) error {
	_, _ = fmt.Fprintf(out, "Class:    %s (%s)\n", meta.Name, meta.Label)
	_, _ = fmt.Fprintf(out, "Parent:   %s\n", meta.Parent)

	if len(meta.Children) > 0 {
		_, _ = fmt.Fprintf(out, "Children: %s\n", strings.Join(meta.Children, ", "))
	}

	if len(meta.Attributes) > 0 {
		_, _ = fmt.Fprintln(out, "\nAttributes:")

		table := tablewriter.NewWriter(out)
		table.Header("Name", "Label", "Type", "Mandatory", "Reference")

		for _, attribute := range meta.Attributes {
			_ = table.Append(attribute.Name, attribute.Label, attribute.Type, attribute.IsMandatory, attribute.ReferenceTo)
		}

		err := table.Render()
		if err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
	}

	if len(meta.RelationshipRules) > 0 {
		_, _ = fmt.Fprintln(out, "\nRelationship rules:")

		table := tablewriter.NewWriter(out)
		table.Header("Parent", "Relation", "Child")

		for _, rule := range meta.RelationshipRules {
			_ = table.Append(rule.Parent, rule.Relation, rule.Child)
		}

		err := table.Render()
		if err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
	}

	return nil
}
