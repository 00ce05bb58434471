package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/liamcoop/warden/coerce"
)

func newSchemaCmd() *cobra.Command {
	var (
		schemaPath string
		object     string
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of a descriptor file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := loadSchema(schemaPath)
			if err != nil {
				return err
			}
			desc, err := resolveDescriptor(schema, object)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(coerce.JSONSchema(desc))
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "TOML descriptor file (required)")
	cmd.Flags().StringVar(&object, "object", "", "print a single object instead of all of them")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}
