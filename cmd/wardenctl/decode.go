package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/liamcoop/warden/coerce"
	"github.com/liamcoop/warden/internal/logger"
)

func newDecodeCmd() *cobra.Command {
	var (
		schemaPath string
		object     string
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "decode [FILE.json|-]",
		Short: "Decode a JSON payload against a descriptor file",
		Long: `Decode a JSON object, or an array of objects, read from FILE or stdin.
Lenient decoding reports values that could not be coerced on stderr and keeps them
as sent; --strict fails on the first one instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := loadSchema(schemaPath)
			if err != nil {
				return err
			}
			desc, err := resolveDescriptor(schema, object)
			if err != nil {
				return err
			}

			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			opts := []coerce.Option{coerce.WithMismatchHook(func(m *coerce.TypeMismatchError) {
				logger.DecodeMismatch(schemaPath, m.Path, m.Expected.String(), m.Actual)
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", m)
			})}
			if strict {
				opts = append(opts, coerce.WithStrict())
			}

			out, err := decode(coerce.NewDecoder(opts...), input, desc)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "TOML descriptor file (required)")
	cmd.Flags().StringVar(&object, "object", "", "decode against a single object instead of all of them")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on values that do not match their descriptor")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

// decode coerces one object, or each object of an array, into plain JSON values
func decode(dec *coerce.Decoder, input any, desc *coerce.ObjectDescriptor) (any, error) {
	if items, ok := input.([]any); ok {
		out, err := dec.Coerce(items, coerce.List(desc))
		if err != nil {
			return nil, err
		}
		return coerce.Plain(out), nil
	}

	if _, ok := input.(map[string]any); !ok && !dec.Strict() {
		// Not an object: lenient decoding hands it back unchanged
		out, _ := dec.Coerce(input, desc)
		return out, nil
	}

	rec, err := dec.DecodeInto(nil, input, desc)
	if err != nil {
		return nil, err
	}
	return coerce.Plain(rec), nil
}

func readInput(cmd *cobra.Command, args []string) (any, error) {
	var r io.Reader = cmd.InOrStdin()
	name := "stdin"
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r, name = f, args[0]
	}

	var input any
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return input, nil
}
