package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/liamcoop/warden/internal/logger"
)

var logLevel string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wardenctl <command>",
		Short: "Decode payloads against warden descriptor files",
		Long: `wardenctl decodes JSON payloads the way the warden server decodes facts,
using descriptors read from a TOML file:

  [objects.User]
  Age = "int"
  JoinedAt = "timestamp"
  Tags = "list<string>"`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logger.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger.SetOutput(cmd.ErrOrStderr())
			logger.SetLevel(level)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(newDecodeCmd())
	rootCmd.AddCommand(newSchemaCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
