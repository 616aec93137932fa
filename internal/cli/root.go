// Package cli implements seatctl, the operator tool for loading the
// conference program and minting development tokens.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/session-seat-reservation/internal/config"
	"github.com/iliyamo/session-seat-reservation/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile  string
	LogLevel string
}

// NewRootCommand creates the seatctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "seatctl",
		Short:         "Operate the session seat reservation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.EnvFile != "" {
				config.LoadEnvFile(opts.EnvFile)
			}
			return logging.SetLevel(opts.LogLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "file to read environment variables from")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "debug|info|warn|error|off")

	cmd.AddCommand(NewSeedCommand())
	cmd.AddCommand(NewSyncCommand())
	cmd.AddCommand(NewTokenCommand())
	return cmd
}
