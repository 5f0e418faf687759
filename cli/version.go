package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version of the current build. overridden by the build system.
var Version string

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Print version information",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if Version == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Version information not available")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wsprobe version %s\n", Version)
			return nil
		},
	}
}
