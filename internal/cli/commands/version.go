package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapdriver/pkg/engine"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display leapdriver version and the engines compiled into this binary.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "leapdriver v%s\n", version)
			engines := engine.List()
			if len(engines) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Engines: none")
				return
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Engines: %s\n", strings.Join(engines, ", "))
		},
	}
}
