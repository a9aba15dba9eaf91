package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragkit/internal/version"
)

// NewVersionCmd constructs the `ragkit version` command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ragkit version, commit and build date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}
