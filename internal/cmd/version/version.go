package version

import (
	"fmt"

	spotoperator "github.com/norseto/kube-spot-operator"
	"github.com/spf13/cobra"
)

// NewCommand returns a command that prints application version information.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "version: %s\nGitVersion: %s\n", spotoperator.RELEASE_VERSION, spotoperator.GitVersion)
		},
	}
}
