package cobra

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/assertp4/assertp4/internal/version"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print assertp4 version",
		Long:  "Print the assertp4 version string.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "assertp4 %s\n", version.FullVersion())
		},
	}

	return cmd
}
