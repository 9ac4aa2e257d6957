package cobra

import (
	"github.com/spf13/cobra"

	"github.com/assertp4/assertp4/internal/commands"
	"github.com/assertp4/assertp4/internal/pipeline"
)

func newDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the external tool chain is installed",
		Long: `Check that the external tool chain is installed.
Verifies the front-end compiler, the translator script, the Python
interpreter, clang, and klee are resolvable, and shows their paths.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ex := pipeline.NewExecRunner()
			opts := commands.DoctorOpts{ConfigPath: configPath}
			return commands.Doctor(cmd.Context(), ex, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "JSON tool config file (overrides built-in tool paths)")

	return cmd
}
