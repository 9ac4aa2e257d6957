package cobra

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/assertp4/assertp4/internal/commands"
	"github.com/assertp4/assertp4/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run <p4_file> [forwarding_rules.txt] [timeout_seconds]",
		Short: "Verify the assertions in a P4 program",
		Long: `Verify the assertions in a P4 program and emit one JSON verdict document.

Arguments:
  p4_file                the P4 source file to verify (required)
  forwarding_rules.txt   optional forwarding rules for the translator;
                         treated as a rules file only if not purely numeric
  timeout_seconds        verification time budget; the last argument is the
                         timeout only if purely numeric (default 300)

The document carries: verdict (true/false/unknown/error), time_ms, details
(newline-joined stage logs), and assertion_errors when evidence was found.`,
		Args: cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			stderr := cmd.ErrOrStderr()

			ex := pipeline.NewExecRunner()

			// SIGINT cancels the run; the current stage's process group is
			// killed and the working directory removed before exit.
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, os.Interrupt)
				<-sigCh
				cancel()
			}()

			opts := commands.RunOpts{
				Args:       args,
				ConfigPath: configPath,
				Verbose:    GetGlobalOpts().Verbose,
			}

			return commands.Run(ctx, ex, opts, stdout, stderr)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "JSON tool config file (overrides built-in tool paths)")

	return cmd
}
