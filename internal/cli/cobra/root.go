// Package cobra provides the Cobra-based CLI command tree for assertp4.
package cobra

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/assertp4/assertp4/internal/version"
)

// GlobalOpts holds global options parsed before subcommand dispatch.
type GlobalOpts struct {
	Verbose bool
}

// globalOpts stores the parsed global options for access by subcommands.
var globalOpts GlobalOpts

// GetGlobalOpts returns the parsed global options.
func GetGlobalOpts() GlobalOpts {
	return globalOpts
}

// NewRootCmd creates the root cobra command for assertp4.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "assertp4",
		Short: "Assertion verification oracle for P4 programs",
		Long: `assertp4 - assertion verification oracle for P4 programs

Assertp4 compiles a P4 program, translates it to C, compiles the result to
LLVM bitcode, and runs KLEE symbolic execution over it, reducing the whole
run to one JSON verdict document: true, false, unknown, or error.`,
		Version:       version.FullVersion(),
		SilenceErrors: true, // error printing happens in main.go
		SilenceUsage:  true, // usage printing is handled manually
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&globalOpts.Verbose, "verbose", false, "show per-stage progress and error context")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newRunCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the root command with the given output writers.
// This is the main entry point from main.go.
func Execute(stdout, stderr io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.Execute()
}
