// Command assertp4 is a verification oracle for assertions in P4 programs.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/assertp4/assertp4/internal/cli/cobra"
	"github.com/assertp4/assertp4/internal/errors"
)

func main() {
	// Optional .env with ASSERTP4_* tool-path overrides.
	_ = godotenv.Load()

	err := cobra.Execute(os.Stdout, os.Stderr)
	if err != nil {
		opts := errors.PrintOptions{
			Verbose: cobra.GetGlobalOpts().Verbose,
		}
		errors.PrintWithOptions(os.Stderr, err, opts)
		os.Exit(errors.ExitCode(err))
	}
}
