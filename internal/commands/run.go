// Package commands implements assertp4 CLI commands.
package commands

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/assertp4/assertp4/internal/config"
	"github.com/assertp4/assertp4/internal/errors"
	"github.com/assertp4/assertp4/internal/pipeline"
	"github.com/assertp4/assertp4/internal/verdict"
)

// Usage is the run command's usage line, embedded in usage-error documents.
const Usage = "Usage: assertp4 run <p4_file> [forwarding_rules.txt] [timeout_seconds]"

// RunOpts holds options for the run command.
type RunOpts struct {
	// Args are the raw positional arguments: source file, then optionally
	// a rules file and/or a timeout in seconds.
	Args []string

	// ConfigPath is an optional JSON tool config file.
	ConfigPath string

	// Verbose enables a per-stage progress trace on stderr.
	Verbose bool
}

// Run executes one verification run and emits exactly one report document.
//
// Exit-code contract: failures before the verification stage (usage, missing
// source, stage 1-3 failures) exit 1; once the engine has run, even to a
// timeout or nonzero exit, the process exits 0 and the verdict carries the
// outcome. The document goes to stdout in every case except a usage error,
// which goes to stderr.
func Run(ctx context.Context, ex pipeline.Executor, opts RunOpts, stdout, stderr io.Writer) error {
	if len(opts.Args) < 1 {
		verdict.Emit(stderr, verdict.Report{Verdict: verdict.Error, ErrorCode: errors.EUsage, Details: Usage})
		return errors.Exit(1)
	}

	source, rules, budget, err := parseRunArgs(opts.Args)
	if err != nil {
		verdict.Emit(stderr, verdict.Report{Verdict: verdict.Error, ErrorCode: errors.EUsage, Details: err.Error() + "\n" + Usage})
		return errors.Exit(1)
	}

	if !isFile(source) {
		verdict.Emit(stdout, verdict.Report{Verdict: verdict.Error, ErrorCode: errors.ESourceNotFound, Details: "P4 file not found: " + source})
		return errors.Exit(1)
	}

	tools, err := config.Resolve(opts.ConfigPath)
	if err != nil {
		verdict.Emit(stdout, verdict.Report{Verdict: verdict.Error, ErrorCode: errors.GetCode(err), Details: err.Error()})
		return errors.Exit(1)
	}

	var trace io.Writer
	if opts.Verbose {
		trace = stderr
	}

	outcome := pipeline.Execute(ctx, ex, pipeline.Options{
		SourceFile: source,
		RulesFile:  rules,
		Budget:     budget,
		Tools:      tools,
		Trace:      trace,
	})

	verdict.Emit(stdout, outcome.Report)
	if !outcome.ReachedVerification {
		return errors.Exit(1)
	}
	return nil
}

// parseRunArgs applies the positional heuristics: the second argument is a
// rules file only if it is not purely numeric, and the last argument is the
// timeout only if it is purely numeric. An explicit zero timeout is rejected
// rather than silently falling back to the default.
func parseRunArgs(args []string) (source, rules string, budget time.Duration, err error) {
	source = args[0]
	if len(args) > 1 && !isNumeric(args[1]) {
		rules = args[1]
	}
	budget = pipeline.DefaultBudget
	if last := args[len(args)-1]; isNumeric(last) {
		secs, _ := strconv.Atoi(last)
		if secs == 0 {
			return "", "", 0, stderrors.New("timeout_seconds must be a positive number")
		}
		budget = time.Duration(secs) * time.Second
	}
	return source, rules, budget, nil
}

// isNumeric reports whether s is non-empty and all decimal digits.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
