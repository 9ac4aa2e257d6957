package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/assertp4/assertp4/internal/config"
	"github.com/assertp4/assertp4/internal/errors"
	"github.com/assertp4/assertp4/internal/fs"
	"github.com/assertp4/assertp4/internal/verdict"
)

// DefaultBudget is the verification stage's time budget when the user
// supplies none.
const DefaultBudget = 300 * time.Second

// Per-stage timeouts for the compilation stages.
const (
	frontendTimeout  = 60 * time.Second
	translateTimeout = 120 * time.Second
	nativeTimeout    = 60 * time.Second
)

// Stage names, used as section labels in the cumulative log.
const (
	stageFrontend  = "P4C Compilation"
	stageTranslate = "P4 to C Translation"
	stageNative    = "Clang Compilation"
	stageEngine    = "KLEE Execution"
)

// Options configures one verification run.
type Options struct {
	// SourceFile is the P4 program under verification. The caller has
	// already checked it exists.
	SourceFile string

	// RulesFile is the optional forwarding-rules file. Passed to the
	// translator only if it exists.
	RulesFile string

	// Budget is the verification stage's timeout. Zero means DefaultBudget.
	Budget time.Duration

	// Tools is the resolved external tool chain.
	Tools config.Tools

	// Trace, when non-nil, receives per-stage progress lines (verbose mode).
	Trace io.Writer

	// TempRoot is the directory the scoped working directory is created
	// under. Empty means os.TempDir(). Cleanup is guarded to this prefix.
	TempRoot string
}

// Outcome is the result of a run: the report document plus whether the
// verification stage actually ran. Failures before the verification stage
// are CLI errors (exit 1); once the engine has run, even to a timeout or a
// nonzero exit, the process exits 0 and the verdict alone carries the news.
type Outcome struct {
	Report verdict.Report

	// ReachedVerification is true once stage 4 ran to exit or timeout.
	ReachedVerification bool
}

// Execute drives the four stages in order, feeding each stage's artifact to
// the next, and classifies the verification stage's outcome. A stage 1-3
// failure short-circuits to an error report with that stage's output as the
// detail message; later stages never run. The scoped working directory is
// removed on every exit path.
func Execute(ctx context.Context, ex Executor, opts Options) Outcome {
	start := time.Now()
	runID := uuid.NewString()

	budget := opts.Budget
	if budget == 0 {
		budget = DefaultBudget
	}
	tempRoot := opts.TempRoot
	if tempRoot == "" {
		tempRoot = os.TempDir()
	}

	fail := func(code errors.Code, details string) Outcome {
		return Outcome{Report: verdict.Report{
			RunID:     runID,
			Verdict:   verdict.Error,
			ErrorCode: code,
			TimeMS:    time.Since(start).Milliseconds(),
			Details:   details,
		}}
	}

	workDir := filepath.Join(tempRoot, "assertp4-"+runID)
	if err := os.Mkdir(workDir, 0o700); err != nil {
		return fail(errors.EWorkdirFailed, fmt.Sprintf("failed to create working directory: %v", err))
	}
	defer func() {
		if err := fs.SafeRemoveAll(workDir, tempRoot); err != nil {
			tracef(opts.Trace, "workdir cleanup failed: %v", err)
		}
	}()

	art := artifactsFor(workDir, opts.SourceFile)
	var log []string

	// Stage 1: front-end compile, source -> IR JSON.
	tracef(opts.Trace, "run %s: %s", runID, stageFrontend)
	res, err := ex.Run(ctx, StageSpec{
		Name:    stageFrontend,
		Command: opts.Tools.P4C,
		Args:    []string{opts.SourceFile, "--toJSON", art.IRFile},
		Timeout: frontendTimeout,
	})
	if err != nil {
		return fail(errors.EInternal, fmt.Sprintf("P4C error: %v", err))
	}
	if res.Cancelled {
		return fail(errors.EInterrupted, "interrupted during "+stageFrontend)
	}
	if res.TimedOut {
		return fail(errors.EInfraTimeout, "P4C timeout")
	}
	log = append(log, section(stageFrontend)+res.Combined())
	if !res.OK() || !fileExists(art.IRFile) {
		return fail(errors.ECompileFailed, "P4C compilation failed:\n"+res.Combined())
	}

	// Stage 2: IR -> C. The translator writes C source to stdout; only its
	// stderr belongs in the log.
	tracef(opts.Trace, "run %s: %s", runID, stageTranslate)
	translateArgs := []string{opts.Tools.TranslatorScript, art.IRFile}
	if opts.RulesFile != "" && fileExists(opts.RulesFile) {
		translateArgs = append(translateArgs, opts.RulesFile)
	}
	res, err = ex.Run(ctx, StageSpec{
		Name:    stageTranslate,
		Command: opts.Tools.Python,
		Args:    translateArgs,
		Dir:     opts.Tools.TranslatorDir(),
		Timeout: translateTimeout,
	})
	if err != nil {
		return fail(errors.EInternal, fmt.Sprintf("P4 to C translation error: %v", err))
	}
	if res.Cancelled {
		return fail(errors.EInterrupted, "interrupted during "+stageTranslate)
	}
	if res.TimedOut {
		return fail(errors.EInfraTimeout, "P4 to C translation timeout")
	}
	log = append(log, section(stageTranslate)+"stderr: "+res.Stderr)
	if !res.OK() {
		return fail(errors.ECompileFailed, "P4 to C translation failed:\n"+res.Stderr)
	}
	if err := os.WriteFile(art.CFile, []byte(res.Stdout), 0o644); err != nil {
		return fail(errors.EWorkdirFailed, fmt.Sprintf("failed to write generated C file: %v", err))
	}

	// Stage 3: C -> LLVM bitcode.
	tracef(opts.Trace, "run %s: %s", runID, stageNative)
	res, err = ex.Run(ctx, StageSpec{
		Name:    stageNative,
		Command: opts.Tools.Clang,
		Args:    []string{"-emit-llvm", "-g", "-c", art.CFile, "-o", art.BCFile},
		Timeout: nativeTimeout,
	})
	if err != nil {
		return fail(errors.EInternal, fmt.Sprintf("Clang error: %v", err))
	}
	if res.Cancelled {
		return fail(errors.EInterrupted, "interrupted during "+stageNative)
	}
	if res.TimedOut {
		return fail(errors.EInfraTimeout, "Clang compilation timeout")
	}
	log = append(log, section(stageNative)+res.Combined())
	if !res.OK() || !fileExists(art.BCFile) {
		return fail(errors.ECompileFailed, "Clang compilation failed:\n"+res.Combined())
	}

	// Stage 4: symbolic execution. A timeout here is a reportable outcome,
	// not a pipeline error; the classifier decides.
	tracef(opts.Trace, "run %s: %s (budget %s)", runID, stageEngine, budget)
	res, err = ex.Run(ctx, StageSpec{
		Name:    stageEngine,
		Command: opts.Tools.KLEE,
		Args:    []string{"--search=dfs", "--output-dir=" + art.EngineOutDir, "--optimize", art.BCFile},
		Timeout: budget,
	})
	if err != nil {
		return fail(errors.EInternal, fmt.Sprintf("KLEE error: %v", err))
	}
	if res.Cancelled {
		return fail(errors.EInterrupted, "interrupted during "+stageEngine)
	}

	engineOutput := res.Combined()
	if res.TimedOut {
		log = append(log, section(stageEngine+" (Timeout)")+
			fmt.Sprintf("Timeout after %ds\n", int(budget.Seconds()))+engineOutput)
	} else {
		log = append(log, section(stageEngine)+engineOutput)
	}

	evidence := ScanEvidence(art.EngineOutDir)
	v := verdict.Classify(verdict.Input{
		Output:   engineOutput,
		TimedOut: res.TimedOut,
		ExitCode: res.ExitCode,
		Evidence: evidence,
	})
	tracef(opts.Trace, "run %s: verdict %s (%d evidence files)", runID, v, len(evidence))

	return Outcome{
		Report: verdict.Report{
			RunID:           runID,
			Verdict:         v,
			TimeMS:          time.Since(start).Milliseconds(),
			Details:         strings.Join(log, "\n"),
			AssertionErrors: evidence,
		},
		ReachedVerification: true,
	}
}

func section(name string) string {
	return "=== " + name + " ===\n"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func tracef(w io.Writer, format string, args ...any) {
	if w == nil {
		return
	}
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}
