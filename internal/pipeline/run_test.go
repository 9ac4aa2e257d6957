package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/assertp4/assertp4/internal/config"
	"github.com/assertp4/assertp4/internal/errors"
	"github.com/assertp4/assertp4/internal/verdict"
)

// fakeExecutor scripts stage outcomes by stage name and records the order
// stages were spawned in.
type fakeExecutor struct {
	handlers map[string]func(spec StageSpec) StageResult
	calls    []StageSpec
}

func (f *fakeExecutor) Run(ctx context.Context, spec StageSpec) (StageResult, error) {
	f.calls = append(f.calls, spec)
	if h, ok := f.handlers[spec.Name]; ok {
		return h(spec), nil
	}
	return okResult(""), nil
}

func (f *fakeExecutor) LookPath(file string) (string, error) {
	return "/usr/bin/" + file, nil
}

func (f *fakeExecutor) stageNames() []string {
	names := make([]string, len(f.calls))
	for i, c := range f.calls {
		names[i] = c.Name
	}
	return names
}

func okResult(stdout string) StageResult {
	code := 0
	return StageResult{Stdout: stdout, ExitCode: &code}
}

func failedResult(code int, stderr string) StageResult {
	return StageResult{Stderr: stderr, ExitCode: &code}
}

// Argument positions within the fixed stage invocations.
func irPath(spec StageSpec) string { return spec.Args[2] }
func cPath(spec StageSpec) string  { return spec.Args[3] }
func bcPath(spec StageSpec) string { return spec.Args[5] }
func engineOutDir(spec StageSpec) string {
	return strings.TrimPrefix(spec.Args[1], "--output-dir=")
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

// passingHandlers returns handlers for a run where every stage succeeds and
// the engine prints engineOutput after (optionally) writing evidence files.
func passingHandlers(t *testing.T, cSource, engineOutput string, evidence map[string]string, engineResult func(StageResult) StageResult) map[string]func(StageSpec) StageResult {
	t.Helper()
	return map[string]func(StageSpec) StageResult{
		stageFrontend: func(spec StageSpec) StageResult {
			touch(t, irPath(spec))
			return okResult("parsed 1 program\n")
		},
		stageTranslate: func(spec StageSpec) StageResult {
			res := okResult(cSource)
			res.Stderr = "translated 4 tables\n"
			return res
		},
		stageNative: func(spec StageSpec) StageResult {
			touch(t, bcPath(spec))
			return okResult("")
		},
		stageEngine: func(spec StageSpec) StageResult {
			outDir := engineOutDir(spec)
			if err := os.Mkdir(outDir, 0o755); err != nil {
				t.Fatal(err)
			}
			for name, content := range evidence {
				if err := os.WriteFile(filepath.Join(outDir, name), []byte(content), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			res := okResult(engineOutput)
			if engineResult != nil {
				res = engineResult(res)
			}
			return res
		},
	}
}

func execute(t *testing.T, ex Executor, opts Options) Outcome {
	t.Helper()
	if opts.SourceFile == "" {
		opts.SourceFile = filepath.Join(t.TempDir(), "prog.p4")
		touch(t, opts.SourceFile)
	}
	if opts.TempRoot == "" {
		opts.TempRoot = t.TempDir()
	}
	return Execute(context.Background(), ex, opts)
}

func assertWorkdirRemoved(t *testing.T, tempRoot string) {
	t.Helper()
	entries, err := os.ReadDir(tempRoot)
	if err != nil {
		t.Fatalf("read temp root: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("working directory survived the run: %v", entries)
	}
}

func TestExecute_CleanPass(t *testing.T) {
	ex := &fakeExecutor{handlers: passingHandlers(t,
		"int main() { return 0; }\n",
		"KLEE: done: completed paths = 12\n",
		nil, nil)}
	tempRoot := t.TempDir()

	outcome := execute(t, ex, Options{TempRoot: tempRoot, Tools: config.Defaults()})

	if outcome.Report.Verdict != verdict.True {
		t.Errorf("verdict = %q, want true (details: %s)", outcome.Report.Verdict, outcome.Report.Details)
	}
	if !outcome.ReachedVerification {
		t.Error("ReachedVerification = false, want true")
	}
	if outcome.Report.AssertionErrors != nil {
		t.Errorf("AssertionErrors = %v, want nil", outcome.Report.AssertionErrors)
	}
	if outcome.Report.ErrorCode != "" {
		t.Errorf("ErrorCode = %q, want empty on a clean pass", outcome.Report.ErrorCode)
	}

	wantStages := []string{stageFrontend, stageTranslate, stageNative, stageEngine}
	got := ex.stageNames()
	if len(got) != len(wantStages) {
		t.Fatalf("stages run = %v, want %v", got, wantStages)
	}
	for i := range wantStages {
		if got[i] != wantStages[i] {
			t.Errorf("stage[%d] = %q, want %q", i, got[i], wantStages[i])
		}
	}

	// Every stage is labeled in the cumulative log.
	for _, name := range wantStages {
		if !strings.Contains(outcome.Report.Details, "=== "+name+" ===") {
			t.Errorf("details missing section for %q", name)
		}
	}
	// The translator's stdout is the artifact; only stderr is logged.
	if strings.Contains(outcome.Report.Details, "int main()") {
		t.Error("generated C leaked into the log")
	}
	if !strings.Contains(outcome.Report.Details, "stderr: translated 4 tables") {
		t.Error("translator stderr missing from the log")
	}

	assertWorkdirRemoved(t, tempRoot)
}

func TestExecute_GeneratedCFedToNativeCompile(t *testing.T) {
	const cSource = "/* generated */ int main() { return 0; }\n"
	handlers := passingHandlers(t, cSource, "KLEE: done:\n", nil, nil)

	var seenC string
	inner := handlers[stageNative]
	handlers[stageNative] = func(spec StageSpec) StageResult {
		data, err := os.ReadFile(cPath(spec))
		if err != nil {
			t.Fatalf("generated C file missing: %v", err)
		}
		seenC = string(data)
		return inner(spec)
	}

	ex := &fakeExecutor{handlers: handlers}
	outcome := execute(t, ex, Options{Tools: config.Defaults()})

	if outcome.Report.Verdict != verdict.True {
		t.Fatalf("verdict = %q, want true", outcome.Report.Verdict)
	}
	if seenC != cSource {
		t.Errorf("C file content = %q, want the translator's stdout", seenC)
	}
}

func TestExecute_FrontendFailureShortCircuits(t *testing.T) {
	ex := &fakeExecutor{handlers: map[string]func(StageSpec) StageResult{
		stageFrontend: func(spec StageSpec) StageResult {
			return failedResult(2, "syntax error at line 14\n")
		},
	}}
	tempRoot := t.TempDir()

	outcome := execute(t, ex, Options{TempRoot: tempRoot, Tools: config.Defaults()})

	if outcome.Report.Verdict != verdict.Error {
		t.Errorf("verdict = %q, want error", outcome.Report.Verdict)
	}
	if outcome.ReachedVerification {
		t.Error("ReachedVerification = true for a stage-1 failure")
	}
	if !strings.Contains(outcome.Report.Details, "P4C compilation failed") ||
		!strings.Contains(outcome.Report.Details, "syntax error at line 14") {
		t.Errorf("details = %q, want the failing stage's output embedded", outcome.Report.Details)
	}
	if outcome.Report.ErrorCode != errors.ECompileFailed {
		t.Errorf("ErrorCode = %q, want %q", outcome.Report.ErrorCode, errors.ECompileFailed)
	}
	if len(ex.calls) != 1 {
		t.Errorf("stages spawned after the failure: %v", ex.stageNames())
	}
	assertWorkdirRemoved(t, tempRoot)
}

func TestExecute_MissingArtifactIsError(t *testing.T) {
	// Frontend exits 0 but never writes the IR file.
	ex := &fakeExecutor{handlers: map[string]func(StageSpec) StageResult{
		stageFrontend: func(spec StageSpec) StageResult { return okResult("looked fine\n") },
	}}

	outcome := execute(t, ex, Options{Tools: config.Defaults()})

	if outcome.Report.Verdict != verdict.Error {
		t.Errorf("verdict = %q, want error", outcome.Report.Verdict)
	}
	if len(ex.calls) != 1 {
		t.Errorf("stages spawned after missing artifact: %v", ex.stageNames())
	}
}

func TestExecute_TranslateTimeoutIsError(t *testing.T) {
	handlers := passingHandlers(t, "", "", nil, nil)
	handlers[stageTranslate] = func(spec StageSpec) StageResult {
		return StageResult{TimedOut: true}
	}
	ex := &fakeExecutor{handlers: handlers}

	outcome := execute(t, ex, Options{Tools: config.Defaults()})

	if outcome.Report.Verdict != verdict.Error {
		t.Errorf("verdict = %q, want error (stage 1-3 timeouts are infrastructure failures)", outcome.Report.Verdict)
	}
	if outcome.ReachedVerification {
		t.Error("ReachedVerification = true, want false")
	}
	if !strings.Contains(outcome.Report.Details, "P4 to C translation timeout") {
		t.Errorf("details = %q, want the timeout named", outcome.Report.Details)
	}
	if outcome.Report.ErrorCode != errors.EInfraTimeout {
		t.Errorf("ErrorCode = %q, want %q", outcome.Report.ErrorCode, errors.EInfraTimeout)
	}
	if len(ex.calls) != 2 {
		t.Errorf("stages run = %v, want exactly two", ex.stageNames())
	}
}

func TestExecute_EngineTimeoutIsUnknown(t *testing.T) {
	handlers := passingHandlers(t, "", "partial exploration\n", nil, func(res StageResult) StageResult {
		res.TimedOut = true
		res.ExitCode = nil
		return res
	})
	ex := &fakeExecutor{handlers: handlers}
	tempRoot := t.TempDir()

	outcome := execute(t, ex, Options{TempRoot: tempRoot, Budget: 7 * time.Second, Tools: config.Defaults()})

	if outcome.Report.Verdict != verdict.Unknown {
		t.Errorf("verdict = %q, want unknown", outcome.Report.Verdict)
	}
	if !outcome.ReachedVerification {
		t.Error("ReachedVerification = false; an engine timeout is a reportable outcome")
	}
	if !strings.Contains(outcome.Report.Details, stageEngine+" (Timeout)") {
		t.Errorf("details = %q, want the timeout-labeled engine section", outcome.Report.Details)
	}
	if !strings.Contains(outcome.Report.Details, "Timeout after 7s") {
		t.Errorf("details = %q, want the budget named", outcome.Report.Details)
	}
	if !strings.Contains(outcome.Report.Details, "partial exploration") {
		t.Error("partial engine output was dropped from the log")
	}
	if outcome.Report.ErrorCode != "" {
		t.Errorf("ErrorCode = %q, want empty; an engine timeout is not a pipeline failure", outcome.Report.ErrorCode)
	}
	assertWorkdirRemoved(t, tempRoot)
}

func TestExecute_CancelledStageIsInterrupted(t *testing.T) {
	ex := &fakeExecutor{handlers: map[string]func(StageSpec) StageResult{
		stageFrontend: func(spec StageSpec) StageResult {
			return StageResult{Cancelled: true}
		},
	}}
	tempRoot := t.TempDir()

	outcome := execute(t, ex, Options{TempRoot: tempRoot, Tools: config.Defaults()})

	if outcome.Report.Verdict != verdict.Error {
		t.Errorf("verdict = %q, want error", outcome.Report.Verdict)
	}
	if outcome.Report.ErrorCode != errors.EInterrupted {
		t.Errorf("ErrorCode = %q, want %q", outcome.Report.ErrorCode, errors.EInterrupted)
	}
	if !strings.Contains(outcome.Report.Details, "interrupted during "+stageFrontend) {
		t.Errorf("details = %q, want the interrupted stage named", outcome.Report.Details)
	}
	assertWorkdirRemoved(t, tempRoot)
}

func TestExecute_EvidenceDominatesTimeout(t *testing.T) {
	handlers := passingHandlers(t, "", "partial\n",
		map[string]string{"test000001.assert.err": "Error: ASSERTION FAIL on ipv4.ttl"},
		func(res StageResult) StageResult {
			res.TimedOut = true
			res.ExitCode = nil
			return res
		})
	ex := &fakeExecutor{handlers: handlers}

	outcome := execute(t, ex, Options{Tools: config.Defaults()})

	if outcome.Report.Verdict != verdict.False {
		t.Errorf("verdict = %q, want false (evidence beats timeout)", outcome.Report.Verdict)
	}
	if len(outcome.Report.AssertionErrors) != 1 ||
		!strings.Contains(outcome.Report.AssertionErrors[0], "ASSERTION FAIL on ipv4.ttl") {
		t.Errorf("AssertionErrors = %v, want the evidence text", outcome.Report.AssertionErrors)
	}
}

func TestExecute_TwoEvidenceFiles(t *testing.T) {
	handlers := passingHandlers(t, "", "KLEE: done: completed paths = 2\n",
		map[string]string{
			"test000001.assert.err": "first distinct violation",
			"test000002.assert.err": "second distinct violation",
		}, nil)
	ex := &fakeExecutor{handlers: handlers}

	outcome := execute(t, ex, Options{Tools: config.Defaults()})

	if outcome.Report.Verdict != verdict.False {
		t.Errorf("verdict = %q, want false", outcome.Report.Verdict)
	}
	got := outcome.Report.AssertionErrors
	if len(got) != 2 || got[0] != "first distinct violation" || got[1] != "second distinct violation" {
		t.Errorf("AssertionErrors = %v, want both texts in path order", got)
	}
}

func TestExecute_RulesFileOnlyWhenPresent(t *testing.T) {
	rules := filepath.Join(t.TempDir(), "rules.txt")
	touch(t, rules)

	tests := []struct {
		name      string
		rulesFile string
		wantArg   bool
	}{
		{"existing rules file is forwarded", rules, true},
		{"missing rules file is dropped", filepath.Join(t.TempDir(), "nope.txt"), false},
		{"no rules file", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &fakeExecutor{handlers: passingHandlers(t, "", "KLEE: done:\n", nil, nil)}
			execute(t, ex, Options{RulesFile: tt.rulesFile, Tools: config.Defaults()})

			translate := ex.calls[1]
			hasArg := false
			for _, a := range translate.Args {
				if a == tt.rulesFile {
					hasArg = true
				}
			}
			if hasArg != tt.wantArg {
				t.Errorf("translator args = %v, rules arg present = %v, want %v", translate.Args, hasArg, tt.wantArg)
			}
		})
	}
}

func TestExecute_StageTimeouts(t *testing.T) {
	ex := &fakeExecutor{handlers: passingHandlers(t, "", "KLEE: done:\n", nil, nil)}
	execute(t, ex, Options{Tools: config.Defaults()})

	want := []time.Duration{frontendTimeout, translateTimeout, nativeTimeout, DefaultBudget}
	for i, spec := range ex.calls {
		if spec.Timeout != want[i] {
			t.Errorf("stage %q timeout = %s, want %s", spec.Name, spec.Timeout, want[i])
		}
	}
}

func TestExecute_UserBudgetReachesEngine(t *testing.T) {
	ex := &fakeExecutor{handlers: passingHandlers(t, "", "KLEE: done:\n", nil, nil)}
	execute(t, ex, Options{Budget: 42 * time.Second, Tools: config.Defaults()})

	engine := ex.calls[3]
	if engine.Timeout != 42*time.Second {
		t.Errorf("engine timeout = %s, want 42s", engine.Timeout)
	}
}

func TestExecute_ToolChainUsed(t *testing.T) {
	tools := config.Tools{
		P4C:              "/opt/p4c/p4c-bm2-ss",
		Python:           "python3",
		TranslatorScript: "/opt/assert-p4/P4_to_C.py",
		Clang:            "/usr/lib/llvm/bin/clang",
		KLEE:             "/opt/klee/bin/klee",
	}
	ex := &fakeExecutor{handlers: passingHandlers(t, "", "KLEE: done:\n", nil, nil)}
	execute(t, ex, Options{Tools: tools})

	wantCommands := []string{tools.P4C, tools.Python, tools.Clang, tools.KLEE}
	for i, spec := range ex.calls {
		if spec.Command != wantCommands[i] {
			t.Errorf("stage %q command = %q, want %q", spec.Name, spec.Command, wantCommands[i])
		}
	}
	if ex.calls[1].Dir != "/opt/assert-p4" {
		t.Errorf("translator cwd = %q, want the script's directory", ex.calls[1].Dir)
	}
	if ex.calls[1].Args[0] != tools.TranslatorScript {
		t.Errorf("translator args = %v, want the script path first", ex.calls[1].Args)
	}
}

func TestExecute_WorkdirCreationFailure(t *testing.T) {
	ex := &fakeExecutor{}
	outcome := execute(t, ex, Options{
		TempRoot: filepath.Join(t.TempDir(), "does-not-exist"),
		Tools:    config.Defaults(),
	})

	if outcome.Report.Verdict != verdict.Error {
		t.Errorf("verdict = %q, want error", outcome.Report.Verdict)
	}
	if outcome.Report.ErrorCode != errors.EWorkdirFailed {
		t.Errorf("ErrorCode = %q, want %q", outcome.Report.ErrorCode, errors.EWorkdirFailed)
	}
	if len(ex.calls) != 0 {
		t.Errorf("stages spawned despite workdir failure: %v", ex.stageNames())
	}
}
