package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/assertp4/assertp4/internal/config"
	"github.com/assertp4/assertp4/internal/errors"
	"github.com/assertp4/assertp4/internal/pipeline"
)

// DoctorOpts holds options for the doctor command.
type DoctorOpts struct {
	// ConfigPath is an optional JSON tool config file.
	ConfigPath string
}

// ToolStatus is one row of the doctor report.
type ToolStatus struct {
	Name    string
	Command string
	Path    string
	Version string
	OK      bool
	Reason  string
}

// versionProbeTimeout bounds the --version probes so a wedged tool cannot
// hang doctor.
const versionProbeTimeout = 5 * time.Second

// Doctor checks that every external tool in the pipeline is resolvable and
// prints one status line per tool. Returns E_TOOL_NOT_INSTALLED if any tool
// is missing.
func Doctor(ctx context.Context, ex pipeline.Executor, opts DoctorOpts, stdout, stderr io.Writer) error {
	tools, err := config.Resolve(opts.ConfigPath)
	if err != nil {
		return err
	}

	statuses := []ToolStatus{
		checkCommand(ctx, ex, "p4c", tools.P4C, true),
		checkCommand(ctx, ex, "python", tools.Python, false),
		checkScript("translator", tools.TranslatorScript),
		checkCommand(ctx, ex, "clang", tools.Clang, true),
		checkCommand(ctx, ex, "klee", tools.KLEE, true),
	}

	missing := map[string]string{}
	for _, st := range statuses {
		if st.OK {
			line := fmt.Sprintf("ok      %-10s %s", st.Name, st.Path)
			if st.Version != "" {
				line += " (" + st.Version + ")"
			}
			_, _ = fmt.Fprintln(stdout, line)
		} else {
			missing[st.Name] = st.Reason
			_, _ = fmt.Fprintf(stdout, "missing %-10s %s\n", st.Name, st.Reason)
		}
	}

	if len(missing) > 0 {
		return errors.NewWithDetails(errors.EToolNotInstalled,
			fmt.Sprintf("%d of %d tools missing", len(missing), len(statuses)), missing)
	}
	return nil
}

// checkCommand resolves a command against PATH (or verifies an explicit
// path) and optionally probes its version.
func checkCommand(ctx context.Context, ex pipeline.Executor, name, command string, probeVersion bool) ToolStatus {
	st := ToolStatus{Name: name, Command: command}

	if strings.ContainsRune(command, os.PathSeparator) {
		if !isFile(command) {
			st.Reason = command + " does not exist"
			return st
		}
		st.Path = command
	} else {
		path, err := ex.LookPath(command)
		if err != nil {
			st.Reason = command + " not found in PATH"
			return st
		}
		st.Path = path
	}
	st.OK = true

	if probeVersion {
		st.Version = probeToolVersion(ctx, ex, command)
	}
	return st
}

// checkScript verifies the translator script exists on disk.
func checkScript(name, path string) ToolStatus {
	st := ToolStatus{Name: name, Command: path}
	if !isFile(path) {
		st.Reason = path + " does not exist"
		return st
	}
	st.Path = path
	st.OK = true
	return st
}

// probeToolVersion runs `<cmd> --version` and returns the first output line,
// or empty if the probe fails. Best-effort only.
func probeToolVersion(ctx context.Context, ex pipeline.Executor, command string) string {
	res, err := ex.Run(ctx, pipeline.StageSpec{
		Name:    "version probe",
		Command: command,
		Args:    []string{"--version"},
		Timeout: versionProbeTimeout,
	})
	if err != nil || !res.OK() {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(res.Combined()), "\n")
	return strings.TrimSpace(line)
}
