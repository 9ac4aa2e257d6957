// Package pipeline drives the staged verification pipeline: compile the
// source, translate the intermediate representation to C, compile to
// bitcode, and run the symbolic execution engine over it.
package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	osexec "os/exec"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultStageTimeout applies when a StageSpec carries no timeout.
const DefaultStageTimeout = 60 * time.Second

// StageSpec is the immutable description of one pipeline stage.
type StageSpec struct {
	// Name labels the stage's section in the cumulative log.
	Name string

	// Command and Args form the external tool invocation.
	Command string
	Args    []string

	// Dir is the working directory for the child; empty inherits the parent's.
	Dir string

	// Timeout is the wall-clock budget. Zero means DefaultStageTimeout.
	Timeout time.Duration
}

// StageResult is the outcome of running one StageSpec.
type StageResult struct {
	// Stdout and Stderr hold the fully captured output streams.
	Stdout string
	Stderr string

	// ExitCode is the child's exit code; nil if the process failed to
	// start or was terminated by a signal.
	ExitCode *int

	// Signal is the terminating signal name, if any.
	Signal *string

	// TimedOut is true if the stage's budget expired and the process
	// group was killed. Partial output is still captured.
	TimedOut bool

	// Cancelled is true if the run's context was cancelled (user interrupt).
	Cancelled bool

	// Duration is the elapsed wall-clock time for the stage.
	Duration time.Duration
}

// Combined returns stdout followed by stderr, the form the verdict
// classifier and the stage log operate on.
func (r StageResult) Combined() string {
	return r.Stdout + r.Stderr
}

// OK reports whether the stage ran to completion with exit code zero.
func (r StageResult) OK() bool {
	return !r.TimedOut && !r.Cancelled && r.ExitCode != nil && *r.ExitCode == 0
}

// Executor runs pipeline stages. The production implementation spawns real
// processes; tests substitute fakes.
type Executor interface {
	// Run executes the stage and returns its result. An error is returned
	// only for invocation failures (pipe setup, exec start); nonzero exit
	// and timeout are represented in the StageResult.
	Run(ctx context.Context, spec StageSpec) (StageResult, error)

	// LookPath resolves a command name against PATH.
	LookPath(file string) (string, error)
}

// NewExecRunner returns the Executor backed by os/exec.
func NewExecRunner() Executor {
	return &execRunner{}
}

type execRunner struct{}

func (e *execRunner) LookPath(file string) (string, error) {
	return osexec.LookPath(file)
}

// Run spawns the stage command in its own process group, drains stdout and
// stderr concurrently into memory, and enforces the stage timeout.
//
// The two pipes must be drained in parallel while waiting for exit: a child
// that fills one OS pipe buffer while the parent reads the other to
// completion would deadlock. On timeout the whole process group is killed
// and whatever output was captured is returned with TimedOut set.
func (e *execRunner) Run(ctx context.Context, spec StageSpec) (StageResult, error) {
	timeout := spec.Timeout
	if timeout == 0 {
		timeout = DefaultStageTimeout
	}

	timeoutCtx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()

	// The process group is killed by hand on expiry, so the plain
	// constructor is used rather than CommandContext (which only kills
	// the direct child, orphaning descendants).
	cmd := osexec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return StageResult{}, fmt.Errorf("stage %s: stdout pipe: %w", spec.Name, err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return StageResult{}, fmt.Errorf("stage %s: stderr pipe: %w", spec.Name, err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return StageResult{}, fmt.Errorf("stage %s: failed to start %s: %w", spec.Name, spec.Command, err)
	}
	pgid := cmd.Process.Pid

	// Drain both streams concurrently, unbounded, in memory.
	var stdoutBuf, stderrBuf bytes.Buffer
	var drain errgroup.Group
	drain.Go(func() error {
		_, err := io.Copy(&stdoutBuf, stdoutPipe)
		return err
	})
	drain.Go(func() error {
		_, err := io.Copy(&stderrBuf, stderrPipe)
		return err
	})

	// Wait must not run before both pipes reach EOF.
	waitDone := make(chan error, 1)
	go func() {
		_ = drain.Wait()
		waitDone <- cmd.Wait()
	}()

	var runErr error
	var timedOut, cancelled bool

	select {
	case runErr = <-waitDone:
		// Child exited within budget.
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			cancelled = true
		} else {
			timedOut = true
		}
		killProcessGroup(pgid)
		runErr = <-waitDone
	}

	result := StageResult{
		Stdout:    stdoutBuf.String(),
		Stderr:    stderrBuf.String(),
		TimedOut:  timedOut,
		Cancelled: cancelled,
		Duration:  time.Since(start),
	}

	if runErr == nil {
		exitCode := 0
		result.ExitCode = &exitCode
		return result, nil
	}

	var exitErr *osexec.ExitError
	if stderrors.As(runErr, &exitErr) && exitErr.ProcessState != nil {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			sig := status.Signal().String()
			result.Signal = &sig
		} else {
			exitCode := exitErr.ExitCode()
			result.ExitCode = &exitCode
		}
		return result, nil
	}

	return result, fmt.Errorf("stage %s: wait: %w", spec.Name, runErr)
}

// killProcessGroup forcibly terminates the stage's process group, taking any
// descendants down with it. Negative pgid targets the whole group.
func killProcessGroup(pgid int) {
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}
