// Package errors defines the stable error code system for assertp4.
package errors

import (
	"errors"
	"fmt"
	"io"
	"sort"
)

// Code is a stable error code string.
type Code string

// Error codes. Stable public contract: scripts may match on these.
const (
	EUsage Code = "E_USAGE"

	// Input validation
	ESourceNotFound Code = "E_SOURCE_NOT_FOUND"
	EInvalidConfig  Code = "E_INVALID_CONFIG"

	// Pipeline infrastructure (stages 1-3 and setup/teardown)
	ECompileFailed Code = "E_COMPILE_FAILED" // nonzero exit or missing artifact, stages 1-3
	EInfraTimeout  Code = "E_INFRA_TIMEOUT"  // stage 1-3 exceeded its budget
	EWorkdirFailed Code = "E_WORKDIR_FAILED" // scoped working directory create/remove failure
	EInterrupted   Code = "E_INTERRUPTED"    // run cancelled by signal before verification finished

	// Prerequisites
	EToolNotInstalled Code = "E_TOOL_NOT_INSTALLED"

	EInternal Code = "E_INTERNAL"
)

// PipelineError is the standard error type for assertp4 errors.
type PipelineError struct {
	Code    Code
	Msg     string
	Cause   error
	Details map[string]string // optional structured context
}

// Error returns the stable error format: "CODE: message".
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// ExitCodeError wraps an error with an explicit process exit code.
// Err may be nil when the failure has already been reported on the
// output streams and only the exit code remains to be propagated.
type ExitCodeError struct {
	Err  error
	Code int
}

func (e *ExitCodeError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

func (e *ExitCodeError) ExitCode() int {
	return e.Code
}

// Exit returns a bare exit-code error. Use when the structured verdict
// document has already been emitted and nothing further should be printed.
func Exit(code int) error {
	return &ExitCodeError{Code: code}
}

// New creates a new PipelineError with the given code and message.
func New(code Code, msg string) error {
	return &PipelineError{Code: code, Msg: msg}
}

// NewWithDetails creates a new PipelineError with code, message, and details.
// Details map is defensively copied (nil if empty).
func NewWithDetails(code Code, msg string, details map[string]string) error {
	return &PipelineError{Code: code, Msg: msg, Details: copyDetails(details)}
}

// Wrap creates a new PipelineError wrapping an underlying error.
func Wrap(code Code, msg string, err error) error {
	return &PipelineError{Code: code, Msg: msg, Cause: err}
}

// GetCode extracts the error code from an error, or empty string if not a PipelineError.
func GetCode(err error) Code {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// AsPipelineError returns (*PipelineError, true) if err is or wraps a PipelineError.
func AsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// copyDetails returns a defensive copy of the details map, or nil if empty/nil.
func copyDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return nil
	}
	cp := make(map[string]string, len(details))
	for k, v := range details {
		cp[k] = v
	}
	return cp
}

// ExitCode returns the appropriate exit code for an error.
// Returns 0 if err is nil, otherwise 1 unless an explicit exit code is
// attached. Only pre-verification infrastructure failures reach this path;
// once the verification stage has run, the process exits 0 regardless of
// verdict and no error is returned at all.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ece *ExitCodeError
	if errors.As(err, &ece) {
		return ece.Code
	}
	return 1
}

// Print writes the error to w in the stable stderr format:
//
//	error_code: <CODE>
//	<message>
//
// Bare exit-code errors (document already emitted) print nothing.
func Print(w io.Writer, err error) {
	if err == nil {
		return
	}
	var ece *ExitCodeError
	if errors.As(err, &ece) && ece.Err == nil {
		return
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		_, _ = fmt.Fprintf(w, "error_code: %s\n", pe.Code)
		_, _ = fmt.Fprintln(w, pe.Msg)
	} else {
		// Fallback for non-PipelineError errors (cobra flag errors and such)
		_, _ = fmt.Fprintln(w, err.Error())
	}
}

// PrintOptions controls error output formatting.
type PrintOptions struct {
	// Verbose enables the cause chain and structured details.
	Verbose bool
}

// PrintWithOptions writes the error like Print, and in verbose mode appends
// the cause chain and any structured details, one per line.
func PrintWithOptions(w io.Writer, err error, opts PrintOptions) {
	if err == nil {
		return
	}
	Print(w, err)
	if !opts.Verbose {
		return
	}
	pe, ok := AsPipelineError(err)
	if !ok {
		return
	}
	if pe.Cause != nil {
		_, _ = fmt.Fprintf(w, "cause: %v\n", pe.Cause)
	}
	keys := make([]string, 0, len(pe.Details))
	for k := range pe.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", k, pe.Details[k])
	}
}
