// Package executor implements per-language compile and run strategies on top
// of a sandbox, and the registry that binds language identifiers to them.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/isdmx/judgebox/model"
	"github.com/isdmx/judgebox/problem"
	"github.com/isdmx/judgebox/sandbox"
)

var (
	// ErrNoExecutorAvailable is matched by *UnavailableError.
	ErrNoExecutorAvailable = errors.New("no executor available")

	// ErrCompilationFailed is matched by *CompilationError.
	ErrCompilationFailed = errors.New("compilation failed")
)

// UnavailableError reports a language with no registered executor.
type UnavailableError struct {
	Language string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("no executor available for %q submissions", e.Language)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrNoExecutorAvailable
}

// CompilationError carries the diagnostic of a failed build.
type CompilationError struct {
	ExitCode   int
	Diagnostic string
	// Err is set when the build did not exit on its own, e.g. on timeout.
	Err error
}

func (e *CompilationError) Error() string {
	msg := fmt.Sprintf("compilation failed (exit status %d)", e.ExitCode)
	if e.Err != nil {
		msg = "compilation failed: " + e.Err.Error()
	}
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	return msg
}

func (e *CompilationError) Is(target error) bool {
	return target == ErrCompilationFailed
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// Executor compiles and evaluates one submission inside one sandbox. Its
// files are already unpacked by the time it is returned from a Constructor.
type Executor interface {
	// Compile builds the submission. A failed build returns an error
	// matching ErrCompilationFailed.
	Compile(ctx context.Context) error

	// Evaluate runs the submission against one case. Failures are recorded
	// on the returned case rather than returned.
	Evaluate(ctx context.Context, c problem.Case) model.ExecutionCase
}

// Constructor binds an Executor to a submission and a sandbox.
type Constructor func(ctx context.Context, sub model.Submission, sb sandbox.Sandbox) (Executor, error)

// Options are shared by the built-in executors.
type Options struct {
	// TimingWrapper prefixes every run command and must print the CPU time
	// in milliseconds as the last line of stderr. When empty, wall-clock
	// time around the sandbox call is recorded instead.
	TimingWrapper string

	// CompileTimeout bounds a single build. Zero means no limit.
	CompileTimeout time.Duration
}
