package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/isdmx/judgebox/model"
	"github.com/isdmx/judgebox/problem"
	"github.com/isdmx/judgebox/sandbox"
)

// base holds the state every built-in executor shares: the submission, its
// sandbox and the directory its files were unpacked into.
type base struct {
	sub  model.Submission
	sb   sandbox.Sandbox
	dir  string
	opts Options
}

func newBase(sub model.Submission, sb sandbox.Sandbox, opts Options) (base, error) {
	dir, err := sb.Unpack(sub.Files)
	if err != nil {
		return base{}, fmt.Errorf("failed to unpack submission: %w", err)
	}
	return base{sub: sub, sb: sb, dir: dir, opts: opts}, nil
}

// build runs a compiler command and maps its outcome onto CompilationError.
func (b *base) build(ctx context.Context, args []string) error {
	res, err := b.sb.Execute(ctx, args, nil, b.opts.CompileTimeout)
	switch {
	case errors.Is(err, sandbox.ErrTimeout):
		return &CompilationError{ExitCode: res.ExitCode, Diagnostic: diagnostic(res), Err: err}
	case err != nil:
		return fmt.Errorf("failed to run %s: %w", args[0], err)
	case res.ExitCode != 0:
		return &CompilationError{ExitCode: res.ExitCode, Diagnostic: diagnostic(res)}
	}
	return nil
}

// diagnostic prefers stderr and falls back to stdout for tools that report
// errors there.
func diagnostic(res sandbox.CommandResult) string {
	if d := strings.TrimSpace(string(res.Stderr)); d != "" {
		return d
	}
	return strings.TrimSpace(string(res.Stdout))
}

// run stages the case input and executes the shell fragment run with its
// standard input redirected from it, under the timing wrapper.
func (b *base) run(ctx context.Context, c problem.Case, run string) model.ExecutionCase {
	ec := model.ExecutionCase{Name: c.Name}

	input, err := b.sb.UnpackInput(c.Input)
	if err != nil {
		ec.Error = fmt.Sprintf("failed to stage input: %v", err)
		return ec
	}

	script := run + " < " + shellQuote(input)
	if b.opts.TimingWrapper != "" {
		script = b.opts.TimingWrapper + " " + script
	}

	start := time.Now()
	res, err := b.sb.Execute(ctx, []string{"sh", "-c", script}, nil, c.Timeout())
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, sandbox.ErrTimeout) {
			ec.Error = "time limit exceeded: " + err.Error()
		} else {
			ec.Error = err.Error()
		}
		return ec
	}

	stderr := res.Stderr
	if b.opts.TimingWrapper == "" {
		ec.Runtime = elapsed.Milliseconds()
	} else {
		ms, rest, perr := parseRuntime(res.Stderr)
		if perr == nil {
			ec.Runtime, stderr = ms, rest
		} else if res.ExitCode == 0 {
			ec.Output = res.Stdout
			ec.Error = "runtime measurement unavailable: " + perr.Error()
			return ec
		}
	}

	ec.Output = res.Stdout
	if exitErr := res.Err(); exitErr != nil {
		ec.Error = exitErr.Error()
		if e := excerpt(stderr); e != "" {
			ec.Error += ": " + e
		}
		return ec
	}

	ec.Success = true
	return ec
}
