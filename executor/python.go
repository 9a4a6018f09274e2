package executor

import (
	"context"
	"path"
	"strings"

	"github.com/isdmx/judgebox/model"
	"github.com/isdmx/judgebox/problem"
	"github.com/isdmx/judgebox/sandbox"
)

// PythonExecutor runs the entry point script with python3.
type PythonExecutor struct {
	base
}

// NewPython returns a Constructor for Python submissions.
func NewPython(opts Options) Constructor {
	return func(_ context.Context, sub model.Submission, sb sandbox.Sandbox) (Executor, error) {
		b, err := newBase(sub, sb, opts)
		if err != nil {
			return nil, err
		}
		return &PythonExecutor{base: b}, nil
	}
}

// Compile is a no-op.
func (*PythonExecutor) Compile(context.Context) error {
	return nil
}

func (p *PythonExecutor) Evaluate(ctx context.Context, c problem.Case) model.ExecutionCase {
	script := p.sub.EntryPoint
	if !strings.HasSuffix(script, ".py") {
		script += ".py"
	}
	return p.run(ctx, c, "python3 "+shellQuote(path.Join(p.dir, script)))
}
