package executor

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/isdmx/judgebox/model"
	"github.com/isdmx/judgebox/problem"
	"github.com/isdmx/judgebox/sandbox"
)

// JavaExecutor compiles with javac and runs the entry point class with the
// unpack directory as classpath.
type JavaExecutor struct {
	base
}

// NewJava returns a Constructor for Java submissions.
func NewJava(opts Options) Constructor {
	return func(_ context.Context, sub model.Submission, sb sandbox.Sandbox) (Executor, error) {
		b, err := newBase(sub, sb, opts)
		if err != nil {
			return nil, err
		}
		return &JavaExecutor{base: b}, nil
	}
}

// Compile runs javac over every .java file of the submission.
func (j *JavaExecutor) Compile(ctx context.Context) error {
	args := []string{"javac"}
	for _, f := range j.sub.Files {
		if strings.HasSuffix(f.Filename, ".java") {
			args = append(args, path.Join(j.dir, f.Filename))
		}
	}
	if len(args) == 1 {
		return &CompilationError{Err: errors.New("no .java source files")}
	}
	return j.build(ctx, args)
}

func (j *JavaExecutor) Evaluate(ctx context.Context, c problem.Case) model.ExecutionCase {
	return j.run(ctx, c, "java -cp "+shellQuote(j.dir)+" "+shellQuote(j.sub.EntryPoint))
}
