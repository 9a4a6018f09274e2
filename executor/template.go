package executor

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/shlex"

	"github.com/isdmx/judgebox/model"
	"github.com/isdmx/judgebox/problem"
	"github.com/isdmx/judgebox/sandbox"
)

// Template describes an executor by its command lines. The placeholders
// {dir}, {files} and {entry} expand to the shell-quoted unpack directory,
// submission file paths and entry point. An empty Compile skips the build.
// Run must be a single command; it is prefixed by the timing wrapper.
type Template struct {
	Compile string
	Run     string
}

// TemplateExecutor runs a submission according to a Template.
type TemplateExecutor struct {
	base
	tmpl Template
}

// NewTemplate returns a Constructor for tmpl after checking that both command
// lines parse.
func NewTemplate(tmpl Template, opts Options) (Constructor, error) {
	probe := strings.NewReplacer("{dir}", "d", "{files}", "f", "{entry}", "e")
	run, err := shlex.Split(probe.Replace(tmpl.Run))
	if err != nil {
		return nil, fmt.Errorf("parse run template failed: %w", err)
	}
	if len(run) == 0 {
		return nil, fmt.Errorf("run template is empty")
	}
	if _, err := shlex.Split(probe.Replace(tmpl.Compile)); err != nil {
		return nil, fmt.Errorf("parse compile template failed: %w", err)
	}

	return func(_ context.Context, sub model.Submission, sb sandbox.Sandbox) (Executor, error) {
		b, err := newBase(sub, sb, opts)
		if err != nil {
			return nil, err
		}
		return &TemplateExecutor{base: b, tmpl: tmpl}, nil
	}, nil
}

func (t *TemplateExecutor) expand(tpl string) string {
	files := make([]string, 0, len(t.sub.Files))
	for _, f := range t.sub.Files {
		files = append(files, shellQuote(path.Join(t.dir, f.Filename)))
	}
	return strings.NewReplacer(
		"{dir}", shellQuote(t.dir),
		"{files}", strings.Join(files, " "),
		"{entry}", shellQuote(t.sub.EntryPoint),
	).Replace(tpl)
}

func (t *TemplateExecutor) Compile(ctx context.Context) error {
	if strings.TrimSpace(t.tmpl.Compile) == "" {
		return nil
	}
	args, err := shlex.Split(t.expand(t.tmpl.Compile))
	if err != nil {
		return fmt.Errorf("parse compile command failed: %w", err)
	}
	if len(args) == 0 {
		return nil
	}
	return t.build(ctx, args)
}

func (t *TemplateExecutor) Evaluate(ctx context.Context, c problem.Case) model.ExecutionCase {
	return t.run(ctx, c, t.expand(t.tmpl.Run))
}
