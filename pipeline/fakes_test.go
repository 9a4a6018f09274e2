package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/isdmx/judgebox/executor"
	"github.com/isdmx/judgebox/model"
	"github.com/isdmx/judgebox/problem"
	"github.com/isdmx/judgebox/sandbox"
)

type fakeStore struct {
	problems map[string]problem.Problem
}

func (s *fakeStore) Lookup(_ context.Context, name string) (problem.Problem, error) {
	p, ok := s.problems[name]
	if !ok {
		return problem.Problem{}, fmt.Errorf("%w: %s", problem.ErrNotFound, name)
	}
	return p, nil
}

func (s *fakeStore) Available(context.Context) []string {
	names := []string{}
	for name := range s.problems {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type fakeSandbox struct {
	mu       sync.Mutex
	closed   int
	closeErr error
}

func (*fakeSandbox) Unpack([]model.SubmissionFile) (string, error) { return "/sb", nil }

func (*fakeSandbox) UnpackInput([]byte) (string, error) { return "/sb/in", nil }

func (*fakeSandbox) Execute(context.Context, []string, []byte, time.Duration) (sandbox.CommandResult, error) {
	return sandbox.CommandResult{}, nil
}

func (s *fakeSandbox) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return s.closeErr
}

func (s *fakeSandbox) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeFactory struct {
	mu        sync.Mutex
	err       error
	closeErr  error
	sandboxes []*fakeSandbox
}

func (f *fakeFactory) New(context.Context) (sandbox.Sandbox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	sb := &fakeSandbox{closeErr: f.closeErr}
	f.sandboxes = append(f.sandboxes, sb)
	return sb, nil
}

// allClosed reports whether every provisioned sandbox was closed exactly once.
func (f *fakeFactory) allClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sb := range f.sandboxes {
		if sb.closeCount() != 1 {
			return false
		}
	}
	return true
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sandboxes)
}

// refExecutor doubles the integer on each case's input. Cases named in fail
// are reported as failed; block makes Evaluate wait for cancellation.
type refExecutor struct {
	compileErr error
	fail       map[string]string
	block      chan struct{}
}

func (r *refExecutor) Compile(context.Context) error {
	return r.compileErr
}

func (r *refExecutor) Evaluate(ctx context.Context, c problem.Case) model.ExecutionCase {
	if r.block != nil {
		close(r.block)
		<-ctx.Done()
		return model.ExecutionCase{Name: c.Name, Error: ctx.Err().Error()}
	}
	if msg, ok := r.fail[c.Name]; ok {
		return model.ExecutionCase{Name: c.Name, Error: msg}
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(c.Input)))
	if err != nil {
		return model.ExecutionCase{Name: c.Name, Error: err.Error()}
	}
	return model.ExecutionCase{Name: c.Name, Success: true, Runtime: 1, Output: []byte(strconv.Itoa(2*n) + "\n")}
}

func refRegistry(exec *refExecutor) *executor.Registry {
	r := executor.NewRegistry()
	r.Register("ref", func(_ context.Context, _ model.Submission, sb sandbox.Sandbox) (executor.Executor, error) {
		if _, err := sb.Unpack(nil); err != nil {
			return nil, err
		}
		return exec, nil
	})
	return r
}

// brokenExecutors supports every language but fails to resolve, as if the
// registry changed after enqueue.
type brokenExecutors struct {
	err error
}

func (brokenExecutors) Supports(string) bool { return true }

func (b brokenExecutors) Resolve(context.Context, model.Submission, sandbox.Sandbox) (executor.Executor, error) {
	return nil, b.err
}

func (brokenExecutors) AvailableLanguages() []string { return []string{"ref"} }

type fakeReporter struct {
	executions chan model.Execution
	failures   chan model.ErrorSubmission

	mu       sync.Mutex
	failNext int
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{
		executions: make(chan model.Execution, 100),
		failures:   make(chan model.ErrorSubmission, 100),
	}
}

func (r *fakeReporter) shouldFail() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext > 0 {
		r.failNext--
		return true
	}
	return false
}

func (r *fakeReporter) ReportExecution(_ context.Context, e model.Execution) error {
	if r.shouldFail() {
		return errors.New("connection refused")
	}
	r.executions <- e
	return nil
}

func (r *fakeReporter) ReportError(_ context.Context, e model.ErrorSubmission) error {
	if r.shouldFail() {
		return errors.New("connection refused")
	}
	r.failures <- e
	return nil
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for report")
	}
	var zero T
	return zero
}

func expectNone[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected report: %+v", v)
	case <-time.After(100 * time.Millisecond):
	}
}
