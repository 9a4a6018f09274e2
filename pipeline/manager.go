// Package pipeline drives submissions from an inbound queue through problem
// lookup, sandbox provisioning, compilation and per-case evaluation, and
// delivers exactly one outcome per submission to the coordinator.
//
// Three kinds of long-running tasks share the work: W workers draining the
// inbound queue, a result sender and an error sender, each draining its own
// outbound queue. The queues are the only state the tasks share.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/isdmx/judgebox/coordinator"
	"github.com/isdmx/judgebox/executor"
	"github.com/isdmx/judgebox/model"
	"github.com/isdmx/judgebox/problem"
	"github.com/isdmx/judgebox/sandbox"
)

// Executors resolves submissions to executors. *executor.Registry
// implements it.
type Executors interface {
	Supports(language string) bool
	Resolve(ctx context.Context, sub model.Submission, sb sandbox.Sandbox) (executor.Executor, error)
	AvailableLanguages() []string
}

// Options configures a Manager.
type Options struct {
	// Name identifies this executor instance in status reports.
	Name      string
	Executors Executors
	Problems  problem.Store
	Sandboxes sandbox.Factory
	Reporter  coordinator.Reporter
	// Workers is the number of concurrent workers; values below one mean one.
	Workers int
	Metrics *Metrics
}

// Status describes the capabilities and backlog of a Manager.
type Status struct {
	Name      string   `json:"name"`
	Languages []string `json:"languages"`
	Problems  []string `json:"problems"`
	Queued    []int64  `json:"queued"`
}

// Manager owns the execution pipeline.
type Manager struct {
	logger *zap.Logger
	opts   Options

	inbound  *Queue[model.Submission]
	results  *Queue[model.Execution]
	failures *Queue[model.ErrorSubmission]

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
}

// New creates a Manager. It does not process anything until Start.
func New(logger *zap.Logger, opts Options) *Manager {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	return &Manager{
		logger:   logger,
		opts:     opts,
		inbound:  NewQueue[model.Submission](),
		results:  NewQueue[model.Execution](),
		failures: NewQueue[model.ErrorSubmission](),
	}
}

// Enqueue accepts sub for asynchronous processing. It fails with an error
// matching executor.ErrNoExecutorAvailable, without queuing, when no executor
// is registered for the submission's language.
func (m *Manager) Enqueue(sub model.Submission) error {
	if !m.opts.Executors.Supports(sub.Language) {
		m.opts.Metrics.submissions.WithLabelValues(outcomeRejected).Inc()
		return &executor.UnavailableError{Language: sub.Language}
	}

	m.inbound.Push(sub)
	m.opts.Metrics.queued.Set(float64(m.inbound.Len()))
	m.logger.Info("submission queued",
		zap.Int64("id", sub.ID),
		zap.String("language", sub.Language),
		zap.String("problem", sub.Problem))
	return nil
}

// QueuedIDs returns the IDs of submissions waiting for a worker, oldest first.
func (m *Manager) QueuedIDs() []int64 {
	queued := m.inbound.Snapshot()
	ids := make([]int64, 0, len(queued))
	for _, sub := range queued {
		ids = append(ids, sub.ID)
	}
	return ids
}

// Languages returns the languages submissions may be written in.
func (m *Manager) Languages() []string {
	return m.opts.Executors.AvailableLanguages()
}

// Problems returns the names of loadable problems, or an empty list when they
// cannot be listed.
func (m *Manager) Problems(ctx context.Context) []string {
	return m.opts.Problems.Available(ctx)
}

// Status reports capabilities and backlog.
func (m *Manager) Status(ctx context.Context) Status {
	return Status{
		Name:      m.opts.Name,
		Languages: m.Languages(),
		Problems:  m.Problems(ctx),
		Queued:    m.QueuedIDs(),
	}
}

// Start spawns the workers and both senders. They run until Shutdown is
// called or ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.New("pipeline already started")
	}
	m.started = true

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	g, ctx := errgroup.WithContext(ctx)
	for i := range m.opts.Workers {
		log := m.logger.With(zap.Int("worker", i))
		g.Go(func() error { return m.work(ctx, log) })
	}
	g.Go(func() error { return m.sendResults(ctx) })
	g.Go(func() error { return m.sendFailures(ctx) })

	go func() {
		m.runErr = g.Wait()
		close(m.done)
	}()

	m.logger.Info("pipeline started", zap.Int("workers", m.opts.Workers))
	return nil
}

// Shutdown cancels every task and waits for them to exit or for ctx to be
// done. In-flight submissions are abandoned without an outbound message.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	select {
	case <-done:
		m.logger.Info("pipeline stopped", zap.Int("abandoned_queued", m.inbound.Len()))
		return m.runErr
	case <-ctx.Done():
		return fmt.Errorf("pipeline shutdown: %w", ctx.Err())
	}
}

func (m *Manager) work(ctx context.Context, log *zap.Logger) error {
	for {
		sub, err := m.inbound.Take(ctx)
		if err != nil {
			return nil
		}
		m.opts.Metrics.queued.Set(float64(m.inbound.Len()))
		m.process(ctx, log.With(zap.Int64("id", sub.ID)), sub)
	}
}

// process drives one submission through every stage. Each stage failure
// emits exactly one ErrorSubmission and ends processing.
func (m *Manager) process(ctx context.Context, log *zap.Logger, sub model.Submission) {
	start := time.Now()
	log.Info("processing submission", zap.String("language", sub.Language), zap.String("problem", sub.Problem))

	p, err := m.opts.Problems.Lookup(ctx, sub.Problem)
	if err != nil {
		m.fail(ctx, log, sub, model.ErrorInternal, "Failed to retrieve problem definition", err)
		return
	}

	sb, err := m.opts.Sandboxes.New(ctx)
	if err != nil {
		m.fail(ctx, log, sub, model.ErrorInternal, "Failed to create execution environment", err)
		return
	}
	defer m.release(log, sb)

	exec, err := m.opts.Executors.Resolve(ctx, sub, sb)
	if err != nil {
		msg := "Failed to prepare executor"
		if errors.Is(err, executor.ErrNoExecutorAvailable) {
			msg = "Executor unavailable"
		}
		m.fail(ctx, log, sub, model.ErrorInternal, msg, err)
		return
	}

	if err := exec.Compile(ctx); err != nil {
		if errors.Is(err, executor.ErrCompilationFailed) {
			m.fail(ctx, log, sub, model.ErrorCompilation, "Compilation failed", err)
		} else {
			m.fail(ctx, log, sub, model.ErrorInternal, "Failed to run compiler", err)
		}
		return
	}

	cases := make([]model.ExecutionCase, 0, len(p.Cases))
	for _, c := range p.Cases {
		ec := exec.Evaluate(ctx, c)
		if ctx.Err() != nil {
			m.abandon(log)
			return
		}
		m.observeCase(ec)
		if !ec.Success {
			log.Info("case failed", zap.String("case", c.Name), zap.String("error", ec.Error))
		}
		cases = append(cases, ec)
	}

	m.results.Push(model.Execution{ID: sub.ID, Cases: cases})
	m.opts.Metrics.submissions.WithLabelValues(outcomeExecuted).Inc()
	log.Info("submission executed", zap.Int("cases", len(cases)), zap.Duration("elapsed", time.Since(start)))
}

func (m *Manager) fail(ctx context.Context, log *zap.Logger, sub model.Submission, kind model.ErrorKind, msg string, err error) {
	if ctx.Err() != nil {
		m.abandon(log)
		return
	}

	log.Error(msg, zap.String("kind", string(kind)), zap.Error(err))
	m.failures.Push(model.NewErrorSubmission(sub, kind, msg+": "+err.Error()))

	outcome := outcomeInternal
	if kind == model.ErrorCompilation {
		outcome = outcomeCompilation
	}
	m.opts.Metrics.submissions.WithLabelValues(outcome).Inc()
}

func (m *Manager) abandon(log *zap.Logger) {
	log.Warn("submission abandoned on shutdown")
	m.opts.Metrics.submissions.WithLabelValues(outcomeAbandoned).Inc()
}

// release closes the sandbox. Teardown errors never affect the outcome.
func (m *Manager) release(log *zap.Logger, sb sandbox.Sandbox) {
	if err := sb.Close(); err != nil {
		log.Warn("failed to release execution environment", zap.Error(err))
	}
}

func (m *Manager) observeCase(ec model.ExecutionCase) {
	if ec.Success {
		m.opts.Metrics.cases.WithLabelValues("success").Inc()
		m.opts.Metrics.caseRuntime.Observe(float64(ec.Runtime) / 1000)
		return
	}
	m.opts.Metrics.cases.WithLabelValues("failure").Inc()
}
