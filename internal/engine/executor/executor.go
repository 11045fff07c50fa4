// Package executor runs task graphs with bounded parallelism.
package executor

import (
	"context"
	"runtime"
	"sync"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/depot/internal/engine/task"
)

// Listener is notified once a graph finished. It runs on its own goroutine.
type Listener func(success bool, ex *Executor)

// Option configures an Executor.
type Option func(*Executor)

// WithParallelism bounds the number of concurrently running tasks.
func WithParallelism(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithTracer sets the tracer used to span every step.
func WithTracer(t ports.Tracer) Option {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithLogger sets the logger used for non-fatal failures.
func WithLogger(l ports.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// Executor runs one task graph. It is single use.
type Executor struct {
	root        task.Node
	parallelism int
	tracer      ports.Tracer
	logger      ports.Logger

	mu          sync.RWMutex
	states      map[task.Node]task.State
	counters    map[task.Node]counter
	exception   error
	errs        []error
	listeners   []Listener
	progressFns []func(Progress)
	cancel      context.CancelFunc
	cancelled   bool
	finished    bool
	success     bool

	startOnce  sync.Once
	done       chan struct{}
	err        error
	progressCh chan struct{}
}

// New creates an executor for the graph rooted at root.
func New(root task.Node, opts ...Option) *Executor {
	e := &Executor{
		root:        root,
		parallelism: runtime.NumCPU(),
		tracer:      noopTracer{},
		states:      make(map[task.Node]task.State),
		counters:    make(map[task.Node]counter),
		done:        make(chan struct{}),
		progressCh:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the graph and blocks until every node is terminal.
// It returns nil when the root succeeded and no major failure occurred; otherwise the
// representative error. Non-fatal errors are available from Errors.
func (e *Executor) Run(ctx context.Context) error {
	e.Start(ctx)
	return e.Wait()
}

// Start executes the graph in the background.
func (e *Executor) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)

		e.mu.Lock()
		e.cancel = cancel
		cancelled := e.cancelled
		e.mu.Unlock()

		if cancelled {
			cancel()
		}

		go e.dispatchProgress()
		go e.run(runCtx, cancel)
	})
}

// Wait blocks until the graph finished and returns the same error as Run.
func (e *Executor) Wait() error {
	<-e.done
	return e.err
}

// Cancel requests cooperative cancellation of every node that is not terminal yet.
func (e *Executor) Cancel() {
	e.mu.Lock()
	e.cancelled = true
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Exception returns the error that aborted the graph, if any.
func (e *Executor) Exception() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.exception
}

// Errors returns the recorded non-fatal failures.
func (e *Executor) Errors() []error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]error, len(e.errs))
	copy(out, e.errs)
	return out
}

// State returns the state of a node. Unknown nodes are pending.
func (e *Executor) State(n task.Node) task.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.states[n]
}

// AddListener registers a completion listener. Listeners added after completion fire immediately.
func (e *Executor) AddListener(l Listener) {
	e.mu.Lock()
	if e.finished {
		success := e.success
		e.mu.Unlock()
		go l(success, e)
		return
	}
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()
}

// OnProgress registers a progress observer. Observers run on a dedicated goroutine and
// receive coalesced snapshots.
func (e *Executor) OnProgress(fn func(Progress)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progressFns = append(e.progressFns, fn)
}

func (e *Executor) setState(n task.Node, s task.State) {
	e.mu.Lock()
	e.states[n] = s
	e.mu.Unlock()
	e.notifyProgress()
}

func (e *Executor) setException(err error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.exception != nil {
		return false
	}
	e.exception = err
	return true
}

func (e *Executor) addError(err error) {
	e.mu.Lock()
	e.errs = append(e.errs, err)
	e.mu.Unlock()
	if e.logger != nil {
		e.logger.Warn(err.Error())
	}
}

func (e *Executor) run(ctx context.Context, cancel context.CancelFunc) {
	state := newRunState(e, ctx, cancel)
	err := state.execute()
	cancel()

	e.mu.Lock()
	e.err = err
	e.finished = true
	e.success = err == nil
	listeners := e.listeners
	e.mu.Unlock()

	close(e.done)
	e.notifyProgress()

	for _, l := range listeners {
		go l(err == nil, e)
	}
}

func (e *Executor) rootFailure(rootState task.State) error {
	if exc := e.Exception(); exc != nil {
		return exc
	}
	if rootState == task.Succeeded {
		return nil
	}
	err := e.root.Err()
	if err != nil && !task.IsCancellation(err) {
		return err
	}

	// The root was cancelled by a failed dependency; surface that failure instead.
	e.mu.RLock()
	cancelled := e.cancelled
	var first error
	if len(e.errs) > 0 {
		first = e.errs[0]
	}
	e.mu.RUnlock()
	if !cancelled && first != nil {
		return first
	}
	if err != nil {
		return err
	}
	return &domain.CancelledError{Task: e.root.Name()}
}

type reporter struct {
	e *Executor
}

func (r reporter) Progress(n task.Node, done, total int64) {
	r.e.mu.Lock()
	r.e.counters[n] = counter{done: done, total: total}
	r.e.mu.Unlock()
	r.e.notifyProgress()
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	return ctx, noopSpan{}
}

func (noopTracer) EmitPlan(context.Context, []string) {}

type noopSpan struct{}

func (noopSpan) Write(p []byte) (int, error) { return len(p), nil }
func (noopSpan) End()                        {}
func (noopSpan) RecordError(error)           {}
func (noopSpan) SetAttribute(string, any)    {}
