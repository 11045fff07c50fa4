package executor

import (
	"context"
	"fmt"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/depot/internal/engine/task"
	"go.trai.ch/zerr"
)

type stepFunc = func(ctx *task.Context) (task.Step, error)

// entry is the scheduler's bookkeeping for one node. Only the scheduler goroutine touches it.
type entry struct {
	node       task.Node
	state      task.State
	pending    int
	depFailed  bool
	dependents []*entry
	// waiters are entries whose current step waits on this entry.
	waiters  []*entry
	children []*entry
	waiting  int
	next     stepFunc
}

type job struct {
	e  *entry
	fn stepFunc
}

type outcome struct {
	e    *entry
	step task.Step
	err  error
}

type runState struct {
	ex      *Executor
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[task.Node]*entry
	ready   []*entry
	active  int
	open    int
	aborted bool
	jobs    chan job
	results chan outcome
}

func newRunState(ex *Executor, ctx context.Context, cancel context.CancelFunc) *runState {
	return &runState{
		ex:      ex,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[task.Node]*entry),
		jobs:    make(chan job),
		results: make(chan outcome, ex.parallelism),
	}
}

func (s *runState) execute() error {
	for range s.ex.parallelism {
		go s.worker()
	}
	defer close(s.jobs)

	root, err := s.add(s.ex.root, make(map[task.Node]bool))
	if err != nil {
		return err
	}

	names := make([]string, 0, len(s.entries))
	for n := range s.entries {
		names = append(names, n.Name())
	}
	s.ex.tracer.EmitPlan(s.ctx, names)

	s.loop()
	return s.ex.rootFailure(root.state)
}

func (s *runState) loop() {
	done := s.ctx.Done()
	for s.open > 0 {
		s.schedule()

		if s.open == 0 {
			break
		}
		if s.active == 0 && len(s.ready) == 0 {
			if s.aborted {
				s.drain()
				continue
			}
			// Everything left waits on something that can never finish.
			err := zerr.With(domain.ErrCycleDetected, "open", s.open)
			s.ex.setException(err)
			s.abort()
			continue
		}

		select {
		case o := <-s.results:
			s.handle(o)
		case <-done:
			done = nil
			s.ex.setException(&domain.CancelledError{Task: s.ex.root.Name(), Cause: s.ctx.Err()})
			s.abort()
		}
	}
}

// add registers n and its dependency closure. Entries already known are reused.
func (s *runState) add(n task.Node, visiting map[task.Node]bool) (*entry, error) {
	if e, ok := s.entries[n]; ok {
		return e, nil
	}
	if visiting[n] {
		return nil, zerr.With(domain.ErrCycleDetected, "task", n.Name())
	}
	visiting[n] = true

	deps := make([]*entry, 0, len(n.Dependencies()))
	for _, d := range n.Dependencies() {
		de, err := s.add(d, visiting)
		if err != nil {
			return nil, err
		}
		deps = append(deps, de)
	}
	delete(visiting, n)

	e := &entry{node: n, state: task.Pending}
	s.entries[n] = e
	s.open++
	s.ex.setState(n, task.Pending)

	for _, de := range deps {
		switch {
		case de.state == task.Succeeded:
		case de.state.IsTerminal():
			e.depFailed = true
		default:
			e.pending++
			de.dependents = append(de.dependents, e)
		}
	}
	if e.pending == 0 {
		s.resolve(e)
	}
	return e, nil
}

// resolve moves an entry whose dependencies are all terminal to READY, or cancels it.
func (s *runState) resolve(e *entry) {
	if s.aborted || (e.depFailed && e.node.Significance() == task.Major) {
		s.finish(e, task.Cancelled, nil, &domain.CancelledError{Task: e.node.Name()})
		return
	}
	e.state = task.Ready
	s.ex.setState(e.node, task.Ready)
	s.ready = append(s.ready, e)
}

func (s *runState) schedule() {
	for len(s.ready) > 0 && s.active < s.ex.parallelism && !s.aborted {
		e := s.ready[0]
		s.ready = s.ready[1:]

		fn := e.next
		e.next = nil
		if fn == nil {
			fn = e.node.Start
		}

		e.state = task.Running
		s.ex.setState(e.node, task.Running)
		s.active++
		s.jobs <- job{e: e, fn: fn}
	}
}

func (s *runState) worker() {
	for j := range s.jobs {
		step, err := s.runStep(j)
		s.results <- outcome{e: j.e, step: step, err: err}
	}
}

func (s *runState) runStep(j job) (step task.Step, err error) {
	n := j.e.node
	ctx, span := s.ex.tracer.Start(s.ctx, n.Name(), ports.WithStage(n.Stage()))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = zerr.With(zerr.New(fmt.Sprintf("task panicked: %v", r)), "task", n.Name())
		}
		if err != nil {
			span.RecordError(err)
		}
	}()

	span.SetAttribute("depot.significance", n.Significance().String())
	return j.fn(task.NewContext(ctx, n, reporter{e: s.ex}))
}

func (s *runState) handle(o outcome) {
	s.active--
	e := o.e

	if o.err != nil {
		if task.IsCancellation(o.err) {
			s.finish(e, task.Cancelled, nil, asCancelled(e, o.err))
			return
		}
		s.finish(e, task.Failed, nil, o.err)
		return
	}

	if o.step.IsDone() {
		s.finish(e, task.Succeeded, o.step.Value(), nil)
		return
	}

	e.next = o.step.Next()
	for _, c := range o.step.Dependents() {
		ce, err := s.add(c, make(map[task.Node]bool))
		if err != nil {
			s.finish(e, task.Failed, nil, err)
			return
		}
		e.children = append(e.children, ce)
		if !ce.state.IsTerminal() {
			e.waiting++
			ce.waiters = append(ce.waiters, e)
		}
	}
	if e.waiting == 0 {
		s.resume(e)
	}
}

// resume continues an entry once all dependents of its last step are terminal.
func (s *runState) resume(e *entry) {
	if e.state.IsTerminal() {
		return
	}

	var major error
	for _, c := range e.children {
		if c.state == task.Succeeded || c.node.Significance() != task.Major {
			continue
		}
		major = c.node.Err()
		if major == nil {
			major = &domain.CancelledError{Task: c.node.Name()}
		}
		break
	}
	e.children = nil

	switch {
	case major != nil && task.IsCancellation(major):
		s.finish(e, task.Cancelled, nil, asCancelled(e, major))
	case major != nil:
		s.finish(e, task.Failed, nil, major)
	case s.aborted:
		s.finish(e, task.Cancelled, nil, &domain.CancelledError{Task: e.node.Name()})
	default:
		e.state = task.Ready
		s.ex.setState(e.node, task.Ready)
		s.ready = append(s.ready, e)
	}
}

func (s *runState) finish(e *entry, state task.State, value any, err error) {
	if e.state.IsTerminal() {
		return
	}

	if state == task.Succeeded {
		if cerr := e.node.Complete(value, nil); cerr != nil {
			state, err = task.Failed, cerr
		}
	} else {
		_ = e.node.Complete(nil, err)
	}

	e.state = state
	s.open--
	s.ex.setState(e.node, state)

	if state == task.Failed {
		switch e.node.Significance() {
		case task.Major:
			if s.ex.setException(err) {
				s.abort()
			}
		case task.Moderate:
			s.ex.addError(zerr.With(err, "task", e.node.Name()))
		case task.Minor:
		}
	}

	for _, d := range e.dependents {
		if state != task.Succeeded {
			d.depFailed = true
		}
		d.pending--
		if d.pending == 0 && d.state == task.Pending {
			s.resolve(d)
		}
	}
	for _, w := range e.waiters {
		w.waiting--
		if w.waiting == 0 {
			s.resume(w)
		}
	}
}

// abort cancels every node that has not started and signals running ones.
func (s *runState) abort() {
	if s.aborted {
		return
	}
	s.aborted = true
	s.cancel()

	ready := s.ready
	s.ready = nil
	for _, e := range ready {
		s.finish(e, task.Cancelled, nil, &domain.CancelledError{Task: e.node.Name()})
	}
	for _, e := range s.entries {
		if e.state == task.Pending {
			s.finish(e, task.Cancelled, nil, &domain.CancelledError{Task: e.node.Name()})
		}
	}
}

func (s *runState) drain() {
	for _, e := range s.entries {
		if !e.state.IsTerminal() {
			s.finish(e, task.Cancelled, nil, &domain.CancelledError{Task: e.node.Name()})
		}
	}
}

func asCancelled(e *entry, err error) error {
	if domain.IsCancellation(err) {
		return err
	}
	return &domain.CancelledError{Task: e.node.Name(), Cause: err}
}
