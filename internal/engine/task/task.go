// Package task defines lazily evaluated units of work and the combinators that compose them.
// Nothing in this package performs I/O on its own; a graph only runs once handed to an executor.
package task

import (
	"errors"
	"sync"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/zerr"
)

// Significance controls how a failure propagates.
type Significance int

const (
	// Major failures abort the whole graph.
	Major Significance = iota
	// Moderate failures are recorded but sibling work continues.
	Moderate
	// Minor failures are tolerated silently.
	Minor
)

func (s Significance) String() string {
	switch s {
	case Major:
		return "major"
	case Moderate:
		return "moderate"
	default:
		return "minor"
	}
}

// State is the lifecycle state of a node inside an executor.
type State int

const (
	// Pending nodes wait for their dependencies.
	Pending State = iota
	// Ready nodes wait for a free worker.
	Ready
	// Running nodes are executing or waiting for their dependents.
	Running
	// Succeeded nodes produced a value.
	Succeeded
	// Failed nodes produced an error.
	Failed
	// Cancelled nodes observed cancellation or were never started.
	Cancelled
)

func (s State) String() string {
	return [...]string{"pending", "ready", "running", "succeeded", "failed", "cancelled"}[s]
}

// IsTerminal reports whether the state is final.
func (s State) IsTerminal() bool {
	return s == Succeeded || s == Failed || s == Cancelled
}

// Node is the type-erased view of a task that an executor schedules.
type Node interface {
	Name() string
	Stage() string
	Significance() Significance
	Dependencies() []Node
	// Start runs the first step of the task.
	Start(ctx *Context) (Step, error)
	// Complete stores the outcome and runs completion hooks. It returns a non-nil error when
	// value does not fit the task's result type.
	Complete(value any, err error) error
	// Err returns the stored error, if any.
	Err() error
}

// Task is a node producing a value of type T.
type Task[T any] struct {
	name         string
	stage        string
	significance Significance
	deps         []Node
	run          func(ctx *Context) (Step, error)
	hooks        []func(T, error)

	mu     sync.Mutex
	done   bool
	result T
	err    error
}

// New returns a task computing its value with fn.
func New[T any](name string, fn func(ctx *Context) (T, error)) *Task[T] {
	return NewStep[T](name, func(ctx *Context) (Step, error) {
		v, err := fn(ctx)
		if err != nil {
			return Step{}, err
		}
		return Done(v), nil
	})
}

// NewStep returns a task driven by a step function. The step may ask the executor to run
// dependents before continuing; the final Done value must be a T.
func NewStep[T any](name string, fn func(ctx *Context) (Step, error)) *Task[T] {
	return &Task[T]{name: name, run: fn}
}

// FromValue returns a task that immediately yields v.
func FromValue[T any](name string, v T) *Task[T] {
	return New(name, func(*Context) (T, error) { return v, nil })
}

// Name returns the task name.
func (t *Task[T]) Name() string { return t.name }

// Stage returns the progress label.
func (t *Task[T]) Stage() string { return t.stage }

// Significance returns the failure significance.
func (t *Task[T]) Significance() Significance { return t.significance }

// Dependencies returns the tasks that must succeed first.
func (t *Task[T]) Dependencies() []Node { return t.deps }

// WithStage attaches a progress label consumed by observers.
func (t *Task[T]) WithStage(stage string) *Task[T] {
	t.stage = stage
	return t
}

// WithSignificance sets how a failure of this task propagates.
func (t *Task[T]) WithSignificance(s Significance) *Task[T] {
	t.significance = s
	return t
}

// DependsOn adds dependencies.
func (t *Task[T]) DependsOn(nodes ...Node) *Task[T] {
	t.deps = append(t.deps, nodes...)
	return t
}

// WhenComplete registers a hook that runs once the task reaches a terminal state,
// including failure and cancellation.
func (t *Task[T]) WhenComplete(fn func(T, error)) *Task[T] {
	t.hooks = append(t.hooks, fn)
	return t
}

// Start runs the first step.
func (t *Task[T]) Start(ctx *Context) (Step, error) {
	if err := ctx.Checkpoint(); err != nil {
		return Step{}, err
	}
	return t.run(ctx)
}

// Complete stores the outcome and runs the completion hooks.
func (t *Task[T]) Complete(value any, err error) error {
	var result T
	if err == nil && value != nil {
		v, ok := value.(T)
		if !ok {
			err = zerr.With(domain.ErrTaskResultType, "task", t.name)
		} else {
			result = v
		}
	}

	t.mu.Lock()
	t.done = true
	t.result = result
	t.err = err
	hooks := t.hooks
	t.mu.Unlock()

	for _, h := range hooks {
		h(result, err)
	}
	return err
}

// Result returns the value and error. Before completion it returns the zero value and nil.
func (t *Task[T]) Result() (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// Err returns the stored error.
func (t *Task[T]) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Completed reports whether the task reached a terminal state.
func (t *Task[T]) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Step is the outcome of one step: a final value, or dependents to run before the next step.
type Step struct {
	value      any
	dependents []Node
	next       func(ctx *Context) (Step, error)
}

// Done finishes the task with value.
func Done(value any) Step {
	return Step{value: value}
}

// Continue asks the executor to run dependents and then call next. A nil next finishes the task
// with the zero value.
func Continue(dependents []Node, next func(ctx *Context) (Step, error)) Step {
	if next == nil {
		next = func(*Context) (Step, error) { return Done(nil), nil }
	}
	return Step{dependents: dependents, next: next}
}

// IsDone reports whether the step finished the task.
func (s Step) IsDone() bool { return s.next == nil }

// Value returns the final value of a done step.
func (s Step) Value() any { return s.value }

// Dependents returns the nodes to run before the next step.
func (s Step) Dependents() []Node { return s.dependents }

// Next returns the continuation.
func (s Step) Next() func(ctx *Context) (Step, error) { return s.next }

// IsCancellation reports whether err stems from cancellation, either cooperative or via context.
func IsCancellation(err error) bool {
	return domain.IsCancellation(err) || errors.Is(err, errContextCanceled)
}
