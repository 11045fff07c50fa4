package task

import (
	"context"

	"go.trai.ch/depot/internal/core/domain"
)

var errContextCanceled = context.Canceled

// Reporter receives progress updates from running tasks.
type Reporter interface {
	Progress(n Node, done, total int64)
}

// Context is passed to every step. It carries cancellation and progress reporting.
type Context struct {
	context.Context
	node     Node
	reporter Reporter
}

// NewContext binds ctx to the node being run.
func NewContext(ctx context.Context, n Node, r Reporter) *Context {
	return &Context{Context: ctx, node: n, reporter: r}
}

// Background returns a context usable outside an executor, mainly for running a step inline.
func Background(n Node) *Context {
	return NewContext(context.Background(), n, nil)
}

// Name returns the name of the running task.
func (c *Context) Name() string { return c.node.Name() }

// Checkpoint returns a *domain.CancelledError once cancellation was requested.
// Steps call it before each unit of sub-work and inside long loops.
func (c *Context) Checkpoint() error {
	if err := c.Err(); err != nil {
		return &domain.CancelledError{Task: c.node.Name(), Cause: err}
	}
	return nil
}

// Progress reports done out of total items for the running task.
func (c *Context) Progress(done, total int64) {
	if c.reporter != nil {
		c.reporter.Progress(c.node, done, total)
	}
}

// Stage returns the progress label of the running task.
func (c *Context) Stage() string { return c.node.Stage() }
