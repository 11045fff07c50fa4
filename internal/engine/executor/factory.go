package executor

import (
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/depot/internal/engine/task"
)

// Factory creates executors sharing the same configuration.
type Factory struct {
	parallelism int
	tracer      ports.Tracer
	logger      ports.Logger
}

// NewFactory creates a factory. A parallelism below one falls back to the number of CPUs.
func NewFactory(parallelism int, tracer ports.Tracer, logger ports.Logger) *Factory {
	return &Factory{parallelism: parallelism, tracer: tracer, logger: logger}
}

// New creates an executor for root.
func (f *Factory) New(root task.Node, opts ...Option) *Executor {
	base := []Option{WithParallelism(f.parallelism), WithTracer(f.tracer), WithLogger(f.logger)}
	return New(root, append(base, opts...)...)
}
