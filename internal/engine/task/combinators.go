package task

// Map returns a task applying fn to the result of t.
func Map[T, U any](t *Task[T], name string, fn func(T) (U, error)) *Task[U] {
	return New(name, func(*Context) (U, error) {
		v, _ := t.Result()
		return fn(v)
	}).DependsOn(t)
}

// Then returns a task that runs after t and receives its result.
func Then[T, U any](t *Task[T], name string, fn func(ctx *Context, v T) (U, error)) *Task[U] {
	return New(name, func(ctx *Context) (U, error) {
		v, _ := t.Result()
		return fn(ctx, v)
	}).DependsOn(t)
}

// Compose returns a task that runs after t, asks fn for a follow-up task and yields its result.
func Compose[T, U any](t *Task[T], name string, fn func(ctx *Context, v T) (*Task[U], error)) *Task[U] {
	return NewStep[U](name, func(ctx *Context) (Step, error) {
		v, _ := t.Result()
		next, err := fn(ctx, v)
		if err != nil {
			return Step{}, err
		}
		if next == nil {
			return Done(nil), nil
		}
		return Continue([]Node{next}, func(*Context) (Step, error) {
			r, err := next.Result()
			if err != nil {
				return Step{}, err
			}
			return Done(r), nil
		}), nil
	}).DependsOn(t)
}

// AllOf returns a task waiting for every task and yielding their results in order.
func AllOf[T any](name string, tasks ...*Task[T]) *Task[[]T] {
	nodes := make([]Node, len(tasks))
	for i, t := range tasks {
		nodes[i] = t
	}
	return New(name, func(*Context) ([]T, error) {
		out := make([]T, len(tasks))
		for i, t := range tasks {
			out[i], _ = t.Result()
		}
		return out, nil
	}).DependsOn(nodes...)
}

// Group returns a task waiting for heterogeneous nodes.
func Group(name string, nodes ...Node) *Task[struct{}] {
	return FromValue(name, struct{}{}).DependsOn(nodes...)
}
