package executor_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports/mocks"
	"go.trai.ch/depot/internal/engine/executor"
	"go.trai.ch/depot/internal/engine/task"
	"go.uber.org/mock/gomock"
)

func TestExecutor_RunsChainInOrder(t *testing.T) {
	var order []string
	a := task.New("a", func(*task.Context) (int, error) {
		order = append(order, "a")
		return 2, nil
	})
	b := task.Then(a, "b", func(_ *task.Context, v int) (int, error) {
		order = append(order, "b")
		return v * 10, nil
	})
	c := task.Map(b, "c", func(v int) (int, error) {
		order = append(order, "c")
		return v + 1, nil
	})

	ex := executor.New(c, executor.WithParallelism(4))
	require.NoError(t, ex.Run(context.Background()))

	v, err := c.Result()
	require.NoError(t, err)
	assert.Equal(t, 21, v)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, task.Succeeded, ex.State(a))
	assert.Equal(t, task.Succeeded, ex.State(c))
}

func TestExecutor_SharedDependencyRunsOnce(t *testing.T) {
	var runs atomic.Int32
	shared := task.New("shared", func(*task.Context) (int, error) {
		runs.Add(1)
		return 1, nil
	})
	left := task.Map(shared, "left", func(v int) (int, error) { return v, nil })
	right := task.Map(shared, "right", func(v int) (int, error) { return v, nil })
	all := task.AllOf("all", left, right)

	require.NoError(t, executor.New(all).Run(context.Background()))
	assert.Equal(t, int32(1), runs.Load())

	v, _ := all.Result()
	assert.Equal(t, []int{1, 1}, v)
}

func TestExecutor_MajorFailureLeavesIndependentTask(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		boom := errors.New("boom")
		a := task.New("a", func(*task.Context) (int, error) { return 0, boom })
		b := task.New("b", func(*task.Context) (int, error) {
			time.Sleep(time.Second)
			return 1, nil
		})
		root := task.Group("root", a, b)

		ex := executor.New(root, executor.WithParallelism(2))
		err := ex.Run(context.Background())

		require.ErrorIs(t, err, boom)
		require.ErrorIs(t, ex.Exception(), boom)
		assert.Equal(t, task.Failed, ex.State(a))
		assert.Equal(t, task.Succeeded, ex.State(b))
		assert.Equal(t, task.Cancelled, ex.State(root))
	})
}

func TestExecutor_MajorFailureCancelsNotStarted(t *testing.T) {
	boom := errors.New("boom")
	ran := false
	a := task.New("a", func(*task.Context) (int, error) { return 0, boom })
	b := task.Then(a, "b", func(*task.Context, int) (int, error) {
		ran = true
		return 0, nil
	})

	ex := executor.New(b, executor.WithParallelism(1))
	err := ex.Run(context.Background())

	require.ErrorIs(t, err, boom)
	assert.False(t, ran)
	assert.Equal(t, task.Cancelled, ex.State(b))
	assert.True(t, task.IsCancellation(b.Err()))
}

func TestExecutor_ModerateFailureIsRecorded(t *testing.T) {
	boom := errors.New("missing sound")
	asset := task.New("asset", func(*task.Context) (int, error) { return 0, boom }).
		WithSignificance(task.Moderate)
	ok := task.FromValue("ok", 1)
	degraded := false
	dependent := task.Then(asset, "dependent", func(*task.Context, int) (int, error) {
		degraded = true
		return 0, nil
	}).WithSignificance(task.Moderate)
	root := task.Group("root", asset, ok, dependent).WithSignificance(task.Moderate)

	logger := mocks.NewMockLogger(gomock.NewController(t))
	logger.EXPECT().Warn(gomock.Any()).Times(1)

	ex := executor.New(root, executor.WithLogger(logger))
	require.NoError(t, ex.Run(context.Background()))

	require.Len(t, ex.Errors(), 1)
	assert.ErrorIs(t, ex.Errors()[0], boom)
	assert.True(t, degraded)
	assert.Equal(t, task.Succeeded, ex.State(ok))
	assert.Equal(t, task.Succeeded, ex.State(root))
}

func TestExecutor_MajorRootReportsModerateCause(t *testing.T) {
	boom := errors.New("boom")
	lib := task.New("library", func(*task.Context) (int, error) { return 0, boom }).
		WithSignificance(task.Moderate)
	root := task.Map(lib, "root", func(v int) (int, error) { return v, nil })

	ex := executor.New(root)
	err := ex.Run(context.Background())

	require.Error(t, err)
	require.ErrorIs(t, err, boom)
	assert.False(t, domain.IsCancellation(err))
	assert.Nil(t, ex.Exception())
	assert.Equal(t, task.Cancelled, ex.State(root))
}

func TestExecutor_MinorFailureIsIgnored(t *testing.T) {
	minor := task.New("minor", func(*task.Context) (int, error) { return 0, errors.New("ignored") }).
		WithSignificance(task.Minor)
	root := task.Group("root", minor).WithSignificance(task.Minor)

	ex := executor.New(root)
	require.NoError(t, ex.Run(context.Background()))
	assert.Empty(t, ex.Errors())
	assert.Equal(t, task.Failed, ex.State(minor))
}

func TestExecutor_StepDependents(t *testing.T) {
	items := []int{1, 2, 3, 4}
	sum := task.NewStep[int]("sum", func(*task.Context) (task.Step, error) {
		parts := make([]*task.Task[int], len(items))
		nodes := make([]task.Node, len(items))
		for i, v := range items {
			parts[i] = task.FromValue("item", v*v)
			nodes[i] = parts[i]
		}
		return task.Continue(nodes, func(*task.Context) (task.Step, error) {
			total := 0
			for _, p := range parts {
				v, err := p.Result()
				if err != nil {
					return task.Step{}, err
				}
				total += v
			}
			return task.Done(total), nil
		}), nil
	})

	ex := executor.New(sum, executor.WithParallelism(2))
	require.NoError(t, ex.Run(context.Background()))

	v, err := sum.Result()
	require.NoError(t, err)
	assert.Equal(t, 30, v)
}

func TestExecutor_MajorDependentFailsParent(t *testing.T) {
	boom := errors.New("index unreadable")
	parent := task.NewStep[int]("parent", func(*task.Context) (task.Step, error) {
		child := task.New("child", func(*task.Context) (int, error) { return 0, boom })
		return task.Continue([]task.Node{child}, nil), nil
	})

	ex := executor.New(parent)
	err := ex.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, task.Failed, ex.State(parent))
}

func TestExecutor_CancelStopsPendingDownloads(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var started atomic.Int32
		root := task.NewStep[struct{}]("assets", func(*task.Context) (task.Step, error) {
			nodes := make([]task.Node, 1000)
			for i := range nodes {
				nodes[i] = task.New("object", func(ctx *task.Context) (int, error) {
					started.Add(1)
					select {
					case <-ctx.Done():
						return 0, ctx.Checkpoint()
					case <-time.After(time.Minute):
						return 1, nil
					}
				})
			}
			return task.Continue(nodes, nil), nil
		})

		ex := executor.New(root, executor.WithParallelism(4))
		ex.Start(context.Background())
		synctest.Wait()
		require.Equal(t, int32(4), started.Load())

		ex.Cancel()
		err := ex.Wait()

		require.Error(t, err)
		assert.True(t, domain.IsCancellation(err))
		assert.ErrorIs(t, err, domain.ErrCancelled)
		assert.LessOrEqual(t, started.Load(), int32(8))
		assert.Equal(t, task.Cancelled, ex.State(root))
	})
}

func TestExecutor_ContextCancellation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		blocker := task.New("blocker", func(ctx *task.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Checkpoint()
		})

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			errCh <- executor.New(blocker).Run(ctx)
		}()

		synctest.Wait()
		cancel()

		err := <-errCh
		require.ErrorIs(t, err, context.Canceled)
		assert.True(t, domain.IsCancellation(err))
	})
}

func TestExecutor_CycleDetected(t *testing.T) {
	a := task.FromValue("a", 1)
	b := task.FromValue("b", 2).DependsOn(a)
	a.DependsOn(b)

	err := executor.New(b).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrCycleDetected.Error())
}

func TestExecutor_PanicBecomesFailure(t *testing.T) {
	p := task.New("panics", func(*task.Context) (int, error) { panic("bad index") })

	ex := executor.New(p)
	err := ex.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad index")
	assert.Equal(t, task.Failed, ex.State(p))
}

func TestExecutor_Listeners(t *testing.T) {
	root := task.FromValue("root", 1)
	ex := executor.New(root)

	before := make(chan bool, 1)
	ex.AddListener(func(success bool, got *executor.Executor) {
		assert.Same(t, ex, got)
		before <- success
	})
	require.NoError(t, ex.Run(context.Background()))
	assert.True(t, <-before)

	after := make(chan bool, 1)
	ex.AddListener(func(success bool, _ *executor.Executor) { after <- success })
	assert.True(t, <-after)
}

func TestExecutor_ListenerSeesFailure(t *testing.T) {
	boom := errors.New("boom")
	ex := executor.New(task.New("a", func(*task.Context) (int, error) { return 0, boom }))

	got := make(chan error, 1)
	ex.AddListener(func(success bool, e *executor.Executor) {
		assert.False(t, success)
		got <- e.Exception()
	})
	require.Error(t, ex.Run(context.Background()))
	assert.ErrorIs(t, <-got, boom)
}

func TestExecutor_ProgressWeightsReportedItems(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		release := make(chan struct{})
		worker := task.New("objects", func(ctx *task.Context) (int, error) {
			ctx.Progress(3, 10)
			<-release
			ctx.Progress(10, 10)
			return 10, nil
		}).WithStage("assets")
		index := task.FromValue("index", 1).WithStage("index")
		root := task.Group("root", worker, index).WithStage("install")

		ex := executor.New(root, executor.WithParallelism(2))
		ex.Start(context.Background())
		synctest.Wait()

		p := ex.Progress()
		assert.Equal(t, int64(12), p.Total)
		assert.Equal(t, int64(4), p.Done)
		require.Len(t, p.Stages, 3)
		assert.Equal(t, "assets", p.Stages[0].Stage)
		assert.Equal(t, int64(3), p.Stages[0].Done)
		assert.Equal(t, int64(10), p.Stages[0].Total)

		close(release)
		require.NoError(t, ex.Wait())

		p = ex.Progress()
		assert.Equal(t, p.Total, p.Done)
		assert.InDelta(t, 1.0, p.Fraction(), 1e-9)
	})
}

func TestExecutor_OnProgressReceivesFinalSnapshot(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var last atomic.Value
		root := task.Group("root", task.FromValue("a", 1), task.FromValue("b", 2))
		ex := executor.New(root)
		ex.OnProgress(func(p executor.Progress) { last.Store(p) })

		require.NoError(t, ex.Run(context.Background()))
		synctest.Wait()

		p, ok := last.Load().(executor.Progress)
		require.True(t, ok)
		assert.Equal(t, int64(3), p.Total)
		assert.Equal(t, int64(3), p.Done)
	})
}

func TestFactory_AppliesDefaults(t *testing.T) {
	f := executor.NewFactory(2, nil, nil)
	root := task.FromValue("root", "ok")
	ex := f.New(root)
	require.NoError(t, ex.Run(context.Background()))
	v, _ := root.Result()
	assert.Equal(t, "ok", v)
}
