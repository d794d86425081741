package asynctask

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTaskAsyncSuccess(t *testing.T) {
	mgr := NewManager(WithWorkerLimit(4))
	defer mgr.Shutdown()

	future := RunTaskAsync[int](mgr, context.Background(), RunnableFunc[int](func(ctx context.Context, p *Promise[int]) (int, error) {
		return 21 * 2, nil
	}))

	require.True(t, mgr.WaitForTaskBlocking(future.task(), nil))
	v, err := future.Results()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestRunTaskAsyncPropagatesError(t *testing.T) {
	mgr := NewManager(WithWorkerLimit(2))
	defer mgr.Shutdown()

	wantErr := errors.New("job failed")
	future := RunTaskAsync[int](mgr, context.Background(), RunnableFunc[int](func(ctx context.Context, p *Promise[int]) (int, error) {
		return 0, wantErr
	}))

	mgr.WaitForTaskBlocking(future.task(), nil)
	_, err := future.Results()
	require.ErrorIs(t, err, wantErr)
}

func TestRunTaskAsyncRecoversPanics(t *testing.T) {
	mgr := NewManager(WithWorkerLimit(2))
	defer mgr.Shutdown()

	future := RunTaskAsync[int](mgr, context.Background(), RunnableFunc[int](func(ctx context.Context, p *Promise[int]) (int, error) {
		panic("kaboom")
	}))

	mgr.WaitForTaskBlocking(future.task(), nil)
	_, err := future.Results()
	require.ErrorIs(t, err, ErrTaskPanicked)
}

func TestRunTaskAsyncCancelsOnContextDone(t *testing.T) {
	mgr := NewManager(WithWorkerLimit(1))
	defer mgr.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	future := RunTaskAsync[int](mgr, ctx, RunnableFunc[int](func(ctx context.Context, p *Promise[int]) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	}))

	<-started
	cancel()
	mgr.WaitForTaskBlocking(future.task(), nil)
	_, err := future.Results()
	require.ErrorIs(t, err, ErrCancelled)
}

func TestManagerLookupAndWatcherFinished(t *testing.T) {
	mgr := NewManager(WithWorkerLimit(2))
	defer mgr.Shutdown()

	done := make(chan struct{})
	future := RunTaskAsync[int](mgr, context.Background(), RunnableFunc[int](func(ctx context.Context, p *Promise[int]) (int, error) {
		<-done
		return 1, nil
	}))

	id := future.ID()
	watcher, ok := mgr.Lookup(id)
	require.True(t, ok)
	assert.False(t, watcher.IsFinished())

	close(done)
	mgr.WaitForTaskBlocking(future.task(), nil)
	// Give the started/finished notification a moment to clear through the
	// event loop before asserting on the watcher's cached flag.
	deadline := time.Now().Add(time.Second)
	for !watcher.IsFinished() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.True(t, watcher.IsFinished())
}

func TestAwaitAllSucceedsWhenEveryTaskFinishes(t *testing.T) {
	mgr := NewManager(WithWorkerLimit(4))
	defer mgr.Shutdown()

	var tasks []taskCommon
	for i := 0; i < 3; i++ {
		f := RunTaskAsync[int](mgr, context.Background(), RunnableFunc[int](func(ctx context.Context, p *Promise[int]) (int, error) {
			return 1, nil
		}))
		tasks = append(tasks, f.task())
	}

	ok, err := mgr.AwaitAll(context.Background(), tasks)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAwaitAllReportsCancellation(t *testing.T) {
	mgr := NewManager(WithWorkerLimit(4))
	defer mgr.Shutdown()

	cancelledFuture := RunTaskAsync[int](mgr, context.Background(), RunnableFunc[int](func(ctx context.Context, p *Promise[int]) (int, error) {
		p.Cancel()
		return 0, nil
	}))

	ok, err := mgr.AwaitAll(context.Background(), []taskCommon{cancelledFuture.task()})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithoutWorkerPoolRunsOnEventLoop(t *testing.T) {
	mgr := NewManager(WithoutWorkerPool())
	defer mgr.Shutdown()

	future := RunTaskAsync[string](mgr, context.Background(), RunnableFunc[string](func(ctx context.Context, p *Promise[string]) (string, error) {
		return "ran inline", nil
	}))

	mgr.WaitForTask(future.task(), nil)
	v, err := future.Results()
	require.NoError(t, err)
	assert.Equal(t, "ran inline", v)
}

func TestMainThreadWaitPumpsEventLoop(t *testing.T) {
	mgr := NewManager(WithoutWorkerPool())
	defer mgr.Shutdown()

	p := NewMainThreadPromise[int](mgr, true)

	// Simulate another goroutine posting the completion onto the Manager's
	// event loop, the way a worker result would be delivered back to the
	// main thread that owns this task.
	go func() {
		time.Sleep(10 * time.Millisecond)
		mgr.postEvent(func() {
			p.SetResults(99)
			p.SetFinished()
		})
	}()

	ok := mgr.WaitForTask(p.task, nil)
	require.True(t, ok)
	f := p.Future()
	v, err := f.Results()
	require.NoError(t, err)
	assert.Equal(t, 99, v)
}

func TestPruneRemovesFinishedEntries(t *testing.T) {
	mgr := NewManager(WithWorkerLimit(2))
	defer mgr.Shutdown()

	future := RunTaskAsync[int](mgr, context.Background(), RunnableFunc[int](func(ctx context.Context, p *Promise[int]) (int, error) {
		return 1, nil
	}))
	mgr.WaitForTaskBlocking(future.task(), nil)

	pruned := mgr.Prune()
	assert.GreaterOrEqual(t, pruned, 1)

	_, ok := mgr.Lookup(future.ID())
	assert.False(t, ok)
}

func TestWithRetryRetriesOnFailure(t *testing.T) {
	attempts := 0
	r := WithRetry[int](RunnableFunc[int](func(ctx context.Context, p *Promise[int]) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("transient")
		}
		return attempts, nil
	}), 5, time.Millisecond)

	mgr := NewManager(WithWorkerLimit(1))
	defer mgr.Shutdown()

	future := RunTaskAsync[int](mgr, context.Background(), r)
	mgr.WaitForTaskBlocking(future.task(), nil)
	v, err := future.Results()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestWithTimeoutFailsSlowRunnable(t *testing.T) {
	r := WithTimeout[int](RunnableFunc[int](func(ctx context.Context, p *Promise[int]) (int, error) {
		select {
		case <-time.After(time.Second):
			return 1, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}), 10*time.Millisecond)

	mgr := NewManager(WithWorkerLimit(1))
	defer mgr.Shutdown()

	future := RunTaskAsync[int](mgr, context.Background(), r)
	mgr.WaitForTaskBlocking(future.task(), nil)
	_, err := future.Results()
	require.Error(t, err)
}
