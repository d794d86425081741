package asynctask

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadyFutureResolvesImmediately(t *testing.T) {
	f := ReadyFuture(7)
	require.True(t, f.IsValid())
	require.True(t, f.IsFinished())

	v, err := f.Results()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestFailedAndCancelledFutures(t *testing.T) {
	wantErr := errors.New("boom")
	ff := FailedFuture[int](wantErr)
	_, err := ff.Results()
	require.ErrorIs(t, err, wantErr)

	cf := CancelledFuture[int]()
	require.True(t, cf.IsCanceled())
	_, err = cf.Results()
	require.ErrorIs(t, err, ErrCancelled)
}

func TestThenChainsOnSuccess(t *testing.T) {
	parent := ReadyFuture(3)
	child := Then(parent, InlineExecutor{}, false, func(v int) (int, error) {
		return v * 10, nil
	})

	v, err := child.Results()
	require.NoError(t, err)
	assert.Equal(t, 30, v)
}

func TestThenForwardsParentError(t *testing.T) {
	wantErr := errors.New("parent failed")
	parent := FailedFuture[int](wantErr)
	ran := false
	child := Then(parent, InlineExecutor{}, false, func(v int) (int, error) {
		ran = true
		return v, nil
	})

	_, err := child.Results()
	require.ErrorIs(t, err, wantErr)
	assert.False(t, ran, "continuation must not run when the parent failed")
}

func TestThenForwardsParentCancellation(t *testing.T) {
	parent := CancelledFuture[int]()
	child := Then(parent, InlineExecutor{}, false, func(v int) (int, error) {
		return v, nil
	})
	require.True(t, child.IsCanceled())
}

func TestThenWithPromiseSeesChildPromise(t *testing.T) {
	parent := ReadyFuture(5)
	var sawMaximum int64
	child := ThenWithPromise(parent, InlineExecutor{}, false, func(v int, p *Promise[int]) (int, error) {
		p.SetProgressMaximum(100)
		sawMaximum = p.ProgressMaximum()
		return v + 1, nil
	})

	v, err := child.Results()
	require.NoError(t, err)
	assert.Equal(t, 6, v)
	assert.EqualValues(t, 100, sawMaximum)
}

func TestThenFutureForwardsInnerOutcome(t *testing.T) {
	parent := ReadyFuture("seed")
	child := ThenFuture(parent, InlineExecutor{}, false, func(v string) (Future[int], error) {
		return ReadyFuture(len(v)), nil
	})

	v, err := child.Results()
	require.NoError(t, err)
	assert.Equal(t, 4, v)
}

func TestThenFutureForwardsInnerFailure(t *testing.T) {
	wantErr := errors.New("inner failed")
	parent := ReadyFuture("x")
	child := ThenFuture(parent, InlineExecutor{}, false, func(v string) (Future[int], error) {
		return FailedFuture[int](wantErr), nil
	})

	_, err := child.Results()
	require.ErrorIs(t, err, wantErr)
}

func TestDroppingLastFutureCancelsTask(t *testing.T) {
	mgr := NewManager(WithoutWorkerPool())
	defer mgr.Shutdown()

	p := NewPromise[int](mgr)
	f := p.Future()
	f.Cancel() // drops the only outstanding dependency

	require.True(t, p.IsCanceled())
}

func TestSharedFutureCloneKeepsTaskAliveUntilAllReleased(t *testing.T) {
	p := NewPromise[int](nil)
	sf := p.SharedFuture()
	clone := sf.Clone()

	sf.Release()
	require.False(t, p.IsCanceled(), "clone still holds a reference")

	clone.Release()
	require.True(t, p.IsCanceled(), "last shared reference dropped")
}

func TestSharedFutureResultsRepeatable(t *testing.T) {
	p := NewPromise[int](nil)
	sf := p.SharedFuture()
	p.SetStarted()
	p.SetResults(9)
	p.SetFinished()

	v1, err1 := sf.Results()
	require.NoError(t, err1)
	v2, err2 := sf.Results()
	require.NoError(t, err2)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 9, v1)
}

func TestSynchronousOperationSubOperationCouplesCancellation(t *testing.T) {
	mgr := NewManager(WithoutWorkerPool())
	defer mgr.Shutdown()

	master := NewSynchronousOperation(mgr, true)
	child := master.SubOperation(true)

	child.Cancel()
	require.True(t, master.IsCanceled(), "cancelling the sub-operation must cancel the parent")
}
