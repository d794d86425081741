package asynctask

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskLifecycleFlags(t *testing.T) {
	task := newTask[int](nil, false, StateNone)
	require.False(t, task.IsStarted())
	require.True(t, task.SetStarted())
	require.True(t, task.IsStarted())
	require.False(t, task.SetStarted(), "second SetStarted must be a no-op")

	task.SetResults(42)
	task.SetFinished()
	require.True(t, task.IsFinished())

	f := newFuture[int](task)
	v, err := f.Results()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestTaskCancelBeforeFinish(t *testing.T) {
	task := newTask[string](nil, false, StateNone)
	task.SetStarted()
	task.Cancel()
	require.True(t, task.IsCanceled())

	task.SetFinished()
	f := newFuture[string](task)
	_, err := f.Results()
	require.ErrorIs(t, err, ErrCancelled)
}

func TestSubStepProgressProjection(t *testing.T) {
	task := newTask[struct{}](nil, false, StateStarted)
	require.NoError(t, task.BeginProgressSubStepsWithWeights([]int{1, 3}))

	task.SetProgressMaximum(10)
	task.SetProgressValue(5)
	assert.EqualValues(t, 125, task.TotalProgressValue())
	assert.EqualValues(t, 1000, task.TotalProgressMaximum())

	task.NextProgressSubStep()
	task.SetProgressValue(0)
	assert.EqualValues(t, 250, task.TotalProgressValue())

	task.EndProgressSubSteps()
}

func TestBeginProgressSubStepsRejectsZeroWeightSum(t *testing.T) {
	task := newTask[struct{}](nil, false, StateStarted)
	err := task.BeginProgressSubStepsWithWeights([]int{0, 0})
	require.ErrorIs(t, err, ErrInvalidWeights)
}

func TestSetProgressValueIntermittentThrottles(t *testing.T) {
	task := newTask[struct{}](nil, false, StateStarted)
	task.SetProgressMaximum(100)

	for i := int64(1); i <= 5; i++ {
		task.SetProgressValueIntermittent(i, 3)
	}
	// Calls 1 (counter starts at 0) and 5 (counter exceeds updateEvery=3)
	// actually apply; 2-4 are throttled away.
	assert.EqualValues(t, 5, task.ProgressValue())
}

func TestAddContinuationRunsImmediatelyOnFinishedTask(t *testing.T) {
	task := newTask[int](nil, false, StateNone)
	task.SetStarted()
	task.SetResults(7)
	task.SetFinished()

	ran := false
	task.AddContinuation(func(bool) { ran = true }, false)
	assert.True(t, ran)
}

func TestShareCountAutoCancelsOnLastRelease(t *testing.T) {
	task := newTask[int](nil, false, StateNone)
	task.SetStarted()

	task.IncrementShareCount()
	task.IncrementShareCount()
	task.DecrementShareCount()
	require.False(t, task.IsCanceled(), "one holder remains")

	task.DecrementShareCount()
	require.True(t, task.IsCanceled(), "last holder dropped")
}
