package asynctask

// This file implements the Continuation Task component (C8): the three
// fulfillWith overloads OVITO dispatches between by the continuation
// function's return type (void / value / Future) become three distinctly
// named Go functions, since Go has no return-type overloading.
//
// Each one builds a new child Task[R], moves the parent Future's Dependency
// into the child's continuationParent field, and registers a continuation
// on the parent that -- once the parent finishes -- forwards cancellation
// and exceptions automatically, or otherwise calls the supplied function to
// fulfill the child.

// Then returns a new Future[R] fulfilled by running cont with the parent's
// result once f's task finishes. If the parent was canceled or failed,
// cont never runs and the child inherits that outcome instead. f is
// consumed: do not use it again after calling Then.
func Then[T, R any](f Future[T], ex Executor, deferred bool, cont func(T) (R, error)) Future[R] {
	return buildContinuation[T, R](f, ex, deferred, func(child *Task[R], value T) {
		child.SetStarted()
		result, err := safeCall(func() (R, error) { return cont(value) })
		if err != nil {
			child.SetException(err)
		} else {
			child.SetResults(result)
		}
		child.SetFinished()
	})
}

// ThenWithPromise is Then, except cont additionally receives a handle to
// the child task's own Promise, so a continuation that does further work
// can report progress through the Future it returns (mirrors
// Future::then_task()).
func ThenWithPromise[T, R any](f Future[T], ex Executor, deferred bool, cont func(T, *Promise[R]) (R, error)) Future[R] {
	return buildContinuation[T, R](f, ex, deferred, func(child *Task[R], value T) {
		child.SetStarted()
		childPromise := &Promise[R]{task: child}
		result, err := safeCall(func() (R, error) { return cont(value, childPromise) })
		if err != nil {
			child.SetException(err)
		} else {
			child.SetResults(result)
		}
		child.SetFinished()
	})
}

// ThenFuture is Then for a continuation that itself returns a Future[R]:
// the child task stays unfinished until that inner future completes, then
// forwards its result, error, or cancellation (the future-returning
// fulfillWith overload).
func ThenFuture[T, R any](f Future[T], ex Executor, deferred bool, cont func(T) (Future[R], error)) Future[R] {
	return buildContinuation[T, R](f, ex, deferred, func(child *Task[R], value T) {
		child.SetStarted()
		inner, err := safeCall(func() (Future[R], error) { return cont(value) })
		if err != nil {
			child.SetException(err)
			child.SetFinished()
			return
		}
		if !inner.IsValid() {
			child.SetException(ErrInvalidFuture)
			child.SetFinished()
			return
		}
		innerTask := inner.task()
		// Reuse continuationParent: it was already cleared (taken) by
		// buildContinuation's registered work before calling us, so this
		// assignment can't race with a concurrent Cancel() on child.
		child.setContinuationParent(inner.dep)
		work := InlineExecutor{}.CreateWork(func(bool) {
			pd := child.takeContinuationParent()
			defer pd.release()
			if child.IsFinished() {
				return
			}
			if child.IsCanceled() || innerTask.IsCanceled() {
				child.Cancel()
				child.SetFinished()
				return
			}
			if ierr := innerTask.Exception(); ierr != nil {
				child.SetException(ierr)
			} else {
				child.SetResults(innerTask.takeResult())
			}
			child.SetFinished()
		})
		innerTask.AddContinuation(work, false)
	})
}

// buildContinuation is the shared machinery behind Then/ThenWithPromise/
// ThenFuture: it creates the child task, transfers f's Dependency into the
// child's continuationParent, and registers the work that runs once the
// parent finishes.
func buildContinuation[T, R any](f Future[T], ex Executor, deferred bool, fulfill func(child *Task[R], value T)) Future[R] {
	debugAssert(f.IsValid(), "Then/ThenFuture/ThenWithPromise called on an invalid Future")
	parentTask := f.task()
	parentDep := f.dep // transfers the one reference f's increment owned

	child := newTask[R](ex.TaskManager(), false, StateNone)
	child.continuationParent = parentDep
	childFuture := newFuture[R](child)

	work := ex.CreateWork(func(bool) {
		// takeContinuationParent may already find the field cleared: a
		// concurrent Cancel() on child releases it early to propagate
		// cancellation upstream without waiting for the parent to finish.
		// release() is a safe no-op on an already-invalid dependency either
		// way, so this never double-releases.
		pd := child.takeContinuationParent()
		defer pd.release()
		if child.IsFinished() {
			return
		}
		if child.IsCanceled() || parentTask.IsCanceled() {
			// The child never gets fulfilled, but it still needs to reach
			// StateFinished or Results() would block forever on a task
			// nothing else will ever finish.
			child.Cancel()
			child.SetStarted()
			child.SetFinished()
			return
		}
		if perr := parentTask.Exception(); perr != nil {
			child.SetStarted()
			child.SetException(perr)
			child.SetFinished()
			return
		}
		fulfill(child, parentTask.takeResult())
	})
	parentTask.AddContinuation(work, deferred)
	return childFuture
}
