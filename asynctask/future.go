package asynctask

import "fmt"

// Future is a move-only, single-read handle on a task's eventual result
// (C6). It owns one Dependency on the task, so the task is not auto-
// canceled as long as the Future is alive.
//
// Go has no move semantics: Then/ThenFuture/ThenWithPromise and Results all
// take or consume a Future by value and the caller must not read from or
// pass the same Future again afterward -- exactly as a moved-from C++
// Future must not be touched again. Finally and OnError are the exception:
// they only observe the future, so they leave it valid for further use.
type Future[T any] struct {
	dep dependency
}

func newFuture[T any](t *Task[T]) Future[T] {
	return Future[T]{dep: newDependency(t)}
}

func (f *Future[T]) task() *Task[T] {
	if f.dep.t == nil {
		return nil
	}
	return f.dep.t.(*Task[T])
}

// IsValid reports whether f still refers to a task's shared state.
func (f *Future[T]) IsValid() bool { return f.dep.valid() }

// ID returns the underlying task's identifier, the zero ID if f is invalid.
func (f *Future[T]) ID() ID {
	if t := f.task(); t != nil {
		return t.ID()
	}
	return ID{}
}

// IsFinished reports whether the underlying task has finished.
func (f *Future[T]) IsFinished() bool {
	t := f.task()
	return t != nil && t.IsFinished()
}

// IsCanceled reports whether the underlying task was canceled.
func (f *Future[T]) IsCanceled() bool {
	t := f.task()
	return t != nil && t.IsCanceled()
}

// Cancel drops this Future's dependency, canceling the task if this was the
// last one depending on it. f is invalid afterward.
func (f *Future[T]) Cancel() { f.dep.release() }

// Results blocks on nothing (the caller is expected to have already waited
// for IsFinished, e.g. via Manager.WaitForTask) and consumes the task's
// outcome: the result on success, ErrCancelled if canceled, or the
// recorded error. f is invalid afterward either way.
func (f *Future[T]) Results() (T, error) {
	var zero T
	if !f.IsValid() {
		debugAssert(false, "Results called on an invalid Future")
		return zero, ErrInvalidFuture
	}
	t := f.task()
	if !t.IsFinished() {
		debugAssert(false, "Results called before the task finished")
		return zero, ErrNotFinished
	}
	defer f.dep.release()
	if t.IsCanceled() {
		return zero, ErrCancelled
	}
	if err := t.Exception(); err != nil {
		return zero, err
	}
	return t.takeResult(), nil
}

// Result is Results for tasks with exactly one meaningful return value --
// a thin convenience wrapper, same shape as Results.
func (f *Future[T]) Result() (T, error) { return f.Results() }

// ReadyFuture returns a Future already finished with value.
func ReadyFuture[T any](value T) Future[T] {
	p := readyPromise(value)
	return p.Future()
}

// FailedFuture returns a Future already finished with err.
func FailedFuture[T any](err error) Future[T] {
	p := failedPromise[T](err)
	return p.Future()
}

// CancelledFuture returns a Future that is already canceled.
func CancelledFuture[T any]() Future[T] {
	p := cancelledPromise[T]()
	return p.Future()
}

// Finally registers cont to run through ex once f's task finishes,
// regardless of outcome -- result on success (zero value otherwise), error
// if it failed, and a bool reporting cancellation. Unlike Then, it does not
// consume f: the Future remains valid and usable afterward.
func Finally[T any](f Future[T], ex Executor, deferred bool, cont func(value T, err error, canceled bool)) {
	debugAssert(f.IsValid(), "Finally called on an invalid Future")
	t := f.task()
	work := ex.CreateWork(func(bool) {
		if t.IsCanceled() {
			var zero T
			cont(zero, nil, true)
			return
		}
		if err := t.Exception(); err != nil {
			var zero T
			cont(zero, err, false)
			return
		}
		cont(t.peekResult(), nil, false)
	})
	t.AddContinuation(work, deferred)
}

// OnError registers cont to run only if f's task ends in an exception
// state (neither plain success nor cancellation). Does not consume f.
func OnError[T any](f Future[T], ex Executor, cont func(err error)) {
	debugAssert(f.IsValid(), "OnError called on an invalid Future")
	t := f.task()
	work := ex.CreateWork(func(bool) {
		if t.IsCanceled() {
			return
		}
		if err := t.Exception(); err != nil {
			cont(err)
		}
	})
	t.AddContinuation(work, false)
}

// safeCall runs f, converting a panic into an ErrTaskPanicked-wrapped error
// instead of letting it unwind through the task machinery -- the Go stand-
// in for the C++ continuation code's catch(...) { promise.captureException(); }.
func safeCall[R any](f func() (R, error)) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return f()
}
