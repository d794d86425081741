package asynctask

// SharedFuture is the repeatedly-readable counterpart to Future (C6): many
// holders may read the same task's result, and the task stays alive as
// long as any of them do.
//
// Go has no copy constructors, so a bare struct copy (sf2 := sf1) does NOT
// increment the dependency count the way copying a C++ SharedFuture does --
// it only copies the local reference without telling the task there's now
// another holder. Clone is the sanctioned way to produce a second handle,
// the same way sync.Once or sync.WaitGroup forbid copying after first use
// by convention rather than by the type system.
type SharedFuture[T any] struct {
	dep dependency
}

func newSharedFuture[T any](t *Task[T]) SharedFuture[T] {
	return SharedFuture[T]{dep: newDependency(t)}
}

func (s *SharedFuture[T]) task() *Task[T] {
	if s.dep.t == nil {
		return nil
	}
	return s.dep.t.(*Task[T])
}

// IsValid reports whether s still refers to a task's shared state.
func (s *SharedFuture[T]) IsValid() bool { return s.dep.valid() }

// IsFinished reports whether the underlying task has finished.
func (s *SharedFuture[T]) IsFinished() bool {
	t := s.task()
	return t != nil && t.IsFinished()
}

// IsCanceled reports whether the underlying task was canceled.
func (s *SharedFuture[T]) IsCanceled() bool {
	t := s.task()
	return t != nil && t.IsCanceled()
}

// Clone returns another SharedFuture sharing the same task, incrementing
// its dependency count.
func (s *SharedFuture[T]) Clone() SharedFuture[T] {
	return SharedFuture[T]{dep: s.dep.clone()}
}

// Release drops this handle's dependency. Call it once per Clone (and once
// for the original) when done observing the result.
func (s *SharedFuture[T]) Release() { s.dep.release() }

// Results returns a copy of the task's outcome. Unlike Future.Results, it
// does not consume s and may be called repeatedly.
func (s *SharedFuture[T]) Results() (T, error) {
	var zero T
	t := s.task()
	if t == nil {
		debugAssert(false, "Results called on an invalid SharedFuture")
		return zero, ErrInvalidFuture
	}
	if !t.IsFinished() {
		debugAssert(false, "Results called before the task finished")
		return zero, ErrNotFinished
	}
	if t.IsCanceled() {
		return zero, ErrCancelled
	}
	if err := t.Exception(); err != nil {
		return zero, err
	}
	return t.peekResult(), nil
}

// ThenShared is Then for a SharedFuture: cont runs once the task finishes,
// without invalidating s (a fresh, independent Dependency backs the
// returned chain instead of consuming s's own).
func ThenShared[T, R any](s SharedFuture[T], ex Executor, deferred bool, cont func(T) (R, error)) Future[R] {
	tmp := newFuture[T](s.task())
	return Then(tmp, ex, deferred, cont)
}

// ForceThen registers a continuation that keeps running even if s (and all
// its clones) are released before the task finishes: it takes its own
// strong dependency on the task first, so it is guaranteed to observe the
// eventual outcome (SharedFuture.h's forceThen idiom, supplemented from
// original_source/ per SPEC_FULL.md §5).
func ForceThen[T any](s SharedFuture[T], ex Executor, deferred bool, cont func(value T, err error, canceled bool)) {
	t := s.task()
	debugAssert(t != nil, "ForceThen called on an invalid SharedFuture")
	holder := newDependency(t)
	work := ex.CreateWork(func(bool) {
		defer holder.release()
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
