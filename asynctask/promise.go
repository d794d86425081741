package asynctask

// Promise is the producer side of a task (C7): a plain strong reference to
// the task, not a share-counted Dependency, so holding a Promise alone
// never triggers the auto-cancel-on-last-drop behavior Future/SharedFuture
// participate in.
type Promise[T any] struct {
	task        *Task[T]
	futureTaken bool
}

func newPromise[T any](mgr *Manager, syncless bool, initial State) Promise[T] {
	return Promise[T]{task: newTask[T](mgr, syncless, initial)}
}

// NewPromise creates a fresh, thread-safe, unstarted task (C3) suitable for
// producing a result from a worker goroutine.
func NewPromise[T any](mgr *Manager) Promise[T] {
	return newPromise[T](mgr, false, StateNone)
}

// NewMainThreadPromise creates a task meant to be driven exclusively from
// the goroutine that pumps mgr's event loop (C4); started selects whether
// it begins already in the Started state, as OVITO's
// Promise::createAsynchronousOperation does.
func NewMainThreadPromise[T any](mgr *Manager, started bool) Promise[T] {
	initial := StateNone
	if started {
		initial = StateStarted
	}
	p := newPromise[T](mgr, true, initial)
	if mgr != nil {
		mgr.registerTaskInternal(p.task)
	}
	return p
}

func readyPromise[T any](value T) Promise[T] {
	p := newPromise[T](nil, false, StateStarted|StateFinished)
	p.task.result = value
	p.task.resultSet = true
	return p
}

func failedPromise[T any](err error) Promise[T] {
	p := newPromise[T](nil, false, StateStarted|StateFinished)
	p.task.err = err
	return p
}

func cancelledPromise[T any]() Promise[T] {
	return newPromise[T](nil, false, StateStarted|StateCanceled|StateFinished)
}

// SignalPromise creates a Started, resultless promise used purely to
// signal that an operation is under way (Promise::createSignal).
func SignalPromise(mgr *Manager) Promise[struct{}] {
	return newPromise[struct{}](mgr, false, StateStarted)
}

// IsValid reports whether p wraps a task at all (the zero Promise does not).
func (p *Promise[T]) IsValid() bool    { return p.task != nil }
func (p *Promise[T]) IsStarted() bool  { return p.task.IsStarted() }
func (p *Promise[T]) IsFinished() bool { return p.task.IsFinished() }
func (p *Promise[T]) IsCanceled() bool { return p.task.IsCanceled() }

func (p *Promise[T]) SetStarted() bool           { return p.task.SetStarted() }
func (p *Promise[T]) SetFinished()               { p.task.SetFinished() }
func (p *Promise[T]) Cancel()                    { p.task.Cancel() }
func (p *Promise[T]) SetException(err error)     { p.task.SetException(err) }
func (p *Promise[T]) CaptureException(err error) { p.task.CaptureException(err) }
func (p *Promise[T]) SetResults(v T)             { p.task.SetResults(v) }

func (p *Promise[T]) SetProgressMaximum(maximum int64) { p.task.SetProgressMaximum(maximum) }
func (p *Promise[T]) ProgressMaximum() int64           { return p.task.ProgressMaximum() }
func (p *Promise[T]) SetProgressValue(v int64) bool    { return p.task.SetProgressValue(v) }
func (p *Promise[T]) IncrementProgressValue(d int64) bool {
	return p.task.IncrementProgressValue(d)
}
func (p *Promise[T]) SetProgressValueIntermittent(v int64, updateEvery int) bool {
	return p.task.SetProgressValueIntermittent(v, updateEvery)
}
func (p *Promise[T]) SetProgressText(text string) { p.task.SetProgressText(text) }
func (p *Promise[T]) ProgressText() string        { return p.task.ProgressText() }
func (p *Promise[T]) BeginProgressSubSteps(n int) error {
	return p.task.BeginProgressSubSteps(n)
}
func (p *Promise[T]) BeginProgressSubStepsWithWeights(weights []int) error {
	return p.task.BeginProgressSubStepsWithWeights(weights)
}
func (p *Promise[T]) NextProgressSubStep() { p.task.NextProgressSubStep() }
func (p *Promise[T]) EndProgressSubSteps() { p.task.EndProgressSubSteps() }

// Future returns a Future reading this promise's eventual result. May be
// called at most once; a second call is a contract violation.
func (p *Promise[T]) Future() Future[T] {
	if p.futureTaken {
		debugAssert(false, "Future called twice on the same Promise")
	}
	p.futureTaken = true
	return newFuture[T](p.task)
}

// SharedFuture returns a copyable (via Clone), repeatedly-readable handle
// on this promise's result. Unlike Future, it may be called any number of
// times.
func (p *Promise[T]) SharedFuture() SharedFuture[T] {
	return newSharedFuture[T](p.task)
}

// Close finishes the task if it hasn't already, cancelling it first. The
// cancel happens even if SetResults was already called, so such a result is
// not delivered to Future readers. This is the Go stand-in for the C++
// destructor's "finish on drop" guarantee (spec.md §4.7 invariant 2) --
// callers should `defer p.Close()` right after creating a Promise they
// intend to fulfill.
func (p *Promise[T]) Close() {
	if p.task == nil || p.task.IsFinished() {
		return
	}
	p.task.Cancel()
	p.task.SetStarted()
	p.task.SetFinished()
}

// SynchronousOperation is a Promise[struct{}] variant, supplemented from
// original_source/Promise.h per SPEC_FULL.md §5: only the "master" holder
// finishes the task on Close, and SubOperation creates a child whose
// cancellation is mutually coupled with the parent's.
type SynchronousOperation struct {
	Promise[struct{}]
	master bool
}

// NewSynchronousOperation creates a master SynchronousOperation registered
// with mgr, started immediately unless started is false.
func NewSynchronousOperation(mgr *Manager, started bool) SynchronousOperation {
	return SynchronousOperation{Promise: NewMainThreadPromise[struct{}](mgr, started), master: true}
}

// Close finishes the underlying task only if this handle is the master;
// a non-master SubOperation(false) handle leaves the shared task alone.
func (op *SynchronousOperation) Close() {
	if op.task == nil || !op.master || op.task.IsFinished() {
		return
	}
	op.task.Cancel()
	op.task.SetStarted()
	op.task.SetFinished()
}

// SubOperation creates a child operation. When register is true, the child
// is its own freshly registered main-thread task, wired so that cancelling
// either operation cancels the other. When false, the child simply shares
// this operation's task without becoming its own master (it won't finish
// the task when closed).
func (op *SynchronousOperation) SubOperation(register bool) SynchronousOperation {
	if !register {
		return SynchronousOperation{Promise: Promise[struct{}]{task: op.task}, master: false}
	}
	child := NewSynchronousOperation(op.task.Manager(), true)
	parentTask := op.task
	childTask := child.task
	parentTask.AddCancelHook(childTask.Cancel)
	childTask.AddCancelHook(parentTask.Cancel)
	return child
}
