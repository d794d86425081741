package asynctask

// Executor redirects where a continuation actually runs -- inline on
// whatever goroutine finishes the parent task, onto a Manager's
// main-thread event loop, or onto its worker pool. Future.Then and friends
// take one explicitly instead of always running inline, mirroring the
// executor argument OVITO's Future::then() takes.
type Executor interface {
	// CreateWork wraps f so that invoking the returned function actually
	// executes f within this executor's context.
	CreateWork(f func(deferred bool)) func(deferred bool)
	// TaskManager returns the Manager a continuation task spawned through
	// this executor should register with, if any.
	TaskManager() *Manager
}

// InlineExecutor runs continuations synchronously, on whatever goroutine
// happens to finish the task. It is the default when no redirection is
// requested.
type InlineExecutor struct {
	Mgr *Manager
}

func (e InlineExecutor) CreateWork(f func(bool)) func(bool) { return f }
func (e InlineExecutor) TaskManager() *Manager              { return e.Mgr }

// MainThreadExecutor posts continuations onto Mgr's event loop, so they run
// on the single goroutine that owns main-thread tasks (C4).
type MainThreadExecutor struct {
	Mgr *Manager
}

func (e MainThreadExecutor) CreateWork(f func(bool)) func(bool) {
	return func(deferred bool) {
		e.Mgr.postEvent(func() { f(deferred) })
	}
}
func (e MainThreadExecutor) TaskManager() *Manager { return e.Mgr }

// WorkerExecutor submits continuations to Mgr's worker pool so they run off
// the goroutine that completed the parent task entirely.
type WorkerExecutor struct {
	Mgr *Manager
}

func (e WorkerExecutor) CreateWork(f func(bool)) func(bool) {
	return func(deferred bool) {
		e.Mgr.submit(func() { f(deferred) })
	}
}
func (e WorkerExecutor) TaskManager() *Manager { return e.Mgr }
