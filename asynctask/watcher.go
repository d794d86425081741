package asynctask

import "sync"

// WatcherSink receives the lifecycle and progress notifications a Watcher
// relays from whatever task it is attached to. Implementations should not
// block -- calls are dispatched through the owning Manager's event loop, so
// a slow sink delays every other watcher sharing that Manager. The one
// exception is a watcher attached to a manager-less task (an immediate
// ReadyFuture/FailedFuture/CancelledFuture, or any task created with a nil
// Manager): with no event loop to post to, its sink runs inline on the
// calling goroutine instead.
type WatcherSink interface {
	OnStarted()
	OnFinished()
	OnCanceled()
	OnProgressRangeChanged(maximum int64)
	OnProgressValueChanged(value int64)
	OnProgressTextChanged(text string)
}

type noopSink struct{}

func (noopSink) OnStarted()                   {}
func (noopSink) OnFinished()                  {}
func (noopSink) OnCanceled()                  {}
func (noopSink) OnProgressRangeChanged(int64) {}
func (noopSink) OnProgressValueChanged(int64) {}
func (noopSink) OnProgressTextChanged(string) {}

// Watcher is the Task Watcher component (C9): a reassignable observer that
// can be pointed at successive tasks over its lifetime, replaying whatever
// lifecycle state the newly-watched task has already reached.
type Watcher struct {
	mu       sync.Mutex
	task     taskCommon
	sink     WatcherSink
	mgr      *Manager
	finished bool
}

// NewWatcher creates a Watcher relaying notifications to sink. A nil sink is
// replaced with a no-op so callers that only care about Watch/IsFinished
// bookkeeping don't need to implement WatcherSink themselves.
func NewWatcher(sink WatcherSink) *Watcher {
	if sink == nil {
		sink = noopSink{}
	}
	return &Watcher{sink: sink}
}

// Watch points w at t, detaching from whatever task it was previously
// watching. If pending is true and w is being reassigned to a different
// task, w's cached "finished" flag is cleared first, so a reused watcher
// doesn't report stale completion from its previous task.
func (w *Watcher) Watch(t taskCommon, pending bool) {
	w.mu.Lock()
	prev := w.task
	w.mu.Unlock()
	if prev == t {
		return
	}
	if prev != nil {
		prev.UnregisterWatcher(w)
		if pending {
			w.mu.Lock()
			w.finished = false
			w.mu.Unlock()
		}
	}
	w.mu.Lock()
	w.task = t
	if t != nil {
		w.mgr = t.Manager()
	}
	w.mu.Unlock()
	if t != nil {
		t.RegisterWatcher(w)
	}
}

// IsWatching reports whether w currently has a task assigned.
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.task != nil
}

// IsFinished reports whether the watched task has finished, from the
// watcher's own cached flag (updated the moment its finished notification
// is dispatched).
func (w *Watcher) IsFinished() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finished
}

// IsCanceled reports whether the watched task has been canceled.
func (w *Watcher) IsCanceled() bool {
	t := w.watchedTask()
	return t != nil && t.IsCanceled()
}

// ProgressMaximum/ProgressValue/ProgressText read through to the watched
// task's projected progress state.
func (w *Watcher) ProgressMaximum() int64 {
	if t := w.watchedTask(); t != nil {
		return t.TotalProgressMaximum()
	}
	return 0
}

func (w *Watcher) ProgressValue() int64 {
	if t := w.watchedTask(); t != nil {
		return t.TotalProgressValue()
	}
	return 0
}

func (w *Watcher) ProgressText() string {
	if t := w.watchedTask(); t != nil {
		return t.ProgressText()
	}
	return ""
}

// Cancel forwards cancellation to the watched task.
func (w *Watcher) Cancel() {
	if t := w.watchedTask(); t != nil {
		t.Cancel()
	}
}

func (w *Watcher) watchedTask() taskCommon {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.task
}

// dispatch runs fn through the watcher's Manager event loop if it has one,
// or inline otherwise (e.g. a Watcher attached to an unregistered, manager-
// less task such as an immediate Ready/Failed future).
func (w *Watcher) dispatch(fn func()) {
	w.mu.Lock()
	mgr := w.mgr
	w.mu.Unlock()
	if mgr != nil {
		mgr.postEvent(fn)
		return
	}
	fn()
}

func (w *Watcher) notifyStarted()  { w.dispatch(w.sink.OnStarted) }
func (w *Watcher) notifyCanceled() { w.dispatch(w.sink.OnCanceled) }

func (w *Watcher) notifyFinished() {
	w.dispatch(func() {
		w.mu.Lock()
		w.finished = true
		w.mu.Unlock()
		w.sink.OnFinished()
	})
}

func (w *Watcher) notifyProgressRange(maximum int64) {
	w.dispatch(func() { w.sink.OnProgressRangeChanged(maximum) })
}

func (w *Watcher) notifyProgressValue(value int64) {
	w.dispatch(func() { w.sink.OnProgressValueChanged(value) })
}

func (w *Watcher) notifyProgressText(text string) {
	w.dispatch(func() { w.sink.OnProgressTextChanged(text) })
}
