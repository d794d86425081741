package asynctask

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ManagerEvent is a task lifecycle notification an external observer (the
// demo HTTP/websocket bridge in cmd/taskflowd, or any other UI collaborator)
// can subscribe to via Manager.Events, instead of writing its own
// WatcherSink for every task it cares about.
type ManagerEvent struct {
	Kind    string
	TaskID  ID
	Watcher *Watcher
}

const (
	EventTaskStarted  = "task_started"
	EventTaskFinished = "task_finished"
)

// Manager is the Task Manager component (C10): it registers tasks, keeps a
// live-task list, pumps a main-thread event loop for queued watcher
// notifications and MainThreadExecutor continuations, runs a worker pool
// for RunTaskAsync/WorkerExecutor, and implements the two wait-for-task
// strategies (event-pumping on the owning goroutine, plain blocking
// everywhere else).
type Manager struct {
	mu      sync.Mutex
	running []*Watcher

	registry sync.Map // ID -> *Watcher, for lookup by ID (teacher's sync.Map idiom)

	logger *slog.Logger

	events chan func()
	notify chan ManagerEvent

	workerLimit  int
	sem          chan struct{}
	noWorkerPool bool

	wg sync.WaitGroup

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewManager creates a Manager with its event loop already running.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		workerLimit: runtime.GOMAXPROCS(0) * 4,
		events:      make(chan func(), 256),
		notify:      make(chan ManagerEvent, 256),
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if !m.noWorkerPool {
		m.sem = make(chan struct{}, m.workerLimit)
	}
	go m.runEventLoop()
	return m
}

func (m *Manager) runEventLoop() {
	for {
		select {
		case fn := <-m.events:
			fn()
		case <-m.stopCh:
			return
		}
	}
}

// ProcessEvents drains every currently-queued event without blocking. It is
// what main-thread tasks call before each progress update (C4's pump hook),
// and what an embedding host's own UI tick can call to drain the queue
// itself; the background event-loop goroutine started by NewManager keeps
// running alongside it.
func (m *Manager) ProcessEvents() {
	for {
		select {
		case fn := <-m.events:
			fn()
		default:
			return
		}
	}
}

func (m *Manager) processEvents() { m.ProcessEvents() }

func (m *Manager) postEvent(fn func()) {
	select {
	case m.events <- fn:
	case <-m.stopCh:
	}
}

// Events exposes Manager lifecycle notifications for an external observer.
func (m *Manager) Events() <-chan ManagerEvent { return m.notify }

func (m *Manager) emit(ev ManagerEvent) {
	select {
	case m.notify <- ev:
	default:
		m.logger.Warn("dropping manager event, subscriber too slow", "kind", ev.Kind, "task", ev.TaskID.String())
	}
}

// managerSink adapts Manager bookkeeping (the live-task list plus the
// started/finished notification channel) to WatcherSink, so registering a
// task with the Manager gets the same observation a dedicated UI Watcher
// would, without the caller writing one.
type managerSink struct {
	m  *Manager
	w  *Watcher
	id ID
}

func (s *managerSink) OnStarted() {
	s.m.mu.Lock()
	s.m.running = append(s.m.running, s.w)
	s.m.mu.Unlock()
	s.m.emit(ManagerEvent{Kind: EventTaskStarted, TaskID: s.id, Watcher: s.w})
}

func (s *managerSink) OnFinished() {
	s.m.removeRunning(s.w)
	s.m.emit(ManagerEvent{Kind: EventTaskFinished, TaskID: s.id, Watcher: s.w})
}

func (s *managerSink) OnCanceled()                  {}
func (s *managerSink) OnProgressRangeChanged(int64) {}
func (s *managerSink) OnProgressValueChanged(int64) {}
func (s *managerSink) OnProgressTextChanged(string) {}

func (m *Manager) removeRunning(w *Watcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ww := range m.running {
		if ww == w {
			m.running = append(m.running[:i], m.running[i+1:]...)
			return
		}
	}
}

func (m *Manager) registerTaskInternal(t taskCommon) *Watcher {
	w := &Watcher{}
	w.mgr = m
	w.sink = &managerSink{m: m, w: w, id: t.ID()}
	w.Watch(t, false)
	m.registry.Store(t.ID(), w)
	return w
}

// RegisterTask associates t with this Manager so its lifecycle shows up in
// Events, runningTasks-style bookkeeping, and ID-based lookup.
func (m *Manager) RegisterTask(t taskCommon) *Watcher { return m.registerTaskInternal(t) }

// RegisterFuture registers the task behind f with mgr (a free function, not
// a method, since Go methods can't introduce the extra type parameter a
// generic Future[T] argument needs).
func RegisterFuture[T any](m *Manager, f *Future[T]) *Watcher {
	if !f.IsValid() {
		return nil
	}
	return m.RegisterTask(f.task())
}

// RegisterPromise registers the task behind p with mgr.
func RegisterPromise[T any](m *Manager, p *Promise[T]) *Watcher {
	if !p.IsValid() {
		return nil
	}
	return m.RegisterTask(p.task)
}

// Lookup returns the Watcher registered for id, if any.
func (m *Manager) Lookup(id ID) (*Watcher, bool) {
	v, ok := m.registry.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Watcher), true
}

// RunningTasks returns the watchers for every task currently in the
// Started-but-not-Finished state. Like its C++ counterpart, this is a
// point-in-time snapshot, not a live view.
func (m *Manager) RunningTasks() []*Watcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Watcher(nil), m.running...)
}

// Runnable is work a Manager can run asynchronously and deliver through a
// typed Future, mirroring the teacher's Runnable/RunnableFunc pair.
type Runnable[T any] interface {
	Run(ctx context.Context, p *Promise[T]) (T, error)
}

// RunnableFunc adapts a plain function to Runnable.
type RunnableFunc[T any] func(ctx context.Context, p *Promise[T]) (T, error)

func (f RunnableFunc[T]) Run(ctx context.Context, p *Promise[T]) (T, error) { return f(ctx, p) }

// WithRetry wraps runnable with exponential backoff retry logic, retrying
// on any error (but not on cancellation).
func WithRetry[T any](runnable Runnable[T], retries int, backoff time.Duration) Runnable[T] {
	return RunnableFunc[T](func(ctx context.Context, p *Promise[T]) (T, error) {
		var lastErr error
		var zero T
		for i := 0; i <= retries; i++ {
			result, err := runnable.Run(ctx, p)
			if err == nil {
				return result, nil
			}
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			lastErr = err
			if i < retries {
				select {
				case <-time.After(backoff * time.Duration(1<<i)):
				case <-ctx.Done():
					return zero, ctx.Err()
				}
			}
		}
		return zero, fmt.Errorf("after %d retries: %w", retries, lastErr)
	})
}

// WithTimeout wraps runnable with deadline enforcement.
func WithTimeout[T any](runnable Runnable[T], timeout time.Duration) Runnable[T] {
	return RunnableFunc[T](func(ctx context.Context, p *Promise[T]) (T, error) {
		timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		result, err := runnable.Run(timeoutCtx, p)
		if timeoutCtx.Err() != nil {
			var zero T
			return zero, fmt.Errorf("%w: task exceeded %v", ErrWaitTimeout, timeout)
		}
		return result, err
	})
}

// RunTaskAsync submits r for execution, registers the resulting task with m
// and returns a Future that is fulfilled once it completes (C10's
// runTaskAsync). With WithoutWorkerPool, r instead runs on m's own event
// loop the next time it's pumped, the single-threaded-build fallback.
func RunTaskAsync[T any](m *Manager, ctx context.Context, r Runnable[T]) Future[T] {
	p := NewPromise[T](m)
	m.RegisterTask(p.task)
	future := p.Future()

	run := func() {
		defer func() {
			if rec := recover(); rec != nil {
				if !p.IsStarted() {
					p.SetStarted()
				}
				p.SetException(fmt.Errorf("%w: %v", ErrTaskPanicked, rec))
				p.SetFinished()
			}
		}()
		p.SetStarted()
		result, err := r.Run(ctx, &p)
		switch {
		case ctx.Err() != nil:
			p.Cancel()
		case err != nil:
			p.SetException(err)
		default:
			p.SetResults(result)
		}
		p.SetFinished()
	}

	if m.noWorkerPool {
		m.postEvent(run)
		return future
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		select {
		case m.sem <- struct{}{}:
			defer func() { <-m.sem }()
		case <-ctx.Done():
			p.Cancel()
			p.SetStarted()
			p.SetFinished()
			return
		}
		run()
	}()
	return future
}

func (m *Manager) submit(fn func()) {
	if m.noWorkerPool {
		m.postEvent(fn)
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.sem <- struct{}{}
		defer func() { <-m.sem }()
		fn()
	}()
}

// WaitForTask blocks the calling goroutine until t finishes, pumping this
// Manager's event loop meanwhile so main-thread-owned watchers and
// cancellation requests keep being observed -- the UI-thread wait variant
// (waitForTaskUIThread). Returns false if t, or dependent when non-nil, was
// canceled. If m is shut down first, it returns without waiting for t to
// finish.
func (m *Manager) WaitForTask(t taskCommon, dependent taskCommon) bool {
	for {
		select {
		case <-t.Done():
			return !t.IsCanceled() && (dependent == nil || !dependent.IsCanceled())
		case fn := <-m.events:
			fn()
		case <-m.stopCh:
			return !t.IsCanceled() && (dependent == nil || !dependent.IsCanceled())
		}
	}
}

// WaitForTaskBlocking is the worker-thread wait variant
// (waitForTaskNonUIThread): it blocks on t's completion without pumping any
// event loop, since a worker goroutine doesn't own one.
func (m *Manager) WaitForTaskBlocking(t taskCommon, dependent taskCommon) bool {
	<-t.Done()
	return !t.IsCanceled() && (dependent == nil || !dependent.IsCanceled())
}

// WaitForFuture is WaitForTask specialized for a Future.
func WaitForFuture[T any](m *Manager, f *Future[T]) bool {
	if !f.IsValid() {
		return false
	}
	return m.WaitForTask(f.task(), nil)
}

// WaitForParentFuture waits for f, auto-canceling owner if f turns out to
// have been canceled -- Task::waitForFuture's "a future failing while we
// wait for it cancels us too" behavior.
func WaitForParentFuture[T, U any](owner *Task[T], m *Manager, f *Future[U]) bool {
	if !f.IsValid() {
		owner.Cancel()
		return false
	}
	ok := m.WaitForTask(f.task(), owner)
	if !ok {
		owner.Cancel()
	}
	return ok
}

// AwaitAll waits for every given task concurrently via an errgroup, and
// reports whether all of them finished without being canceled.
func (m *Manager) AwaitAll(ctx context.Context, tasks []taskCommon) (bool, error) {
	if len(tasks) == 0 {
		return true, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	results := make([]bool, len(tasks))
	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			results[i] = m.WaitForTaskBlocking(t, nil)
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
				return nil
			}
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	for _, ok := range results {
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// CancelAll cancels every currently-running registered task.
func (m *Manager) CancelAll() {
	for _, w := range m.RunningTasks() {
		w.Cancel()
	}
}

// CancelAllAndWait cancels every running task and waits for them to finish.
func (m *Manager) CancelAllAndWait() {
	watchers := m.RunningTasks()
	for _, w := range watchers {
		w.Cancel()
	}
	for _, w := range watchers {
		if t := w.watchedTask(); t != nil {
			m.WaitForTask(t, nil)
		}
	}
}

// WaitForAll waits for every currently-running registered task to finish.
func (m *Manager) WaitForAll() {
	for _, w := range m.RunningTasks() {
		if t := w.watchedTask(); t != nil {
			m.WaitForTask(t, nil)
		}
	}
}

// Stats reports the number of tasks currently in the live (running) list.
type Stats struct {
	Running int
}

// Stats returns a snapshot of this Manager's live-task count.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Running: len(m.running)}
}

// Prune drops registry entries for every finished task. Before dropping the
// entry of a task that was not canceled and carries an exception, it logs
// that exception -- the diagnostic logging TaskManager::consoleLoggingEnabled
// provides, supplemented per SPEC_FULL.md §5. Whether the exception was
// already read through a Future/SharedFuture is not tracked, so every such
// exception is logged.
func (m *Manager) Prune() int {
	pruned := 0
	m.registry.Range(func(key, value any) bool {
		w := value.(*Watcher)
		t := w.watchedTask()
		if t == nil || !t.IsFinished() {
			return true
		}
		if !t.IsCanceled() {
			if err := t.Exception(); err != nil {
				m.logger.Warn("pruning task with unobserved exception", "task", key.(ID).String(), "error", err)
			}
		}
		m.registry.Delete(key)
		pruned++
		return true
	})
	return pruned
}

// Shutdown stops the event loop goroutine and waits for worker-pool jobs to
// finish. The Manager must not be used afterward.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}
