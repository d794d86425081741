package asynctask

import "log/slog"

type (
	Option func(*Manager)
)

// WithWorkerLimit sets the maximum number of concurrent workers in the pool.
func WithWorkerLimit(limit int) Option {
	return func(m *Manager) {
		if limit > 0 {
			m.workerLimit = limit
		}
	}
}

// WithLogger sets a custom logger for the Manager.
func WithLogger(handler slog.Handler) Option {
	return func(m *Manager) {
		m.logger = slog.New(handler)
	}
}

// WithoutWorkerPool disables the background worker pool entirely: jobs
// submitted via RunTaskAsync or WorkerExecutor instead run on the Manager's
// own event-loop goroutine -- the single-threaded-build fallback
// TaskManager::runTaskAsync falls back to when OVITO_DISABLE_THREADING is
// set, implemented here as an explicit option instead of a build tag.
func WithoutWorkerPool() Option {
	return func(m *Manager) { m.noWorkerPool = true }
}

// WithEventQueueSize overrides the buffer size of the Manager's posted-event
// channel. Values <= 0 are ignored.
func WithEventQueueSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.events = make(chan func(), n)
		}
	}
}
