package asynctask

// dependency is the non-generic Dependency Handle (C5): a share-counted
// reference to a task, independent of the task's result type. Holding one
// keeps a task's lifecycle from prematurely auto-cancelling; releasing the
// last one cancels it (Task.DecrementShareCount).
//
// Go has no destructors, so unlike the C++ TaskDependency there is no
// automatic release when a dependency value goes out of scope. Release
// must be called explicitly -- Future, SharedFuture and Promise's
// continuation-task plumbing all do this at the points documented on them.
type dependency struct {
	t taskCommon
}

func newDependency(t taskCommon) dependency {
	if t != nil {
		t.IncrementShareCount()
	}
	return dependency{t: t}
}

func (d dependency) valid() bool { return d.t != nil }

// clone produces a second dependency on the same task, incrementing the
// share count -- the Go stand-in for the C++ copy constructor.
func (d dependency) clone() dependency { return newDependency(d.t) }

// release decrements the share count exactly once and invalidates d.
// Safe to call on an already-invalid dependency (no-op).
func (d *dependency) release() {
	if d.t == nil {
		return
	}
	t := d.t
	d.t = nil
	t.DecrementShareCount()
}
