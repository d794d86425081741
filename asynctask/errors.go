package asynctask

import "errors"

// Sentinel errors returned by the package. Callers match them with
// errors.Is; continuations forward a parent's exception unchanged, so
// errors.Is matches it on the child task as well.
var (
	ErrTaskNotFound   = errors.New("asynctask: task not found")
	ErrInvalidFuture  = errors.New("asynctask: future has no shared state")
	ErrNotFinished    = errors.New("asynctask: task has not finished")
	ErrCancelled      = errors.New("asynctask: task was cancelled")
	ErrTaskPanicked   = errors.New("asynctask: task panicked")
	ErrInvalidWeights = errors.New("asynctask: sub-step weights must sum to a positive value")
	ErrWaitTimeout    = errors.New("asynctask: wait timed out")
)
