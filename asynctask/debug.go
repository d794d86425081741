package asynctask

import (
	"log/slog"
	"os"
)

// debugEnabled mirrors the teacher's convention of gating expensive or
// abort-on-misuse checks behind an environment toggle rather than a build
// tag, so a single binary can be flipped into strict mode without a rebuild.
var debugEnabled = os.Getenv("ASYNCTASK_DEBUG") != ""

// instanceCount is a leak-detection counter, only maintained when
// debugEnabled: every Task created increments it, a finalizer decrements it
// once the task is collected.
var instanceCount int64

// debugAssert enforces a contract invariant (e.g. "SetResults called at
// most once"). In debug mode a violation panics immediately, matching the
// C++ source's OVITO_ASSERT; in release mode it is logged and execution
// continues, since a released binary should degrade rather than abort.
func debugAssert(cond bool, msg string) {
	if cond {
		return
	}
	if debugEnabled {
		panic("asynctask: " + msg)
	}
	slog.Default().Warn("asynctask: contract violation", "detail", msg)
}
