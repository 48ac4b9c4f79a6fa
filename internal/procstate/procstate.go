// Package procstate holds the two process-global slots shared
// between the installed signal handler and the PTY executor's main
// path: the running flag and the current child's pid, ported from
// g_running and g_child_pid in the original secure_shell.cpp.
//
// Both are backed by sync/atomic rather than a mutex or a channel: a
// signal handler goroutine must not allocate or block, and
// sync/atomic's loads and stores are the only coordination primitive
// that satisfies that without one. This is a deliberate constraint,
// not a style choice — do not replace these with channels.
package procstate

import "sync/atomic"

var (
	running  atomic.Bool
	childPID atomic.Int32
)

func init() {
	running.Store(true)
	childPID.Store(-1)
}

// Running reports whether the process should keep accepting commands.
// It is cleared only on a terminal error, never by signal delivery.
func Running() bool {
	return running.Load()
}

// StopRunning clears the running flag. Called from the main path
// only, never from signal-handler context.
func StopRunning() {
	running.Store(false)
}

// SetChildPID records the live child's pid, or -1 when no child is
// running. Called from the main path immediately after fork and
// immediately after reap.
func SetChildPID(pid int) {
	childPID.Store(int32(pid))
}

// ChildPID returns the current child's pid, or -1 if none. Safe to
// call from signal-handler context: it is a single atomic load.
func ChildPID() int {
	return int(childPID.Load())
}
