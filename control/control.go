// control.go — Global control flags and shutdown coordination
// ============================================================================
// SYSTEM CONTROL ORCHESTRATION
// ============================================================================
//
// Control provides the lightweight global signaling shared by the master
// thread, socket threads, the MAC thread and the worker pool: a running
// flag, an exit-signal flag set from the signal handler, and a waitgroup
// that gates process teardown.
//
// Threading model:
//   • The signal handler sets the exit flag; the master observes it
//     between event batches and leaves its loop, and Station.Stop then
//     clears the config's running flag.
//   • Socket threads, the MAC thread and workers poll the config's running
//     flag (config.Config.Running). The running flag kept in this package
//     is not read or set by any pipeline thread.
//   • Every pinned thread registers on ShutdownWG so Stop can join them.

package control

import (
	"sync"
	"sync/atomic"
)

// ============================================================================
// GLOBAL STATE MANAGEMENT
// ============================================================================

var (
	running    uint32 // 1 = pipeline live, 0 = draining / stopped
	exitSignal uint32 // 1 = SIGINT/SIGTERM observed

	// ShutdownWG counts every pinned thread (socket, worker, MAC). The
	// master waits on it after clearing the running flag.
	ShutdownWG sync.WaitGroup
)

// ============================================================================
// RUNNING FLAG
// ============================================================================

// SetRunning flips this package's live flag. The pipeline does not call it;
// startup, shutdown and fatal frames flip config.Config's flag instead.
//
//go:nosplit
func SetRunning(on bool) {
	if on {
		atomic.StoreUint32(&running, 1)
	} else {
		atomic.StoreUint32(&running, 0)
	}
}

// Running reports this package's live flag. The threads' outer loops poll
// config.Config.Running, not this.
//
//go:nosplit
//go:inline
func Running() bool {
	return atomic.LoadUint32(&running) == 1
}

// ============================================================================
// EXIT SIGNAL
// ============================================================================

// SetExitSignal is invoked from the signal handler goroutine.
//
//go:nosplit
func SetExitSignal() {
	atomic.StoreUint32(&exitSignal, 1)
}

// GotExitSignal is checked by the master between event batches.
//
//go:nosplit
//go:inline
func GotExitSignal() bool {
	return atomic.LoadUint32(&exitSignal) == 1
}

// Reset restores boot state. Test hook: lets one process run several
// pipeline lifecycles.
func Reset() {
	atomic.StoreUint32(&running, 0)
	atomic.StoreUint32(&exitSignal, 0)
}
