// pin_linux.go — Linux CPU affinity via sched_setaffinity(2)

//go:build linux

package pin

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// ToCore locks the calling goroutine to its OS thread and binds that
// thread to one CPU. Every pinned role (master, socket, worker, MAC)
// calls this exactly once at thread start; the pairing with
// runtime.LockOSThread holds for the thread's lifetime.
func ToCore(core int) {
	runtime.LockOSThread()
	if core < 0 {
		return
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	// Thread 0 = calling thread. A failure leaves the thread floating,
	// which degrades latency but not correctness.
	_ = unix.SchedSetaffinity(0, &set)
}
