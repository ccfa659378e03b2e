// pin_stub.go — affinity fallback for non-Linux hosts

//go:build !linux

package pin

import "runtime"

// ToCore locks the goroutine to its OS thread. Core binding needs
// sched_setaffinity and is Linux-only; other hosts keep the thread lock
// and let the scheduler place it.
func ToCore(core int) {
	runtime.LockOSThread()
	_ = core
}
