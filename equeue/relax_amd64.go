// ════════════════════════════════════════════════════════════════════════════════════════════════
// CPU Relaxation - AMD64 Architecture
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Massive-MIMO PHY Base Station
// Component: x86-64 Spin-Wait Hint
//
// Description:
//   Platform-specific implementation for x86-64 processors using the PAUSE instruction,
//   emitted in the spin-retry enqueue path and the worker idle scan.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

//go:build amd64 && !noasm && !nocgo

package equeue

/*
#ifdef __x86_64__
static inline void cpu_pause() {
    __asm__ __volatile__("pause" ::: "memory");
}
#else
#error "This file requires x86-64 architecture"
#endif
*/
import "C"

// cpuRelax emits the x86-64 PAUSE instruction. Hints the pipeline that the
// calling thread is busy-waiting so hyperthread siblings keep progressing.
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func cpuRelax() {
	C.cpu_pause()
}

// Relax exposes the hint to the worker pool's idle scan.
//
//go:nosplit
//go:inline
func Relax() { cpuRelax() }
