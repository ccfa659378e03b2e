// ════════════════════════════════════════════════════════════════════════════════════════════════
// CPU Relaxation - ARM64 Architecture
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Massive-MIMO PHY Base Station
// Component: ARM64 Spin-Wait Hint
//
// Description:
//   Platform-specific implementation for ARM64 processors using the YIELD instruction,
//   emitted in the spin-retry enqueue path and the worker idle scan.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

//go:build arm64 && !noasm && !nocgo

package equeue

/*
#ifdef __aarch64__
static inline void cpu_yield() {
    __asm__ __volatile__("yield" ::: "memory");
}
#else
#error "This file requires ARM64 architecture"
#endif
*/
import "C"

// cpuRelax emits the ARM64 YIELD instruction during busy-wait loops.
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func cpuRelax() {
	C.cpu_yield()
}

// Relax exposes the hint to the worker pool's idle scan.
//
//go:nosplit
//go:inline
func Relax() { cpuRelax() }
