// ════════════════════════════════════════════════════════════════════════════════════════════════
// CPU Relaxation - Fallback Implementation
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Massive-MIMO PHY Base Station
// Component: Cross-Platform Compatibility Layer
//
// Description:
//   Fallback for architectures without a dedicated spin-wait instruction, and for
//   builds with assembly or CGO disabled. Compiles to nothing when inlined; the
//   spin loops keep their shape on every target.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

//go:build (!amd64 && !arm64) || noasm || nocgo

package equeue

// cpuRelax is a no-op on targets without PAUSE/YIELD support.
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func cpuRelax() {
}

// Relax exposes the hint to the worker pool's idle scan.
//
//go:nosplit
//go:inline
func Relax() { cpuRelax() }
