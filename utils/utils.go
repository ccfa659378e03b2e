// utils.go — low-level helpers shared by the master loop, stats & transports.
package utils

import (
	"os"
	"unsafe"
)

///////////////////////////////////////////////////////////////////////////////
// Conversion Utilities — Zero-Alloc Casts
///////////////////////////////////////////////////////////////////////////////

// B2s converts a []byte to a string **without** allocation.
// ⚠️ Caller must ensure the input slice remains valid and unchanged.
// Used for human-readable print paths.
//
//go:nosplit
//go:inline
func B2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

///////////////////////////////////////////////////////////////////////////////
// Integer Formatting — Diagnostics Without fmt
///////////////////////////////////////////////////////////////////////////////

// Itoa formats a signed integer for cold-path diagnostics. Builds digits
// backwards in a stack buffer; the only allocation is the returned string.
func Itoa(v int) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	neg := v < 0
	u := uint64(v)
	if neg {
		u = uint64(-v)
	}
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// U64toa is the unsigned variant, used for frame identifiers.
func U64toa(u uint64) string {
	if u == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	return string(buf[i:])
}

///////////////////////////////////////////////////////////////////////////////
// Stderr Sink — Cold-Path Writes
///////////////////////////////////////////////////////////////////////////////

// PrintWarning writes a pre-built message straight to stderr. No formatting,
// no locking, no intermediate buffers; callers pass a complete line.
//
//go:nosplit
func PrintWarning(msg string) {
	_, _ = os.Stderr.WriteString(msg)
}

///////////////////////////////////////////////////////////////////////////////
// Misc — 64-bit avalanche mixer (MurmurHash3 finalizer)
///////////////////////////////////////////////////////////////////////////////

// Mix64 decorrelates consecutive integers. The scrambler in the encode and
// decode kernels derives its keystream from this.
//
//go:nosplit
//go:inline
func Mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}
