// ============================================================================
// MODULATION & SCRAMBLING PRIMITIVES
// ============================================================================
//
// Shared by the encode, demodulation and decode kernels — and by the test
// vector generators, which must produce exactly what the uplink decoder
// expects. Gray-mapped QPSK and 16QAM, plus the multiplicative-free
// scrambler keyed per (frame, symbol, user, codeblock).

package kernels

import "main/utils"

// Amplitude tables. Unit average power per constellation.
const (
	qpskAmp  = 0.70710678 // 1/sqrt(2)
	qam16Amp = 0.31622777 // 1/sqrt(10)
)

// gray16 maps 2 Gray bits to a 16QAM level in {-3,-1,+1,+3}.
var gray16 = [4]float32{-3, -1, +1, +3}

// gray16Bits is the inverse: level index -> Gray bits.
var gray16Bits = [4]uint32{0b00, 0b01, 0b11, 0b10}

// ModMap maps the low `order` bits of v to one constellation point.
// Bit order: for QPSK bit0 drives I, bit1 drives Q; for 16QAM bits 0-1
// drive I and bits 2-3 drive Q.
func ModMap(v uint32, order int) complex64 {
	switch order {
	case 2:
		re := float32(qpskAmp)
		im := float32(qpskAmp)
		if v&1 != 0 {
			re = -re
		}
		if v&2 != 0 {
			im = -im
		}
		return complex(re, im)
	case 4:
		re := gray16[grayIndex(v&3)] * qam16Amp
		im := gray16[grayIndex(v>>2&3)] * qam16Amp
		return complex(re, im)
	}
	return 0
}

// grayIndex converts 2 Gray bits to their level index.
func grayIndex(g uint32) int {
	for i, bits := range gray16Bits {
		if bits == g {
			return i
		}
	}
	return 0
}

// ModDemapHard slices one received point back to its bits.
func ModDemapHard(c complex64, order int) uint32 {
	switch order {
	case 2:
		var v uint32
		if real(c) < 0 {
			v |= 1
		}
		if imag(c) < 0 {
			v |= 2
		}
		return v
	case 4:
		return demap16(real(c)) | demap16(imag(c))<<2
	}
	return 0
}

// demap16 slices one 16QAM axis: thresholds at 0 and ±2/sqrt(10).
func demap16(v float32) uint32 {
	x := v / qam16Amp
	switch {
	case x < -2:
		return gray16Bits[0]
	case x < 0:
		return gray16Bits[1]
	case x < 2:
		return gray16Bits[2]
	default:
		return gray16Bits[3]
	}
}

// ============================================================================
// SCRAMBLER
// ============================================================================

// ScrambleSeed keys the per-codeblock scrambler. Both ends of the link
// derive it from coordinates alone.
func ScrambleSeed(frame uint64, symbol, ue, cb int) uint64 {
	return utils.Mix64(frame<<24 ^ uint64(symbol)<<16 ^ uint64(ue)<<8 ^ uint64(cb))
}

// ScrambleByte whitens (or un-whitens) payload byte j.
//
//go:inline
func ScrambleByte(b byte, seed uint64, j int) byte {
	return b ^ byte(utils.Mix64(seed+uint64(j)+1))
}

// payloadBit reads bit i of a scrambled payload, cycling when the
// subcarrier capacity exceeds the payload length.
func payloadBit(scrambled []byte, i int) uint32 {
	i %= len(scrambled) * 8
	return uint32(scrambled[i/8]>>(i%8)) & 1
}
