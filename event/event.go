// ============================================================================
// EVENT WORD & TAG CODEC
// ============================================================================
//
// Fixed-size event records exchanged between the master scheduler, the
// worker pool and the I/O threads. An event carries a stage kind and up to
// MaxTagsPerEvent packed 64-bit coordinates; the queues move events by
// value, so the layout must stay flat and pointer-free.
//
// A tag packs (frame, symbol, idx) into one word. The idx field is
// interpreted by the consuming stage: antenna for FFT/IFFT/TX, subcarrier
// for ZF/Demul/Precode, codeblock for Encode/Decode, user for the MAC
// stages. All four interpretations share one layout, so decoding is a
// shift+mask and never fails.

package event

import (
	"math"

	"main/constants"
)

// ============================================================================
// EVENT KINDS
// ============================================================================

// Kind identifies the pipeline stage that produced or consumes an event.
type Kind uint32

const (
	KindRxPacket Kind = iota
	KindFft
	KindZf
	KindDemul
	KindDecode
	KindEncode
	KindPrecode
	KindIfft
	KindPacketTx
	KindPacketToMac
	KindPacketFromMac
	KindSnrReport
	KindRanUpdate
)

var kindNames = [...]string{
	"rx_packet", "fft", "zf", "demul", "decode", "encode", "precode",
	"ifft", "packet_tx", "packet_to_mac", "packet_from_mac", "snr_report",
	"ran_update",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ============================================================================
// EVENT WORD
// ============================================================================

// Event is the unit moved through every queue in the pipeline. Fixed size,
// no pointers: queues copy it by value into sequence-numbered slots.
type Event struct {
	Kind    Kind
	NumTags uint32
	Tags    [constants.MaxTagsPerEvent]uint64
}

// New builds a single-tag event, the common case for per-task dispatch.
//
//go:inline
func New(kind Kind, tag uint64) Event {
	ev := Event{Kind: kind, NumTags: 1}
	ev.Tags[0] = tag
	return ev
}

// ============================================================================
// TAG LAYOUT
// ============================================================================
//
// 63            32 31          16 15           0
// ┌───────────────┬──────────────┬──────────────┐
// │   frame (32)  │  symbol (16) │   idx (16)   │
// └───────────────┴──────────────┴──────────────┘
//
// 32 frame bits keep multi-hour runs (frame ids well past 2^20) unambiguous
// inside the sliding window arithmetic.

const (
	frameShift  = 32
	symbolShift = 16
	symbolMask  = 0xffff
	idxMask     = 0xffff
)

// Tag packs a (frame, symbol, idx) coordinate. idx meaning is stage-defined.
//
//go:inline
func Tag(frame uint64, symbol, idx int) uint64 {
	return frame<<frameShift | uint64(symbol&symbolMask)<<symbolShift |
		uint64(idx&idxMask)
}

// TagFrame extracts the frame id.
//
//go:inline
func TagFrame(tag uint64) uint64 { return tag >> frameShift }

// TagSymbol extracts the absolute symbol index within the frame.
//
//go:inline
func TagSymbol(tag uint64) int { return int(tag>>symbolShift) & symbolMask }

// TagIdx extracts the stage-interpreted index field.
//
//go:inline
func TagIdx(tag uint64) int { return int(tag) & idxMask }

// Stage-named aliases. Each stage reads the layout it dispatched.

//go:inline
func TagAnt(tag uint64) int { return TagIdx(tag) }

//go:inline
func TagSc(tag uint64) int { return TagIdx(tag) }

//go:inline
func TagCb(tag uint64) int { return TagIdx(tag) }

//go:inline
func TagUe(tag uint64) int { return TagIdx(tag) }

// ============================================================================
// RX TAG LAYOUT
// ============================================================================
//
// RX packets are referenced by their position in a socket thread's receive
// ring, not by frame coordinates: the header has not been inspected by the
// master yet when the tag is created.
//
// 63        48 47                 0
// ┌───────────┬────────────────────┐
// │  tid (16) │    offset (48)     │
// └───────────┴────────────────────┘

const (
	rxTidShift   = 48
	rxOffsetMask = (uint64(1) << rxTidShift) - 1
)

// RxTag packs a (socket thread, ring offset) packet reference.
//
//go:inline
func RxTag(tid int, offset uint64) uint64 {
	return uint64(tid)<<rxTidShift | offset&rxOffsetMask
}

// RxTagTid extracts the owning socket thread.
//
//go:inline
func RxTagTid(tag uint64) int { return int(tag >> rxTidShift) }

// RxTagOffset extracts the receive-ring slot.
//
//go:inline
func RxTagOffset(tag uint64) uint64 { return tag & rxOffsetMask }

// ============================================================================
// SNR PAYLOAD
// ============================================================================

// PackSnr stores a float32 SNR estimate in a tag word (Tags[1] of an
// SnrReport event).
//
//go:inline
func PackSnr(snr float32) uint64 { return uint64(math.Float32bits(snr)) }

// UnpackSnr recovers the SNR estimate.
//
//go:inline
func UnpackSnr(tag uint64) float32 { return math.Float32frombits(uint32(tag)) }
