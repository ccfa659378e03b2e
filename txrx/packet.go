// ============================================================================
// RADIO PACKET MODEL
// ============================================================================
//
// One packet carries one antenna's samples for one symbol of one frame.
// The wire layout is a 12-byte little-endian header followed by
// SampsPerSymbol interleaved int16 I/Q pairs. Receive rings hold parsed
// packets; the FFT workers read them by (socket thread, ring offset)
// reference, so a packet slot must stay untouched until its frame leaves
// the window.

package txrx

import "encoding/binary"

// HeaderBytes is the wire header size: frame(4) symbol(2) cell(2) ant(2)
// flags(2).
const HeaderBytes = 12

// Packet is a parsed receive-ring slot.
type Packet struct {
	Frame  uint32
	Symbol uint16
	Cell   uint16
	Ant    uint16

	Data []int16 // interleaved I/Q, SampsPerSymbol pairs
}

// PacketSource resolves an rx tag reference to its receive-ring slot.
// Implemented by every transport; consumed by the FFT kernel.
type PacketSource interface {
	Packet(tid int, offset uint64) *Packet
}

// ParseHeader fills the packet header fields from a wire buffer.
func (p *Packet) ParseHeader(b []byte) {
	p.Frame = binary.LittleEndian.Uint32(b[0:4])
	p.Symbol = binary.LittleEndian.Uint16(b[4:6])
	p.Cell = binary.LittleEndian.Uint16(b[6:8])
	p.Ant = binary.LittleEndian.Uint16(b[8:10])
}

// PutHeader writes the packet header fields into a wire buffer.
func (p *Packet) PutHeader(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], p.Frame)
	binary.LittleEndian.PutUint16(b[4:6], p.Symbol)
	binary.LittleEndian.PutUint16(b[6:8], p.Cell)
	binary.LittleEndian.PutUint16(b[8:10], p.Ant)
	binary.LittleEndian.PutUint16(b[10:12], 0)
}
