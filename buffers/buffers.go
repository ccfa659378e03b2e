// ============================================================================
// PER-FRAME BUFFER POOLS
// ============================================================================
//
// All large DSP working memory, allocated once at startup and recycled by
// the sliding frame window: a buffer cell for frame F lives at slot
// F % FrameWnd and is reused FrameWnd frames later. Nothing here allocates
// after construction, and nothing here locks — the scheduler's dispatch
// order guarantees exactly one writer stage and one reader stage per
// (frame, symbol) cell.
//
// Every innermost row is 64-byte aligned so kernel inner loops stay on
// their own cache lines.

package buffers

import (
	"unsafe"

	"main/config"
	"main/constants"
)

// ============================================================================
// ALIGNED ALLOCATION
// ============================================================================

const alignBytes = 64

// alignedComplex64 returns an n-element slice whose first element sits on a
// 64-byte boundary.
func alignedComplex64(n int) []complex64 {
	pad := alignBytes / 8
	raw := make([]complex64, n+pad)
	off := 0
	for uintptr(unsafe.Pointer(&raw[off]))%alignBytes != 0 {
		off++
	}
	return raw[off : off+n : off+n]
}

func alignedInt16(n int) []int16 {
	pad := alignBytes / 2
	raw := make([]int16, n+pad)
	off := 0
	for uintptr(unsafe.Pointer(&raw[off]))%alignBytes != 0 {
		off++
	}
	return raw[off : off+n : off+n]
}

func alignedInt8(n int) []int8 {
	raw := make([]int8, n+alignBytes)
	off := 0
	for uintptr(unsafe.Pointer(&raw[off]))%alignBytes != 0 {
		off++
	}
	return raw[off : off+n : off+n]
}

func alignedBytes(n int) []byte {
	raw := make([]byte, n+alignBytes)
	off := 0
	for uintptr(unsafe.Pointer(&raw[off]))%alignBytes != 0 {
		off++
	}
	return raw[off : off+n : off+n]
}

// Roundup64 rounds n up to the next multiple of 64. Decoded codeblock rows
// are padded with it so adjacent blocks never share a cache line.
func Roundup64(n int) int { return (n + 63) &^ 63 }

// ============================================================================
// POOLS
// ============================================================================

// Buffers bundles every pool the kernels touch. Row accessors below encode
// the indexing convention once; kernels never do slot arithmetic.
type Buffers struct {
	cfg *config.Config

	csi   [][]complex64 // [slot*UeAnt + ue] -> BsAnt*OfdmData
	ulZf  [][]complex64 // [slot*OfdmData + sc] -> BsAnt*UeAnt
	dlZf  [][]complex64 // [slot*OfdmData + sc] -> UeAnt*BsAnt
	data  [][]complex64 // [slot*ULSyms + ulIdx] -> OfdmData*BsAnt
	equal [][]complex64 // [slot*ULSyms + ulIdx] -> OfdmData*UeAnt

	demod   [][]int8 // [(slot*ULSyms+ulIdx)*UeAnt + ue] -> ModOrderBits*OfdmData
	decoded [][]byte // [(slot*ULSyms+ulIdx)*UeAnt + ue] -> blocks*Roundup64(cbBytes)

	dlEncoded [][]complex64 // [slot*DLSyms + dlIdx] -> OfdmData*UeAnt
	dlIfft    [][]complex64 // [(slot*DLSyms+dlIdx)*BsAnt + ant] -> OfdmData
	dlSocket  [][]int16     // [(slot*DLSyms+dlIdx)*BsAnt + ant] -> SampsPerSymbol*2

	calibDL [][]complex64 // [slot] -> BsAnt*OfdmData
	calibUL [][]complex64 // [slot] -> BsAnt*OfdmData

	dlBits       [][]byte // [ue] -> FrameWnd * DlBitsPerFrame
	dlBitsStatus [][]byte // [ue] -> FrameWnd
}

// New allocates every pool for the given configuration.
func New(cfg *config.Config) *Buffers {
	const w = constants.FrameWnd
	frame := cfg.Frame
	b := &Buffers{cfg: cfg}

	rows := func(n, rowLen int) [][]complex64 {
		out := make([][]complex64, n)
		for i := range out {
			out[i] = alignedComplex64(rowLen)
		}
		return out
	}

	b.csi = rows(w*cfg.UeAntNum, cfg.BsAntNum*cfg.OfdmDataNum)
	b.ulZf = rows(w*cfg.OfdmDataNum, cfg.BsAntNum*cfg.UeAntNum)
	b.dlZf = rows(w*cfg.OfdmDataNum, cfg.UeAntNum*cfg.BsAntNum)

	if ul := frame.NumULSyms(); ul > 0 {
		b.data = rows(w*ul, cfg.OfdmDataNum*cfg.BsAntNum)
		b.equal = rows(w*ul, cfg.OfdmDataNum*cfg.UeAntNum)
		b.demod = make([][]int8, w*ul*cfg.UeAntNum)
		for i := range b.demod {
			b.demod[i] = alignedInt8(constants.MaxModBits * cfg.OfdmDataNum)
		}
		b.decoded = make([][]byte, w*ul*cfg.UeAntNum)
		cbRow := cfg.LdpcNumBlocksInSymbol * Roundup64(cfg.NumBytesPerCb)
		for i := range b.decoded {
			b.decoded[i] = alignedBytes(cbRow)
		}
	}

	if dl := frame.NumDLSyms(); dl > 0 {
		b.dlEncoded = rows(w*dl, cfg.OfdmDataNum*cfg.UeAntNum)
		b.dlIfft = rows(w*dl*cfg.BsAntNum, cfg.OfdmDataNum)
		b.dlSocket = make([][]int16, w*dl*cfg.BsAntNum)
		for i := range b.dlSocket {
			b.dlSocket[i] = alignedInt16(cfg.SampsPerSymbol * 2)
		}
		perFrame := cfg.Frame.NumDLSyms() * cfg.LdpcNumBlocksInSymbol * cfg.NumBytesPerCb
		b.dlBits = make([][]byte, cfg.UeAntNum)
		b.dlBitsStatus = make([][]byte, cfg.UeAntNum)
		for ue := range b.dlBits {
			b.dlBits[ue] = alignedBytes(w * perFrame)
			b.dlBitsStatus[ue] = make([]byte, w)
		}
	}

	b.calibDL = rows(w, cfg.BsAntNum*cfg.OfdmDataNum)
	b.calibUL = rows(w, cfg.BsAntNum*cfg.OfdmDataNum)
	// Unit gain in the last window so the first frames have a sane
	// reciprocity baseline before any calibration symbol lands.
	for i := range b.calibDL[w-1] {
		b.calibDL[w-1][i] = 1
		b.calibUL[w-1][i] = 1
	}

	return b
}

// ============================================================================
// ROW ACCESSORS
// ============================================================================

func slotOf(frame uint64) int { return int(frame % constants.FrameWnd) }

// CSIRow is the channel estimate of one UE: BsAnt x OfdmData, antenna-major.
func (b *Buffers) CSIRow(frame uint64, ue int) []complex64 {
	return b.csi[slotOf(frame)*b.cfg.UeAntNum+ue]
}

// ULZfRow is the uplink equalizer of one subcarrier: UeAnt x BsAnt.
func (b *Buffers) ULZfRow(frame uint64, sc int) []complex64 {
	return b.ulZf[slotOf(frame)*b.cfg.OfdmDataNum+sc]
}

// DLZfRow is the downlink precoder of one subcarrier: BsAnt x UeAnt.
func (b *Buffers) DLZfRow(frame uint64, sc int) []complex64 {
	return b.dlZf[slotOf(frame)*b.cfg.OfdmDataNum+sc]
}

// DataRow is the frequency-domain uplink symbol: OfdmData x BsAnt,
// subcarrier-major.
func (b *Buffers) DataRow(frame uint64, ulIdx int) []complex64 {
	return b.data[slotOf(frame)*b.cfg.Frame.NumULSyms()+ulIdx]
}

// EqualRow is the equalized uplink symbol: OfdmData x UeAnt.
func (b *Buffers) EqualRow(frame uint64, ulIdx int) []complex64 {
	return b.equal[slotOf(frame)*b.cfg.Frame.NumULSyms()+ulIdx]
}

// DemodRow is one UE's soft bits for one uplink symbol.
func (b *Buffers) DemodRow(frame uint64, ulIdx, ue int) []int8 {
	return b.demod[(slotOf(frame)*b.cfg.Frame.NumULSyms()+ulIdx)*b.cfg.UeAntNum+ue]
}

// DecodedRow is one UE's decoded bytes for one uplink symbol, codeblocks
// padded to 64.
func (b *Buffers) DecodedRow(frame uint64, ulIdx, ue int) []byte {
	return b.decoded[(slotOf(frame)*b.cfg.Frame.NumULSyms()+ulIdx)*b.cfg.UeAntNum+ue]
}

// DlEncodedRow is the modulated downlink symbol: OfdmData x UeAnt.
func (b *Buffers) DlEncodedRow(frame uint64, dlIdx int) []complex64 {
	return b.dlEncoded[slotOf(frame)*b.cfg.Frame.NumDLSyms()+dlIdx]
}

// DlIfftRow is one antenna's precoded frequency-domain downlink symbol.
func (b *Buffers) DlIfftRow(frame uint64, dlIdx, ant int) []complex64 {
	return b.dlIfft[(slotOf(frame)*b.cfg.Frame.NumDLSyms()+dlIdx)*b.cfg.BsAntNum+ant]
}

// DlSocketRow is one antenna's time-domain downlink samples, interleaved
// int16 I/Q, ready for the wire.
func (b *Buffers) DlSocketRow(frame uint64, dlIdx, ant int) []int16 {
	return b.dlSocket[(slotOf(frame)*b.cfg.Frame.NumDLSyms()+dlIdx)*b.cfg.BsAntNum+ant]
}

// CalibDLRow / CalibULRow are the reciprocity capture rows of one slot.
func (b *Buffers) CalibDLRow(frame uint64) []complex64 { return b.calibDL[slotOf(frame)] }

func (b *Buffers) CalibULRow(frame uint64) []complex64 { return b.calibUL[slotOf(frame)] }

// DlBitsPerFrame is one UE's downlink payload bytes per frame.
func (b *Buffers) DlBitsPerFrame() int {
	return b.cfg.Frame.NumDLSyms() * b.cfg.LdpcNumBlocksInSymbol * b.cfg.NumBytesPerCb
}

// DlBitsRow is one UE's staged downlink bits for one frame.
func (b *Buffers) DlBitsRow(frame uint64, ue int) []byte {
	per := b.DlBitsPerFrame()
	off := slotOf(frame) * per
	return b.dlBits[ue][off : off+per]
}

// DlBitsReady reports / records whether MAC bits for (frame, ue) are staged.
func (b *Buffers) DlBitsReady(frame uint64, ue int) bool {
	return b.dlBitsStatus[ue][slotOf(frame)] != 0
}

func (b *Buffers) SetDlBitsReady(frame uint64, ue int, ready bool) {
	v := byte(0)
	if ready {
		v = 1
	}
	b.dlBitsStatus[ue][slotOf(frame)] = v
}
