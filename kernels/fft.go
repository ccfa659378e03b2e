// ============================================================================
// FFT KERNEL
// ============================================================================
//
// Consumes RxPacket references, lifts one antenna's time-domain samples
// into the frequency-domain pools, and classifies the write target by
// symbol type: pilots land in the CSI pool, uplink data in the data pool,
// calibration symbols in the reciprocity captures. The completion tag is
// rewritten from the packet reference to (frame, symbol, antenna) so the
// master can account it against the right stage counter.

package kernels

import (
	"main/buffers"
	"main/config"
	"main/equeue"
	"main/event"
	"main/sched"
	"main/txrx"
)

const sampleScale = 1.0 / 32767.0

// DoFFT is the per-worker FFT stage object.
type DoFFT struct {
	cfg *config.Config
	buf *buffers.Buffers
	src txrx.PacketSource
}

// NewDoFFT builds the stage object for one worker.
func NewDoFFT(cfg *config.Config, buf *buffers.Buffers, src txrx.PacketSource) *DoFFT {
	return &DoFFT{cfg: cfg, buf: buf, src: src}
}

// TryLaunch serves one RxPacket batch.
func (d *DoFFT) TryLaunch(stageQ, completeQ *equeue.Queue, tok *equeue.ProducerToken) bool {
	return launch(stageQ, completeQ, tok, d.run)
}

func (d *DoFFT) run(tag uint64) uint64 {
	pkt := d.src.Packet(event.RxTagTid(tag), event.RxTagOffset(tag))
	frame := uint64(pkt.Frame)
	symbol := int(pkt.Symbol)
	ant := int(pkt.Ant)
	n := d.cfg.OfdmDataNum

	switch d.cfg.Frame.SymbolType(symbol) {
	case sched.SymPilot:
		// One pilot symbol sounds one UE's channel across all antennas.
		ue := d.cfg.Frame.GetPilotSymbolIdx(symbol) % d.cfg.UeAntNum
		row := d.buf.CSIRow(frame, ue)
		for sc := 0; sc < n; sc++ {
			row[ant*n+sc] = sampleAt(pkt.Data, sc)
		}
	case sched.SymUL:
		ulIdx := d.cfg.Frame.GetULSymbolIdx(symbol)
		row := d.buf.DataRow(frame, ulIdx)
		for sc := 0; sc < n; sc++ {
			row[sc*d.cfg.BsAntNum+ant] = sampleAt(pkt.Data, sc)
		}
	case sched.SymCalDL:
		row := d.buf.CalibDLRow(frame)
		for sc := 0; sc < n; sc++ {
			row[ant*n+sc] = sampleAt(pkt.Data, sc)
		}
	case sched.SymCalUL:
		row := d.buf.CalibULRow(frame)
		for sc := 0; sc < n; sc++ {
			row[ant*n+sc] = sampleAt(pkt.Data, sc)
		}
	}

	return event.Tag(frame, symbol, ant)
}

// sampleAt converts one interleaved int16 I/Q pair.
//
//go:inline
func sampleAt(data []int16, sc int) complex64 {
	return complex(float32(data[2*sc])*sampleScale, float32(data[2*sc+1])*sampleScale)
}
