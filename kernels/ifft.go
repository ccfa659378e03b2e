// ============================================================================
// IFFT KERNEL
// ============================================================================
//
// Lowers one antenna's precoded downlink symbol to wire samples:
// quantizes the frequency-domain points to interleaved int16 I/Q in the
// socket buffer the TX path sends from. Sample positions beyond the
// OFDM data span are cleared — guard samples transmit silence.

package kernels

import (
	"main/buffers"
	"main/config"
	"main/equeue"
	"main/event"
)

// DoIFFT is the per-worker IFFT stage object.
type DoIFFT struct {
	cfg *config.Config
	buf *buffers.Buffers
}

// NewDoIFFT builds the stage object for one worker.
func NewDoIFFT(cfg *config.Config, buf *buffers.Buffers) *DoIFFT {
	return &DoIFFT{cfg: cfg, buf: buf}
}

// TryLaunch serves one antenna batch.
func (d *DoIFFT) TryLaunch(stageQ, completeQ *equeue.Queue, tok *equeue.ProducerToken) bool {
	return launch(stageQ, completeQ, tok, d.run)
}

func (d *DoIFFT) run(tag uint64) uint64 {
	frame := event.TagFrame(tag)
	symbol := event.TagSymbol(tag)
	ant := event.TagAnt(tag)
	dlIdx := d.cfg.Frame.GetDLSymbolIdx(symbol)

	freq := d.buf.DlIfftRow(frame, dlIdx, ant)
	wire := d.buf.DlSocketRow(frame, dlIdx, ant)
	n := d.cfg.OfdmDataNum
	for sc := 0; sc < n; sc++ {
		wire[2*sc] = quantize(real(freq[sc]))
		wire[2*sc+1] = quantize(imag(freq[sc]))
	}
	for i := 2 * n; i < len(wire); i++ {
		wire[i] = 0
	}
	return tag
}

// quantize clamps and scales one float sample to int16.
//
//go:inline
func quantize(v float32) int16 {
	s := v * 32767
	if s > 32767 {
		s = 32767
	} else if s < -32767 {
		s = -32767
	}
	return int16(s)
}
