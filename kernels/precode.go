// ============================================================================
// PRECODE KERNEL
// ============================================================================
//
// Spreads the encoded downlink constellation across the BS antennas
// through the frame's downlink ZF rows. One task covers DemulBlockSize
// subcarriers of one downlink symbol; the result feeds the IFFT pool.

package kernels

import (
	"main/buffers"
	"main/config"
	"main/equeue"
	"main/event"
)

// DoPrecode is the per-worker precode stage object.
type DoPrecode struct {
	cfg *config.Config
	buf *buffers.Buffers
}

// NewDoPrecode builds the stage object for one worker.
func NewDoPrecode(cfg *config.Config, buf *buffers.Buffers) *DoPrecode {
	return &DoPrecode{cfg: cfg, buf: buf}
}

// TryLaunch serves one subcarrier-block event.
func (d *DoPrecode) TryLaunch(stageQ, completeQ *equeue.Queue, tok *equeue.ProducerToken) bool {
	return launch(stageQ, completeQ, tok, d.run)
}

func (d *DoPrecode) run(tag uint64) uint64 {
	frame := event.TagFrame(tag)
	symbol := event.TagSymbol(tag)
	base := event.TagSc(tag)
	dlIdx := d.cfg.Frame.GetDLSymbolIdx(symbol)
	n := d.cfg.OfdmDataNum
	bs, ues := d.cfg.BsAntNum, d.cfg.UeAntNum

	enc := d.buf.DlEncodedRow(frame, dlIdx)

	end := base + d.cfg.DemulBlockSize
	if end > n {
		end = n
	}
	for sc := base; sc < end; sc++ {
		p := d.buf.DLZfRow(frame, sc)
		for a := 0; a < bs; a++ {
			var acc complex64
			for u := 0; u < ues; u++ {
				acc += p[a*ues+u] * enc[sc*ues+u]
			}
			d.buf.DlIfftRow(frame, dlIdx, a)[sc] = acc
		}
	}
	return tag
}
