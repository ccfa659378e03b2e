// ============================================================================
// DEMODULATION KERNEL
// ============================================================================
//
// Equalizes one block of subcarriers of one uplink symbol through the
// frame's ZF rows and slices each UE's point to hard soft-bits. The
// equalized constellation is kept in its own pool — the embedding API
// exposes it for constellation displays and EVM tracking.

package kernels

import (
	"main/buffers"
	"main/config"
	"main/constants"
	"main/equeue"
	"main/event"
)

// DoDemul is the per-worker demodulation stage object.
type DoDemul struct {
	cfg *config.Config
	buf *buffers.Buffers
}

// NewDoDemul builds the stage object for one worker.
func NewDoDemul(cfg *config.Config, buf *buffers.Buffers) *DoDemul {
	return &DoDemul{cfg: cfg, buf: buf}
}

// TryLaunch serves one subcarrier-block event.
func (d *DoDemul) TryLaunch(stageQ, completeQ *equeue.Queue, tok *equeue.ProducerToken) bool {
	return launch(stageQ, completeQ, tok, d.run)
}

func (d *DoDemul) run(tag uint64) uint64 {
	frame := event.TagFrame(tag)
	symbol := event.TagSymbol(tag)
	base := event.TagSc(tag)
	ulIdx := d.cfg.Frame.GetULSymbolIdx(symbol)
	n := d.cfg.OfdmDataNum
	bs, ues := d.cfg.BsAntNum, d.cfg.UeAntNum
	order := d.cfg.CurModOrder()

	data := d.buf.DataRow(frame, ulIdx)
	equal := d.buf.EqualRow(frame, ulIdx)

	end := base + d.cfg.DemulBlockSize
	if end > n {
		end = n
	}
	for sc := base; sc < end; sc++ {
		w := d.buf.ULZfRow(frame, sc)
		for u := 0; u < ues; u++ {
			var acc complex64
			for a := 0; a < bs; a++ {
				acc += w[u*bs+a] * data[sc*bs+a]
			}
			equal[sc*ues+u] = acc

			bits := ModDemapHard(acc, order)
			soft := d.buf.DemodRow(frame, ulIdx, u)
			for b := 0; b < order; b++ {
				llr := int8(64)
				if bits>>b&1 != 0 {
					llr = -64
				}
				soft[sc*constants.MaxModBits+b] = llr
			}
		}
	}
	return tag
}
