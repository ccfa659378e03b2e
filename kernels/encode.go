// ============================================================================
// ENCODE KERNEL
// ============================================================================
//
// Modulates one codeblock of one UE's downlink symbol: scrambles the
// staged MAC payload, spreads the bits cyclically over the codeblock's
// subcarrier share, and writes the constellation points into the encoded
// pool for the precoder. Capacity beyond the payload repeats bits; the
// decoder on the far side reads only the payload span.

package kernels

import (
	"main/buffers"
	"main/config"
	"main/equeue"
	"main/event"
)

// DoEncode is the per-worker encode stage object.
type DoEncode struct {
	cfg     *config.Config
	buf     *buffers.Buffers
	scratch []byte // scrambled payload, reused across tasks
}

// NewDoEncode builds the stage object for one worker.
func NewDoEncode(cfg *config.Config, buf *buffers.Buffers) *DoEncode {
	return &DoEncode{cfg: cfg, buf: buf, scratch: make([]byte, cfg.NumBytesPerCb)}
}

// TryLaunch serves one codeblock batch.
func (d *DoEncode) TryLaunch(stageQ, completeQ *equeue.Queue, tok *equeue.ProducerToken) bool {
	return launch(stageQ, completeQ, tok, d.run)
}

func (d *DoEncode) run(tag uint64) uint64 {
	frame := event.TagFrame(tag)
	symbol := event.TagSymbol(tag)
	cb := event.TagCb(tag)
	blocks := d.cfg.LdpcNumBlocksInSymbol
	ue, blk := cb/blocks, cb%blocks
	dlIdx := d.cfg.Frame.GetDLSymbolIdx(symbol)
	order := d.cfg.CurModOrder()
	blockScs := d.cfg.OfdmDataNum / blocks
	cbBytes := d.cfg.NumBytesPerCb
	ues := d.cfg.UeAntNum

	bits := d.buf.DlBitsRow(frame, ue)
	payload := bits[(dlIdx*blocks+blk)*cbBytes : (dlIdx*blocks+blk+1)*cbBytes]

	seed := ScrambleSeed(frame, symbol, ue, blk)
	for j, b := range payload {
		d.scratch[j] = ScrambleByte(b, seed, j)
	}

	enc := d.buf.DlEncodedRow(frame, dlIdx)
	for k := 0; k < blockScs; k++ {
		var v uint32
		for b := 0; b < order; b++ {
			v |= payloadBit(d.scratch, k*order+b) << b
		}
		enc[(blk*blockScs+k)*ues+ue] = ModMap(v, order)
	}
	return tag
}
