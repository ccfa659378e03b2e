// ============================================================================
// DECODE KERNEL
// ============================================================================
//
// Recovers one codeblock of one UE's uplink symbol: gathers the hard
// decisions from the soft-bit pool, reassembles the payload bytes and
// strips the scrambler. The inverse of the encode kernel bit for bit.

package kernels

import (
	"main/buffers"
	"main/config"
	"main/constants"
	"main/equeue"
	"main/event"
)

// DoDecode is the per-worker decode stage object.
type DoDecode struct {
	cfg *config.Config
	buf *buffers.Buffers
}

// NewDoDecode builds the stage object for one worker.
func NewDoDecode(cfg *config.Config, buf *buffers.Buffers) *DoDecode {
	return &DoDecode{cfg: cfg, buf: buf}
}

// TryLaunch serves one codeblock batch.
func (d *DoDecode) TryLaunch(stageQ, completeQ *equeue.Queue, tok *equeue.ProducerToken) bool {
	return launch(stageQ, completeQ, tok, d.run)
}

func (d *DoDecode) run(tag uint64) uint64 {
	frame := event.TagFrame(tag)
	symbol := event.TagSymbol(tag)
	cb := event.TagCb(tag)
	blocks := d.cfg.LdpcNumBlocksInSymbol
	ue, blk := cb/blocks, cb%blocks
	ulIdx := d.cfg.Frame.GetULSymbolIdx(symbol)
	order := d.cfg.CurModOrder()
	blockScs := d.cfg.OfdmDataNum / blocks
	cbBytes := d.cfg.NumBytesPerCb

	soft := d.buf.DemodRow(frame, ulIdx, ue)
	out := d.buf.DecodedRow(frame, ulIdx, ue)
	off := blk * buffers.Roundup64(cbBytes)

	seed := ScrambleSeed(frame, symbol, ue, blk)
	for j := 0; j < cbBytes; j++ {
		var raw byte
		for bit := 0; bit < 8; bit++ {
			i := j*8 + bit
			sc := blk*blockScs + i/order
			llr := soft[sc*constants.MaxModBits+i%order]
			if llr < 0 {
				raw |= 1 << bit
			}
		}
		out[off+j] = ScrambleByte(raw, seed, j)
	}
	return tag
}
