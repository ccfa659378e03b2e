// ============================================================================
// ZERO-FORCING KERNEL
// ============================================================================
//
// Builds the per-subcarrier uplink equalizer and downlink precoder from
// the frame's channel estimates. One task covers ZfBlockSize consecutive
// subcarriers starting at the tag's subcarrier index.
//
// The uplink row is the normalized matched filter conj(H)/|H|²; the
// downlink row is its reciprocal, corrected by the calibration ratio when
// the schedule carries reciprocity symbols.

package kernels

import (
	"main/buffers"
	"main/config"
	"main/equeue"
	"main/event"
)

// DoZF is the per-worker zero-forcing stage object.
type DoZF struct {
	cfg *config.Config
	buf *buffers.Buffers
}

// NewDoZF builds the stage object for one worker.
func NewDoZF(cfg *config.Config, buf *buffers.Buffers) *DoZF {
	return &DoZF{cfg: cfg, buf: buf}
}

// TryLaunch serves one subcarrier-batch event.
func (d *DoZF) TryLaunch(stageQ, completeQ *equeue.Queue, tok *equeue.ProducerToken) bool {
	return launch(stageQ, completeQ, tok, d.run)
}

func (d *DoZF) run(tag uint64) uint64 {
	frame := event.TagFrame(tag)
	base := event.TagSc(tag)
	n := d.cfg.OfdmDataNum
	bs, ue := d.cfg.BsAntNum, d.cfg.UeAntNum
	calib := d.cfg.Frame.IsRecCalEnabled()

	end := base + d.cfg.ZfBlockSize
	if end > n {
		end = n
	}
	for sc := base; sc < end; sc++ {
		ul := d.buf.ULZfRow(frame, sc)
		dl := d.buf.DLZfRow(frame, sc)
		for u := 0; u < ue; u++ {
			csi := d.buf.CSIRow(frame, u)
			var norm float32
			for a := 0; a < bs; a++ {
				h := csi[a*n+sc]
				norm += real(h)*real(h) + imag(h)*imag(h)
			}
			if norm == 0 {
				norm = 1
			}
			for a := 0; a < bs; a++ {
				h := csi[a*n+sc]
				w := complex(real(h)/norm, -imag(h)/norm)
				ul[u*bs+a] = w

				p := complex(real(w), -imag(w))
				if calib {
					p *= d.calibFactor(frame, a, sc)
				}
				dl[a*ue+u] = p
			}
		}
	}
	return tag
}

// calibFactor is the downlink/uplink reciprocity ratio of one antenna.
// Falls back to unit gain while the frame's capture is still empty.
func (d *DoZF) calibFactor(frame uint64, ant, sc int) complex64 {
	n := d.cfg.OfdmDataNum
	dn := d.buf.CalibDLRow(frame)[ant*n+sc]
	up := d.buf.CalibULRow(frame)[ant*n+sc]
	mag := real(up)*real(up) + imag(up)*imag(up)
	if mag == 0 {
		return 1
	}
	inv := complex(real(up)/mag, -imag(up)/mag)
	return dn * inv
}
