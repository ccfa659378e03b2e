// ============================================================================
// STAGE DISPATCH
// ============================================================================
//
// The master's fan-out paths: coordinate batches packed into events and
// pushed onto the parity-matched stage queues. Dispatch never drops — a
// full queue stalls the master, which is the designed back-pressure up
// through RX to the radio.

package station

import (
	"math"

	"main/constants"
	"main/debug"
	"main/equeue"
	"main/event"
	"main/utils"
)

// push places one event on a stage queue of the frame's parity class.
func (s *Station) push(kind event.Kind, qid uint64, ev *event.Event) {
	s.stageQ[qid][kind].EnqueueSpin(s.stageTok[qid][kind], ev)
}

// scheduleAntennas fans one symbol out over the BS antennas in
// FftBlockSize batches. Used for IFFT (and mirrors the FFT batch shape).
func (s *Station) scheduleAntennas(kind event.Kind, frame uint64, symbol int) {
	cfg := s.cfg
	qid := frame & 1
	block := cfg.FftBlockSize

	ant := 0
	for ant < cfg.BsAntNum {
		n := block
		if rem := cfg.BsAntNum - ant; rem < n {
			n = rem
		}
		ev := event.Event{Kind: kind, NumTags: uint32(n)}
		for j := 0; j < n; j++ {
			ev.Tags[j] = event.Tag(frame, symbol, ant)
			ant++
		}
		s.push(kind, qid, &ev)
	}
}

// scheduleAntennasTX releases one downlink symbol to the wire: one
// single-tag event per antenna, spread across the socket threads'
// consumption of the shared TX queue.
func (s *Station) scheduleAntennasTX(frame uint64, symbol int) {
	txQ := s.stageQ[0][event.KindPacketTx]
	tok := s.stageTok[0][event.KindPacketTx]
	for ant := 0; ant < s.cfg.BsAntNum; ant++ {
		ev := event.New(event.KindPacketTx, event.Tag(frame, symbol, ant))
		txQ.EnqueueSpin(tok, &ev)
	}
}

// scheduleSubcarriers fans one symbol out over the band. ZF batches
// ZfBatchSize block-tags per event; Demul and Precode take one block per
// event.
func (s *Station) scheduleSubcarriers(kind event.Kind, frame uint64, symbol int) {
	cfg := s.cfg
	qid := frame & 1

	switch kind {
	case event.KindZf:
		numEvents := cfg.ZfEventsPerSymbol()
		batch := cfg.ZfBatchSize
		i := 0
		for i < numEvents {
			n := batch
			if rem := numEvents - i; rem < n {
				n = rem
			}
			ev := event.Event{Kind: kind, NumTags: uint32(n)}
			for j := 0; j < n; j++ {
				ev.Tags[j] = event.Tag(frame, symbol, cfg.ZfBlockSize*i)
				i++
			}
			s.push(kind, qid, &ev)
		}

	case event.KindDemul, event.KindPrecode:
		for i := 0; i < cfg.DemulEventsPerSymbol(); i++ {
			ev := event.New(kind, event.Tag(frame, symbol, i*cfg.DemulBlockSize))
			s.push(kind, qid, &ev)
		}

	default:
		debug.DropMessage("station", "bad subcarrier dispatch kind "+kind.String())
	}
}

// scheduleCodeblocks fans one symbol's codeblocks out in EncodeBlockSize
// batches. Codeblock ids run UE-major: cb = ue*blocks + blk.
func (s *Station) scheduleCodeblocks(kind event.Kind, frame uint64, symbol int) {
	cfg := s.cfg
	qid := frame & 1
	numTasks := cfg.CodeblocksPerSymbol()
	block := cfg.EncodeBlockSize

	cb := 0
	for cb < numTasks {
		n := block
		if rem := numTasks - cb; rem < n {
			n = rem
		}
		ev := event.Event{Kind: kind, NumTags: uint32(n)}
		for j := 0; j < n; j++ {
			ev.Tags[j] = event.Tag(frame, symbol, cb)
			cb++
		}
		s.push(kind, qid, &ev)
	}
}

// scheduleUsers hands one decoded symbol to the MAC, one event per UE.
func (s *Station) scheduleUsers(frame uint64, symbol int) {
	tok := s.macReqTok()
	for ue := 0; ue < s.cfg.UeAntNum; ue++ {
		ev := event.New(event.KindPacketToMac, event.Tag(frame, symbol, ue))
		s.macReqQ.EnqueueSpin(tok, &ev)
	}
}

// sendSnrReport pushes one per-UE SNR estimate to the MAC after the
// frame's channel is sounded.
func (s *Station) sendSnrReport(frame uint64, symbol int) {
	tok := s.macReqTok()
	n := s.cfg.OfdmDataNum
	for ue := 0; ue < s.cfg.UeAntNum; ue++ {
		var pwr float64
		csi := s.buf.CSIRow(frame, ue)
		for _, h := range csi {
			pwr += float64(real(h)*real(h) + imag(h)*imag(h))
		}
		snr := float32(10 * math.Log10(pwr/float64(n)+1e-12))

		ev := event.Event{Kind: event.KindSnrReport, NumTags: 2}
		ev.Tags[0] = event.Tag(frame, symbol, ue)
		ev.Tags[1] = event.PackSnr(snr)
		s.macReqQ.EnqueueSpin(tok, &ev)
	}
}

// macReqTok lazily mints the master's producer token for the MAC queue.
func (s *Station) macReqTok() *equeue.ProducerToken {
	if s.macReqToken == nil {
		s.macReqToken = s.macReqQ.Producer()
	}
	return s.macReqToken
}

// ============================================================================
// DOWNLINK SCHEDULING & DEFERRAL
// ============================================================================

// deferOrScheduleDownlink applies the scheduling-depth gate: a frame too
// far ahead of the processing frontier — or behind an already-deferred
// frame — parks in the FIFO until retirements release it.
func (s *Station) deferOrScheduleDownlink(frame uint64) {
	if s.cfg.Frame.NumDLSyms() == 0 {
		return
	}
	if len(s.encodeDeferral) > 0 ||
		frame >= s.CurProcFrame()+constants.ScheduleQueues {
		debug.DropMessage("station", "deferring encoding of frame "+utils.U64toa(frame))
		s.encodeDeferral = append(s.encodeDeferral, frame)
		return
	}
	s.scheduleDownlinkProcessing(frame)
}

// scheduleDownlinkProcessing launches one frame's downlink: client DL
// pilot symbols go straight to the precoder (or rendezvous on ZF), data
// symbols start at the encoder.
func (s *Station) scheduleDownlinkProcessing(frame uint64) {
	cfg := s.cfg
	pilots := cfg.ClientDlPilotSymbols

	for i := 0; i < pilots; i++ {
		if s.zfLastFrame == frame {
			s.scheduleSubcarriers(event.KindPrecode, frame, cfg.Frame.GetDLSymbol(i))
		} else {
			s.encodeCurFrameForSymbol[i] = frame
		}
	}
	for i := pilots; i < cfg.Frame.NumDLSyms(); i++ {
		s.scheduleCodeblocks(event.KindEncode, frame, cfg.Frame.GetDLSymbol(i))
	}
}
