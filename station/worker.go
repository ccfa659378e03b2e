// ============================================================================
// WORKER POOL
// ============================================================================
//
// Fixed-size, core-pinned compute threads. Each worker owns one kernel
// object per stage it may execute and scans its stage list against one
// queue parity at a time; after WorkerFlipIters consecutive empty scans
// it flips parity (or re-aligns with the schedule frontier when both
// frontiers agree), letting the pool finish one frame while the master
// schedules the next without any coordination.
//
// Unified mode gives every worker the full stage list. Bigstation mode
// partitions the pool into FFT-, ZF-, Demul- and Decode-group threads
// with fixed two-stage loops.

package station

import (
	"main/constants"
	"main/control"
	"main/equeue"
	"main/event"
	"main/kernels"
	"main/pin"
)

// createWorkers launches the configured pool.
func (s *Station) createWorkers() {
	cfg := s.cfg
	if cfg.BigstationMode {
		tid := 0
		for i := 0; i < cfg.FftThreadNum; i++ {
			s.spawn(tid, s.workerFft)
			tid++
		}
		for i := 0; i < cfg.ZfThreadNum; i++ {
			s.spawn(tid, s.workerZf)
			tid++
		}
		for i := 0; i < cfg.DemulThreadNum; i++ {
			s.spawn(tid, s.workerDemul)
			tid++
		}
		for ; tid < cfg.WorkerThreadNum; tid++ {
			s.spawn(tid, s.workerDecode)
		}
		return
	}
	for tid := 0; tid < cfg.WorkerThreadNum; tid++ {
		s.spawn(tid, s.worker)
	}
}

func (s *Station) spawn(tid int, body func(int)) {
	control.ShutdownWG.Add(1)
	go func() {
		defer control.ShutdownWG.Done()
		pin.ToCore(s.cfg.CoreOffset + 1 + s.cfg.SocketThreadNum + tid)
		body(tid)
	}()
}

// ============================================================================
// UNIFIED WORKER
// ============================================================================

func (s *Station) worker(tid int) {
	cfg := s.cfg
	_ = tid

	// Per-worker kernel objects; ZF first so a fresh equalizer is never
	// starved behind bulk demodulation work.
	doers := []kernels.Doer{
		kernels.NewDoZF(cfg, s.buf),
		kernels.NewDoFFT(cfg, s.buf, s.transport),
	}
	kinds := []event.Kind{event.KindZf, event.KindFft}

	if cfg.Frame.NumULSyms() > 0 {
		doers = append(doers, kernels.NewDoDecode(cfg, s.buf), kernels.NewDoDemul(cfg, s.buf))
		kinds = append(kinds, event.KindDecode, event.KindDemul)
	}
	if cfg.Frame.NumDLSyms() > 0 {
		doers = append(doers,
			kernels.NewDoIFFT(cfg, s.buf),
			kernels.NewDoPrecode(cfg, s.buf),
			kernels.NewDoEncode(cfg, s.buf))
		kinds = append(kinds, event.KindIfft, event.KindPrecode, event.KindEncode)
	}

	toks := [constants.ScheduleQueues]*equeue.ProducerToken{
		s.compQ[0].Producer(), s.compQ[1].Producer(),
	}

	qid := uint64(0)
	emptyIters := 0
	for cfg.Running() {
		served := false
		for i, d := range doers {
			if d.TryLaunch(s.stageQ[qid][kinds[i]], s.compQ[qid], toks[qid]) {
				served = true
				break
			}
		}
		if served {
			emptyIters = 0
			continue
		}
		// Both directions drained on this parity for a while: follow the
		// frame frontiers to the busy set.
		if emptyIters++; emptyIters == constants.WorkerFlipIters {
			if s.CurScheFrame() != s.CurProcFrame() {
				qid ^= 1
			} else {
				qid = s.CurScheFrame() & 1
			}
			emptyIters = 0
		}
		equeue.Relax()
	}
}

// ============================================================================
// BIGSTATION WORKERS
// ============================================================================

// twoStageLoop runs a fixed pair of kernels against both parities.
func (s *Station) twoStageLoop(a, b kernels.Doer, ka, kb event.Kind) {
	toks := [constants.ScheduleQueues]*equeue.ProducerToken{
		s.compQ[0].Producer(), s.compQ[1].Producer(),
	}
	qid := uint64(0)
	for s.cfg.Running() {
		served := a.TryLaunch(s.stageQ[qid][ka], s.compQ[qid], toks[qid])
		if !served && b != nil {
			served = b.TryLaunch(s.stageQ[qid][kb], s.compQ[qid], toks[qid])
		}
		if !served {
			qid ^= 1
			equeue.Relax()
		}
	}
}

func (s *Station) workerFft(int) {
	var ifft kernels.Doer
	if s.cfg.Frame.NumDLSyms() > 0 {
		ifft = kernels.NewDoIFFT(s.cfg, s.buf)
	}
	s.twoStageLoop(kernels.NewDoFFT(s.cfg, s.buf, s.transport), ifft,
		event.KindFft, event.KindIfft)
}

func (s *Station) workerZf(int) {
	s.twoStageLoop(kernels.NewDoZF(s.cfg, s.buf), nil, event.KindZf, event.KindZf)
}

func (s *Station) workerDemul(int) {
	var precode kernels.Doer
	if s.cfg.Frame.NumDLSyms() > 0 {
		precode = kernels.NewDoPrecode(s.cfg, s.buf)
	}
	s.twoStageLoop(kernels.NewDoDemul(s.cfg, s.buf), precode,
		event.KindDemul, event.KindPrecode)
}

func (s *Station) workerDecode(int) {
	var encode kernels.Doer
	if s.cfg.Frame.NumDLSyms() > 0 {
		encode = kernels.NewDoEncode(s.cfg, s.buf)
	}
	s.twoStageLoop(kernels.NewDoDecode(s.cfg, s.buf), encode,
		event.KindDecode, event.KindEncode)
}
