// ============================================================================
// MASTER SCHEDULER LOOP
// ============================================================================
//
// Single-threaded, cooperative, pinned to the first core. Alternates
// fairly between the I/O side (RX packets, TX confirmations, MAC
// responses) and the completion side (worker results for the frame being
// retired), handles each drained event through the pipeline state
// machine, then opportunistically dispatches FFT work from the current
// schedule frame's backlog.
//
// The loop exits when the last test frame retires, when the running flag
// drops, or when the signal handler raises the exit flag.

package station

import (
	"sync/atomic"

	"main/constants"
	"main/control"
	"main/debug"
	"main/event"
	"main/pin"
	"main/sched"
	"main/stats"
	"main/utils"
)

// Start brings up I/O, the worker pool and the optional MAC thread, then
// runs the master loop to completion. Blocks until shutdown.
func (s *Station) Start() {
	cfg := s.cfg
	cfg.SetRunning(true)

	if !s.transport.Start(s.buf) {
		debug.DropError("station: transport failed to start", nil)
		s.Stop()
		return
	}
	if lb, ok := s.transport.(interface{ SetPacer(func() uint64) }); ok {
		lb.SetPacer(s.CurScheFrame)
	}
	if s.macThread != nil {
		s.macThread.Start()
	}
	s.createWorkers()

	pin.ToCore(cfg.CoreOffset)

	maxEvents := constants.DequeueBulkTXRX * (cfg.SocketThreadNum + 1)
	if w := constants.DequeueBulkWorker * cfg.WorkerThreadNum; w > maxEvents {
		maxEvents = w
	}
	events := make([]event.Event, maxEvents)
	ioTurn := true
	finished := false

	for cfg.Running() && !control.GotExitSignal() && !finished {
		n := 0
		if ioTurn {
			for i := 0; i <= cfg.SocketThreadNum && n+constants.DequeueBulkTXRX <= maxEvents; i++ {
				n += s.intakeQ.TryDequeueBulk(events[n : n+constants.DequeueBulkTXRX])
			}
			if cfg.EnableMac && n+constants.DequeueBulkTXRX <= maxEvents {
				n += s.macRespQ.TryDequeueBulk(events[n : n+constants.DequeueBulkTXRX])
			}
		} else {
			n += s.compQ[s.CurProcFrame()&1].TryDequeueBulk(events[n:maxEvents])
		}
		ioTurn = !ioTurn

		for i := 0; i < n && !finished; i++ {
			finished = s.handleEvent(&events[i])
		}

		s.dispatchFftBacklog()
	}

	debug.DropMessage("station", "printing stats and saving artifacts")
	s.st.PrintSummary()
	if err := s.st.SaveToDB(cfg.StatsDBPath); err != nil {
		debug.DropError("station: stats db", err)
	}
	if cfg.SaveDecodeData && cfg.Frame.NumULSyms() > 0 {
		if err := s.st.SaveDecodeData(s.buf, s.st.LastFrame()); err != nil {
			debug.DropError("station: decode dump", err)
		}
	}
	if cfg.SaveTxData && cfg.Frame.NumDLSyms() > 0 {
		if err := s.st.SaveTxData(s.buf, s.st.LastFrame()); err != nil {
			debug.DropError("station: tx dump", err)
		}
	}
	s.Stop()
}

// ============================================================================
// EVENT DISPATCH
// ============================================================================

// handleEvent advances the state machine by one event. Returns true when
// the final frame has fully retired.
func (s *Station) handleEvent(ev *event.Event) bool {
	switch ev.Kind {
	case event.KindRxPacket:
		s.handleRxPacket(ev.Tags[0])

	case event.KindFft:
		for i := 0; i < int(ev.NumTags); i++ {
			s.handleFftDone(ev.Tags[i])
		}

	case event.KindZf:
		for i := 0; i < int(ev.NumTags); i++ {
			s.handleZfDone(ev.Tags[i])
		}

	case event.KindDemul:
		s.handleDemulDone(ev.Tags[0])

	case event.KindDecode:
		for i := 0; i < int(ev.NumTags); i++ {
			if s.handleDecodeDone(ev.Tags[i]) {
				return true
			}
		}

	case event.KindEncode:
		for i := 0; i < int(ev.NumTags); i++ {
			s.handleEncodeDone(ev.Tags[i])
		}

	case event.KindPrecode:
		s.handlePrecodeDone(ev.Tags[0])

	case event.KindIfft:
		for i := 0; i < int(ev.NumTags); i++ {
			if s.handleIfftDone(ev.Tags[i]) {
				return true
			}
		}

	case event.KindPacketTx:
		return s.handleTxDone(ev.Tags[0])

	case event.KindPacketToMac:
		return s.handleToMacDone(ev.Tags[0])

	case event.KindPacketFromMac:
		s.handleFromMac(ev.Tags[0])

	case event.KindRanUpdate:
		s.cfg.UpdateModOrder(int(ev.Tags[1]))

	default:
		debug.DropMessage("station", "unexpected event kind "+ev.Kind.String())
	}
	return false
}

// ============================================================================
// RX PATH
// ============================================================================

func (s *Station) handleRxPacket(tag uint64) {
	pkt := s.transport.Packet(event.RxTagTid(tag), event.RxTagOffset(tag))
	frame := uint64(pkt.Frame)

	if frame >= s.CurScheFrame()+constants.FrameWnd {
		// The slot for this frame still belongs to an in-flight frame.
		// Unrecoverable: stop cleanly rather than corrupt the window.
		debug.DropMessage("station", "FATAL rx packet for future frame "+
			utils.U64toa(frame)+" beyond window at "+utils.U64toa(s.CurScheFrame()))
		s.cfg.SetRunning(false)
		return
	}

	s.updateRxCounters(frame, int(pkt.Symbol))
	s.backlog[frame%constants.FrameWnd].push(tag)
}

func (s *Station) updateRxCounters(frame uint64, symbol int) {
	slot := frame % constants.FrameWnd
	cfg := s.cfg

	if cfg.Frame.IsPilot(symbol) {
		s.numPilotPkts[slot]++
		if s.numPilotPkts[slot] == cfg.NumPilotPktsPerFrame() {
			s.numPilotPkts[slot] = 0
			s.st.MasterSet(stats.TsPilotAllRX, frame)
		}
	} else if cfg.Frame.IsCalDL(symbol) || cfg.Frame.IsCalUL(symbol) {
		s.numReciprocityPkts[slot]++
		if s.numReciprocityPkts[slot] == cfg.NumReciprocityPktsPerFrame() {
			s.numReciprocityPkts[slot] = 0
			s.st.MasterSet(stats.TsRcAllRX, frame)
		}
	}

	if s.numPkts[slot] == 0 {
		// First packet of the frame. In no-MAC mode the downlink bits
		// are static, so this is also the downlink trigger.
		if !cfg.EnableMac {
			s.deferOrScheduleDownlink(frame)
		}
		s.st.MasterSet(stats.TsFirstSymbolRX, frame)
	}

	s.numPkts[slot]++
	if s.numPkts[slot] == cfg.NumPktsPerFrame() {
		s.st.MasterSet(stats.TsRxDone, frame)
		s.numPkts[slot] = 0
	}
}

// dispatchFftBacklog drains the schedule frame's backlog in FftBlockSize
// batches onto its parity queue.
func (s *Station) dispatchFftBacklog() {
	cur := s.CurScheFrame()
	backlog := &s.backlog[cur%constants.FrameWnd]
	qid := cur & 1

	for backlog.size() >= s.cfg.FftBlockSize {
		ev := event.Event{Kind: event.KindFft, NumTags: uint32(s.cfg.FftBlockSize)}
		for j := 0; j < s.cfg.FftBlockSize; j++ {
			ev.Tags[j] = backlog.pop()

			if s.fftCreatedCount == 0 {
				s.st.MasterSet(stats.TsProcessingStarted, cur)
			}
			s.fftCreatedCount++
			if s.fftCreatedCount == s.cfg.NumPktsPerFrame() {
				s.fftCreatedCount = 0
				if s.cfg.BigstationMode {
					s.checkIncrementScheduleFrame(cur, uplinkComplete)
				}
			}
		}
		s.stageQ[qid][event.KindFft].EnqueueSpin(s.stageTok[qid][event.KindFft], &ev)
	}
}

// ============================================================================
// FFT COMPLETIONS
// ============================================================================

func (s *Station) handleFftDone(tag uint64) {
	frame := event.TagFrame(tag)
	symbol := event.TagSymbol(tag)
	cfg := s.cfg

	switch cfg.Frame.SymbolType(symbol) {
	case sched.SymPilot:
		if !s.pilotFftCounters.CompleteTask(frame, symbol) {
			return
		}
		recCal := cfg.Frame.IsRecCalEnabled()
		if recCal && s.rcLastFrame != frame {
			// Calibration has not landed yet: the pilot symbol is not
			// completed and ZF is not scheduled for this frame. Nothing
			// revisits it when calibration completes later.
			return
		}
		if s.pilotFftCounters.CompleteSymbol(frame) {
			s.st.MasterSet(stats.TsFFTPilotsDone, frame)
			s.pilotFftCounters.Reset(frame)
			if cfg.EnableMac {
				s.sendSnrReport(frame, symbol)
			}
			s.scheduleSubcarriers(event.KindZf, frame, 0)
		}

	case sched.SymUL:
		ulIdx := cfg.Frame.GetULSymbolIdx(symbol)
		if !s.ulFftCounters.CompleteTask(frame, symbol) {
			return
		}
		s.fftCurFrameForSymbol[ulIdx] = frame
		if s.zfLastFrame == frame {
			s.scheduleSubcarriers(event.KindDemul, frame, symbol)
		}
		if s.ulFftCounters.CompleteSymbol(frame) {
			s.ulFftCounters.Reset(frame)
		}

	case sched.SymCalDL, sched.SymCalUL:
		if s.rcCounters.CompleteTask(frame) {
			s.rcCounters.Reset(frame)
			s.rcLastFrame = frame
			s.st.MasterSet(stats.TsRcDone, frame)
		}
	}
}

// ============================================================================
// UPLINK COMPLETIONS
// ============================================================================

func (s *Station) handleZfDone(tag uint64) {
	frame := event.TagFrame(tag)
	if !s.zfCounters.CompleteTask(frame) {
		return
	}
	s.st.MasterSet(stats.TsZfDone, frame)
	s.zfLastFrame = frame
	s.zfCounters.Reset(frame)
	cfg := s.cfg

	// Flush uplink symbols whose FFT finished before the equalizer.
	for i := 0; i < cfg.Frame.NumULSyms(); i++ {
		if s.fftCurFrameForSymbol[i] == frame {
			s.scheduleSubcarriers(event.KindDemul, frame, cfg.Frame.GetULSymbol(i))
		}
	}
	// Flush downlink symbols whose encoding beat the precoder.
	for i := 0; i < cfg.Frame.NumDLSyms(); i++ {
		last := s.encodeCurFrameForSymbol[i]
		if last != noFrame && last >= frame {
			s.scheduleSubcarriers(event.KindPrecode, frame, cfg.Frame.GetDLSymbol(i))
		}
	}
}

func (s *Station) handleDemulDone(tag uint64) {
	frame := event.TagFrame(tag)
	symbol := event.TagSymbol(tag)

	if !s.demulCounters.CompleteTask(frame, symbol) {
		return
	}
	s.scheduleCodeblocks(event.KindDecode, frame, symbol)
	if s.demulCounters.CompleteSymbol(frame) {
		s.demulCounters.Reset(frame)
		s.maxEqualedFrame = frame
		if !s.cfg.BigstationMode {
			s.checkIncrementScheduleFrame(frame, uplinkComplete)
		}
		s.st.MasterSet(stats.TsDemulDone, frame)
	}
}

func (s *Station) handleDecodeDone(tag uint64) bool {
	frame := event.TagFrame(tag)
	symbol := event.TagSymbol(tag)

	if !s.decodeCounters.CompleteTask(frame, symbol) {
		return false
	}
	if s.cfg.EnableMac {
		s.scheduleUsers(frame, symbol)
	}
	if s.decodeCounters.CompleteSymbol(frame) {
		s.st.MasterSet(stats.TsDecodeDone, frame)
		if !s.cfg.EnableMac {
			return s.checkFrameComplete(frame)
		}
	}
	return false
}

func (s *Station) handleToMacDone(tag uint64) bool {
	frame := event.TagFrame(tag)
	symbol := event.TagSymbol(tag)

	if !s.tomacCounters.CompleteTask(frame, symbol) {
		return false
	}
	if s.tomacCounters.CompleteSymbol(frame) {
		return s.checkFrameComplete(frame)
	}
	return false
}

// ============================================================================
// DOWNLINK COMPLETIONS
// ============================================================================

func (s *Station) handleFromMac(tag uint64) {
	frame := event.TagFrame(tag)
	if !s.macToPhyCounters.CompleteTask(frame) {
		return
	}
	s.deferOrScheduleDownlink(frame)
	s.macToPhyCounters.Reset(frame)
}

func (s *Station) handleEncodeDone(tag uint64) {
	frame := event.TagFrame(tag)
	symbol := event.TagSymbol(tag)

	if !s.encodeCounters.CompleteTask(frame, symbol) {
		return
	}
	s.encodeCurFrameForSymbol[s.cfg.Frame.GetDLSymbolIdx(symbol)] = frame
	if s.zfLastFrame == frame {
		s.scheduleSubcarriers(event.KindPrecode, frame, symbol)
	}
	if s.encodeCounters.CompleteSymbol(frame) {
		s.encodeCounters.Reset(frame)
		s.st.MasterSet(stats.TsEncodeDone, frame)
	}
}

func (s *Station) handlePrecodeDone(tag uint64) {
	frame := event.TagFrame(tag)
	symbol := event.TagSymbol(tag)

	if !s.precodeCounters.CompleteTask(frame, symbol) {
		return
	}
	s.scheduleAntennas(event.KindIfft, frame, symbol)
	if s.precodeCounters.CompleteSymbol(frame) {
		s.precodeCounters.Reset(frame)
		s.st.MasterSet(stats.TsPrecodeDone, frame)
	}
}

func (s *Station) handleIfftDone(tag uint64) bool {
	frame := event.TagFrame(tag)
	symbol := event.TagSymbol(tag)
	cfg := s.cfg
	dlIdx := cfg.Frame.GetDLSymbolIdx(symbol)

	if !s.ifftCounters.CompleteTask(frame, symbol) {
		return false
	}
	s.ifftCurFrameForSymbol[dlIdx] = frame

	// TX must leave in symbol order: release the contiguous run of
	// finished symbols starting at the next expected one.
	if dlIdx == s.ifftNextSymbol {
		for symID := dlIdx; symID < cfg.Frame.NumDLSyms() &&
			symID <= s.ifftCounters.SymbolCount(frame); symID++ {
			if s.ifftCurFrameForSymbol[symID] != frame {
				break
			}
			s.scheduleAntennasTX(frame, cfg.Frame.GetDLSymbol(symID))
			s.ifftNextSymbol++
		}
	}

	if s.ifftCounters.CompleteSymbol(frame) {
		s.ifftNextSymbol = 0
		s.st.MasterSet(stats.TsIFFTDone, frame)
		s.checkIncrementScheduleFrame(frame, downlinkComplete)
		return s.checkFrameComplete(frame)
	}
	return false
}

func (s *Station) handleTxDone(tag uint64) bool {
	frame := event.TagFrame(tag)
	symbol := event.TagSymbol(tag)

	if !s.txCounters.CompleteTask(frame, symbol) {
		return false
	}
	if symbol == s.cfg.Frame.GetDLSymbol(0) {
		s.st.MasterSet(stats.TsTxProcessedFirst, frame)
	}
	if s.txCounters.CompleteSymbol(frame) {
		s.st.MasterSet(stats.TsTxDone, frame)
		return s.checkFrameComplete(frame)
	}
	return false
}

// ============================================================================
// FRAME LIFECYCLE
// ============================================================================

// checkIncrementScheduleFrame accumulates direction-complete bits for the
// schedule frontier; when both directions land the frontier advances and
// the missing directions of the next frame are pre-set.
func (s *Station) checkIncrementScheduleFrame(frame uint64, completed uint8) {
	s.scheduleFlags |= completed
	if frame != s.CurScheFrame() {
		debug.DropMessage("station", "schedule flag for frame "+
			utils.U64toa(frame)+" at frontier "+utils.U64toa(s.CurScheFrame()))
	}
	if s.scheduleFlags == processingDone {
		atomic.AddUint64(&s.curScheFrame, 1)
		s.scheduleFlags = s.presetFlags()
	}
}

// checkFrameComplete tests the retirement criteria and, when met, resets
// the frame's terminal counters, advances the processing frontier and
// flushes the deferral queue. Returns true when the final test frame
// retired.
func (s *Station) checkFrameComplete(frame uint64) bool {
	if !s.ifftCounters.IsLastSymbol(frame) || !s.txCounters.IsLastSymbol(frame) {
		return false
	}
	if s.cfg.EnableMac {
		if !s.tomacCounters.IsLastSymbol(frame) {
			return false
		}
	} else if !s.decodeCounters.IsLastSymbol(frame) {
		return false
	}

	s.st.UpdateStats(frame)
	s.decodeCounters.Reset(frame)
	s.tomacCounters.Reset(frame)
	s.ifftCounters.Reset(frame)
	s.txCounters.Reset(frame)
	if s.cfg.EnableMac && s.cfg.Frame.NumDLSyms() > 0 {
		for ue := 0; ue < s.cfg.UeAntNum; ue++ {
			s.buf.SetDlBitsReady(frame, ue, false)
		}
	}
	atomic.AddUint64(&s.curProcFrame, 1)
	s.drainDeferral()

	return frame == s.cfg.FramesToTest-1
}

// drainDeferral releases deferred downlink frames that now fit the
// scheduling depth, oldest first, stopping at the first that does not.
func (s *Station) drainDeferral() {
	for i := 0; i < constants.ScheduleQueues && len(s.encodeDeferral) > 0; i++ {
		deferred := s.encodeDeferral[0]
		if deferred >= s.CurProcFrame()+constants.ScheduleQueues {
			break
		}
		if deferred < s.CurProcFrame() {
			debug.DropMessage("station", "FATAL deferred frame "+
				utils.U64toa(deferred)+" behind processing frontier")
			s.cfg.SetRunning(false)
			return
		}
		debug.DropMessage("station", "scheduling deferred frame "+utils.U64toa(deferred))
		s.scheduleDownlinkProcessing(deferred)
		s.encodeDeferral = s.encodeDeferral[1:]
	}
}
