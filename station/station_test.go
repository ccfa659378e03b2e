// ============================================================================
// SCHEDULER STATE MACHINE VALIDATION SUITE
// ============================================================================
//
// White-box suites for the master's pipeline state machine. The scripted
// tests drive the handlers synchronously — events in, dispatches out —
// so stage ordering, rendezvous and deferral are checked without timing
// dependence. The end-to-end suites in e2e_test.go run the real threads.

package station

import (
	"testing"

	"main/config"
	"main/constants"
	"main/control"
	"main/equeue"
	"main/event"
	"main/stats"
	"main/txrx"
)

// minimalConfig is the spec'd scenario configuration: 4 BS antennas,
// 2 UEs, 8 subcarriers, one pilot, two UL and two DL symbols.
func minimalConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		BsAntNum: 4, UeAntNum: 2, OfdmDataNum: 8,
		FrameStr:              "PUUDD",
		LdpcNumBlocksInSymbol: 1, NumBytesPerCb: 2, ModOrderBits: 2,
		FftBlockSize: 2, ZfBlockSize: 8, ZfBatchSize: 1,
		DemulBlockSize: 4, EncodeBlockSize: 2,
		SocketThreadNum: 1, WorkerThreadNum: 2,
		FramesToTest: 3,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

// newScripted builds a station whose threads are never started; the test
// body calls the master's handlers directly.
func newScripted(t *testing.T, cfg *config.Config) (*Station, *txrx.Loopback) {
	t.Helper()
	control.Reset()
	var lb *txrx.Loopback
	s := New(cfg, func(intake, tx *equeue.Queue) txrx.Transport {
		lb = txrx.NewLoopback(cfg, intake, tx, nil)
		return lb
	})
	cfg.SetRunning(true)
	return s, lb
}

// drainIntake feeds every queued intake event through the state machine.
func drainIntake(s *Station) {
	var ev event.Event
	for s.intakeQ.TryDequeue(&ev) {
		s.handleEvent(&ev)
	}
}

// drainStage empties one stage queue, returning the tag lists in order.
func drainStage(s *Station, qid uint64, kind event.Kind) [][]uint64 {
	var out [][]uint64
	var ev event.Event
	for s.stageQ[qid][kind].TryDequeue(&ev) {
		tags := make([]uint64, ev.NumTags)
		copy(tags, ev.Tags[:ev.NumTags])
		out = append(out, tags)
	}
	return out
}

func countTags(batches [][]uint64) int {
	n := 0
	for _, b := range batches {
		n += len(b)
	}
	return n
}

// injectFrameRx presents every RX packet of one frame (pilot + UL) and
// runs the opportunistic FFT dispatch.
func injectFrameRx(s *Station, lb *txrx.Loopback, frame uint64) {
	cfg := s.cfg
	for _, symbol := range rxSymbols(cfg) {
		for ant := 0; ant < cfg.BsAntNum; ant++ {
			lb.InjectRx(frame, symbol, ant, nil)
		}
	}
	drainIntake(s)
	s.dispatchFftBacklog()
}

func rxSymbols(cfg *config.Config) []int {
	var out []int
	for i := 0; i < cfg.Frame.NumPilotSyms(); i++ {
		out = append(out, cfg.Frame.GetPilotSymbol(i))
	}
	for i := 0; i < cfg.Frame.NumULSyms(); i++ {
		out = append(out, cfg.Frame.GetULSymbol(i))
	}
	return out
}

// completeFftSymbol feeds all antenna FFT completions of one symbol.
func completeFftSymbol(s *Station, frame uint64, symbol int) {
	for ant := 0; ant < s.cfg.BsAntNum; ant++ {
		s.handleFftDone(event.Tag(frame, symbol, ant))
	}
}

// ============================================================================
// P7: RX -> FFT NO-LOSS
// ============================================================================

func TestEveryRxPacketBecomesOneFftTag(t *testing.T) {
	cfg := minimalConfig(t)
	s, lb := newScripted(t, cfg)

	injectFrameRx(s, lb, 0)

	batches := drainStage(s, 0, event.KindFft)
	if got, want := countTags(batches), cfg.NumPktsPerFrame(); got != want {
		t.Fatalf("fft tags = %d, want %d", got, want)
	}
	for _, b := range batches {
		if len(b) != cfg.FftBlockSize {
			t.Fatalf("batch size = %d, want %d", len(b), cfg.FftBlockSize)
		}
	}
	if s.backlog[0].size() != 0 {
		t.Fatal("backlog must be fully drained")
	}
}

// ============================================================================
// SCENARIO 2: ZF COMPLETES AFTER UPLINK FFT
// ============================================================================

func TestZfAfterUplinkFftFlushesDemul(t *testing.T) {
	cfg := minimalConfig(t)
	s, _ := newScripted(t, cfg)

	// Both uplink symbols finish FFT before any ZF result exists.
	completeFftSymbol(s, 0, cfg.Frame.GetULSymbol(0))
	completeFftSymbol(s, 0, cfg.Frame.GetULSymbol(1))

	if got := drainStage(s, 0, event.KindDemul); got != nil {
		t.Fatalf("demul dispatched before ZF: %v", got)
	}
	for i := 0; i < cfg.Frame.NumULSyms(); i++ {
		if s.fftCurFrameForSymbol[i] != 0 {
			t.Fatalf("rendezvous for UL symbol %d not recorded", i)
		}
	}

	// Pilot FFT completes, ZF dispatches, ZF completes.
	completeFftSymbol(s, 0, cfg.Frame.GetPilotSymbol(0))
	zf := drainStage(s, 0, event.KindZf)
	if countTags(zf) != cfg.ZfEventsPerSymbol() {
		t.Fatalf("zf events = %d, want %d", countTags(zf), cfg.ZfEventsPerSymbol())
	}
	for _, batch := range zf {
		for _, tag := range batch {
			s.handleZfDone(tag)
		}
	}

	// ZF-done must flush demul for both rendezvous'd symbols at once.
	demul := drainStage(s, 0, event.KindDemul)
	want := cfg.DemulEventsPerSymbol() * cfg.Frame.NumULSyms()
	if countTags(demul) != want {
		t.Fatalf("flushed demul events = %d, want %d", countTags(demul), want)
	}
}

// ============================================================================
// SCENARIO 3: UPLINK FFT COMPLETES AFTER ZF
// ============================================================================

func TestUplinkFftAfterZfTriggersDemulDirectly(t *testing.T) {
	cfg := minimalConfig(t)
	s, _ := newScripted(t, cfg)

	completeFftSymbol(s, 0, cfg.Frame.GetPilotSymbol(0))
	for _, batch := range drainStage(s, 0, event.KindZf) {
		for _, tag := range batch {
			s.handleZfDone(tag)
		}
	}
	if s.zfLastFrame != 0 {
		t.Fatal("zf_last_frame not recorded")
	}

	completeFftSymbol(s, 0, cfg.Frame.GetULSymbol(0))
	demul := drainStage(s, 0, event.KindDemul)
	if countTags(demul) != cfg.DemulEventsPerSymbol() {
		t.Fatalf("demul events = %d, want %d", countTags(demul), cfg.DemulEventsPerSymbol())
	}
}

// ============================================================================
// ENCODE/ZF RENDEZVOUS (DOWNLINK DEFERRED EDGE)
// ============================================================================

func TestEncodeBeforeZfRendezvousesOnPrecode(t *testing.T) {
	cfg := minimalConfig(t)
	s, _ := newScripted(t, cfg)

	// Downlink scheduling fires off the first RX packet (no-MAC mode).
	dl0 := cfg.Frame.GetDLSymbol(0)
	s.deferOrScheduleDownlink(0)
	enc := drainStage(s, 0, event.KindEncode)
	if countTags(enc) != cfg.CodeblocksPerSymbol()*cfg.Frame.NumDLSyms() {
		t.Fatalf("encode events = %d", countTags(enc))
	}

	// Encoding of DL symbol 0 completes before ZF exists.
	for cb := 0; cb < cfg.CodeblocksPerSymbol(); cb++ {
		s.handleEncodeDone(event.Tag(0, dl0, cb))
	}
	if got := drainStage(s, 0, event.KindPrecode); got != nil {
		t.Fatal("precode must wait for ZF")
	}
	if s.encodeCurFrameForSymbol[0] != 0 {
		t.Fatal("encode rendezvous not recorded")
	}

	// ZF lands: the recorded symbol precodes.
	completeFftSymbol(s, 0, cfg.Frame.GetPilotSymbol(0))
	for _, batch := range drainStage(s, 0, event.KindZf) {
		for _, tag := range batch {
			s.handleZfDone(tag)
		}
	}
	pre := drainStage(s, 0, event.KindPrecode)
	if countTags(pre) != cfg.DemulEventsPerSymbol() {
		t.Fatalf("precode events = %d, want %d", countTags(pre), cfg.DemulEventsPerSymbol())
	}
}

// ============================================================================
// TX ORDERING (P4 MECHANISM)
// ============================================================================

func TestIfftOutOfOrderBuffersTx(t *testing.T) {
	cfg := minimalConfig(t)
	s, _ := newScripted(t, cfg)

	dl0, dl1 := cfg.Frame.GetDLSymbol(0), cfg.Frame.GetDLSymbol(1)

	// Second DL symbol's IFFT finishes first: no TX may leave.
	for ant := 0; ant < cfg.BsAntNum; ant++ {
		s.handleIfftDone(event.Tag(0, dl1, ant))
	}
	if got := drainStage(s, 0, event.KindPacketTx); got != nil {
		t.Fatal("TX released out of order")
	}

	// First symbol lands: both release, in symbol order.
	for ant := 0; ant < cfg.BsAntNum; ant++ {
		s.handleIfftDone(event.Tag(0, dl0, ant))
	}
	tx := drainStage(s, 0, event.KindPacketTx)
	if countTags(tx) != 2*cfg.BsAntNum {
		t.Fatalf("tx events = %d, want %d", countTags(tx), 2*cfg.BsAntNum)
	}
	for i, batch := range tx {
		wantSym := dl0
		if i >= cfg.BsAntNum {
			wantSym = dl1
		}
		if event.TagSymbol(batch[0]) != wantSym {
			t.Fatalf("tx %d: symbol %d, want %d", i, event.TagSymbol(batch[0]), wantSym)
		}
	}
}

// ============================================================================
// SCENARIO 4 + P6: DEFERRAL
// ============================================================================

// retireFrame walks one frame's terminal counters to completion and runs
// the retirement check.
func retireFrame(t *testing.T, s *Station, frame uint64) {
	t.Helper()
	cfg := s.cfg
	for i := 0; i < cfg.Frame.NumULSyms(); i++ {
		symbol := cfg.Frame.GetULSymbol(i)
		for cb := 0; cb < cfg.CodeblocksPerSymbol(); cb++ {
			s.decodeCounters.CompleteTask(frame, symbol)
		}
		s.decodeCounters.CompleteSymbol(frame)
	}
	for i := 0; i < cfg.Frame.NumDLSyms(); i++ {
		symbol := cfg.Frame.GetDLSymbol(i)
		for ant := 0; ant < cfg.BsAntNum; ant++ {
			s.ifftCounters.CompleteTask(frame, symbol)
			s.txCounters.CompleteTask(frame, symbol)
		}
		s.ifftCounters.CompleteSymbol(frame)
		s.txCounters.CompleteSymbol(frame)
	}
	if s.checkFrameComplete(frame) != (frame == cfg.FramesToTest-1) {
		t.Fatalf("unexpected finish signal at frame %d", frame)
	}
}

func TestDeferralParksAndFlushesInOrder(t *testing.T) {
	cfg := minimalConfig(t)
	cfg.FramesToTest = 5
	s, _ := newScripted(t, cfg)

	// Frame 0 and 1 fit the scheduling depth; 2 and 3 must park.
	s.deferOrScheduleDownlink(0)
	s.deferOrScheduleDownlink(1)
	drainStage(s, 0, event.KindEncode)
	drainStage(s, 1, event.KindEncode)

	s.deferOrScheduleDownlink(2)
	s.deferOrScheduleDownlink(3)
	if len(s.encodeDeferral) != 2 || s.encodeDeferral[0] != 2 || s.encodeDeferral[1] != 3 {
		t.Fatalf("deferral queue = %v, want [2 3]", s.encodeDeferral)
	}
	if got := drainStage(s, 0, event.KindEncode); got != nil {
		t.Fatal("deferred frame must not dispatch")
	}

	// Frame 0 retires: frame 2 (now < cur_proc+2) flushes; FIFO order.
	retireFrame(t, s, 0)
	if s.CurProcFrame() != 1 {
		t.Fatalf("cur_proc = %d, want 1", s.CurProcFrame())
	}
	if len(s.encodeDeferral) != 1 || s.encodeDeferral[0] != 3 {
		t.Fatalf("deferral queue after retire = %v, want [3]", s.encodeDeferral)
	}
	enc := drainStage(s, 0, event.KindEncode)
	if countTags(enc) != cfg.CodeblocksPerSymbol()*cfg.Frame.NumDLSyms() {
		t.Fatal("flushed frame 2 did not dispatch")
	}
	for _, batch := range enc {
		if event.TagFrame(batch[0]) != 2 {
			t.Fatalf("flushed frame = %d, want 2", event.TagFrame(batch[0]))
		}
	}

	// Frame 1 retires: frame 3 follows.
	retireFrame(t, s, 1)
	if len(s.encodeDeferral) != 0 {
		t.Fatalf("deferral queue = %v, want empty", s.encodeDeferral)
	}
	enc = drainStage(s, 1, event.KindEncode)
	if countTags(enc) == 0 || event.TagFrame(enc[0][0]) != 3 {
		t.Fatal("frame 3 did not flush after frame 1 retired")
	}
}

func TestFirstRxPacketDefersWhenTooFarAhead(t *testing.T) {
	cfg := minimalConfig(t)
	cfg.FramesToTest = 5
	s, lb := newScripted(t, cfg)

	// First packet of frame 2 while cur_proc = 0 and depth = 2.
	lb.InjectRx(2, cfg.Frame.GetPilotSymbol(0), 0, nil)
	drainIntake(s)
	if len(s.encodeDeferral) != 1 || s.encodeDeferral[0] != 2 {
		t.Fatalf("deferral = %v, want [2]", s.encodeDeferral)
	}
}

// ============================================================================
// SCENARIO 5: FUTURE-FRAME FATAL
// ============================================================================

func TestFutureFramePacketIsFatal(t *testing.T) {
	cfg := minimalConfig(t)
	s, lb := newScripted(t, cfg)

	lb.InjectRx(s.CurScheFrame()+constants.FrameWnd, 0, 0, nil)
	drainIntake(s)

	if cfg.Running() {
		t.Fatal("future-frame packet must clear the running flag")
	}
	if s.backlog[0].size() != 0 {
		t.Fatal("fatal packet must not enter the FFT backlog")
	}
}

// ============================================================================
// SCHEDULE-FRAME ADVANCEMENT
// ============================================================================

func TestScheduleFrameAdvancesOnBothDirections(t *testing.T) {
	cfg := minimalConfig(t)
	s, _ := newScripted(t, cfg)

	s.checkIncrementScheduleFrame(0, uplinkComplete)
	if s.CurScheFrame() != 0 {
		t.Fatal("one direction must not advance the frontier")
	}
	s.checkIncrementScheduleFrame(0, downlinkComplete)
	if s.CurScheFrame() != 1 {
		t.Fatalf("frontier = %d, want 1", s.CurScheFrame())
	}
	if s.scheduleFlags != 0 {
		t.Fatal("flags must reset after advance (both directions present)")
	}
}

func TestScheduleFlagsPresetForMissingDirections(t *testing.T) {
	cfg := minimalConfig(t)
	cfg.FrameStr = "PUU" // uplink-only
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	s, _ := newScripted(t, cfg)

	if s.scheduleFlags != downlinkComplete {
		t.Fatalf("flags = %b, want downlink pre-set", s.scheduleFlags)
	}
	s.checkIncrementScheduleFrame(0, uplinkComplete)
	if s.CurScheFrame() != 1 {
		t.Fatal("uplink-only frame must advance on uplink completion alone")
	}
	if s.scheduleFlags != downlinkComplete {
		t.Fatal("preset must re-arm after each advance")
	}
}

// ============================================================================
// P1: WINDOW BOUND
// ============================================================================

func TestWindowBoundHolds(t *testing.T) {
	cfg := minimalConfig(t)
	cfg.FramesToTest = 5
	s, _ := newScripted(t, cfg)

	check := func() {
		if s.CurScheFrame()-s.CurProcFrame() > constants.ScheduleQueues {
			t.Fatalf("window bound violated: sche=%d proc=%d",
				s.CurScheFrame(), s.CurProcFrame())
		}
	}
	// Advance the schedule frontier as far as the state machine allows
	// while retiring nothing, checking the bound at every step.
	for i := 0; i < 2; i++ {
		s.checkIncrementScheduleFrame(s.CurScheFrame(), uplinkComplete)
		s.checkIncrementScheduleFrame(s.CurScheFrame(), downlinkComplete)
		check()
	}
	retireFrame(t, s, 0)
	check()
	s.checkIncrementScheduleFrame(s.CurScheFrame(), uplinkComplete)
	s.checkIncrementScheduleFrame(s.CurScheFrame(), downlinkComplete)
	check()
}

// ============================================================================
// RX ACCOUNTING
// ============================================================================

func TestRxCountersStampAndWrap(t *testing.T) {
	cfg := minimalConfig(t)
	s, lb := newScripted(t, cfg)

	injectFrameRx(s, lb, 0)
	if s.numPkts[0] != 0 {
		t.Fatalf("num_pkts must wrap to 0 at frame budget, got %d", s.numPkts[0])
	}
	if s.numPilotPkts[0] != 0 {
		t.Fatal("pilot counter must wrap at pilot budget")
	}
	if s.st.Get(stats.TsFirstSymbolRX, 0) == 0 {
		t.Fatal("first-symbol stamp missing")
	}
}
