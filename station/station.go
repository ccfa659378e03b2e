// ============================================================================
// BASE STATION CONTROL PLANE
// ============================================================================
//
// The master scheduler of the PHY pipeline and its supporting cast: the
// stage/completion queue fabric, the worker pool, the frame lifecycle
// state and the embedding API (New / Start / Stop / Destroy /
// GetEqualData).
//
// Threading plan (all pinned, fixed at startup):
//   core CoreOffset                                   master
//   core CoreOffset+1 .. +SocketThreadNum             socket threads
//   core CoreOffset+1+SocketThreadNum .. +Workers     worker pool
//   next core                                         MAC (optional)
//
// The master owns every counter and rendezvous table; workers communicate
// only through the queues; buffer cells have one writer and one reader
// per (frame, symbol) by construction of the dispatch order.

package station

import (
	"sync"
	"sync/atomic"

	"main/buffers"
	"main/config"
	"main/constants"
	"main/control"
	"main/counters"
	"main/equeue"
	"main/event"
	"main/mac"
	"main/stats"
	"main/txrx"
)

// noFrame marks a rendezvous slot that has never completed.
const noFrame = ^uint64(0)

// Schedule-completion bits (one per link direction).
const (
	uplinkComplete   = 1 << 0
	downlinkComplete = 1 << 1
	processingDone   = uplinkComplete | downlinkComplete
)

const numKinds = int(event.KindRanUpdate) + 1

// fftBacklog is one frame slot's pending RX tags awaiting FFT dispatch.
type fftBacklog struct {
	tags []uint64
	head int
}

func (b *fftBacklog) push(tag uint64) { b.tags = append(b.tags, tag) }
func (b *fftBacklog) size() int       { return len(b.tags) - b.head }

func (b *fftBacklog) pop() uint64 {
	tag := b.tags[b.head]
	b.head++
	if b.head == len(b.tags) {
		b.tags = b.tags[:0]
		b.head = 0
	}
	return tag
}

// Station is one instance of the control plane.
type Station struct {
	cfg       *config.Config
	buf       *buffers.Buffers
	st        *stats.Stats
	transport txrx.Transport
	macThread *mac.Thread

	// Queue fabric. Stage queues come in parity pairs; the TX queue is a
	// single instance consumed by the I/O layer.
	intakeQ     *equeue.Queue
	macReqQ     *equeue.Queue
	macReqToken *equeue.ProducerToken
	macRespQ    *equeue.Queue
	stageQ   [constants.ScheduleQueues][numKinds]*equeue.Queue
	stageTok [constants.ScheduleQueues][numKinds]*equeue.ProducerToken
	compQ    [constants.ScheduleQueues]*equeue.Queue

	// Stage counters (master-owned, no atomics).
	pilotFftCounters counters.FrameSymbolCounter
	ulFftCounters    counters.FrameSymbolCounter
	demulCounters    counters.FrameSymbolCounter
	decodeCounters   counters.FrameSymbolCounter
	encodeCounters   counters.FrameSymbolCounter
	precodeCounters  counters.FrameSymbolCounter
	ifftCounters     counters.FrameSymbolCounter
	txCounters       counters.FrameSymbolCounter
	tomacCounters    counters.FrameSymbolCounter
	zfCounters       counters.FrameCounter
	rcCounters       counters.FrameCounter
	macToPhyCounters counters.FrameCounter

	// RX accounting.
	numPkts            [constants.FrameWnd]int
	numPilotPkts       [constants.FrameWnd]int
	numReciprocityPkts [constants.FrameWnd]int

	// Rendezvous tables (per logical symbol).
	fftCurFrameForSymbol    []uint64
	encodeCurFrameForSymbol []uint64
	ifftCurFrameForSymbol   []uint64
	zfLastFrame             uint64
	rcLastFrame             uint64
	maxEqualedFrame         uint64
	ifftNextSymbol          int

	// FFT staging.
	backlog         [constants.FrameWnd]fftBacklog
	fftCreatedCount int

	// Frame lifecycle.
	curScheFrame   uint64 // atomic: workers read for qid alignment
	curProcFrame   uint64 // atomic
	scheduleFlags  uint8
	encodeDeferral []uint64

	stopOnce sync.Once
}

// TransportFactory builds the I/O layer against the station's intake and
// TX queues. The queue fabric exists before the transport, so the factory
// breaks the construction cycle between the two.
type TransportFactory func(intake, tx *equeue.Queue) txrx.Transport

// New builds a station and its transport.
func New(cfg *config.Config, mk TransportFactory) *Station {
	s := &Station{
		cfg:             cfg,
		st:              stats.New(cfg),
		zfLastFrame:     noFrame,
		rcLastFrame:     noFrame,
		maxEqualedFrame: noFrame,
	}
	s.buf = buffers.New(cfg)
	s.initQueues()
	s.initCounters()
	s.transport = mk(s.intakeQ, s.TxQueue())

	// Directions the schedule lacks are pre-completed forever.
	s.scheduleFlags = s.presetFlags()

	if cfg.EnableMac {
		s.macThread = mac.New(cfg, s.buf, s.macReqQ, s.macRespQ)
	} else if cfg.Frame.NumDLSyms() > 0 {
		s.prefillStaticBits()
	}
	return s
}

// initQueues sizes the whole queue fabric from the frame schedule.
func (s *Station) initQueues() {
	dataSyms := s.cfg.Frame.NumDataSyms()
	s.intakeQ = equeue.New(constants.MessageQueueBase * dataSyms)
	s.macReqQ = equeue.New(constants.WorkerQueueBase * dataSyms)
	s.macRespQ = equeue.New(constants.WorkerQueueBase * dataSyms)
	for qid := 0; qid < constants.ScheduleQueues; qid++ {
		s.compQ[qid] = equeue.New(constants.WorkerQueueBase * dataSyms)
		for k := 0; k < numKinds; k++ {
			s.stageQ[qid][k] = equeue.New(constants.WorkerQueueBase * dataSyms)
			s.stageTok[qid][k] = s.stageQ[qid][k].Producer()
		}
	}
}

// initCounters sizes every stage counter from the configuration.
func (s *Station) initCounters() {
	cfg := s.cfg
	frame := cfg.Frame
	total := frame.NumTotalSyms()

	s.pilotFftCounters.Init(frame.NumPilotSyms(), cfg.BsAntNum, total)
	s.ulFftCounters.Init(frame.NumULSyms(), cfg.BsAntNum, total)
	s.demulCounters.Init(frame.NumULSyms(), cfg.DemulEventsPerSymbol(), total)
	s.decodeCounters.Init(frame.NumULSyms(), cfg.CodeblocksPerSymbol(), total)
	s.tomacCounters.Init(frame.NumULSyms(), cfg.UeAntNum, total)

	dlData := frame.NumDLSyms() - cfg.ClientDlPilotSymbols
	s.encodeCounters.Init(dlData, cfg.CodeblocksPerSymbol(), total)
	s.precodeCounters.Init(frame.NumDLSyms(), cfg.DemulEventsPerSymbol(), total)
	s.ifftCounters.Init(frame.NumDLSyms(), cfg.BsAntNum, total)
	s.txCounters.Init(frame.NumDLSyms(), cfg.BsAntNum, total)

	s.zfCounters.Init(cfg.ZfEventsPerSymbol())
	s.rcCounters.Init(cfg.BsAntNum)
	s.macToPhyCounters.Init(cfg.UeAntNum)

	s.fftCurFrameForSymbol = initRendezvous(frame.NumULSyms())
	s.encodeCurFrameForSymbol = initRendezvous(frame.NumDLSyms())
	s.ifftCurFrameForSymbol = initRendezvous(frame.NumDLSyms())
}

func initRendezvous(n int) []uint64 {
	t := make([]uint64, n)
	for i := range t {
		t[i] = noFrame
	}
	return t
}

// presetFlags pre-completes the directions the schedule does not carry.
func (s *Station) presetFlags() uint8 {
	var f uint8
	if s.cfg.Frame.NumULSyms() == 0 {
		f |= uplinkComplete
	}
	if s.cfg.Frame.NumDLSyms() == 0 {
		f |= downlinkComplete
	}
	return f
}

// prefillStaticBits stages the fixed downlink payload of no-MAC runs into
// every window slot once.
func (s *Station) prefillStaticBits() {
	for slot := uint64(0); slot < constants.FrameWnd; slot++ {
		for ue := 0; ue < s.cfg.UeAntNum; ue++ {
			row := s.buf.DlBitsRow(slot, ue)
			for j := range row {
				row[j] = mac.PayloadByte(0, ue, j)
			}
			s.buf.SetDlBitsReady(slot, ue, true)
		}
	}
}

// ============================================================================
// QUEUE HANDLES FOR COLLABORATORS
// ============================================================================

// IntakeQueue is where transports produce RxPacket and PacketTx events.
func (s *Station) IntakeQueue() *equeue.Queue { return s.intakeQ }

// TxQueue is where the I/O layer consumes PacketTx dispatches.
func (s *Station) TxQueue() *equeue.Queue {
	return s.stageQ[0][event.KindPacketTx]
}

// Buffers exposes the pools to embedding shims and the test suites.
func (s *Station) Buffers() *buffers.Buffers { return s.buf }

// Stats exposes the timestamp matrix.
func (s *Station) Stats() *stats.Stats { return s.st }

// ============================================================================
// FRAME FRONTIER ACCESSORS
// ============================================================================

// CurScheFrame is the frame currently being scheduled.
//
//go:nosplit
func (s *Station) CurScheFrame() uint64 { return atomic.LoadUint64(&s.curScheFrame) }

// CurProcFrame is the oldest unretired frame.
//
//go:nosplit
func (s *Station) CurProcFrame() uint64 { return atomic.LoadUint64(&s.curProcFrame) }

// ============================================================================
// EMBEDDING API
// ============================================================================

// Stop initiates the cooperative drain: flags flip, socket threads and
// workers observe them, the master joins everyone. Idempotent.
func (s *Station) Stop() {
	s.stopOnce.Do(func() {
		s.cfg.SetRunning(false)
		s.transport.Stop()
		control.ShutdownWG.Wait()
	})
}

// Destroy releases the station. Pools are garbage once unreferenced; the
// explicit call exists for embedding symmetry with New.
func (s *Station) Destroy() {
	s.Stop()
	s.buf = nil
}

// GetEqualData snapshots the first uplink symbol of the most recent
// fully-equalized frame as interleaved float32 I/Q, for constellation
// displays.
func (s *Station) GetEqualData() []float32 {
	if s.maxEqualedFrame == noFrame || s.cfg.Frame.NumULSyms() == 0 {
		return nil
	}
	row := s.buf.EqualRow(s.maxEqualedFrame, 0)
	out := make([]float32, len(row)*2)
	for i, c := range row {
		out[2*i] = real(c)
		out[2*i+1] = imag(c)
	}
	return out
}
