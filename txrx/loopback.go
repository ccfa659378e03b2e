// ============================================================================
// LOOPBACK TRANSPORT
// ============================================================================
//
// In-memory I/O used by the test suites and single-host bring-up. The RX
// side synthesizes one frame after another from a caller-supplied sample
// generator; the TX side drains the PacketTx stage queue, records the
// transmit order, and reports completions back through the intake queue
// exactly like a radio front-end would.
//
// Pacing: a real RRU paces frames in air time. The loopback instead asks
// the station for its schedule frontier and keeps the synthetic radio a
// safe distance inside the frame window.

package txrx

import (
	"sync"
	"sync/atomic"
	"time"

	"main/buffers"
	"main/config"
	"main/constants"
	"main/control"
	"main/equeue"
	"main/event"
	"main/sched"
)

// Generator fills one antenna's samples for one (frame, symbol). Tests use
// deterministic generators so decode output is predictable.
type Generator func(frame uint64, symbol, ant int, data []int16)

// Loopback implements Transport over in-process queues.
type Loopback struct {
	cfg       *config.Config
	intake    *equeue.Queue
	intakeTok *equeue.ProducerToken
	txQ       *equeue.Queue

	gen   Generator
	pacer func() uint64 // schedule frontier; nil = unpaced
	buf   *buffers.Buffers

	pkts []Packet

	holdTx uint32 // 1 = park TX events in their queue (test hook)

	mu      sync.Mutex
	txTags  []uint64
	txBytes int
}

// NewLoopback wires a loopback transport to the master's queues. gen may
// be nil; tests then drive RX by hand with InjectRx.
func NewLoopback(cfg *config.Config, intake, txQ *equeue.Queue, gen Generator) *Loopback {
	lb := &Loopback{
		cfg:       cfg,
		intake:    intake,
		intakeTok: intake.Producer(),
		txQ:       txQ,
		gen:       gen,
	}
	total := constants.FrameWnd * cfg.Frame.NumTotalSyms() * cfg.BsAntNum
	lb.pkts = make([]Packet, total)
	for i := range lb.pkts {
		lb.pkts[i].Data = make([]int16, cfg.SampsPerSymbol*2)
	}
	return lb
}

// SetPacer installs the schedule-frontier callback. The RX thread keeps
// frame injection within the window relative to it.
func (lb *Loopback) SetPacer(pacer func() uint64) { lb.pacer = pacer }

// SetHoldTx parks PacketTx events in their stage queue. Scenario hook for
// stalling frame retirement.
func (lb *Loopback) SetHoldTx(hold bool) {
	if hold {
		atomic.StoreUint32(&lb.holdTx, 1)
	} else {
		atomic.StoreUint32(&lb.holdTx, 0)
	}
}

// Start launches the RX generator (when configured) and the TX drain.
func (lb *Loopback) Start(buf *buffers.Buffers) bool {
	lb.buf = buf
	control.ShutdownWG.Add(1)
	go lb.txLoop()
	if lb.gen != nil {
		control.ShutdownWG.Add(1)
		go lb.rxLoop()
	}
	return true
}

// Stop is a no-op: both loops watch the config running flag.
func (lb *Loopback) Stop() {}

// Packet resolves an rx tag. The loopback presents a single producer, so
// tid is ignored.
func (lb *Loopback) Packet(_ int, offset uint64) *Packet {
	return &lb.pkts[offset]
}

// slotOffset computes a packet's ring position.
func (lb *Loopback) slotOffset(frame uint64, symbol, ant int) uint64 {
	slot := int(frame % constants.FrameWnd)
	return uint64((slot*lb.cfg.Frame.NumTotalSyms()+symbol)*lb.cfg.BsAntNum + ant)
}

// InjectRx synthesizes one RX packet and presents it to the master.
// The scenario suites drive the pipeline symbol by symbol with this.
func (lb *Loopback) InjectRx(frame uint64, symbol, ant int, fill Generator) {
	off := lb.slotOffset(frame, symbol, ant)
	pkt := &lb.pkts[off]
	pkt.Frame = uint32(frame)
	pkt.Symbol = uint16(symbol)
	pkt.Ant = uint16(ant)
	if fill != nil {
		fill(frame, symbol, ant, pkt.Data)
	}
	ev := event.New(event.KindRxPacket, event.RxTag(0, off))
	lb.intake.EnqueueSpin(lb.intakeTok, &ev)
}

// InjectEvent pushes an arbitrary event into the intake queue. No test in
// this module calls it; the future-frame suite injects through InjectRx.
func (lb *Loopback) InjectEvent(ev event.Event) {
	lb.intake.EnqueueSpin(lb.intakeTok, &ev)
}

// TxTags snapshots the transmit completions observed so far, in order.
func (lb *Loopback) TxTags() []uint64 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	out := make([]uint64, len(lb.txTags))
	copy(out, lb.txTags)
	return out
}

// ============================================================================
// RX SIDE
// ============================================================================

func (lb *Loopback) rxLoop() {
	defer control.ShutdownWG.Done()
	frame := lb.cfg.Frame

	for f := uint64(0); f < lb.cfg.FramesToTest; f++ {
		// Keep the synthetic radio inside the frame window.
		for lb.pacer != nil && f >= lb.pacer()+constants.FrameWnd-1 {
			if !lb.cfg.Running() {
				return
			}
			time.Sleep(10 * time.Microsecond)
		}
		for symbol := 0; symbol < frame.NumTotalSyms(); symbol++ {
			switch frame.SymbolType(symbol) {
			case sched.SymPilot, sched.SymUL, sched.SymCalDL, sched.SymCalUL:
			default:
				continue // guards and DL positions carry no RX
			}
			for ant := 0; ant < lb.cfg.BsAntNum; ant++ {
				if !lb.cfg.Running() {
					return
				}
				lb.InjectRx(f, symbol, ant, lb.gen)
			}
		}
	}
}

// ============================================================================
// TX SIDE
// ============================================================================

func (lb *Loopback) txLoop() {
	defer control.ShutdownWG.Done()
	var ev event.Event
	for lb.cfg.Running() {
		if atomic.LoadUint32(&lb.holdTx) == 1 {
			time.Sleep(50 * time.Microsecond)
			continue
		}
		if !lb.txQ.TryDequeue(&ev) {
			time.Sleep(5 * time.Microsecond)
			continue
		}
		for i := 0; i < int(ev.NumTags); i++ {
			tag := ev.Tags[i]
			frame := event.TagFrame(tag)
			dlIdx := lb.cfg.Frame.GetDLSymbolIdx(event.TagSymbol(tag))
			if lb.buf != nil && dlIdx >= 0 {
				row := lb.buf.DlSocketRow(frame, dlIdx, event.TagAnt(tag))
				lb.mu.Lock()
				lb.txBytes += len(row) * 2
				lb.txTags = append(lb.txTags, tag)
				lb.mu.Unlock()
			} else {
				lb.mu.Lock()
				lb.txTags = append(lb.txTags, tag)
				lb.mu.Unlock()
			}
			done := event.New(event.KindPacketTx, tag)
			lb.intake.EnqueueSpin(lb.intakeTok, &done)
		}
	}
}
