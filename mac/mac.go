// ============================================================================
// MAC-LAYER THREAD
// ============================================================================
//
// Optional bridge between the PHY pipeline and the upper stack. Runs on
// its own pinned core past the worker range. Downstream it consumes
// PacketToMac (decoded uplink payloads) and SnrReport events; upstream it
// stages downlink payload bytes into the DL bits pool and announces a
// frame's worth with one PacketFromMac event per UE.
//
// Supply pacing: bits for the first ScheduleQueues frames are staged at
// startup; afterwards each fully-delivered uplink frame releases the bits
// for one more frame. The deferral queue in the master absorbs anything
// staged too far ahead.

package mac

import (
	"time"

	"main/buffers"
	"main/config"
	"main/constants"
	"main/control"
	"main/counters"
	"main/equeue"
	"main/event"
	"main/pin"
	"main/utils"
)

// Thread is the MAC endpoint of the PHY pipeline.
type Thread struct {
	cfg     *config.Config
	buf     *buffers.Buffers
	reqQ    *equeue.Queue // master -> MAC: PacketToMac, SnrReport
	respQ   *equeue.Queue // MAC -> master: PacketFromMac
	respTok *equeue.ProducerToken

	delivered counters.FrameSymbolCounter
	nextStage uint64 // next frame whose bits will be staged

	snr []float32 // last reported SNR per UE
}

// New wires the MAC thread to its queues.
func New(cfg *config.Config, buf *buffers.Buffers, reqQ, respQ *equeue.Queue) *Thread {
	m := &Thread{
		cfg:     cfg,
		buf:     buf,
		reqQ:    reqQ,
		respQ:   respQ,
		respTok: respQ.Producer(),
		snr:     make([]float32, cfg.UeAntNum),
	}
	m.delivered.Init(cfg.Frame.NumULSyms(), cfg.UeAntNum, cfg.Frame.NumTotalSyms())
	return m
}

// Start launches the event loop on its configured core.
func (m *Thread) Start() {
	control.ShutdownWG.Add(1)
	go m.run()
}

// PayloadByte is the deterministic downlink payload pattern. Exposed so
// the suites can verify what arrives on the wire.
func PayloadByte(frame uint64, ue, j int) byte {
	return byte(utils.Mix64(frame<<16 ^ uint64(ue)<<8 ^ uint64(j)))
}

func (m *Thread) run() {
	defer control.ShutdownWG.Done()
	core := m.cfg.CoreOffset + 1 + m.cfg.SocketThreadNum + m.cfg.WorkerThreadNum
	pin.ToCore(core)

	// Prime the pipeline's scheduling depth.
	for m.nextStage < constants.ScheduleQueues && m.nextStage < m.cfg.FramesToTest {
		m.stageFrame(m.nextStage)
		m.nextStage++
	}

	var ev event.Event
	for m.cfg.Running() {
		if !m.reqQ.TryDequeue(&ev) {
			time.Sleep(5 * time.Microsecond)
			continue
		}
		switch ev.Kind {
		case event.KindPacketToMac:
			m.handleDelivery(ev.Tags[0])
		case event.KindSnrReport:
			ue := event.TagUe(ev.Tags[0])
			if ue < len(m.snr) {
				m.snr[ue] = event.UnpackSnr(ev.Tags[1])
			}
		}
	}
}

// handleDelivery consumes one UE's decoded symbol, acknowledges it to the
// master, and — once a frame is fully delivered — releases the next
// frame's downlink bits.
func (m *Thread) handleDelivery(tag uint64) {
	frame := event.TagFrame(tag)
	symbol := event.TagSymbol(tag)

	// The master's MAC-TX counters advance on this acknowledgment; frame
	// retirement waits for it in MAC mode.
	ack := event.New(event.KindPacketToMac, tag)
	m.respQ.EnqueueSpin(m.respTok, &ack)

	if m.delivered.CompleteTask(frame, symbol) {
		if m.delivered.CompleteSymbol(frame) {
			m.delivered.Reset(frame)
			if m.nextStage < m.cfg.FramesToTest {
				m.stageFrame(m.nextStage)
				m.nextStage++
			}
		}
	}
}

// stageFrame fills one frame's DL bits for every UE and announces them.
func (m *Thread) stageFrame(frame uint64) {
	if m.cfg.Frame.NumDLSyms() == 0 {
		return
	}
	for ue := 0; ue < m.cfg.UeAntNum; ue++ {
		row := m.buf.DlBitsRow(frame, ue)
		for j := range row {
			row[j] = PayloadByte(frame, ue, j)
		}
		m.buf.SetDlBitsReady(frame, ue, true)

		ev := event.New(event.KindPacketFromMac, event.Tag(frame, 0, ue))
		m.respQ.EnqueueSpin(m.respTok, &ev)
	}
}
