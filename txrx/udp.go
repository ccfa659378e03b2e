// ============================================================================
// UDP TRANSPORT
// ============================================================================
//
// Front-end I/O over UDP for a remote RRU. Each socket thread owns one
// socket bound to BsRruPort+tid, a private receive ring, and a core at
// CoreOffset+1+tid. Reads use a bounded deadline so the running flag is
// observed within one timeout even on a silent radio; this is the only
// kernel-level suspension point of the steady-state system.
//
// The TX drain sends downlink sample rows back to the packet's source
// address and reports each send as a PacketTx event, mirroring the
// loopback transport.

package txrx

import (
	"net"
	"sync/atomic"
	"time"

	"main/buffers"
	"main/config"
	"main/constants"
	"main/control"
	"main/debug"
	"main/equeue"
	"main/event"
	"main/pin"
	"main/utils"
)

const readTimeout = 2 * time.Millisecond

// UDP implements Transport over per-thread datagram sockets.
type UDP struct {
	cfg       *config.Config
	intake    *equeue.Queue
	txQ       *equeue.Queue
	buf       *buffers.Buffers
	conns     []*net.UDPConn
	rings     [][]Packet
	ringHeads []uint64
	peer      []atomic.Pointer[net.UDPAddr]
	toks      []*equeue.ProducerToken
}

// NewUDP wires a UDP transport to the master's queues.
func NewUDP(cfg *config.Config, intake, txQ *equeue.Queue) *UDP {
	n := cfg.SocketThreadNum
	u := &UDP{
		cfg:       cfg,
		intake:    intake,
		txQ:       txQ,
		conns:     make([]*net.UDPConn, n),
		rings:     make([][]Packet, n),
		ringHeads: make([]uint64, n),
		peer:      make([]atomic.Pointer[net.UDPAddr], n),
		toks:      make([]*equeue.ProducerToken, n),
	}
	slots := constants.FrameWnd * cfg.Frame.NumTotalSyms() * cfg.BsAntNum
	for i := 0; i < n; i++ {
		u.rings[i] = make([]Packet, slots)
		for j := range u.rings[i] {
			u.rings[i][j].Data = make([]int16, cfg.SampsPerSymbol*2)
		}
		u.toks[i] = intake.Producer()
	}
	return u
}

// Start binds every socket and launches the receive and transmit threads.
func (u *UDP) Start(buf *buffers.Buffers) bool {
	u.buf = buf
	for tid := 0; tid < u.cfg.SocketThreadNum; tid++ {
		addr := net.UDPAddr{Port: u.cfg.BsRruPort + tid}
		if u.cfg.BsServerAddr != "" {
			addr.IP = net.ParseIP(u.cfg.BsServerAddr)
		}
		conn, err := net.ListenUDP("udp", &addr)
		if err != nil {
			debug.DropError("txrx: bind port "+utils.Itoa(addr.Port), err)
			return false
		}
		_ = conn.SetReadBuffer(4 << 20)
		_ = conn.SetWriteBuffer(4 << 20)
		u.conns[tid] = conn
	}
	for tid := 0; tid < u.cfg.SocketThreadNum; tid++ {
		control.ShutdownWG.Add(1)
		go u.rxThread(tid)
	}
	control.ShutdownWG.Add(1)
	go u.txThread()
	return true
}

// Stop closes the sockets; blocked reads fail out immediately.
func (u *UDP) Stop() {
	for _, c := range u.conns {
		if c != nil {
			_ = c.Close()
		}
	}
}

// Packet resolves an rx tag to the owning thread's ring slot.
func (u *UDP) Packet(tid int, offset uint64) *Packet {
	return &u.rings[tid][offset]
}

func (u *UDP) rxThread(tid int) {
	defer control.ShutdownWG.Done()
	pin.ToCore(u.cfg.CoreOffset + 1 + tid)

	conn := u.conns[tid]
	ring := u.rings[tid]
	wire := make([]byte, HeaderBytes+u.cfg.SampsPerSymbol*4)

	for u.cfg.Running() {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, from, err := conn.ReadFromUDP(wire)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if !u.cfg.Running() {
				return
			}
			debug.DropError("txrx: rx thread "+utils.Itoa(tid), err)
			return
		}
		if n < HeaderBytes {
			continue // runt datagram
		}
		u.peer[tid].Store(from)

		off := u.ringHeads[tid] % uint64(len(ring))
		u.ringHeads[tid]++
		pkt := &ring[off]
		pkt.ParseHeader(wire)
		samples := (n - HeaderBytes) / 4
		for i := 0; i < samples*2 && i < len(pkt.Data); i++ {
			pkt.Data[i] = int16(uint16(wire[HeaderBytes+2*i]) |
				uint16(wire[HeaderBytes+2*i+1])<<8)
		}

		ev := event.New(event.KindRxPacket, event.RxTag(tid, off))
		u.intake.EnqueueSpin(u.toks[tid], &ev)
	}
}

func (u *UDP) txThread() {
	defer control.ShutdownWG.Done()
	pin.ToCore(u.cfg.CoreOffset + 1 + u.cfg.SocketThreadNum)

	wire := make([]byte, HeaderBytes+u.cfg.SampsPerSymbol*4)
	var ev event.Event
	for u.cfg.Running() {
		if !u.txQ.TryDequeue(&ev) {
			time.Sleep(5 * time.Microsecond)
			continue
		}
		for i := 0; i < int(ev.NumTags); i++ {
			tag := ev.Tags[i]
			frame := event.TagFrame(tag)
			symbol := event.TagSymbol(tag)
			ant := event.TagAnt(tag)
			dlIdx := u.cfg.Frame.GetDLSymbolIdx(symbol)
			if dlIdx < 0 {
				continue
			}
			pkt := Packet{Frame: uint32(frame), Symbol: uint16(symbol), Ant: uint16(ant)}
			pkt.PutHeader(wire)
			row := u.buf.DlSocketRow(frame, dlIdx, ant)
			for j, s := range row {
				wire[HeaderBytes+2*j] = byte(uint16(s))
				wire[HeaderBytes+2*j+1] = byte(uint16(s) >> 8)
			}
			// Reply to whichever RRU endpoint fed antenna traffic last.
			dst := u.peer[ant%u.cfg.SocketThreadNum].Load()
			if dst != nil {
				_, _ = u.conns[0].WriteToUDP(wire[:HeaderBytes+len(row)*2], dst)
			}
			done := event.New(event.KindPacketTx, tag)
			u.intake.EnqueueSpin(u.toks[0], &done)
		}
	}
}
