// ============================================================================
// PACKET I/O DISPATCH
// ============================================================================
//
// The transport boundary of the scheduler: implementations produce
// RxPacket events into the master's intake queue and consume PacketTx
// events from the dedicated TX stage queue, reporting each transmitted
// packet back as a PacketTx event so the master's TX counters advance.
//
// Two implementations ship: an in-memory loopback used by the test suites
// and bring-up, and a UDP transport for a real RRU front-end. Both honor
// the back-pressure contract — a full intake queue stalls the producer,
// which stalls the radio.

package txrx

import "main/buffers"

// Transport is the scheduler's view of the I/O layer.
type Transport interface {
	PacketSource

	// Start spins up the socket threads against the station's buffer
	// pools. Returns false when the transport cannot come up (bind
	// failure); the station aborts startup in that case.
	Start(buf *buffers.Buffers) bool

	// Stop asks the socket threads to drain; they observe the config
	// running flag and exit. Safe to call more than once.
	Stop()
}
