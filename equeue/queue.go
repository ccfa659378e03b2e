// ============================================================================
// LOCK-FREE BOUNDED EVENT QUEUE SYSTEM
// ============================================================================
//
// Multi-producer/multi-consumer event queue used for every edge of the
// pipeline: master→worker stage queues, worker→master completion queues,
// and the I/O→master intake queue.
//
// Core capabilities:
//   - Lock-free MPMC operation on sequence-numbered slots
//   - Power-of-2 sizing with bit masking for O(1) cursor arithmetic
//   - Cache line isolation between enqueue and dequeue cursors
//   - Bulk enqueue/dequeue for batched master drains
//   - Spin-retry enqueue for edges where a drop would corrupt the
//     pipeline state machine (back-pressure propagates to the producer)
//
// Safety model:
//   - Any number of producers and consumers; per-slot sequence numbers
//     arbitrate ownership
//   - TryEnqueue returns false when full; EnqueueSpin never drops
//   - Events are copied by value in and out; no slot pointers escape

package equeue

import (
	"sync/atomic"

	"main/event"
)

// ============================================================================
// CORE DATA STRUCTURES
// ============================================================================

// slot pairs one event with its availability sequence.
//
// Sequence semantics:
//   - seq == pos:        slot free, producer at cursor pos may claim it
//   - seq == pos+1:      slot filled, consumer at cursor pos may take it
//   - consumer release:  seq = pos + ring_size (free for the next lap)
type slot struct {
	seq uint64
	val event.Event
}

// Queue is a bounded MPMC event queue with isolated cursors.
//
// Memory layout:
//   - Cache line 0: padding
//   - Cache line 1: dequeue cursor + padding
//   - Cache line 2: enqueue cursor + padding
//   - Cache line 3: ring metadata (mask, step, buffer header)
type Queue struct {
	_    [64]byte
	head uint64 // dequeue cursor

	_    [56]byte
	tail uint64 // enqueue cursor

	_    [56]byte
	mask uint64
	step uint64
	buf  []slot
}

// ProducerToken identifies one long-lived producer of a queue. Tokens are
// handed out at startup and survive the producer's lifetime; the spinning
// and bulk enqueue paths take one so producer identity stays explicit at
// the call sites even though slot ownership is arbitrated by the sequence
// protocol. TryEnqueue takes no token.
type ProducerToken struct {
	q *Queue
}

// Queue returns the owning queue, letting holders enqueue without carrying
// both pointers.
func (t *ProducerToken) Queue() *Queue { return t.q }

// ============================================================================
// CONSTRUCTOR
// ============================================================================

// New creates a queue with at least the requested capacity, rounded up to a
// power of two. Panics on a non-positive size: queue capacities derive from
// the configuration, and a zero there is a startup bug.
func New(size int) *Queue {
	if size <= 0 {
		panic("equeue: size must be > 0")
	}
	capacity := 1
	for capacity < size {
		capacity <<= 1
	}
	q := &Queue{
		mask: uint64(capacity - 1),
		step: uint64(capacity),
		buf:  make([]slot, capacity),
	}
	for i := range q.buf {
		q.buf[i].seq = uint64(i)
	}
	return q
}

// Producer mints a persistent producer token for this queue.
func (q *Queue) Producer() *ProducerToken {
	return &ProducerToken{q: q}
}

// Cap reports the rounded capacity.
func (q *Queue) Cap() int { return int(q.step) }

// ============================================================================
// PRODUCER OPERATIONS
// ============================================================================

// TryEnqueue attempts to claim one slot and copy the event in.
// Returns false when the queue is full.
//
//go:nosplit
func (q *Queue) TryEnqueue(ev *event.Event) bool {
	for {
		t := atomic.LoadUint64(&q.tail)
		s := &q.buf[t&q.mask]
		seq := atomic.LoadUint64(&s.seq)
		if seq == t {
			if atomic.CompareAndSwapUint64(&q.tail, t, t+1) {
				s.val = *ev
				atomic.StoreUint64(&s.seq, t+1)
				return true
			}
			continue // lost the claim race, retry at new tail
		}
		if seq < t {
			return false // slot not yet released by a consumer: full
		}
		// seq > t: another producer advanced the cursor under us
	}
}

// EnqueueSpin enqueues with spin-retry. Completions and stage dispatches
// must never be dropped: a full queue here stalls the producer, which is
// exactly the back-pressure contract of the pipeline.
//
//go:nosplit
func (q *Queue) EnqueueSpin(_ *ProducerToken, ev *event.Event) {
	for !q.TryEnqueue(ev) {
		cpuRelax()
	}
}

// TryEnqueueBulk enqueues up to len(evs) events, stopping at the first
// full condition. Returns the number enqueued.
func (q *Queue) TryEnqueueBulk(_ *ProducerToken, evs []event.Event) int {
	for i := range evs {
		if !q.TryEnqueue(&evs[i]) {
			return i
		}
	}
	return len(evs)
}

// EnqueueBulkSpin enqueues the whole batch, spinning per element.
func (q *Queue) EnqueueBulkSpin(tok *ProducerToken, evs []event.Event) {
	for i := range evs {
		q.EnqueueSpin(tok, &evs[i])
	}
}

// ============================================================================
// CONSUMER OPERATIONS
// ============================================================================

// TryDequeue copies the next event into *out. Returns false when empty.
//
//go:nosplit
func (q *Queue) TryDequeue(out *event.Event) bool {
	for {
		h := atomic.LoadUint64(&q.head)
		s := &q.buf[h&q.mask]
		seq := atomic.LoadUint64(&s.seq)
		if seq == h+1 {
			if atomic.CompareAndSwapUint64(&q.head, h, h+1) {
				*out = s.val
				atomic.StoreUint64(&s.seq, h+q.step)
				return true
			}
			continue
		}
		if seq < h+1 {
			return false // nothing published at this cursor: empty
		}
		// seq > h+1: another consumer advanced the cursor under us
	}
}

// TryDequeueBulk drains up to len(out) events. Returns the number dequeued.
func (q *Queue) TryDequeueBulk(out []event.Event) int {
	for i := range out {
		if !q.TryDequeue(&out[i]) {
			return i
		}
	}
	return len(out)
}
