// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go — Global PHY pipeline tunables
//
// Purpose:
//   - Defines pipeline-wide constants: frame window, queue sizing, batch caps.
//   - All scheduling invariants are expressed against these values.
//
// Notes:
//   - Frame window and schedule depth are compile-time; buffer pools and
//     counters are sized against them once at startup.
//   - Queue capacities are bases, multiplied by the per-frame data symbol
//     count and rounded up to a power of two at construction.
//
// ⚠️ No runtime logic here — all values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

// ───────────────────────────── Frame Window ────────────────────────────────

const (
	// FrameWnd bounds the number of concurrent in-flight frames. Every
	// per-frame array in the pipeline is indexed by frame_id % FrameWnd.
	// A received packet for frame >= cur_sche_frame + FrameWnd is fatal:
	// its buffer slot has already been reused.
	FrameWnd = 8

	// ScheduleQueues is the scheduling depth: the master never schedules
	// work for a frame more than ScheduleQueues ahead of the oldest
	// unretired frame. It also sets the number of queue parity classes
	// (frame_id & 1), so it must stay at 2.
	ScheduleQueues = 2
)

// ───────────────────────────── Event Geometry ───────────────────────────────

const (
	// MaxTagsPerEvent caps the tag payload of a single event word. FFT and
	// codeblock batches pack up to this many coordinates per dispatch.
	MaxTagsPerEvent = 16

	// MaxModBits sizes the soft-bit rows: RAN updates can raise the
	// modulation order mid-run, so demod buffers hold the widest order.
	MaxModBits = 4
)

// ───────────────────────────── Queue Sizing ─────────────────────────────────

const (
	// MessageQueueBase scales the master intake queue: capacity is
	// MessageQueueBase * num_data_symbols_per_frame, rounded to 2^n.
	MessageQueueBase = 512

	// WorkerQueueBase scales every stage and completion queue the same way.
	WorkerQueueBase = 256

	// DequeueBulkTXRX bounds one drain from each I/O producer per master
	// loop turn. Small enough to keep the completion side from starving.
	DequeueBulkTXRX = 8

	// DequeueBulkWorker bounds one drain from a completion queue per turn.
	DequeueBulkWorker = 8
)

// ───────────────────────────── Worker Tuning ────────────────────────────────

const (
	// WorkerFlipIters is the number of consecutive empty scans over a
	// worker's stage list before it flips to the other queue parity.
	// A tuning constant, not a correctness requirement.
	WorkerFlipIters = 5
)

// ───────────────────────── Memory Guardrails ────────────────────────────────

const (
	// HeapSoftLimit is a heap-size threshold for a manual GC cycle between
	// frames. No code reads it: the heap is not measured and no GC cycle is
	// triggered.
	HeapSoftLimit = 128 << 20 // 128 MiB

	// HeapHardLimit is a heap-size threshold for aborting the process. No
	// code reads it: the process is not aborted on heap growth.
	HeapHardLimit = 512 << 20 // 512 MiB
)
