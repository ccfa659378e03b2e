// ============================================================================
// STAGE COMPLETION COUNTERS
// ============================================================================
//
// Per-frame bookkeeping for the master scheduler's state machine. A stage
// with per-symbol granularity (FFT, Demul, Decode, Encode, Precode, IFFT,
// TX, MAC-TX) tracks task completions per (frame slot, symbol) plus a
// symbols-complete count; frame-granular stages (ZF, reciprocity
// calibration, MAC-to-PHY) collapse to one count per slot.
//
// Ownership: the master thread is the sole mutator. No atomics, no locks —
// workers report completions through the queues, never through counters.
//
// Within one reset epoch every count is monotone and never exceeds its
// configured maximum; Reset returns a slot to the freshly-initialized
// state so the window can rotate.

package counters

import "main/constants"

// ============================================================================
// FRAME+SYMBOL COUNTER
// ============================================================================

// FrameSymbolCounter tracks per-symbol task completion across the frame
// window. Symbols are addressed by absolute index within the frame.
type FrameSymbolCounter struct {
	taskCount   [constants.FrameWnd][]int
	symbolCount [constants.FrameWnd]int

	tasksPerSymbol  int
	symbolsPerFrame int
}

// Init sizes the counter. maxSymbolIdx is the exclusive upper bound of the
// absolute symbol indices this stage will ever report (NumTotalSyms of the
// schedule); symbolsPerFrame and tasksPerSymbol are the stage maxima.
func (c *FrameSymbolCounter) Init(symbolsPerFrame, tasksPerSymbol, maxSymbolIdx int) {
	c.symbolsPerFrame = symbolsPerFrame
	c.tasksPerSymbol = tasksPerSymbol
	for i := range c.taskCount {
		c.taskCount[i] = make([]int, maxSymbolIdx)
	}
}

// CompleteTask records one finished task and reports whether it was the
// last task of that (frame, symbol).
func (c *FrameSymbolCounter) CompleteTask(frame uint64, symbol int) bool {
	slot := frame % constants.FrameWnd
	c.taskCount[slot][symbol]++
	if c.taskCount[slot][symbol] > c.tasksPerSymbol {
		panic("counters: task count exceeded per-symbol maximum")
	}
	return c.taskCount[slot][symbol] == c.tasksPerSymbol
}

// CompleteSymbol records one fully-processed symbol and reports whether it
// was the frame's last.
func (c *FrameSymbolCounter) CompleteSymbol(frame uint64) bool {
	slot := frame % constants.FrameWnd
	c.symbolCount[slot]++
	if c.symbolCount[slot] > c.symbolsPerFrame {
		panic("counters: symbol count exceeded per-frame maximum")
	}
	return c.symbolCount[slot] == c.symbolsPerFrame
}

// Reset clears the slot for reuse by frame+FrameWnd.
func (c *FrameSymbolCounter) Reset(frame uint64) {
	slot := frame % constants.FrameWnd
	for i := range c.taskCount[slot] {
		c.taskCount[slot][i] = 0
	}
	c.symbolCount[slot] = 0
}

// TaskCount reads the running task count for one symbol.
func (c *FrameSymbolCounter) TaskCount(frame uint64, symbol int) int {
	return c.taskCount[frame%constants.FrameWnd][symbol]
}

// SymbolCount reads the symbols-complete count.
func (c *FrameSymbolCounter) SymbolCount(frame uint64) int {
	return c.symbolCount[frame%constants.FrameWnd]
}

// IsLastSymbol reports whether every symbol of the frame has completed.
// The flag holds until Reset.
func (c *FrameSymbolCounter) IsLastSymbol(frame uint64) bool {
	return c.symbolCount[frame%constants.FrameWnd] == c.symbolsPerFrame
}

// MaxSymbolCount exposes the configured symbols-per-frame maximum.
func (c *FrameSymbolCounter) MaxSymbolCount() int { return c.symbolsPerFrame }

// MaxTaskCount exposes the configured tasks-per-symbol maximum.
func (c *FrameSymbolCounter) MaxTaskCount() int { return c.tasksPerSymbol }

// ============================================================================
// FRAME-ONLY COUNTER
// ============================================================================

// FrameCounter is the collapsed form for stages without symbol granularity.
type FrameCounter struct {
	count        [constants.FrameWnd]int
	tasksPerFrame int
}

// Init sets the per-frame task maximum.
func (c *FrameCounter) Init(tasksPerFrame int) {
	c.tasksPerFrame = tasksPerFrame
}

// CompleteTask records one finished task; true when the frame is done.
func (c *FrameCounter) CompleteTask(frame uint64) bool {
	slot := frame % constants.FrameWnd
	c.count[slot]++
	if c.count[slot] > c.tasksPerFrame {
		panic("counters: frame task count exceeded maximum")
	}
	return c.count[slot] == c.tasksPerFrame
}

// Reset clears the slot.
func (c *FrameCounter) Reset(frame uint64) {
	c.count[frame%constants.FrameWnd] = 0
}

// TaskCount reads the running count.
func (c *FrameCounter) TaskCount(frame uint64) int {
	return c.count[frame%constants.FrameWnd]
}

// MaxTaskCount exposes the configured maximum.
func (c *FrameCounter) MaxTaskCount() int { return c.tasksPerFrame }
