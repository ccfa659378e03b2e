// ============================================================================
// FRAME TIMING & RUN ARTIFACTS
// ============================================================================
//
// Per-frame stage-completion timestamps, stamped by the master only, plus
// the shutdown artifacts: a latency summary on stderr, a SQLite table for
// offline analysis, and the raw decode/TX binary dumps used to compare
// capture runs across hosts.

package stats

import (
	"time"

	"main/config"
	"main/debug"
	"main/utils"
)

// TsType enumerates the master-stamped checkpoints of one frame.
type TsType int

const (
	TsFirstSymbolRX TsType = iota
	TsProcessingStarted
	TsPilotAllRX
	TsRcAllRX
	TsRxDone
	TsFFTPilotsDone
	TsRcDone
	TsZfDone
	TsDemulDone
	TsDecodeDone
	TsEncodeDone
	TsPrecodeDone
	TsIFFTDone
	TsTxProcessedFirst
	TsTxDone
	tsCount
)

var tsNames = [tsCount]string{
	"first_symbol_rx", "processing_started", "pilot_all_rx", "rc_all_rx",
	"rx_done", "fft_pilots_done", "rc_done", "zf_done", "demul_done",
	"decode_done", "encode_done", "precode_done", "ifft_done",
	"tx_processed_first", "tx_done",
}

// Stats is the master's timestamp matrix. Single-writer, no locking.
type Stats struct {
	cfg *config.Config

	ts        [tsCount][]int64 // ns since epoch; 0 = never stamped
	retired   []bool
	lastFrame uint64
}

// New sizes the matrix for the configured run length.
func New(cfg *config.Config) *Stats {
	s := &Stats{cfg: cfg, retired: make([]bool, cfg.FramesToTest)}
	for i := range s.ts {
		s.ts[i] = make([]int64, cfg.FramesToTest)
	}
	return s
}

// MasterSet stamps one checkpoint with the current time.
func (s *Stats) MasterSet(t TsType, frame uint64) {
	if frame < uint64(len(s.ts[t])) {
		s.ts[t][frame] = time.Now().UnixNano()
	}
}

// Get reads one raw stamp (ns); 0 when never stamped.
func (s *Stats) Get(t TsType, frame uint64) int64 {
	if frame >= uint64(len(s.ts[t])) {
		return 0
	}
	return s.ts[t][frame]
}

// DeltaMs is the a-b gap of one frame in milliseconds.
func (s *Stats) DeltaMs(a, b TsType, frame uint64) float64 {
	return float64(s.Get(a, frame)-s.Get(b, frame)) / 1e6
}

// MsSince is the age of a stamp in milliseconds.
func (s *Stats) MsSince(t TsType, frame uint64) float64 {
	return float64(time.Now().UnixNano()-s.Get(t, frame)) / 1e6
}

// UpdateStats marks a frame retired. Called exactly once per frame, at
// retirement, in frame order.
func (s *Stats) UpdateStats(frame uint64) {
	if frame < uint64(len(s.retired)) {
		s.retired[frame] = true
	}
	s.lastFrame = frame
}

// LastFrame is the most recently retired frame.
func (s *Stats) LastFrame() uint64 { return s.lastFrame }

// PrintSummary logs average stage latencies across retired frames,
// measured from first RX of each frame.
func (s *Stats) PrintSummary() {
	marks := []TsType{TsFFTPilotsDone, TsZfDone, TsDemulDone, TsDecodeDone,
		TsEncodeDone, TsPrecodeDone, TsIFFTDone, TsTxDone}
	for _, m := range marks {
		var sum float64
		var n int
		for f := uint64(0); f < s.cfg.FramesToTest; f++ {
			if !s.retired[f] || s.Get(m, f) == 0 || s.Get(TsFirstSymbolRX, f) == 0 {
				continue
			}
			sum += s.DeltaMs(m, TsFirstSymbolRX, f)
			n++
		}
		if n == 0 {
			continue
		}
		avgUs := int(sum / float64(n) * 1000)
		debug.DropMessage("STATS", tsNames[m]+" avg +"+utils.Itoa(avgUs)+" us over "+
			utils.Itoa(n)+" frames")
	}
}
