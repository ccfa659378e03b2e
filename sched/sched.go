// ============================================================================
// FRAME SCHEDULE
// ============================================================================
//
// Immutable per-configuration symbol schedule. A frame is a fixed, time-
// ordered sequence of OFDM symbols; each position is classified as pilot,
// uplink data, downlink data, calibration (DL or UL direction) or guard.
// The schedule is parsed once from the configuration's frame string and
// answers the index queries the master's dispatch paths make per event.
//
// Frame string letters: P pilot, U uplink, D downlink, C calib-DL,
// L calib-UL, G guard.

package sched

import "errors"

// SymbolType classifies one symbol position of the frame.
type SymbolType uint8

const (
	SymGuard SymbolType = iota
	SymPilot
	SymUL
	SymDL
	SymCalDL
	SymCalUL
)

var symNames = [...]string{"guard", "pilot", "uplink", "downlink", "cal_dl", "cal_ul"}

func (s SymbolType) String() string {
	if int(s) < len(symNames) {
		return symNames[s]
	}
	return "unknown"
}

// FrameSchedule is the parsed, immutable symbol plan of one frame.
type FrameSchedule struct {
	types []SymbolType

	pilots []int // absolute indices, in time order
	uls    []int
	dls    []int
	calDLs []int
	calULs []int

	ulIdx    []int // absolute -> logical uplink index, -1 elsewhere
	dlIdx    []int // absolute -> logical downlink index, -1 elsewhere
	pilotIdx []int // absolute -> logical pilot index, -1 elsewhere
}

// Parse builds a FrameSchedule from a frame string like "PPUUDD".
func Parse(frame string) (*FrameSchedule, error) {
	if len(frame) == 0 {
		return nil, errors.New("sched: empty frame string")
	}
	fs := &FrameSchedule{
		types:    make([]SymbolType, len(frame)),
		ulIdx:    make([]int, len(frame)),
		dlIdx:    make([]int, len(frame)),
		pilotIdx: make([]int, len(frame)),
	}
	for i := range fs.ulIdx {
		fs.ulIdx[i] = -1
		fs.dlIdx[i] = -1
		fs.pilotIdx[i] = -1
	}
	for i, ch := range frame {
		switch ch {
		case 'P':
			fs.types[i] = SymPilot
			fs.pilotIdx[i] = len(fs.pilots)
			fs.pilots = append(fs.pilots, i)
		case 'U':
			fs.types[i] = SymUL
			fs.ulIdx[i] = len(fs.uls)
			fs.uls = append(fs.uls, i)
		case 'D':
			fs.types[i] = SymDL
			fs.dlIdx[i] = len(fs.dls)
			fs.dls = append(fs.dls, i)
		case 'C':
			fs.types[i] = SymCalDL
			fs.calDLs = append(fs.calDLs, i)
		case 'L':
			fs.types[i] = SymCalUL
			fs.calULs = append(fs.calULs, i)
		case 'G':
			fs.types[i] = SymGuard
		default:
			return nil, errors.New("sched: unknown symbol letter " + string(ch))
		}
	}
	return fs, nil
}

// NumTotalSyms is the symbol count of one frame.
func (f *FrameSchedule) NumTotalSyms() int { return len(f.types) }

// NumPilotSyms is the pilot symbol count.
func (f *FrameSchedule) NumPilotSyms() int { return len(f.pilots) }

// NumULSyms is the uplink data symbol count.
func (f *FrameSchedule) NumULSyms() int { return len(f.uls) }

// NumDLSyms is the downlink data symbol count.
func (f *FrameSchedule) NumDLSyms() int { return len(f.dls) }

// NumDataSyms is the count of symbols that carry scheduler work: everything
// except guards. Queue capacities scale with this.
func (f *FrameSchedule) NumDataSyms() int {
	return len(f.pilots) + len(f.uls) + len(f.dls) + len(f.calDLs) + len(f.calULs)
}

// NumCalSyms is the calibration symbol count (both directions).
func (f *FrameSchedule) NumCalSyms() int { return len(f.calDLs) + len(f.calULs) }

// IsRecCalEnabled reports whether the schedule carries reciprocity
// calibration symbols.
func (f *FrameSchedule) IsRecCalEnabled() bool { return f.NumCalSyms() > 0 }

// SymbolType classifies an absolute symbol index.
func (f *FrameSchedule) SymbolType(abs int) SymbolType {
	if abs < 0 || abs >= len(f.types) {
		return SymGuard
	}
	return f.types[abs]
}

// GetPilotSymbol maps a logical pilot index to its absolute position.
func (f *FrameSchedule) GetPilotSymbol(i int) int { return f.pilots[i] }

// GetULSymbol maps a logical uplink index to its absolute position.
func (f *FrameSchedule) GetULSymbol(i int) int { return f.uls[i] }

// GetDLSymbol maps a logical downlink index to its absolute position.
func (f *FrameSchedule) GetDLSymbol(i int) int { return f.dls[i] }

// GetULSymbolIdx maps an absolute position back to its logical uplink
// index; -1 when the position is not an uplink symbol.
func (f *FrameSchedule) GetULSymbolIdx(abs int) int {
	if abs < 0 || abs >= len(f.ulIdx) {
		return -1
	}
	return f.ulIdx[abs]
}

// GetDLSymbolIdx maps an absolute position back to its logical downlink
// index; -1 when the position is not a downlink symbol.
func (f *FrameSchedule) GetDLSymbolIdx(abs int) int {
	if abs < 0 || abs >= len(f.dlIdx) {
		return -1
	}
	return f.dlIdx[abs]
}

// GetPilotSymbolIdx maps an absolute position back to its logical pilot
// index; -1 when the position is not a pilot symbol.
func (f *FrameSchedule) GetPilotSymbolIdx(abs int) int {
	if abs < 0 || abs >= len(f.pilotIdx) {
		return -1
	}
	return f.pilotIdx[abs]
}

// IsPilot reports whether the absolute position is a pilot symbol.
func (f *FrameSchedule) IsPilot(abs int) bool { return f.SymbolType(abs) == SymPilot }

// IsCalDL reports whether the absolute position is a DL calibration symbol.
func (f *FrameSchedule) IsCalDL(abs int) bool { return f.SymbolType(abs) == SymCalDL }

// IsCalUL reports whether the absolute position is a UL calibration symbol.
func (f *FrameSchedule) IsCalUL(abs int) bool { return f.SymbolType(abs) == SymCalUL }
