package sched

import "testing"

func TestParseCounts(t *testing.T) {
	fs, err := Parse("PUUDD")
	if err != nil {
		t.Fatal(err)
	}
	if fs.NumTotalSyms() != 5 || fs.NumPilotSyms() != 1 || fs.NumULSyms() != 2 ||
		fs.NumDLSyms() != 2 || fs.NumDataSyms() != 5 {
		t.Fatalf("counts wrong: %d %d %d %d", fs.NumPilotSyms(), fs.NumULSyms(),
			fs.NumDLSyms(), fs.NumDataSyms())
	}
	if fs.IsRecCalEnabled() {
		t.Fatal("no calibration symbols in PUUDD")
	}
}

func TestLogicalToAbsolute(t *testing.T) {
	fs, err := Parse("GPPUUGDD")
	if err != nil {
		t.Fatal(err)
	}
	if fs.GetPilotSymbol(0) != 1 || fs.GetPilotSymbol(1) != 2 {
		t.Fatal("pilot positions wrong")
	}
	if fs.GetULSymbol(0) != 3 || fs.GetULSymbol(1) != 4 {
		t.Fatal("uplink positions wrong")
	}
	if fs.GetDLSymbol(0) != 6 || fs.GetDLSymbol(1) != 7 {
		t.Fatal("downlink positions wrong")
	}
	if fs.NumDataSyms() != 6 {
		t.Fatalf("guards must not count as data symbols: %d", fs.NumDataSyms())
	}
}

func TestAbsoluteToLogical(t *testing.T) {
	fs, _ := Parse("PUUDD")
	if fs.GetULSymbolIdx(1) != 0 || fs.GetULSymbolIdx(2) != 1 {
		t.Fatal("uplink logical indices wrong")
	}
	if fs.GetDLSymbolIdx(3) != 0 || fs.GetDLSymbolIdx(4) != 1 {
		t.Fatal("downlink logical indices wrong")
	}
	if fs.GetULSymbolIdx(0) != -1 || fs.GetDLSymbolIdx(1) != -1 {
		t.Fatal("non-members must map to -1")
	}
	if fs.GetULSymbolIdx(99) != -1 {
		t.Fatal("out of range must map to -1")
	}
}

func TestCalibration(t *testing.T) {
	fs, err := Parse("PCLUUDD")
	if err != nil {
		t.Fatal(err)
	}
	if !fs.IsRecCalEnabled() || fs.NumCalSyms() != 2 {
		t.Fatal("calibration not detected")
	}
	if !fs.IsCalDL(1) || !fs.IsCalUL(2) {
		t.Fatal("calibration direction wrong")
	}
	if fs.SymbolType(1) != SymCalDL || fs.SymbolType(2) != SymCalUL {
		t.Fatal("symbol types wrong")
	}
}

func TestParseRejects(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatal("empty frame must fail")
	}
	if _, err := Parse("PUX"); err == nil {
		t.Fatal("unknown letter must fail")
	}
}

func TestSymbolTypeOutOfRange(t *testing.T) {
	fs, _ := Parse("PU")
	if fs.SymbolType(-1) != SymGuard || fs.SymbolType(10) != SymGuard {
		t.Fatal("out-of-range positions read as guard")
	}
}
