package buffers

import (
	"testing"
	"unsafe"

	"main/config"
	"main/constants"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		BsAntNum: 4, UeAntNum: 2, OfdmDataNum: 8,
		FrameStr:              "PUUDD",
		LdpcNumBlocksInSymbol: 1, NumBytesPerCb: 2, ModOrderBits: 2,
		FftBlockSize: 2, ZfBlockSize: 8, ZfBatchSize: 1,
		DemulBlockSize: 4, EncodeBlockSize: 2,
		SocketThreadNum: 1, WorkerThreadNum: 2,
		FramesToTest: 3,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestRowAlignment(t *testing.T) {
	b := New(testConfig(t))
	rows := [][]complex64{
		b.CSIRow(0, 0), b.ULZfRow(1, 3), b.DLZfRow(2, 7),
		b.DataRow(3, 1), b.EqualRow(4, 0), b.DlEncodedRow(5, 1),
		b.DlIfftRow(6, 0, 3), b.CalibDLRow(7),
	}
	for i, r := range rows {
		if p := uintptr(unsafe.Pointer(&r[0])); p%64 != 0 {
			t.Fatalf("row %d misaligned: %#x", i, p)
		}
	}
	if p := uintptr(unsafe.Pointer(&b.DemodRow(0, 0, 0)[0])); p%64 != 0 {
		t.Fatalf("demod row misaligned: %#x", p)
	}
	if p := uintptr(unsafe.Pointer(&b.DlSocketRow(0, 0, 0)[0])); p%64 != 0 {
		t.Fatalf("socket row misaligned: %#x", p)
	}
}

func TestRowShapes(t *testing.T) {
	cfg := testConfig(t)
	b := New(cfg)
	if len(b.CSIRow(0, 1)) != cfg.BsAntNum*cfg.OfdmDataNum {
		t.Fatal("CSI row shape")
	}
	if len(b.ULZfRow(0, 0)) != cfg.BsAntNum*cfg.UeAntNum {
		t.Fatal("UL ZF row shape")
	}
	if len(b.DemodRow(0, 1, 1)) != constants.MaxModBits*cfg.OfdmDataNum {
		t.Fatal("demod row shape")
	}
	if len(b.DecodedRow(0, 0, 0)) != cfg.LdpcNumBlocksInSymbol*Roundup64(cfg.NumBytesPerCb) {
		t.Fatal("decoded row shape")
	}
	if len(b.DlSocketRow(0, 1, 2)) != cfg.SampsPerSymbol*2 {
		t.Fatal("socket row shape")
	}
}

func TestSlotReuse(t *testing.T) {
	b := New(testConfig(t))
	// Frame F and F+FrameWnd alias the same cell; F and F+1 must not.
	r0 := &b.CSIRow(0, 0)[0]
	if r0 != &b.CSIRow(constants.FrameWnd, 0)[0] {
		t.Fatal("window must wrap at FrameWnd")
	}
	if r0 == &b.CSIRow(1, 0)[0] {
		t.Fatal("adjacent frames must not alias")
	}
}

func TestCalibUnitGainBaseline(t *testing.T) {
	b := New(testConfig(t))
	last := uint64(constants.FrameWnd - 1)
	for i, v := range b.CalibDLRow(last) {
		if v != 1 {
			t.Fatalf("calib DL baseline not unit at %d: %v", i, v)
		}
	}
	if b.CalibULRow(0)[0] == 1 {
		t.Fatal("only the last window slot carries the baseline")
	}
}

func TestDlBitsStatus(t *testing.T) {
	b := New(testConfig(t))
	if b.DlBitsReady(2, 1) {
		t.Fatal("bits must start unstaged")
	}
	b.SetDlBitsReady(2, 1, true)
	if !b.DlBitsReady(2, 1) {
		t.Fatal("staged flag lost")
	}
	b.SetDlBitsReady(2, 1, false)
	if b.DlBitsReady(2, 1) {
		t.Fatal("flag must clear")
	}
	if got, want := len(b.DlBitsRow(0, 0)), b.DlBitsPerFrame(); got != want {
		t.Fatalf("bits row = %d bytes, want %d", got, want)
	}
}

func TestRoundup64(t *testing.T) {
	for _, c := range []struct{ in, want int }{{0, 0}, {1, 64}, {64, 64}, {65, 128}} {
		if got := Roundup64(c.in); got != c.want {
			t.Fatalf("Roundup64(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
