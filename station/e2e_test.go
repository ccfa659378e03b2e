// ============================================================================
// END-TO-END PIPELINE SUITES
// ============================================================================
//
// Full-system runs over the loopback transport: real master loop, real
// worker pool, real kernels. The generator models the UE transmitters
// over an identity channel, so the uplink decode output is predictable
// bit for bit — the loopback round-trip property — while the TX record
// proves ordering and retirement.

package station

import (
	"testing"
	"time"

	"main/buffers"
	"main/config"
	"main/control"
	"main/equeue"
	"main/event"
	"main/kernels"
	"main/stats"
	"main/txrx"
)

// ulPayload is the deterministic uplink payload of one (frame, ue, blk).
func ulPayload(cfg *config.Config, frame uint64, ue, blk int) []byte {
	out := make([]byte, cfg.NumBytesPerCb)
	for j := range out {
		out[j] = byte(0x17 + int(frame)*0x31 + ue*0x49 + blk*0x0d + j)
	}
	return out
}

// ulTxPoint models the UE transmitter for one subcarrier: scramble the
// payload, Gray-map the subcarrier's bit share. Matches what the decode
// kernel inverts.
func ulTxPoint(cfg *config.Config, frame uint64, symbol, ue, sc int) complex64 {
	blocks := cfg.LdpcNumBlocksInSymbol
	blockScs := cfg.OfdmDataNum / blocks
	blk := sc / blockScs
	payload := ulPayload(cfg, frame, ue, blk)
	seed := kernels.ScrambleSeed(frame, symbol, ue, blk)
	scrambled := make([]byte, len(payload))
	for j, b := range payload {
		scrambled[j] = kernels.ScrambleByte(b, seed, j)
	}
	nb := len(scrambled) * 8
	k := sc % blockScs
	var v uint32
	for b := 0; b < cfg.ModOrderBits; b++ {
		i := (k*cfg.ModOrderBits + b) % nb
		v |= uint32(scrambled[i/8]>>(i%8)&1) << b
	}
	return kernels.ModMap(v, cfg.ModOrderBits)
}

// e2eGenerator: identity channel. Pilot p sounds UE p on antenna p;
// uplink antenna u < UeAntNum carries UE u's stream.
func e2eGenerator(cfg *config.Config) txrx.Generator {
	return func(frame uint64, symbol, ant int, data []int16) {
		for i := range data {
			data[i] = 0
		}
		if p := cfg.Frame.GetPilotSymbolIdx(symbol); p >= 0 {
			if ant == p%cfg.UeAntNum {
				for sc := 0; sc < cfg.OfdmDataNum; sc++ {
					data[2*sc] = 32767
				}
			}
			return
		}
		if cfg.Frame.GetULSymbolIdx(symbol) >= 0 && ant < cfg.UeAntNum {
			for sc := 0; sc < cfg.OfdmDataNum; sc++ {
				c := ulTxPoint(cfg, frame, symbol, ant, sc)
				data[2*sc] = int16(real(c) * 32767)
				data[2*sc+1] = int16(imag(c) * 32767)
			}
		}
	}
}

// e2eConfig uses two pilots so both UEs are sounded.
func e2eConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		BsAntNum: 4, UeAntNum: 2, OfdmDataNum: 8,
		FrameStr:              "PPUUDD",
		LdpcNumBlocksInSymbol: 1, NumBytesPerCb: 2, ModOrderBits: 2,
		FftBlockSize: 2, ZfBlockSize: 8, ZfBatchSize: 1,
		DemulBlockSize: 4, EncodeBlockSize: 2,
		SocketThreadNum: 1, WorkerThreadNum: 2,
		FramesToTest: 3,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	cfg.StatsDBPath = t.TempDir() + "/stats.db"
	return cfg
}

// runStation executes a full run with a watchdog.
func runStation(t *testing.T, cfg *config.Config) (*Station, *txrx.Loopback) {
	t.Helper()
	control.Reset()
	var lb *txrx.Loopback
	s := New(cfg, func(intake, tx *equeue.Queue) txrx.Transport {
		lb = txrx.NewLoopback(cfg, intake, tx, e2eGenerator(cfg))
		return lb
	})

	done := make(chan struct{})
	go func() {
		s.Start()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		control.SetExitSignal()
		cfg.SetRunning(false)
		t.Fatal("pipeline did not complete in time")
	}
	return s, lb
}

// ============================================================================
// SCENARIO 1: HAPPY PATH
// ============================================================================

func TestHappyPathRetiresAllFramesInOrder(t *testing.T) {
	cfg := e2eConfig(t)
	s, lb := runStation(t, cfg)

	// P5: frames retired 0,1,2 in order — the processing frontier ends
	// one past the last frame and each frame carries retirement stamps.
	if got := s.CurProcFrame(); got != cfg.FramesToTest {
		t.Fatalf("cur_proc = %d, want %d", got, cfg.FramesToTest)
	}
	if s.st.LastFrame() != cfg.FramesToTest-1 {
		t.Fatalf("last retired = %d", s.st.LastFrame())
	}

	// TX volume: BsAnt x NumDLSyms per frame.
	tx := lb.TxTags()
	wantTx := int(cfg.FramesToTest) * cfg.BsAntNum * cfg.Frame.NumDLSyms()
	if len(tx) != wantTx {
		t.Fatalf("tx completions = %d, want %d", len(tx), wantTx)
	}

	// P4: within each frame, TX symbol indices never decrease.
	lastSym := map[uint64]int{}
	for _, tag := range tx {
		f := event.TagFrame(tag)
		sym := event.TagSymbol(tag)
		if prev, ok := lastSym[f]; ok && sym < prev {
			t.Fatalf("frame %d: TX symbol %d after %d", f, sym, prev)
		}
		lastSym[f] = sym
	}
}

func TestHappyPathDecodesUplinkBitExactly(t *testing.T) {
	cfg := e2eConfig(t)
	s, _ := runStation(t, cfg)

	for f := uint64(0); f < cfg.FramesToTest; f++ {
		for i := 0; i < cfg.Frame.NumULSyms(); i++ {
			for ue := 0; ue < cfg.UeAntNum; ue++ {
				row := s.Buffers().DecodedRow(f, i, ue)
				for blk := 0; blk < cfg.LdpcNumBlocksInSymbol; blk++ {
					want := ulPayload(cfg, f, ue, blk)
					got := row[blk*buffers.Roundup64(cfg.NumBytesPerCb):][:cfg.NumBytesPerCb]
					for j := range want {
						if got[j] != want[j] {
							t.Fatalf("frame %d sym %d ue %d blk %d byte %d: %#x != %#x",
								f, i, ue, blk, j, got[j], want[j])
						}
					}
				}
			}
		}
	}

	if eq := s.GetEqualData(); len(eq) != cfg.OfdmDataNum*cfg.UeAntNum*2 {
		t.Fatalf("equal data size = %d", len(eq))
	}
}

// P3: per frame, each consumer stage's stamp follows its producer's.
func TestStageDependencyOrder(t *testing.T) {
	cfg := e2eConfig(t)
	s, _ := runStation(t, cfg)

	chains := [][]stats.TsType{
		{stats.TsFFTPilotsDone, stats.TsZfDone, stats.TsDemulDone, stats.TsDecodeDone},
		{stats.TsEncodeDone, stats.TsPrecodeDone, stats.TsIFFTDone, stats.TsTxDone},
		{stats.TsZfDone, stats.TsPrecodeDone},
	}
	for f := uint64(0); f < cfg.FramesToTest; f++ {
		for _, chain := range chains {
			for i := 1; i < len(chain); i++ {
				a, b := s.st.Get(chain[i-1], f), s.st.Get(chain[i], f)
				if a == 0 || b == 0 {
					t.Fatalf("frame %d: missing stamp %d or %d", f, chain[i-1], chain[i])
				}
				if b < a {
					t.Fatalf("frame %d: stage %d stamped before its producer %d", f, chain[i], chain[i-1])
				}
			}
		}
	}
}

// ============================================================================
// MAC MODE
// ============================================================================

func TestMacModeRetiresThroughMacPath(t *testing.T) {
	cfg := e2eConfig(t)
	cfg.EnableMac = true
	s, lb := runStation(t, cfg)

	if s.CurProcFrame() != cfg.FramesToTest {
		t.Fatalf("cur_proc = %d, want %d", s.CurProcFrame(), cfg.FramesToTest)
	}
	wantTx := int(cfg.FramesToTest) * cfg.BsAntNum * cfg.Frame.NumDLSyms()
	if got := len(lb.TxTags()); got != wantTx {
		t.Fatalf("tx completions = %d, want %d", got, wantTx)
	}
}

// ============================================================================
// UPLINK-ONLY AND BIGSTATION VARIANTS
// ============================================================================

func TestUplinkOnlyRun(t *testing.T) {
	cfg := e2eConfig(t)
	cfg.FrameStr = "PPUU"
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	s, lb := runStation(t, cfg)

	if s.CurProcFrame() != cfg.FramesToTest {
		t.Fatalf("cur_proc = %d", s.CurProcFrame())
	}
	if len(lb.TxTags()) != 0 {
		t.Fatal("uplink-only run must not transmit")
	}
}

func TestBigstationPartition(t *testing.T) {
	cfg := e2eConfig(t)
	cfg.BigstationMode = true
	cfg.WorkerThreadNum = 4
	cfg.FftThreadNum, cfg.ZfThreadNum, cfg.DemulThreadNum = 1, 1, 1
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	s, _ := runStation(t, cfg)

	if s.CurProcFrame() != cfg.FramesToTest {
		t.Fatalf("cur_proc = %d, want %d", s.CurProcFrame(), cfg.FramesToTest)
	}
}
