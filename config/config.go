// ============================================================================
// STATION CONFIGURATION
// ============================================================================
//
// One immutable configuration object for the whole pipeline: antenna
// geometry, OFDM sizing, the frame schedule, LDPC shape, batch sizes,
// thread plan and mode flags. Loaded from JSON once at startup, validated,
// then read-only for the life of the process — the only mutable member is
// the running flag, which doubles as the cooperative cancellation point
// for every pinned thread.

package config

import (
	"errors"
	"os"
	"sync/atomic"

	"github.com/sugawarayuuta/sonnet"

	"main/constants"
	"main/sched"
)

// ============================================================================
// CONFIGURATION SURFACE
// ============================================================================

// Config carries every tunable of the station. JSON field names follow the
// configuration files shipped with the deploy tooling.
type Config struct {
	// Geometry
	BsAntNum       int `json:"bs_ant_num"`
	UeAntNum       int `json:"ue_ant_num"`
	OfdmDataNum    int `json:"ofdm_data_num"`
	SampsPerSymbol int `json:"samps_per_symbol"`

	// Frame plan (P pilot, U uplink, D downlink, C cal-DL, L cal-UL, G guard)
	FrameStr             string `json:"frame_schedule"`
	ClientDlPilotSymbols int    `json:"client_dl_pilot_symbols"`

	// Coding & modulation
	LdpcNumBlocksInSymbol int `json:"ldpc_blocks_in_symbol"`
	NumBytesPerCb         int `json:"num_bytes_per_cb"`
	ModOrderBits          int `json:"mod_order_bits"`

	// Dispatch batching
	FftBlockSize    int `json:"fft_block_size"`
	ZfBlockSize     int `json:"zf_block_size"`
	ZfBatchSize     int `json:"zf_batch_size"`
	DemulBlockSize  int `json:"demul_block_size"`
	EncodeBlockSize int `json:"encode_block_size"`

	// Thread plan
	SocketThreadNum int `json:"socket_thread_num"`
	WorkerThreadNum int `json:"worker_thread_num"`
	CoreOffset      int `json:"core_offset"`

	// Bigstation partition (used only when BigstationMode)
	FftThreadNum   int `json:"fft_thread_num"`
	ZfThreadNum    int `json:"zf_thread_num"`
	DemulThreadNum int `json:"demul_thread_num"`

	// Modes
	EnableMac      bool `json:"enable_mac"`
	BigstationMode bool `json:"bigstation_mode"`
	PinThreads     bool `json:"pin_threads"`

	// Run plan
	FramesToTest uint64 `json:"frames_to_test"`

	// Transport
	BsServerAddr string `json:"bs_server_addr"`
	BsRruPort    int    `json:"bs_rru_port"`

	// Shutdown artifacts
	SaveDecodeData bool   `json:"save_decode_data"`
	SaveTxData     bool   `json:"save_tx_data"`
	StatsDBPath    string `json:"stats_db_path"`

	// Derived, set by Validate.
	Frame *sched.FrameSchedule `json:"-"`

	running  uint32
	modOrder uint32
}

// ============================================================================
// LOADING & VALIDATION
// ============================================================================

// Load reads and validates a JSON configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := sonnet.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks consistency and derives the frame schedule. A failure
// here aborts startup before any thread is created.
func (c *Config) Validate() error {
	switch {
	case c.BsAntNum <= 0 || c.UeAntNum <= 0:
		return errors.New("config: antenna counts must be positive")
	case c.UeAntNum > c.BsAntNum:
		return errors.New("config: more UE antennas than BS antennas")
	case c.OfdmDataNum <= 0:
		return errors.New("config: ofdm_data_num must be positive")
	case c.FftBlockSize <= 0 || c.DemulBlockSize <= 0 ||
		c.ZfBlockSize <= 0 || c.ZfBatchSize <= 0 || c.EncodeBlockSize <= 0:
		return errors.New("config: block sizes must be positive")
	case c.ZfBatchSize > constants.MaxTagsPerEvent ||
		c.FftBlockSize > constants.MaxTagsPerEvent ||
		c.EncodeBlockSize > constants.MaxTagsPerEvent:
		return errors.New("config: batch size exceeds event tag capacity")
	case c.WorkerThreadNum <= 0:
		return errors.New("config: worker_thread_num must be positive")
	case c.SocketThreadNum <= 0:
		return errors.New("config: socket_thread_num must be positive")
	case c.LdpcNumBlocksInSymbol <= 0 || c.NumBytesPerCb <= 0:
		return errors.New("config: LDPC shape must be positive")
	case c.FramesToTest == 0:
		return errors.New("config: frames_to_test must be positive")
	}

	frame, err := sched.Parse(c.FrameStr)
	if err != nil {
		return err
	}
	c.Frame = frame

	if c.ClientDlPilotSymbols > frame.NumDLSyms() {
		return errors.New("config: client DL pilots exceed DL symbols")
	}
	if c.BigstationMode {
		if c.FftThreadNum+c.ZfThreadNum+c.DemulThreadNum >= c.WorkerThreadNum {
			return errors.New("config: bigstation partition leaves no decode threads")
		}
	}
	if c.SampsPerSymbol == 0 {
		c.SampsPerSymbol = c.OfdmDataNum
	}
	if c.ModOrderBits != 2 && c.ModOrderBits != 4 {
		return errors.New("config: mod_order_bits must be 2 (QPSK) or 4 (16QAM)")
	}
	if c.OfdmDataNum%c.LdpcNumBlocksInSymbol != 0 {
		return errors.New("config: ofdm_data_num must divide into codeblocks")
	}
	// Payload must fit its subcarrier share even at the lowest order the
	// RAN can switch to mid-run.
	blockScs := c.OfdmDataNum / c.LdpcNumBlocksInSymbol
	if c.NumBytesPerCb*8 > blockScs*2 {
		return errors.New("config: codeblock payload exceeds symbol capacity")
	}
	atomic.StoreUint32(&c.modOrder, uint32(c.ModOrderBits))
	return nil
}

// ============================================================================
// DERIVED COUNTS
// ============================================================================

// ZfEventsPerSymbol is the number of ZF tasks per frame: one per
// subcarrier block of ZfBlockSize.
func (c *Config) ZfEventsPerSymbol() int {
	return (c.OfdmDataNum + c.ZfBlockSize - 1) / c.ZfBlockSize
}

// DemulEventsPerSymbol is the number of Demul/Precode tasks per symbol.
func (c *Config) DemulEventsPerSymbol() int {
	return (c.OfdmDataNum + c.DemulBlockSize - 1) / c.DemulBlockSize
}

// NumPktsPerFrame is the RX packet budget of one frame: one packet per BS
// antenna for each pilot and uplink symbol, plus one set of BS-antenna
// packets for calibration when the schedule carries calibration symbols,
// however many calibration symbols it has.
func (c *Config) NumPktsPerFrame() int {
	cal := 0
	if c.Frame.IsRecCalEnabled() {
		cal = 1
	}
	return c.BsAntNum * (c.Frame.NumPilotSyms() + c.Frame.NumULSyms() + cal)
}

// NumPilotPktsPerFrame is the pilot slice of the RX budget.
func (c *Config) NumPilotPktsPerFrame() int {
	return c.BsAntNum * c.Frame.NumPilotSyms()
}

// NumReciprocityPktsPerFrame is the calibration slice of the RX budget.
func (c *Config) NumReciprocityPktsPerFrame() int {
	return c.BsAntNum
}

// CodeblocksPerSymbol is the Encode/Decode task count per symbol.
func (c *Config) CodeblocksPerSymbol() int {
	return c.UeAntNum * c.LdpcNumBlocksInSymbol
}

// ============================================================================
// RUNNING FLAG
// ============================================================================

// Running reports whether the pipeline is live.
//
//go:nosplit
//go:inline
func (c *Config) Running() bool {
	return atomic.LoadUint32(&c.running) == 1
}

// SetRunning flips the live flag; false initiates the cooperative drain.
//
//go:nosplit
func (c *Config) SetRunning(on bool) {
	if on {
		atomic.StoreUint32(&c.running, 1)
	} else {
		atomic.StoreUint32(&c.running, 0)
	}
}

// ============================================================================
// RAN RECONFIGURATION
// ============================================================================

// CurModOrder is the live modulation order in bits per symbol. The demod
// and encode kernels read it per task so a RAN update takes effect at the
// next symbol boundary.
//
//go:nosplit
//go:inline
func (c *Config) CurModOrder() int {
	return int(atomic.LoadUint32(&c.modOrder))
}

// UpdateModOrder applies a RAN update. Orders outside the supported set
// are ignored; the RAN controller owns retry policy.
func (c *Config) UpdateModOrder(bits int) {
	if bits == 2 || bits == 4 {
		atomic.StoreUint32(&c.modOrder, uint32(bits))
	}
}
