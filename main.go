// ════════════════════════════════════════════════════════════════════════════════════════════════
// Massive-MIMO PHY Base Station - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Software-Defined Base Station Control Plane
// Component: Main Entry Point & System Orchestration
//
// Description:
//   System orchestration with phased initialization:
//   Configuration → Allocation → Memory Optimization → Real-Time Frame Processing
//
// Architecture:
//   - Phase 0: Configuration load and validation (aborts before any thread runs)
//   - Phase 1: Station construction — queue fabric, buffer pools, counters
//   - Phase 2: Memory cleanup; GC disabled for the processing run
//   - Phase 3: Master loop until frames-to-test retire or a signal lands
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime"
	rtdebug "runtime/debug"
	"syscall"

	"main/config"
	"main/control"
	"main/debug"
	"main/equeue"
	"main/station"
	"main/txrx"
	"main/utils"
)

func main() {
	cfgPath := flag.String("config", "data/bs_config.json", "station configuration file")
	loopback := flag.Bool("loopback", false, "run with the in-memory loopback transport")
	flag.Parse()

	// PHASE 0: Configuration. A bad file aborts before any thread exists.
	debug.DropMessage("INIT", "loading configuration "+*cfgPath)
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		debug.DropError("CONFIG", err)
		os.Exit(1)
	}
	debug.DropMessage("CONFIG", utils.Itoa(cfg.BsAntNum)+" BS antennas, "+
		utils.Itoa(cfg.UeAntNum)+" UEs, "+utils.Itoa(cfg.Frame.NumTotalSyms())+
		" symbols/frame, "+utils.Itoa(int(cfg.FramesToTest))+" frames")

	// PHASE 1: Station construction. All queues, pools and counters are
	// allocated here; the processing run allocates nothing.
	st := station.New(cfg, transportFactory(cfg, *loopback))

	setupSignalHandling(cfg)

	// PHASE 2: Memory optimization. Setup garbage is trimmed and the GC
	// parked so the per-frame deadline never meets a collection pause.
	runtime.GC()
	runtime.GC()
	rtdebug.FreeOSMemory()
	rtdebug.SetGCPercent(-1)

	debug.DropMessage("READY", "starting master loop")

	// PHASE 3: Real-time processing. Blocks until the run completes.
	st.Start()

	rtdebug.SetGCPercent(100)
	debug.DropMessage("EXIT", "station stopped")
}

// transportFactory selects the I/O layer: loopback for bring-up and soak
// runs, UDP toward a real RRU otherwise.
func transportFactory(cfg *config.Config, loopback bool) station.TransportFactory {
	return func(intake, tx *equeue.Queue) txrx.Transport {
		if loopback {
			return txrx.NewLoopback(cfg, intake, tx, syntheticFrame(cfg))
		}
		return txrx.NewUDP(cfg, intake, tx)
	}
}

// syntheticFrame generates deterministic loopback samples: unit pilots on
// the matching antenna, silence elsewhere.
func syntheticFrame(cfg *config.Config) txrx.Generator {
	return func(frame uint64, symbol, ant int, data []int16) {
		for i := range data {
			data[i] = 0
		}
		ue := cfg.Frame.GetPilotSymbolIdx(symbol)
		if ue >= 0 && ant == ue%cfg.UeAntNum {
			for sc := 0; sc < cfg.OfdmDataNum; sc++ {
				data[2*sc] = 32767
			}
		}
	}
}

// setupSignalHandling wires SIGINT/SIGTERM into the cooperative exit
// flag; the master observes it between event batches and drains cleanly.
func setupSignalHandling(cfg *config.Config) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		debug.DropMessage("SIGNAL", "interrupt received, draining")
		control.SetExitSignal()
	}()
}
