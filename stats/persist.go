// ============================================================================
// SHUTDOWN PERSISTENCE
// ============================================================================
//
// Written once, after the master loop exits: the per-frame latency table
// (SQLite) and the raw binary dumps of the last retired frame's decode
// output and TX samples. Dumps carry no header; their shape is implied by
// the configuration. Each dump's BLAKE2b fingerprint is logged so capture
// runs can be diffed across hosts without moving the files.

package stats

import (
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/blake2b"

	"main/buffers"
	"main/debug"
	"main/utils"
)

// SaveToDB writes one row per retired frame into a frame_stats table.
func (s *Stats) SaveToDB(path string) error {
	if path == "" {
		path = "data/frame_stats.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS frame_stats (
			frame INTEGER PRIMARY KEY,
			pilot_fft_us REAL, zf_us REAL, demul_us REAL, decode_us REAL,
			encode_us REAL, precode_us REAL, ifft_us REAL, tx_us REAL
		)`); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO frame_stats VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	us := func(m TsType, f uint64) float64 {
		if s.Get(m, f) == 0 {
			return -1
		}
		return s.DeltaMs(m, TsFirstSymbolRX, f) * 1000
	}
	for f := uint64(0); f < s.cfg.FramesToTest; f++ {
		if !s.retired[f] {
			continue
		}
		if _, err = stmt.Exec(int64(f),
			us(TsFFTPilotsDone, f), us(TsZfDone, f), us(TsDemulDone, f),
			us(TsDecodeDone, f), us(TsEncodeDone, f), us(TsPrecodeDone, f),
			us(TsIFFTDone, f), us(TsTxDone, f)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SaveDecodeData dumps the last frame's decoded uplink bytes: for each
// uplink symbol, for each UE, blocks x bytes-per-codeblock raw bytes.
func (s *Stats) SaveDecodeData(buf *buffers.Buffers, frame uint64) error {
	return s.dump("data/decode_data.bin", func(w io.Writer) error {
		cb := s.cfg.NumBytesPerCb
		stride := buffers.Roundup64(cb)
		for i := 0; i < s.cfg.Frame.NumULSyms(); i++ {
			for ue := 0; ue < s.cfg.UeAntNum; ue++ {
				row := buf.DecodedRow(frame, i, ue)
				for blk := 0; blk < s.cfg.LdpcNumBlocksInSymbol; blk++ {
					if _, err := w.Write(row[blk*stride : blk*stride+cb]); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
}

// SaveTxData dumps the last frame's TX samples: for each downlink symbol,
// for each BS antenna, samples-per-symbol x 2 little-endian int16.
func (s *Stats) SaveTxData(buf *buffers.Buffers, frame uint64) error {
	return s.dump("data/tx_data.bin", func(w io.Writer) error {
		for i := 0; i < s.cfg.Frame.NumDLSyms(); i++ {
			for ant := 0; ant < s.cfg.BsAntNum; ant++ {
				row := buf.DlSocketRow(frame, i, ant)
				wire := make([]byte, len(row)*2)
				for j, v := range row {
					binary.LittleEndian.PutUint16(wire[2*j:], uint16(v))
				}
				if _, err := w.Write(wire); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// dump writes one artifact, fingerprinting it as it streams out.
func (s *Stats) dump(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	h, _ := blake2b.New256(nil)
	if err = write(io.MultiWriter(f, h)); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	debug.DropMessage("DUMP", path+" blake2b="+hex.EncodeToString(h.Sum(nil))+
		" frame="+utils.U64toa(s.lastFrame))
	return nil
}
