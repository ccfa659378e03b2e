// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go — Alloc-light cold-path logging
//
// Purpose:
//   - Logs infrequent pipeline events without introducing heap pressure.
//   - Used only in cold paths: frame retirement, deferral, fatal frames,
//     transport dial/bind errors, shutdown traces.
//
// Notes:
//   - Avoids fmt.Sprintf; messages are plain concatenations.
//   - The master loop and the workers never call into this package from
//     their steady-state hot paths.
//
// ⚠️ Never invoke in hot loops — use only for diagnostics.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import "main/utils"

// DropError logs an error with its prefix, or just the prefix when err is nil
// (used for tagged warnings and state-change traces).
//
//go:nosplit
func DropError(prefix string, err error) {
	if err != nil {
		utils.PrintWarning(prefix + ": " + err.Error() + "\n")
	} else {
		utils.PrintWarning(prefix + "\n")
	}
}

// DropMessage logs a two-part diagnostic line: subsystem prefix plus message.
//
//go:nosplit
func DropMessage(prefix, message string) {
	utils.PrintWarning(prefix + ": " + message + "\n")
}
