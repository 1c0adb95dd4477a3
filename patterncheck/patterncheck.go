// Package patterncheck is a load-time diagnostic: it decodes the
// instruction at each hook site with a real x86-64 disassembler and
// compares its length against trampoline.Match's fixed-pattern-table
// answer. It never participates in the hook decision itself — the core
// still refuses to load on a pattern-table miss per §1 Non-goals (a) and
// §9's "Pattern disassembler" design note — it only upgrades a silent
// wrong-length bug into a load-time log line.
//
// This wires golang.org/x/arch/x86/x86asm, a dependency already declared
// by the teacher repository's own go.mod (consumed there by its vendored
// compiler fork, not by its kernel).
package patterncheck

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

/// Verify decodes siteBytes as a 64-bit-mode instruction and reports
/// whether its length agrees with patternLength. The returned string is
/// a human-readable mismatch description (empty when they agree or
/// decoding fails outright, since a failed decode is not itself
/// actionable — the pattern table is the source of truth).
func Verify(siteBytes []byte, patternLength int) (agrees bool, detail string) {
	inst, err := x86asm.Decode(siteBytes, 64)
	if err != nil {
		return true, ""
	}
	if inst.Len == patternLength {
		return true, ""
	}
	return false, fmt.Sprintf("disassembler reports length %d (%s), pattern table says %d",
		inst.Len, inst.Op, patternLength)
}
