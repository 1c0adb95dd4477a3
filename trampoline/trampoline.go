// Package trampoline builds the small executable stub each HookEntry
// uses to invoke the original function (§4.F). Deliberately not a real
// disassembler (§1 Non-goals (a)): only a small, fixed pattern table of
// known x86-64 function-prologue byte prefixes is recognized.
//
// Byte packing reuses biscuit/src/util/util.go's Readn/Writen-style
// fixed-width read/write helpers for the trailing absolute-jump operand.
package trampoline

import (
	"github.com/svmhook/svmhook/defs"
	"github.com/svmhook/svmhook/util"
)

/// pattern describes one recognized first-instruction byte prefix and
/// the instruction length it implies.
type pattern struct {
	prefix []byte
	length int
}

// patterns is the fixed table of recognized kernel-function prologue
// fragments (§4.F). Longer/more-specific prefixes are listed before
// shorter ones they could be confused with.
var patterns = []pattern{
	{prefix: []byte{0x48, 0x89, 0x4c, 0x24}, length: 5},       // mov [rsp+off], rcx (imm8 off byte follows, unchecked)
	{prefix: []byte{0x48, 0x89, 0x54, 0x24}, length: 5},       // mov [rsp+off], rdx
	{prefix: []byte{0x4c, 0x89, 0x44, 0x24}, length: 5},       // mov [rsp+off], r8
	{prefix: []byte{0x48, 0x8b, 0xc4}, length: 3},             // mov rax, rsp
	{prefix: []byte{0x48, 0x83, 0xec}, length: 4},             // sub rsp, imm8
	{prefix: []byte{0x53}, length: 1},                         // push rbx
	{prefix: []byte{0x55}, length: 1},                         // push rbp
	{prefix: []byte{0x57}, length: 1},                         // push rdi
	{prefix: []byte{0x56}, length: 1},                         // push rsi
	{prefix: []byte{0x33, 0xd2}, length: 2},                   // xor edx, edx
	{prefix: []byte{0x48, 0x89, 0x5c, 0x24, 0x08}, length: 5}, // mov [rsp+8], rbx
}

// trampolineJmpSize is the size of the trailing "nop; jmp qword [rip+0];
// <addr>" stub appended after the copied prefix (§4.F: "total L + 15
// bytes" — 1 nop + 6-byte FF25-style indirect jump opcode + 8-byte
// absolute target = 15).
const trampolineJmpSize = 15

/// Match looks up the first-instruction length for the bytes at a hook
/// site. It returns UnsupportedPrefix if no table entry's prefix matches
/// (§4.C step 2, §7 UnsupportedPrefix).
func Match(siteBytes []byte) (length int, err error) {
	for _, p := range patterns {
		if len(siteBytes) < len(p.prefix) {
			continue
		}
		if matchPrefix(siteBytes, p.prefix) {
			return p.length, nil
		}
	}
	return 0, defs.Errf(defs.ErrUnsupportedPrefix, "no pattern matches hook-site prefix % x", firstN(siteBytes, 5))
}

func matchPrefix(b, prefix []byte) bool {
	for i, p := range prefix {
		if b[i] != p {
			return false
		}
	}
	return true
}

func firstN(b []byte, n int) []byte {
	if len(b) < n {
		return b
	}
	return b[:n]
}

/// Build produces the trampoline bytes: copy(L bytes) || nop ||
/// jmp qword [rip+0] || qword(hookVA+L) (§4.F), given the hook site's
/// first L bytes and the continuation address hookVA+L. Fails
/// (UnsupportedPrefix) if the instruction straddles a page boundary,
/// i.e. the copied prefix would need bytes past the page containing
/// hookVA (§4.C step 2).
func Build(hookVA uintptr, pageOffset int, siteBytes []byte) ([]byte, int, error) {
	length, err := Match(siteBytes)
	if err != nil {
		return nil, 0, err
	}
	if pageOffset+length > 0x1000 {
		return nil, 0, defs.Errf(defs.ErrUnsupportedPrefix, "first instruction at 0x%x straddles a page boundary", hookVA)
	}

	out := make([]byte, length+trampolineJmpSize)
	copy(out, siteBytes[:length])

	i := length
	out[i] = 0x90 // nop
	i++
	// jmp qword [rip+0]: FF 25 00 00 00 00, target stored in the
	// following 8 bytes.
	out[i] = 0xff
	out[i+1] = 0x25
	out[i+2] = 0x00
	out[i+3] = 0x00
	out[i+4] = 0x00
	out[i+5] = 0x00
	i += 6

	target := uint64(hookVA) + uint64(length)
	util.Writen(out, 8, i, target)

	return out, length, nil
}
