// Package gprs implements the guest-register shuttle (§4.G): the
// fixed-geometry marshaling of all 16 general-purpose registers between
// the host-stack block the VM-exit assembly trampoline produces and the
// VMCB's guest RAX save-state field.
//
// The fixed-order, fixed-total-size copy is grounded on
// biscuit/src/vm/userbuf.go's Userbuf_t._tx: a bounded, total-size-aware
// transfer between a raw byte source and a typed destination, adapted
// here from a variable-length user-copy loop to a fixed 16-slot GPR
// block since the VM-exit assembly stub always produces exactly one
// shape of register dump.
package gprs

// Slot names the 16 fixed positions pushaq/popaq save, in the order the
// assembly stub pushes them: R15 first (innermost push), RAX last, with
// a dummy placeholder where RSP would be (RSP itself is read from the
// VMCB, not the GPR block) (§4.G "pushaq emits all 16 GPRs in a fixed
// order (R15..RAX with a dummy placeholder for RSP)").
type Slot int

const (
	R15 Slot = iota
	R14
	R13
	R12
	R11
	R10
	R9
	R8
	RDI
	RSI
	RBP
	rspPlaceholder
	RBX
	RDX
	RCX
	RAX
	numSlots
)

/// Block is the 128-byte fixed-order GPR dump the VM-exit assembly stub
/// hands the dispatcher a pointer to, and restores verbatim via popaq on
/// return (§4.G).
type Block [numSlots]uint64

/// Get reads slot s.
func (b *Block) Get(s Slot) uint64 {
	return b[s]
}

/// Set writes slot s.
func (b *Block) Set(s Slot, v uint64) {
	b[s] = v
}

/// LoadRAXFromVMCB copies the guest's spilled RAX (the processor writes
/// guest RAX into the VMCB state-save on every exit) into the block,
/// implementing the dispatcher-boundary step of §4.G ("the processor
/// spills guest RAX into VMCB.state_save on exit... the engine copies
/// RAX between the block and the VMCB at the dispatcher boundaries").
func (b *Block) LoadRAXFromVMCB(vmcbRAX uint64) {
	b[RAX] = vmcbRAX
}

/// StoreRAXToVMCB returns the block's current RAX, the value the caller
/// writes back into the VMCB state-save field so VMRUN reloads it into
/// the guest on resume.
func (b *Block) StoreRAXToVMCB() uint64 {
	return b[RAX]
}
