// Package mem defines the physical-address and page-table-entry vocabulary
// shared by npt, hook, and trampoline: page sizes, PTE/NPTE permission
// bits, and the page-table index arithmetic common to all four levels of
// AMD64 paging (reused, per the GLOSSARY, identically by NPT).
package mem

import "unsafe"

/// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

/// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

/// PGOFFSET masks offsets within a page.
const PGOFFSET Pa = 0xfff

/// PGMASK masks the page number of an address.
const PGMASK Pa = ^PGOFFSET

/// Pa is a physical address.
type Pa uintptr

// Nested page table entry permission bits. Read and write are always
// implicitly granted on any valid NPT entry (§3 NptTable) — AMD NPT has no
// per-entry read-disable or write-disable that this engine toggles; only
// NX is ever flipped after construction.
const (
	/// NPTEValid marks an entry present.
	NPTEValid Pa = 1 << 0
	/// NPTEWrite marks an entry writable.
	NPTEWrite Pa = 1 << 1
	/// NPTEUser marks an entry user-accessible (required for every guest
	/// mapping; NPT has no supervisor/user distinction of its own, but
	/// AMD requires the bit set for the translation to be used at all
	/// nested-paging levels).
	NPTEUser Pa = 1 << 2
	/// NPTENX marks an entry non-executable. This is the only
	/// permission bit the hook state engine ever mutates after initial
	/// construction (§4.B).
	NPTENX Pa = 1 << 63
	/// NPTEAddrMask extracts the 40-bit page-frame-number field.
	NPTEAddrMask Pa = 0x000ffffffffff000
)

/// Pg is a 4 KiB page viewed as 512 64-bit words (one nested-page-table
/// node: PML4, PDPT, PD, or PT — all four levels share this identical
/// 512-entry/8-byte-entry format).
type Pg [512]Pa

/// Bytepg is a page viewed as a flat byte array, for copying hook-site
/// bytes and building trampolines.
type Bytepg [PGSIZE]uint8

/// Pg2Bytes reinterprets a page-table page as a byte page.
func Pg2Bytes(pg *Pg) *Bytepg {
	return (*Bytepg)(unsafe.Pointer(pg))
}

/// PageOf rounds a physical address down to its containing page.
func PageOf(pa Pa) Pa {
	return pa &^ PGOFFSET
}

/// OffsetIn returns the byte offset of pa within its page.
func OffsetIn(pa Pa) Pa {
	return pa & PGOFFSET
}

/// PFN returns the page-frame number (pa >> 12) of pa.
func PFN(pa Pa) Pa {
	return pa >> PGSHIFT
}

// shl returns the bit shift for the given AMD64 paging level: 0=PT,
// 1=PD, 2=PDPT, 3=PML4. Identical math to biscuit's mem/dmap.go shl,
// which this engine inherits since NPT reuses the same 4-level format.
func shl(level uint) uint {
	return PGSHIFT + 9*level
}

/// Indices splits a physical address into its four 9-bit page-table
/// indices (PML4, PDPT, PD, PT), the same 39/30/21/12-shift, 0x1ff-mask
/// arithmetic biscuit's mem/dmap.go pgbits uses for its recursive virtual
/// map -- NPT has no recursive slot, so package npt walks these indices
/// explicitly level by level instead of through a mapped self-reference.
func Indices(pa Pa) (pml4, pdpt, pd, pt uint) {
	idx := func(level uint) uint {
		return uint(pa>>shl(level)) & 0x1ff
	}
	return idx(3), idx(2), idx(1), idx(0)
}
