// Package host declares the interfaces the core consumes from its
// out-of-scope collaborators (§1 "Out of scope", §6 "Host→core interfaces
// consumed"): SVM enablement, the physical-memory map, the assembly
// VMRUN loop, and so on. This package has no implementation of its own —
// biscuit's mem package models the same kind of boundary with its small,
// single-purpose Page_i/Unpin_i interfaces; host follows that shape,
// dropping the teacher's pre-generics "_i" suffix convention (already
// absent from the teacher's newer util.Int constraint).
package host

import "github.com/svmhook/svmhook/mem"

/// PageRun describes a contiguous run of physical RAM: page_count pages
/// starting at base_page (§6 PhysicalMemoryRuns, §4.B component A).
type PageRun struct {
	BasePage  mem.Pa
	PageCount int
}

/// PhysicalMemoryMap enumerates the ordered RAM runs that must be
/// identity-mapped into NPT at load (component A).
type PhysicalMemoryMap interface {
	Runs() []PageRun
	HighestByte() mem.Pa
}

/// SymbolResolver resolves an exported kernel symbol name to its virtual
/// address (§6 ResolveKernelSymbol).
type SymbolResolver interface {
	ResolveKernelSymbol(name string) (va uintptr, ok bool)
}

/// PinToken identifies a pinned virtual-to-physical binding so it can
/// later be released.
type PinToken uintptr

/// VirtualPinner pins a kernel virtual page and returns its physical
/// address and a token identifying the pin (§6 PinAndMapVirtual).
type VirtualPinner interface {
	PinAndMapVirtual(pageVA uintptr) (pa mem.Pa, tok PinToken, ok bool)
	Unpin(tok PinToken)
}

/// PageAllocator provides the page/contiguous-buffer allocation
/// primitives the core needs at load and, via a Pool, at NPF time
/// (§6 AllocateExecutablePage / AllocatePage / AllocateContiguous /
/// FreeContiguous).
type PageAllocator interface {
	AllocatePage() (pg *mem.Pg, pa mem.Pa, ok bool)
	AllocateExecutablePage() (base uintptr, pa mem.Pa, ok bool)
	AllocateContiguous(n int) (base uintptr, pa mem.Pa, ok bool)
	FreeContiguous(base uintptr, n int)
}

/// DirectMapper maps a physical page to a virtual address the host CPU
/// can read and write, the same role biscuit's Physmem.Dmap plays for
/// kernel page-table pages. The NPT hierarchy manager needs this for
/// every PML4/PDPT/PD/PT node it walks or mutates, since a node is
/// addressed by its physical frame number inside its parent's entry.
type DirectMapper interface {
	Dmap(pa mem.Pa) *mem.Pg
}

/// CacheController invalidates instruction caches globally after a hook's
/// exec page is stamped with 0xCC (§6 InvalidateAllInstructionCaches,
/// §5 cache coherence).
type CacheController interface {
	InvalidateAllInstructionCaches()
}

/// Msr identifies a model-specific register by number.
type Msr uint32

const (
	/// MsrEFER is the extended feature enable register.
	MsrEFER Msr = 0xC0000080
	/// MsrAPICBase locates the local APIC's MMIO page.
	MsrAPICBase Msr = 0x1B
)

/// MsrAccess reads and writes model-specific registers on the current
/// logical processor (§6 ReadMsr/WriteMsr).
type MsrAccess interface {
	ReadMsr(m Msr) uint64
	WriteMsr(m Msr, v uint64)
}

/// CpuidAccess executes the CPUID instruction on the current logical
/// processor, forwarding to real hardware (§6 Cpuid).
type CpuidAccess interface {
	Cpuid(eax, ecx uint32) (a, b, c, d uint32)
}

/// VmcbController captures, saves, and runs a guest through one VMRUN
/// cycle (§6 CaptureGuestContext/VmLoad/VmSave/VmRun). The assembly loop
/// itself is out of scope (§1); this interface is its externally visible
/// contract.
type VmcbController interface {
	VmLoad(vmcbPA mem.Pa)
	VmSave(vmcbPA mem.Pa)
	VmRun(vmcbPA mem.Pa)
}

/// LogicalProcessors iterates every logical CPU on the system, invoking
/// fn once per CPU with that CPU's ordinal for per-CPU virtualize/
/// de-virtualize and for issuing the back-door CPUID in turn (§6
/// ForEachLogicalProcessor, §5 "Global enable/disable").
type LogicalProcessors interface {
	ForEachLogicalProcessor(fn func(cpu int))
}

/// Environment bundles every host collaborator CoreInit/PerCpuInit need.
/// A real driver supplies one concrete implementation backed by SVM
/// enablement, the physical-memory map, and the assembly VMRUN loop; the
/// engine only ever sees this interface.
type Environment interface {
	PhysicalMemoryMap
	SymbolResolver
	VirtualPinner
	PageAllocator
	DirectMapper
	CacheController
	MsrAccess
	CpuidAccess
	VmcbController
	LogicalProcessors
}
