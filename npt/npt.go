// Package npt implements the NPT hierarchy manager (§4.B): a 4-level
// 4 KiB-granular nested page table mapping physical addresses [0, 512 GiB)
// identity-wise, plus the two permission-mutation primitives the hook
// state engine drives (SetLeafNX, BulkToggle).
//
// The index arithmetic is grounded on biscuit/src/mem/dmap.go's
// shl/pgbits/mkpg helpers (mem.Indices here); unlike biscuit's single
// recursively-mapped kernel address space, NPT has no recursive slot to
// borrow, so every walk here threads PML4→PDPT→PD→PT explicitly.
package npt

import (
	"github.com/svmhook/svmhook/defs"
	"github.com/svmhook/svmhook/host"
	"github.com/svmhook/svmhook/mem"
)

/// Root is the per-processor NPT root (§3 NptRoot): the PML4 physical
/// address plus the upper bound on PDPT entries BulkToggle must touch.
type Root struct {
	PML4PA       mem.Pa
	MaxPDPTIndex int
}

/// PageSource supplies zeroed 4 KiB pages for on-demand interior-table
/// construction, either from a Pool (at NPF time) or a fresh host
/// allocation (at initial construction), per §4.B Build.
type PageSource interface {
	Take() (mem.Pa, bool)
}

type freshSource struct {
	alloc host.PageAllocator
}

func (f freshSource) Take() (mem.Pa, bool) {
	_, pa, ok := f.alloc.AllocatePage()
	return pa, ok
}

/// FreshSource wraps a host allocator as a PageSource for use during
/// initial NPT construction (as opposed to the bounded Pool used during
/// NPF handling).
func FreshSource(alloc host.PageAllocator) PageSource {
	return freshSource{alloc: alloc}
}

// step walks one level: looks up entry `idx` of the table at `tablePA`.
// If absent and build is requested, a new zeroed table is drawn from src
// and wired in with {valid=1,write=1,user=1,nx=0}. Returns the entry
// pointer and the child table's physical address.
func step(dmap host.DirectMapper, tablePA mem.Pa, idx uint, build bool, src PageSource) (entry *mem.Pa, childPA mem.Pa, ok bool) {
	tbl := dmap.Dmap(tablePA)
	entry = &tbl[idx]
	if *entry&mem.NPTEValid != 0 {
		return entry, mem.Pa(*entry & mem.NPTEAddrMask), true
	}
	if !build {
		return entry, 0, false
	}
	pa, gotPage := src.Take()
	if !gotPage {
		return entry, 0, false
	}
	*entry = (pa &^ mem.PGOFFSET) | mem.NPTEValid | mem.NPTEWrite | mem.NPTEUser
	return entry, pa, true
}

/// Find walks PML4→PDPT→PD→PT for pa and returns the leaf entry, or
/// false if any interior entry along the way is invalid (§4.B find).
func Find(dmap host.DirectMapper, root *Root, pa mem.Pa) (*mem.Pa, bool) {
	pml4i, pdpti, pdi, pti := mem.Indices(pa)
	_, pdptPA, ok := step(dmap, root.PML4PA, pml4i, false, nil)
	if !ok {
		return nil, false
	}
	_, pdPA, ok := step(dmap, pdptPA, pdpti, false, nil)
	if !ok {
		return nil, false
	}
	_, ptPA, ok := step(dmap, pdPA, pdi, false, nil)
	if !ok {
		return nil, false
	}
	leaf := dmap.Dmap(ptPA)
	entry := &leaf[pti]
	if *entry&mem.NPTEValid == 0 {
		return nil, false
	}
	return entry, true
}

/// Build walks PML4→PDPT→PD→PT for pa, materialising any missing
/// interior table from src, and sets the leaf to identity-map pa
/// (pfn = pa>>12, nx=0). Returns ResourceExhaustion if src runs dry
/// (§4.B build, §7 ResourceExhaustion).
func Build(dmap host.DirectMapper, root *Root, pa mem.Pa, src PageSource) (*mem.Pa, error) {
	pml4i, pdpti, pdi, pti := mem.Indices(pa)
	_, pdptPA, ok := step(dmap, root.PML4PA, pml4i, true, src)
	if !ok {
		return nil, defs.Errf(defs.ErrResourceExhaustion, "npt: build: no page for pdpt level")
	}
	_, pdPA, ok := step(dmap, pdptPA, pdpti, true, src)
	if !ok {
		return nil, defs.Errf(defs.ErrResourceExhaustion, "npt: build: no page for pd level")
	}
	_, ptPA, ok := step(dmap, pdPA, pdi, true, src)
	if !ok {
		return nil, defs.Errf(defs.ErrResourceExhaustion, "npt: build: no page for pt level")
	}
	leaf := dmap.Dmap(ptPA)
	entry := &leaf[pti]
	*entry = (mem.PageOf(pa)) | mem.NPTEValid | mem.NPTEWrite | mem.NPTEUser
	return entry, nil
}

// MaxPDPTIndex returns ceil(highestByte / 1GiB), the upper bound on the
// PDPT entries BulkToggle must visit (§3 NptRoot.max_pdpt_index).
func MaxPDPTIndex(highestByte mem.Pa) int {
	const gib = mem.Pa(1) << 30
	return int((highestByte + gib - 1) / gib)
}

// BuildIdentityMap constructs the full 1:1 NPT for every page in every
// RAM run plus the page containing the local APIC base, per §4.B
// initialization and component A/B data flow.
func BuildIdentityMap(dmap host.DirectMapper, alloc host.PageAllocator, runs []host.PageRun, apicBasePA mem.Pa, highestByte mem.Pa) (*Root, error) {
	pml4pg, pml4pa, ok := alloc.AllocatePage()
	if !ok {
		return nil, defs.Errf(defs.ErrResourceExhaustion, "npt: build identity map: pml4 alloc failed")
	}
	_ = pml4pg
	root := &Root{PML4PA: pml4pa, MaxPDPTIndex: MaxPDPTIndex(highestByte)}
	src := FreshSource(alloc)

	mapPage := func(pa mem.Pa) error {
		_, err := Build(dmap, root, pa, src)
		return err
	}

	for _, run := range runs {
		base := mem.Pa(run.BasePage) << mem.PGSHIFT
		for i := 0; i < run.PageCount; i++ {
			if err := mapPage(base + mem.Pa(i)<<mem.PGSHIFT); err != nil {
				return nil, err
			}
		}
	}
	if err := mapPage(mem.PageOf(apicBasePA)); err != nil {
		return nil, err
	}
	return root, nil
}
