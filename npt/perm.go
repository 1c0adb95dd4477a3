package npt

import (
	"github.com/svmhook/svmhook/host"
	"github.com/svmhook/svmhook/mem"
)

// forceAllNX sets no-execute=1 on every entry of a 512-entry table,
// regardless of validity. Used to mask siblings after an interior NX bit
// is cleared, since effective permission is the AND of NX across the
// whole walk (§4.B set_leaf_nx, §8 "Effective execute permission").
func forceAllNX(tbl *mem.Pg) {
	for i := range tbl {
		tbl[i] |= mem.NPTENX
	}
}

// clearAllNX clears no-execute on every entry of a 512-entry table.
func clearAllNX(tbl *mem.Pg) {
	for i := range tbl {
		tbl[i] &^= mem.NPTENX
	}
}

/// SetLeafNX locates the PT leaf for pa (the walk must already exist —
/// panics otherwise, mirroring biscuit's Lockassert-style invariant
/// checks) and sets its no-execute bit to nx.
///
/// When nx is false, clearing NX on the leaf alone is a no-op if a
/// covering PDPT or PD entry is still NX=1, since the effective
/// permission is the AND of every level's NX along the walk. So before
/// touching the leaf, any such covering entry is cleared and every entry
/// of the table it points to is force-set to NX=1 — a two-level
/// sibling-mask that can touch 512 entries per level (§4.B set_leaf_nx).
func SetLeafNX(dmap host.DirectMapper, root *Root, pa mem.Pa, nx bool) {
	pml4i, pdpti, pdi, pti := mem.Indices(pa)

	pml4 := dmap.Dmap(root.PML4PA)
	pdptEntry := &pml4[pml4i]
	if *pdptEntry&mem.NPTEValid == 0 {
		panic("npt: set_leaf_nx: pdpt walk must succeed")
	}
	pdpt := dmap.Dmap(mem.Pa(*pdptEntry & mem.NPTEAddrMask))

	pdEntry := &pdpt[pdpti]
	if *pdEntry&mem.NPTEValid == 0 {
		panic("npt: set_leaf_nx: pd walk must succeed")
	}
	pd := dmap.Dmap(mem.Pa(*pdEntry & mem.NPTEAddrMask))

	ptEntry := &pd[pdi]
	if *ptEntry&mem.NPTEValid == 0 {
		panic("npt: set_leaf_nx: pt walk must succeed")
	}
	pt := dmap.Dmap(mem.Pa(*ptEntry & mem.NPTEAddrMask))

	leaf := &pt[pti]
	if *leaf&mem.NPTEValid == 0 {
		panic("npt: set_leaf_nx: leaf walk must succeed")
	}

	if !nx {
		// pdEntry is the PDPT entry covering pa, ptEntry the PD entry.
		if *pdEntry&mem.NPTENX != 0 {
			*pdEntry &^= mem.NPTENX
			forceAllNX(pd)
		}
		if *ptEntry&mem.NPTENX != 0 {
			*ptEntry &^= mem.NPTENX
			forceAllNX(pt)
		}
	}

	if nx {
		*leaf |= mem.NPTENX
	} else {
		*leaf &^= mem.NPTENX
	}
}

/// RepointLeaf changes the physical page backing pa's leaf to newPage,
/// leaving every other bit (valid, write, user, nx) untouched. Used by
/// the 1→2 and 2→1 transitions to swap a hook page between its original
/// and exec backing (§4.D: "re-point it to the exec physical page",
/// "re-point active_hook.orig_page_pa's leaf PFN back to the original").
func RepointLeaf(dmap host.DirectMapper, root *Root, pa mem.Pa, newPage mem.Pa) {
	leaf, ok := Find(dmap, root, pa)
	if !ok {
		panic("npt: repoint_leaf: walk must succeed")
	}
	*leaf = (*leaf &^ mem.NPTEAddrMask) | mem.PageOf(newPage)
}

/// LeafNX reports the current no-execute bit of pa's leaf. Used by
/// invariant checks and tests (§8).
func LeafNX(dmap host.DirectMapper, root *Root, pa mem.Pa) (nx bool, ok bool) {
	leaf, ok := Find(dmap, root, pa)
	if !ok {
		return false, false
	}
	return *leaf&mem.NPTENX != 0, true
}

/// EffectiveNX reports whether pa is non-executable once every level of
/// the walk is accounted for: the AND of !nx at every level (§8
/// "Effective execute permission along a walk equals AND of !nx at
/// every level"). Unlike LeafNX, which only reports the leaf's own bit,
/// this is what the guest actually observes.
func EffectiveNX(dmap host.DirectMapper, root *Root, pa mem.Pa) (nx bool, ok bool) {
	pml4i, pdpti, pdi, pti := mem.Indices(pa)

	pml4 := dmap.Dmap(root.PML4PA)
	pdptEntry := pml4[pml4i]
	if pdptEntry&mem.NPTEValid == 0 {
		return false, false
	}
	if pdptEntry&mem.NPTENX != 0 {
		return true, true
	}

	pdpt := dmap.Dmap(mem.Pa(pdptEntry & mem.NPTEAddrMask))
	pdEntry := pdpt[pdpti]
	if pdEntry&mem.NPTEValid == 0 {
		return false, false
	}
	if pdEntry&mem.NPTENX != 0 {
		return true, true
	}

	pd := dmap.Dmap(mem.Pa(pdEntry & mem.NPTEAddrMask))
	ptEntry := pd[pdi]
	if ptEntry&mem.NPTEValid == 0 {
		return false, false
	}
	if ptEntry&mem.NPTENX != 0 {
		return true, true
	}

	pt := dmap.Dmap(mem.Pa(ptEntry & mem.NPTEAddrMask))
	leaf := pt[pti]
	if leaf&mem.NPTEValid == 0 {
		return false, false
	}
	return leaf&mem.NPTENX != 0, true
}

/// LeafPFN reports the current page-frame backing pa's leaf.
func LeafPFN(dmap host.DirectMapper, root *Root, pa mem.Pa) (pfn mem.Pa, ok bool) {
	leaf, ok := Find(dmap, root, pa)
	if !ok {
		return 0, false
	}
	return mem.Pa(*leaf & mem.NPTEAddrMask), true
}

/// BulkToggle sets no-execute=nx on every PDPT entry in PML4[0] up to
/// index maxPPE. When nx is false (making things executable), it
/// additionally clears NX on every entry of the PD and PT covering
/// activePA, since those sub-tables may still carry sibling-mask bits
/// from a prior SetLeafNX call (§4.B bulk_toggle). activePA may be nil
/// when there is no page to re-expose (e.g. the 1→2 "make everything
/// NX" direction never needs it).
func BulkToggle(dmap host.DirectMapper, root *Root, nx bool, maxPPE int, activePA *mem.Pa) {
	pml4 := dmap.Dmap(root.PML4PA)
	topEntry := &pml4[0]
	if *topEntry&mem.NPTEValid == 0 {
		panic("npt: bulk_toggle: pml4[0] walk must succeed")
	}
	pdpt := dmap.Dmap(mem.Pa(*topEntry & mem.NPTEAddrMask))

	limit := maxPPE
	if limit > 511 {
		limit = 511
	}
	for i := 0; i <= limit; i++ {
		if pdpt[i]&mem.NPTEValid == 0 {
			continue
		}
		if nx {
			pdpt[i] |= mem.NPTENX
		} else {
			pdpt[i] &^= mem.NPTENX
		}
	}

	if nx || activePA == nil {
		return
	}

	_, pdpti, pdi, _ := mem.Indices(*activePA)
	pdEntry := &pdpt[pdpti]
	if *pdEntry&mem.NPTEValid == 0 {
		panic("npt: bulk_toggle: active pd walk must succeed")
	}
	pd := dmap.Dmap(mem.Pa(*pdEntry & mem.NPTEAddrMask))
	clearAllNX(pd)

	ptEntry := &pd[pdi]
	if *ptEntry&mem.NPTEValid == 0 {
		panic("npt: bulk_toggle: active pt walk must succeed")
	}
	pt := dmap.Dmap(mem.Pa(*ptEntry & mem.NPTEAddrMask))
	clearAllNX(pt)
}
