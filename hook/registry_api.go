package hook

import "github.com/svmhook/svmhook/mem"

/// Registry is the fixed, load-time set of HookEntry descriptors (§4.C),
/// indexed two ways: by hook_va (for the #BP handler's "look up the
/// current guest RIP") and by the 4 KiB page containing hook_va (for the
/// NPF handler's "does fp belong to a registered hook page"). It is
/// read-only after Freeze (§4.C "The registry is read-only after this",
/// §5 "HookEntry and SharedPageResource are immutable and read-shared
/// across all CPUs").
type Registry struct {
	byVA   *addrTable[uintptr, *Entry]
	byPage *addrTable[uint64, []*Entry]
	pages  map[mem.Pa]*SharedPage
	frozen bool
}

/// NewRegistry allocates a Registry sized for up to capacity hooks.
func NewRegistry(capacity int) *Registry {
	size := capacity
	if size < 16 {
		size = 16
	}
	return &Registry{
		byVA:   newAddrTable[uintptr, *Entry](size),
		byPage: newAddrTable[uint64, []*Entry](size),
		pages:  make(map[mem.Pa]*SharedPage),
	}
}

/// Register adds e to the registry, grouping it under its containing
/// page's SharedPage (the shared argument is recorded on first use of
/// that page and ignored afterwards). Must only be called during load,
/// before Freeze.
func (r *Registry) Register(e *Entry, shared *SharedPage) {
	if r.frozen {
		panic("hook: Register called on a frozen Registry")
	}
	r.byVA.Set(e.HookVA, e)

	page := e.pageOf()
	if _, ok := r.pages[page]; !ok {
		r.pages[page] = shared
	}
	existing, _ := r.byPage.Get(uint64(page))
	r.byPage.Set(uint64(page), append(existing, e))
}

/// Freeze marks the registry read-only. All further calls are lookups
/// only, safe for unsynchronized concurrent use across processors.
func (r *Registry) Freeze() {
	r.frozen = true
}

/// LookupByVA implements the #BP handler's registry lookup (§4.D.3):
/// "Look up the current guest RIP in the hook registry."
func (r *Registry) LookupByVA(va uintptr) (*Entry, bool) {
	return r.byVA.Get(va)
}

/// EntriesForPage returns every Entry whose hook_va falls on the 4 KiB
/// page pa, implementing "If fp belongs to a registered hook page"
/// (§4.D.2).
func (r *Registry) EntriesForPage(pa mem.Pa) ([]*Entry, bool) {
	return r.byPage.Get(uint64(mem.PageOf(pa)))
}

/// SharedPageFor returns the SharedPageResource backing pa, if pa is a
/// registered hook page.
func (r *Registry) SharedPageFor(pa mem.Pa) (*SharedPage, bool) {
	sp, ok := r.pages[mem.PageOf(pa)]
	return sp, ok
}

/// AllPages returns every distinct registered hook page, used by
/// EnableHooks/DisableHooks to set/clear NX on each (§4.D.1) and by the
/// 2→1 re-arm step to set_leaf_nx on every registered hook entry (§4.D.2
/// step 2).
func (r *Registry) AllPages() []mem.Pa {
	pages := make([]mem.Pa, 0, len(r.pages))
	for pa := range r.pages {
		pages = append(pages, pa)
	}
	return pages
}
