package hook

import "github.com/svmhook/svmhook/mem"

/// Entry is HookEntry (§3): immutable once registration finishes. Multiple
/// Entries may share an orig/exec page pair when they target the same
/// 4 KiB page (§3 "Multiple HookEntries may share...").
type Entry struct {
	HookVA       uintptr
	Handler      uintptr
	OriginalCall uintptr
	OrigPagePA   mem.Pa
	ExecPagePA   mem.Pa
}

/// pageOf returns the 4 KiB-aligned page containing e.HookVA, matching
/// orig_page_pa's definition (§3).
func (e *Entry) pageOf() mem.Pa {
	return mem.PageOf(e.OrigPagePA)
}

/// SharedPage is SharedPageResource (§3): one per distinct hooked
/// physical page, holding the exec copy and the pin on the original.
type SharedPage struct {
	OrigPagePA mem.Pa
	ExecPagePA mem.Pa
	OrigVA     uintptr // the pinned kernel virtual address backing OrigPagePA
}
