package npt

import (
	"testing"

	"github.com/svmhook/svmhook/host"
	"github.com/svmhook/svmhook/mem"
)

// fakeHost is an in-process, map-backed stand-in for the host collaborator:
// "physical memory" is just a map from page-aligned mem.Pa to *mem.Pg, and
// allocation hands out the next page in a fixed arena. Good enough to drive
// the NPT walk/build/permission logic without any real MMU underneath.
type fakeHost struct {
	pages map[mem.Pa]*mem.Pg
	next  mem.Pa
}

func newFakeHost() *fakeHost {
	return &fakeHost{pages: make(map[mem.Pa]*mem.Pg), next: mem.Pa(0x1000)}
}

func (f *fakeHost) Dmap(pa mem.Pa) *mem.Pg {
	pg, ok := f.pages[mem.PageOf(pa)]
	if !ok {
		t := new(mem.Pg)
		f.pages[mem.PageOf(pa)] = t
		return t
	}
	return pg
}

func (f *fakeHost) AllocatePage() (*mem.Pg, mem.Pa, bool) {
	pa := f.next
	f.next += mem.Pa(mem.PGSIZE)
	pg := new(mem.Pg)
	f.pages[pa] = pg
	return pg, pa, true
}

func (f *fakeHost) AllocateExecutablePage() (uintptr, mem.Pa, bool) { return 0, 0, false }
func (f *fakeHost) AllocateContiguous(n int) (uintptr, mem.Pa, bool) { return 0, 0, false }
func (f *fakeHost) FreeContiguous(base uintptr, n int)               {}

var _ host.DirectMapper = (*fakeHost)(nil)
var _ host.PageAllocator = (*fakeHost)(nil)

func newRoot(t *testing.T, h *fakeHost) *Root {
	t.Helper()
	_, pml4pa, ok := h.AllocatePage()
	if !ok {
		t.Fatal("pml4 alloc failed")
	}
	return &Root{PML4PA: pml4pa, MaxPDPTIndex: 1}
}

func TestBuildThenFind(t *testing.T) {
	h := newFakeHost()
	root := newRoot(t, h)
	src := FreshSource(h)

	pa := mem.Pa(0x20000000 + 0x3000) // well clear of the allocator arena
	leaf, err := Build(h, root, pa, src)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if *leaf&mem.NPTEValid == 0 {
		t.Fatal("built leaf not valid")
	}
	if mem.Pa(*leaf&mem.NPTEAddrMask) != mem.PageOf(pa) {
		t.Fatalf("built leaf pfn = %#x, want %#x", *leaf&mem.NPTEAddrMask, mem.PageOf(pa))
	}

	found, ok := Find(h, root, pa)
	if !ok {
		t.Fatal("Find failed after Build")
	}
	if found != leaf {
		t.Fatal("Find returned a different entry than Build")
	}
}

func TestFindMissing(t *testing.T) {
	h := newFakeHost()
	root := newRoot(t, h)
	if _, ok := Find(h, root, mem.Pa(0x50000000)); ok {
		t.Fatal("Find succeeded on an unbuilt address")
	}
}

func TestBuildResourceExhaustion(t *testing.T) {
	h := newFakeHost()
	root := newRoot(t, h)
	pool, ok := NewPool(h, 3)
	if !ok {
		t.Fatal("pool alloc failed")
	}

	// The first Build draws all 3 interior pages (pdpt/pd/pt) the pool
	// has; the second needs 2 more (new pd, new pt under the now-shared
	// pdpt) and must exhaust it.
	_, err := Build(h, root, mem.Pa(0x40000000), pool)
	if err != nil {
		t.Fatalf("first Build unexpectedly failed: %v", err)
	}
	_, err = Build(h, root, mem.Pa(0x80000000), pool)
	if err == nil {
		t.Fatal("expected ResourceExhaustion on second Build with an exhausted pool")
	}
}

func TestMaxPDPTIndex(t *testing.T) {
	const gib = mem.Pa(1) << 30
	if got := MaxPDPTIndex(gib); got != 1 {
		t.Fatalf("MaxPDPTIndex(1GiB) = %d, want 1", got)
	}
	if got := MaxPDPTIndex(gib + 1); got != 2 {
		t.Fatalf("MaxPDPTIndex(1GiB+1) = %d, want 2", got)
	}
}
