package mem

import "testing"

func TestIndices(t *testing.T) {
	// A canonical address with a distinct, easily-checked index at each
	// level: pml4=1, pdpt=2, pd=3, pt=4.
	pa := Pa(1)<<39 | Pa(2)<<30 | Pa(3)<<21 | Pa(4)<<12 | Pa(0x123)
	pml4, pdpt, pd, pt := Indices(pa)
	if pml4 != 1 || pdpt != 2 || pd != 3 || pt != 4 {
		t.Fatalf("Indices(%#x) = (%d,%d,%d,%d), want (1,2,3,4)", pa, pml4, pdpt, pd, pt)
	}
}

func TestPageOfAndOffsetIn(t *testing.T) {
	pa := Pa(0x1234567)
	page := PageOf(pa)
	off := OffsetIn(pa)
	if page|off != pa {
		t.Fatalf("PageOf|OffsetIn round-trip failed: %#x | %#x != %#x", page, off, pa)
	}
	if off >= Pa(PGSIZE) {
		t.Fatalf("OffsetIn returned %#x, want < PGSIZE", off)
	}
	if page&PGOFFSET != 0 {
		t.Fatalf("PageOf(%#x) = %#x is not page-aligned", pa, page)
	}
}

func TestPFN(t *testing.T) {
	pa := Pa(0x4000)
	if got := PFN(pa); got != 4 {
		t.Fatalf("PFN(%#x) = %d, want 4", pa, got)
	}
}
