package hook

import (
	"testing"

	"github.com/svmhook/svmhook/mem"
)

func TestAddrTableGetSet(t *testing.T) {
	tbl := newAddrTable[uintptr, int](4)
	tbl.Set(10, 100)
	tbl.Set(11, 101)
	tbl.Set(4, 40) // likely collides into the same bucket as one of the above

	if v, ok := tbl.Get(10); !ok || v != 100 {
		t.Fatalf("Get(10) = %v,%v, want 100,true", v, ok)
	}
	if v, ok := tbl.Get(11); !ok || v != 101 {
		t.Fatalf("Get(11) = %v,%v, want 101,true", v, ok)
	}
	if _, ok := tbl.Get(999); ok {
		t.Fatal("Get(999) unexpectedly found")
	}
}

func TestRegistryLookupByVAAndPage(t *testing.T) {
	reg := NewRegistry(8)
	shared := &SharedPage{OrigPagePA: 0x1000, ExecPagePA: 0x2000}
	e1 := &Entry{HookVA: 0x1010, OrigPagePA: 0x1000, ExecPagePA: 0x2000, Handler: 0xdead}
	e2 := &Entry{HookVA: 0x1050, OrigPagePA: 0x1000, ExecPagePA: 0x2000, Handler: 0xbeef}
	reg.Register(e1, shared)
	reg.Register(e2, shared)
	reg.Freeze()

	got, ok := reg.LookupByVA(0x1010)
	if !ok || got != e1 {
		t.Fatalf("LookupByVA(0x1010) = %v,%v, want e1,true", got, ok)
	}

	entries, ok := reg.EntriesForPage(mem.Pa(0x1034))
	if !ok || len(entries) != 2 {
		t.Fatalf("EntriesForPage = %v,%v, want 2 entries", entries, ok)
	}

	if _, ok := reg.LookupByVA(0x9999); ok {
		t.Fatal("LookupByVA found a non-registered address")
	}

	pages := reg.AllPages()
	if len(pages) != 1 || pages[0] != 0x1000 {
		t.Fatalf("AllPages() = %v, want [0x1000]", pages)
	}
}

func TestRegisterAfterFreezePanics(t *testing.T) {
	reg := NewRegistry(1)
	reg.Freeze()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic registering on a frozen registry")
		}
	}()
	reg.Register(&Entry{HookVA: 1, OrigPagePA: 0x3000}, &SharedPage{})
}
