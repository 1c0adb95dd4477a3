package gprs

import "testing"

func TestGetSetRoundTrip(t *testing.T) {
	var b Block
	b.Set(RAX, 0x1111)
	b.Set(RBX, 0x2222)
	b.Set(R15, 0x3333)

	if b.Get(RAX) != 0x1111 {
		t.Fatalf("Get(RAX) = %#x", b.Get(RAX))
	}
	if b.Get(RBX) != 0x2222 {
		t.Fatalf("Get(RBX) = %#x", b.Get(RBX))
	}
	if b.Get(R15) != 0x3333 {
		t.Fatalf("Get(R15) = %#x", b.Get(R15))
	}
}

func TestLoadStoreRAX(t *testing.T) {
	var b Block
	b.LoadRAXFromVMCB(0xdeadbeef)
	if b.Get(RAX) != 0xdeadbeef {
		t.Fatalf("Get(RAX) after LoadRAXFromVMCB = %#x", b.Get(RAX))
	}
	b.Set(RAX, 0xcafe)
	if got := b.StoreRAXToVMCB(); got != 0xcafe {
		t.Fatalf("StoreRAXToVMCB() = %#x, want 0xcafe", got)
	}
}

func TestSlotsAreDistinct(t *testing.T) {
	slots := []Slot{R15, R14, R13, R12, R11, R10, R9, R8, RDI, RSI, RBP, RBX, RDX, RCX, RAX}
	seen := make(map[Slot]bool)
	for _, s := range slots {
		if seen[s] {
			t.Fatalf("duplicate slot value %d", s)
		}
		seen[s] = true
		if s < 0 || int(s) >= int(numSlots) {
			t.Fatalf("slot %d out of block range", s)
		}
	}
}
