package hook

import "testing"

func TestCoreInitBuildsAFrozenRegistry(t *testing.T) {
	env := newFakeLoadEnv()
	env.symbols["Foo"] = 0x2040
	env.setPageByte(0x2000, 0x40, 0x53) // push rbx

	registry, err := CoreInit(env, []Descriptor{{Symbol: "Foo", Handler: 0xcafe}})
	if err != nil {
		t.Fatalf("CoreInit: %v", err)
	}
	if _, ok := registry.LookupByVA(0x2040); !ok {
		t.Fatal("CoreInit's registry missing the loaded hook")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected CoreInit's registry to be frozen")
		}
	}()
	registry.Register(&Entry{HookVA: 1}, &SharedPage{})
}

func TestCoreInitPropagatesLoadError(t *testing.T) {
	env := newFakeLoadEnv()
	_, err := CoreInit(env, []Descriptor{{Symbol: "DoesNotExist"}})
	if err == nil {
		t.Fatal("expected CoreInit to fail on an unresolved symbol")
	}
}

func TestPerCpuInitAndCleanup(t *testing.T) {
	env := newFakeLoadEnv()
	registry := NewRegistry(1)
	registry.Freeze()

	d, err := PerCpuInit(env, registry, 8)
	if err != nil {
		t.Fatalf("PerCpuInit: %v", err)
	}
	if d.State != Off {
		t.Fatalf("fresh HookData state = %v, want Off", d.State)
	}
	if d.Root == nil || d.Pool == nil {
		t.Fatal("PerCpuInit left Root or Pool nil")
	}

	d.State = HookExecVisible
	d.ActiveHook = &Entry{}
	PerCpuCleanup(d)
	if d.State != Off || d.ActiveHook != nil {
		t.Fatalf("state after PerCpuCleanup = %v (active=%v), want Off/nil", d.State, d.ActiveHook)
	}
}
