package hook

import (
	"github.com/svmhook/svmhook/defs"
	"github.com/svmhook/svmhook/host"
	"github.com/svmhook/svmhook/limits"
	"github.com/svmhook/svmhook/mem"
	"github.com/svmhook/svmhook/npt"
)

/// CoreInit implements §6's CoreInit: builds the registry and every
/// hook's trampoline/SharedPage from a fixed descriptor list. Returns the
/// frozen Registry, or the first load error encountered (§7
/// UnsupportedPrefix/ResourceExhaustion/UnsupportedHost, "surfaced
/// upward, load fails").
func CoreInit(env host.Environment, descriptors []Descriptor) (*Registry, error) {
	capacity := len(descriptors)
	if capacity > limits.DefaultMaxHooks {
		capacity = limits.DefaultMaxHooks
	}
	registry := NewRegistry(capacity)
	pages := make(map[mem.Pa]*SharedPage)

	for _, d := range descriptors {
		if err := Load(env, registry, pages, d); err != nil {
			return nil, err
		}
	}

	registry.Freeze()
	return registry, nil
}

/// PerCpuInit implements §6's PerCpuInit: builds this processor's 1:1
/// NPT and pre-allocated sub-table pool, and returns a fresh HookData in
/// state Off.
func PerCpuInit(env host.Environment, registry *Registry, poolCapacity int) (*Data, error) {
	root, err := npt.BuildIdentityMap(env, env, env.Runs(), apicBasePage(env), env.HighestByte())
	if err != nil {
		return nil, err
	}
	pool, ok := npt.NewPool(env, poolCapacity)
	if !ok {
		return nil, defs.Errf(defs.ErrResourceExhaustion, "hook: PerCpuInit: pool allocation failed")
	}
	return NewData(env, registry, root, pool), nil
}

func apicBasePage(env host.Environment) mem.Pa {
	const apicBaseAddrMask = 0x000ffffffffff000
	raw := env.ReadMsr(host.MsrAPICBase)
	return mem.Pa(raw & apicBaseAddrMask)
}

/// PerCpuCleanup implements §6's PerCpuCleanup: tears down a processor's
/// HookData. Per §9 "Ownership of NPT pages", consumed pool pages became
/// owned by the PML4 and are freed with it; only the unconsumed pool
/// remainder is this function's concern, and since host.PageAllocator
/// exposes no per-physical-page free primitive (only FreeContiguous by
/// virtual base), that remainder is reclaimed as part of the same
/// teardown that frees the PML4 itself. CoreCleanup (not modeled here,
/// since it is purely "walk PML4, free everything" — already expressed
/// by npt.Root's transitive ownership) is the actual free path; this
/// function exists so the HookData lifecycle is symmetric with
/// PerCpuInit (§3 "destroyed at de-virtualization").
func PerCpuCleanup(d *Data) {
	d.State = Off
	d.ActiveHook = nil
}
