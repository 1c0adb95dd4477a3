package hook

import (
	"unsafe"

	"github.com/svmhook/svmhook/defs"
	"github.com/svmhook/svmhook/host"
	"github.com/svmhook/svmhook/klog"
	"github.com/svmhook/svmhook/mem"
	"github.com/svmhook/svmhook/patterncheck"
	"github.com/svmhook/svmhook/trampoline"
)

/// Descriptor is one requested hook, identified by exported kernel
/// symbol name and handler address — the input to CoreInit (§6
/// "CoreInit(hooks: HookDescList)").
type Descriptor struct {
	Symbol  string
	Handler uintptr
}

func bytesAt(base uintptr) *mem.Bytepg {
	return (*mem.Bytepg)(unsafe.Pointer(base))
}

/// Load implements §4.C end to end for one Descriptor: resolves the
/// symbol, builds the trampoline, pins the containing page, and —
/// unless another Descriptor already hooked the same page — allocates
/// the SharedPage's exec copy and stamps its breakpoint byte.
func Load(env host.Environment, registry *Registry, pages map[mem.Pa]*SharedPage, d Descriptor) error {
	hookVA, ok := env.ResolveKernelSymbol(d.Symbol)
	if !ok {
		return defs.Errf(defs.ErrUnsupportedHost, "hook: load: unresolved symbol %q", d.Symbol)
	}

	origVA := hookVA &^ uintptr(mem.PGOFFSET)
	origPA, pinTok, ok := env.PinAndMapVirtual(origVA)
	if !ok {
		return defs.Errf(defs.ErrResourceExhaustion, "hook: load: failed to pin page for %q", d.Symbol)
	}
	origPage := mem.PageOf(origPA)
	pageOffset := int(hookVA & uintptr(mem.PGOFFSET))

	siteBytes := mem.Pg2Bytes(env.Dmap(origPage))[pageOffset:]

	trampolineBase, _, ok := env.AllocateExecutablePage()
	if !ok {
		env.Unpin(pinTok)
		return defs.Errf(defs.ErrResourceExhaustion, "hook: load: trampoline allocation failed for %q", d.Symbol)
	}
	stub, matchedLength, err := trampoline.Build(hookVA, pageOffset, siteBytes)
	if err != nil {
		env.Unpin(pinTok)
		return err
	}
	if agrees, detail := patterncheck.Verify(siteBytes, matchedLength); !agrees {
		klog.Default.Warnf("hook: load: %q: %s", d.Symbol, detail)
	}
	copy(bytesAt(trampolineBase)[:], stub)

	shared, alreadyShared := pages[origPage]
	if !alreadyShared {
		execBase, execPA, ok := env.AllocateExecutablePage()
		if !ok {
			env.Unpin(pinTok)
			return defs.Errf(defs.ErrResourceExhaustion, "hook: load: exec page allocation failed for %q", d.Symbol)
		}
		execBytes := bytesAt(execBase)
		copy(execBytes[:], mem.Pg2Bytes(env.Dmap(origPage))[:])
		execBytes[pageOffset] = 0xCC

		env.InvalidateAllInstructionCaches()

		shared = &SharedPage{OrigPagePA: origPage, ExecPagePA: execPA, OrigVA: origVA}
		pages[origPage] = shared
	}

	entry := &Entry{
		HookVA:       hookVA,
		Handler:      d.Handler,
		OriginalCall: trampolineBase,
		OrigPagePA:   origPage,
		ExecPagePA:   shared.ExecPagePA,
	}
	registry.Register(entry, shared)
	return nil
}
