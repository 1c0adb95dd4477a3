package svm

import "github.com/svmhook/svmhook/mem"

/// ControlArea models the subset of the VMCB control area this engine
/// configures (§6 "VMCB interception configuration (wire-level
/// requirements)"). A real VMCB has many more fields (IOPM, TLB control,
/// V_INTR, EXITINTINFO, ...); those belong to the out-of-scope VMRUN
/// loop (§1) and are left to the host collaborator's own VMCB struct.
type ControlArea struct {
	InterceptExceptions uint32
	InterceptMisc1      ControlBits1
	InterceptMisc2      ControlBits2
	NpEnable            uint64
	NCr3                mem.Pa
	GuestAsid           uint32
	MsrpmBasePa         mem.Pa
	EventInj            uint64
	ExitCode            ExitCode
	ExitInfo1           uint64
	ExitInfo2           uint64
	NRip                uint64
	// GuestRIP is the guest's current RIP from the VMCB state-save area
	// (distinct from ExitInfo1/2, which are exit-code-specific). The
	// #BP handler reads it to look up the hook registry and, on a hit,
	// overwrites it with the handler address (§4.D.3).
	GuestRIP uint64
}

/// ConfigureVmcb implements §6's ConfigureVmcb: sets interception bits,
/// NCr3, ASID, and the MSRPM base for a freshly built per-CPU NPT root
/// and MSRPM page (§6 "ConfigureVmcb(vmcb, hook_data, shared)").
func ConfigureVmcb(ctrl *ControlArea, pml4PA mem.Pa, msrpmPA mem.Pa) {
	ctrl.InterceptExceptions |= ExceptionInterceptBP
	ctrl.InterceptMisc1 |= InterceptMisc1CPUID | InterceptMisc1MSRPM
	ctrl.InterceptMisc2 |= InterceptMisc2VMRUN
	ctrl.NpEnable |= NpEnableBit
	ctrl.NCr3 = pml4PA
	ctrl.GuestAsid = GuestAsid
	ctrl.MsrpmBasePa = msrpmPA
}
