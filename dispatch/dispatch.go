// Package dispatch implements the single VM-exit entry point (§4.E):
// it loads guest RAX into the register block and routes {CPUID, MSR,
// VMRUN, #BP, NPF} to the appropriate handler, including the back-door
// CPUID protocol used to enable/disable/unload the hook engine. It does
// not restore host-only state (FS, GS, TR, LDTR, MSRs); that is not
// done anywhere in this package.
//
// OnVmExit's "restore host state, delegate by exit reason, return
// outcome" shape is grounded on biscuit/src/vm/as.go's Pgfault: lock,
// look up the fault's owning region, delegate to Sys_pgfault, unlock.
// There is no lock here (§5 "no lock is required because no other CPU
// may touch them"), but the outer-wrapper/inner-handler split is the
// same.
package dispatch

import (
	"errors"
	"io"

	"github.com/svmhook/svmhook/accnt"
	"github.com/svmhook/svmhook/circbuf"
	"github.com/svmhook/svmhook/defs"
	"github.com/svmhook/svmhook/gprs"
	"github.com/svmhook/svmhook/hook"
	"github.com/svmhook/svmhook/host"
	"github.com/svmhook/svmhook/klog"
	"github.com/svmhook/svmhook/mem"
	"github.com/svmhook/svmhook/perf"
	"github.com/svmhook/svmhook/svm"
)

// Back-door CPUID leaf/subleaf values (§6 "CPUID back-door protocol").
const (
	leafStandard1   = 0x00000001
	leafHvInterface = 0x40000000
	leafHvIdentity  = 0x40000001
	leafBackDoor    = 0x41414141

	subleafUnload  = 0x41414141
	subleafEnable  = 0x41414142
	subleafDisable = 0x41414143
)

const unloadMagic uint64 = 0x4D565353 // "MVSS"

/// Outcome tells the caller (the assembly VMRUN loop, out of scope per
/// §1) what to do after OnVmExit returns.
type Outcome struct {
	// Terminate is true only after the unload back-door fires; the
	// caller must leave the virtualization loop.
	Terminate bool
}

/// PerCpuState bundles everything one logical processor's dispatch needs
/// (§6 "Core→host interfaces exposed").
type PerCpuState struct {
	Data         *hook.Data
	Ctrl         *svm.ControlArea
	Regs         *gprs.Block
	PerCPUDataVA uintptr

	// Accounting files the time spent handling this exit against
	// Data.State (accnt's per-state timing). Nil disables accounting
	// entirely, e.g. in tests that only exercise dispatch decisions.
	Accounting *accnt.StateTime

	// Trace records each exit for post-mortem inspection (§7, §9). Nil
	// disables tracing.
	Trace *circbuf.Ring
}

/// OnVmExit implements §4.E steps 2-3: loads guest RAX into st.Regs and
/// dispatches on ExitCode. It does not restore host-only state (step 1)
/// and does not write RAX back to the VMCB. env provides CPUID/MSR/cache
/// access; ssDPL0 is the guest's current SS.DPL (0 = kernel), needed to
/// gate the back-door leaf.
func OnVmExit(env host.Environment, st *PerCpuState, guestEAX, guestECX uint32, ssDPL0 bool, guestRAX, efer uint64) (Outcome, error) {
	if st.Accounting != nil {
		span := accnt.Start(st.Accounting, st.Data.State)
		defer span.Finish()
	}
	if st.Trace != nil {
		st.Trace.Push(circbuf.Record{
			ExitCode: st.Ctrl.ExitCode,
			RIP:      st.Ctrl.GuestRIP,
			Info1:    st.Ctrl.ExitInfo1,
			Info2:    st.Ctrl.ExitInfo2,
		})
	}
	st.Regs.LoadRAXFromVMCB(guestRAX)

	switch st.Ctrl.ExitCode {
	case svm.ExitCodeCPUID:
		st.Data.Counters.CPUIDExits.Inc()
		return dispatchCPUID(env, st, guestEAX, guestECX, ssDPL0)
	case svm.ExitCodeMSR:
		st.Data.Counters.MSRExits.Inc()
		return Outcome{}, dispatchMSR(st, efer)
	case svm.ExitCodeVMRUN:
		st.Ctrl.EventInj = svm.GPFault().Encode()
		return Outcome{}, nil
	case svm.ExitCodeBP:
		return Outcome{}, dispatchBP(st)
	case svm.ExitCodeNPF:
		return Outcome{}, dispatchNPF(st)
	default:
		return Outcome{}, defs.Errf(defs.ErrInvariantViolation, "dispatch: unhandled exit code %#x", st.Ctrl.ExitCode)
	}
}

/// RunVmExit is the boundary the VMRUN loop (out of scope per §1) calls
/// after each exit: it delegates to OnVmExit and, when the result is an
/// ErrInvariantViolation, logs the stack captured at its construction and
/// terminates the host via logger's bug-check facility (§7 "Runtime
/// fatal conditions terminate the system via the host's bug-check
/// facility"). Any other error is returned unchanged for the loop to
/// handle (e.g. a recoverable guest fault already turned into an event
/// injection).
func RunVmExit(env host.Environment, st *PerCpuState, logger *klog.Logger, guestEAX, guestECX uint32, ssDPL0 bool, guestRAX, efer uint64) (Outcome, error) {
	outcome, err := OnVmExit(env, st, guestEAX, guestECX, ssDPL0, guestRAX, efer)
	var he *defs.HvError
	if errors.As(err, &he) && he.Kind == defs.ErrInvariantViolation {
		if st.Trace != nil {
			logger.Fatalf("%s\n%s\nrecent exits: %+v", he, he.Stack, st.Trace.Records())
		} else {
			logger.Fatalf("%s\n%s", he, he.Stack)
		}
	}
	return outcome, err
}

/// WriteProfile serializes this processor's exit/transition counters
/// (§8) in pprof wire format, for offline comparison against the
/// "wait-free and... bounded time" budget (§5).
func (st *PerCpuState) WriteProfile(w io.Writer) error {
	return perf.Write(w, &st.Data.Counters)
}

func dispatchCPUID(env host.Environment, st *PerCpuState, eax, ecx uint32, ssDPL0 bool) (Outcome, error) {
	a, b, c, dReg := env.Cpuid(eax, ecx)

	switch eax {
	case leafStandard1:
		c |= 1 << 31
	case leafHvInterface:
		// "SimpleSvm   " packed little-endian across EBX:ECX:EDX.
		b, c, dReg = 0x706d6953, 0x7653656c, 0x2020206d
		a = leafHvIdentity
	case leafHvIdentity:
		// Any identity that is not Microsoft's "Hv#0".
		a, b, c, dReg = 0, 0x6d697753, 0x53766d53, 0x0

	case leafBackDoor:
		if !ssDPL0 {
			// DPL>0: ignored, normal CPUID effect only (§8 "CPUID
			// back-door from DPL>0 is ignored").
			break
		}
		switch ecx {
		case subleafUnload:
			st.Regs.Set(gprs.RAX, uint64(st.PerCPUDataVA))
			st.Regs.Set(gprs.RDX, uint64(st.PerCPUDataVA>>32))
			st.Regs.Set(gprs.RCX, unloadMagic)
			st.Regs.Set(gprs.RBX, st.Ctrl.NRip)
			return Outcome{Terminate: true}, nil
		case subleafEnable:
			if err := st.Data.EnableHooks(); err != nil {
				return Outcome{}, err
			}
			return Outcome{}, nil
		case subleafDisable:
			if err := st.Data.DisableHooks(); err != nil {
				return Outcome{}, err
			}
			return Outcome{}, nil
		}
	}

	st.Regs.Set(gprs.RAX, uint64(a))
	st.Regs.Set(gprs.RBX, uint64(b))
	st.Regs.Set(gprs.RCX, uint64(c))
	st.Regs.Set(gprs.RDX, uint64(dReg))
	// §4.E step 3: "After handling, advance RIP to NRip." The actual
	// guest-RIP write is the host collaborator's VMRUN-loop concern
	// (§1); this handler's job ends at deciding a/b/c/d and the
	// back-door's effect on st.Data.
	return Outcome{}, nil
}

const svmeBit = 1 << 12

func dispatchMSR(st *PerCpuState, intendedEFER uint64) error {
	if intendedEFER&svmeBit == 0 {
		st.Ctrl.EventInj = svm.GPFault().Encode()
		return nil
	}
	// Write-through to the guest VMCB's EFER and advance RIP; the VMCB
	// save-state write itself is the host collaborator's concern (out
	// of scope per §1), this handler only decides whether it is legal.
	return nil
}

func dispatchBP(st *PerCpuState) error {
	rip := uintptr(st.Ctrl.GuestRIP)
	outcome, err := st.Data.HandleBP(rip)
	if err != nil {
		// Legitimate guest breakpoint (§7 GuestBreakpoint): re-inject
		// #BP and advance to NRip, rather than surfacing the error.
		st.Ctrl.EventInj = svm.BreakpointInjection().Encode()
		st.Ctrl.GuestRIP = st.Ctrl.NRip
		return nil
	}
	st.Ctrl.GuestRIP = uint64(outcome.HandlerVA)
	return nil
}

func dispatchNPF(st *PerCpuState) error {
	valid := st.Ctrl.ExitInfo1&1 != 0
	faultPA := st.Ctrl.ExitInfo2
	return st.Data.HandleNPF(mem.Pa(faultPA), valid)
}
