package hook

import (
	"github.com/svmhook/svmhook/defs"
	"github.com/svmhook/svmhook/host"
	"github.com/svmhook/svmhook/mem"
	"github.com/svmhook/svmhook/npt"
	"github.com/svmhook/svmhook/stats"
)

/// State is the per-processor hook state (§3 "State enum").
type State int

const (
	Off State = iota
	HookArmedInvisible
	HookExecVisible
)

func (s State) String() string {
	switch s {
	case Off:
		return "off"
	case HookArmedInvisible:
		return "armed-invisible"
	case HookExecVisible:
		return "exec-visible"
	default:
		return "unknown"
	}
}

/// Data is HookData (§3): the per-processor owner of the NPT root, the
/// pre-allocated sub-table pool, the current State, and the (at most
/// one) ActiveHook. Exclusively owned by the logical CPU it belongs to —
/// no lock is required (§5 "owned exclusively by one CPU; no lock is
/// required because no other CPU may touch them").
type Data struct {
	Dmap     host.DirectMapper
	Registry *Registry
	Root     *npt.Root
	Pool     *npt.Pool

	State      State
	ActiveHook *Entry

	Counters stats.EngineCounters
}

/// NewData builds a fresh per-CPU HookData in state Off, grounded on
/// biscuit/src/vm/as.go's per-address-space construction pattern
/// (§6 PerCpuInit).
func NewData(dmap host.DirectMapper, reg *Registry, root *npt.Root, pool *npt.Pool) *Data {
	return &Data{Dmap: dmap, Registry: reg, Root: root, Pool: pool, State: Off}
}

/// EnableHooks implements the CPUID back-door's EnableHooks transition
/// (§4.D.1): Off → HookArmedInvisible, setting NX on every registered
/// hook page's original backing.
func (d *Data) EnableHooks() error {
	if d.State != Off {
		return defs.Errf(defs.ErrInvariantViolation, "hook: EnableHooks called in state %s, want Off", d.State)
	}
	for _, pa := range d.Registry.AllPages() {
		npt.SetLeafNX(d.Dmap, d.Root, pa, true)
	}
	d.State = HookArmedInvisible
	return nil
}

/// DisableHooks implements the CPUID back-door's DisableHooks transition
/// (§4.D.1). Calling it from HookExecVisible is pathological and
/// asserted against — the guest is expected to have quiesced to
/// HookArmedInvisible first, since leaving an exec page mid-flight would
/// strand the guest mid-instruction on a page about to lose its exec
/// backing.
func (d *Data) DisableHooks() error {
	switch d.State {
	case HookArmedInvisible:
		for _, pa := range d.Registry.AllPages() {
			npt.SetLeafNX(d.Dmap, d.Root, pa, false)
		}
		d.State = Off
		return nil
	case HookExecVisible:
		return defs.Errf(defs.ErrInvariantViolation, "hook: DisableHooks called while HookExecVisible")
	default:
		return defs.Errf(defs.ErrInvariantViolation, "hook: DisableHooks called in state %s", d.State)
	}
}

/// HandleNPF implements the NPF transitions of §4.D.2. valid mirrors
/// ExitInfo1.Valid: false means the fault is on a page with no present
/// NPT entry (an MMIO access), true means an execute-permission
/// violation on an already-present leaf.
func (d *Data) HandleNPF(faultPA mem.Pa, valid bool) error {
	fp := mem.PageOf(faultPA)
	d.Counters.NPFExits.Inc()

	if !valid {
		d.Counters.MMIOFaults.Inc()
		_, err := npt.Build(d.Dmap, d.Root, fp, d.Pool)
		return err
	}

	entries, isHookPage := d.Registry.EntriesForPage(fp)
	if isHookPage {
		switch {
		case d.State == HookArmedInvisible && d.ActiveHook == nil:
			return d.transition1to2(entries[0], fp)
		case d.State == HookExecVisible && d.ActiveHook != nil:
			if err := d.transition2to1(); err != nil {
				return err
			}
			return d.transition1to2(entries[0], fp)
		default:
			return defs.Errf(defs.ErrInvariantViolation, "hook: NPF on hook page in state %s, active_hook=%v", d.State, d.ActiveHook != nil)
		}
	}

	// fp is not a registered hook page: this must be an exec jump out of
	// the currently active hook page (§4.D.2 "must be exec from inside
	// the active hook page jumping out").
	if d.State != HookExecVisible || d.ActiveHook == nil {
		return defs.Errf(defs.ErrInvariantViolation, "hook: NPF on non-hook page %#x in state %s", fp, d.State)
	}
	return d.transition2to1()
}

// transition1to2 performs the 1→2 transition (§4.D.2): bulk-NX the
// entire address space, then make fp executable and exec-backed, then
// arm ActiveHook.
func (d *Data) transition1to2(entry *Entry, fp mem.Pa) error {
	start := stats.Now()
	npt.BulkToggle(d.Dmap, d.Root, true, d.Root.MaxPDPTIndex, nil)
	d.Counters.BulkToggleTime.Add(start)
	npt.SetLeafNX(d.Dmap, d.Root, fp, false)
	npt.RepointLeaf(d.Dmap, d.Root, fp, entry.ExecPagePA)
	d.ActiveHook = entry
	d.State = HookExecVisible
	d.Counters.Transitions1to2.Inc()
	return nil
}

// transition2to1 performs the 2→1 transition (§4.D.2 steps 1-4).
func (d *Data) transition2to1() error {
	if d.ActiveHook == nil {
		return defs.Errf(defs.ErrInvariantViolation, "hook: 2->1 transition with no active hook")
	}
	origPage := mem.PageOf(d.ActiveHook.OrigPagePA)

	start := stats.Now()
	npt.BulkToggle(d.Dmap, d.Root, false, d.Root.MaxPDPTIndex, &origPage)
	d.Counters.BulkToggleTime.Add(start)

	for _, pa := range d.Registry.AllPages() {
		npt.SetLeafNX(d.Dmap, d.Root, pa, true)
	}

	npt.RepointLeaf(d.Dmap, d.Root, origPage, d.ActiveHook.OrigPagePA)

	d.ActiveHook = nil
	d.State = HookArmedInvisible
	d.Counters.Transitions2to1.Inc()
	return nil
}

/// BreakpointOutcome tells the dispatcher what to do with a #BP exit
/// (§4.D.3, §4.E "#BP → delegate to the engine").
type BreakpointOutcome struct {
	// RewriteRIP is true when rip landed on a registered hook_va; the
	// dispatcher must overwrite guest RIP with HandlerVA.
	RewriteRIP bool
	HandlerVA  uintptr
}

/// HandleBP implements the #BP transition (§4.D.3): a registered hook's
/// hook_va fires the handler; anything else is a legitimate guest
/// breakpoint and must be reinjected by the caller (§7 GuestBreakpoint).
func (d *Data) HandleBP(rip uintptr) (BreakpointOutcome, error) {
	d.Counters.BPExits.Inc()
	entry, ok := d.Registry.LookupByVA(rip)
	if !ok {
		return BreakpointOutcome{}, defs.Errf(defs.ErrGuestBreakpoint, "hook: #BP at %#x is not a registered hook", rip)
	}
	return BreakpointOutcome{RewriteRIP: true, HandlerVA: entry.Handler}, nil
}
