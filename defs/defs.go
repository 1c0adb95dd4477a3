// Package defs holds error and identifier vocabulary shared across the
// engine, the way biscuit's own defs package centralizes Err_t and device
// numbers for the whole kernel.
package defs

import (
	"fmt"

	"github.com/svmhook/svmhook/caller"
)

// ErrKind classifies a failure per the engine's error taxonomy.
type ErrKind int

const (
	/// ErrNone indicates no error.
	ErrNone ErrKind = iota
	/// ErrResourceExhaustion covers OOM during NPT construction, pool
	/// exhaustion during NPF handling, and allocation failures at load.
	ErrResourceExhaustion
	/// ErrUnsupportedPrefix covers a trampoline pattern-table miss or an
	/// instruction straddling a page boundary.
	ErrUnsupportedPrefix
	/// ErrUnsupportedHost covers missing SVM/NP or VM_CR.SVMDIS set, and
	/// a hook symbol the host kernel does not export (hook.Load).
	ErrUnsupportedHost
	/// ErrGuestFault covers a forbidden guest action, recovered by
	/// injecting #GP(0).
	ErrGuestFault
	/// ErrGuestBreakpoint covers a #BP outside any registered hook site.
	ErrGuestBreakpoint
	/// ErrInvariantViolation covers an impossible observed state; fatal.
	ErrInvariantViolation
)

func (k ErrKind) String() string {
	switch k {
	case ErrNone:
		return "none"
	case ErrResourceExhaustion:
		return "resource-exhaustion"
	case ErrUnsupportedPrefix:
		return "unsupported-prefix"
	case ErrUnsupportedHost:
		return "unsupported-host"
	case ErrGuestFault:
		return "guest-fault"
	case ErrGuestBreakpoint:
		return "guest-breakpoint"
	case ErrInvariantViolation:
		return "invariant-violation"
	default:
		return "unknown"
	}
}

// HvError is the engine's error type: a kind plus a short message. Stack
// is populated only for ErrInvariantViolation, the one kind a bug-check
// facility needs a call trace for (§7).
type HvError struct {
	Kind  ErrKind
	Msg   string
	Stack string
}

func (e *HvError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

/// Errf builds an HvError of the given kind with a formatted message. An
/// ErrInvariantViolation also captures the caller stack at construction
/// time, since by the time a bug-check facility logs it the original
/// frames will already have unwound.
func Errf(kind ErrKind, format string, args ...interface{}) *HvError {
	e := &HvError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
	if kind == ErrInvariantViolation {
		e.Stack = caller.Dump(2)
	}
	return e
}

/// Is reports whether err is an *HvError of the given kind.
func Is(err error, kind ErrKind) bool {
	he, ok := err.(*HvError)
	return ok && he.Kind == kind
}

/// IsFatal reports whether errors of this kind must terminate the host via
/// the bug-check facility rather than being recovered in-guest.
func (k ErrKind) IsFatal() bool {
	switch k {
	case ErrGuestFault, ErrGuestBreakpoint:
		return false
	default:
		return true
	}
}
