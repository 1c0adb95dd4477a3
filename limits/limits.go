// Package limits holds the load-time-fixed resource budgets the engine
// is configured with, the same compile-time-constant-over-flags-parser
// approach biscuit's limits package takes for its system-wide resource
// caps.
package limits

import "sync/atomic"

/// Budget is an atomically-updated capacity counter, adapted from
/// biscuit's Sysatomic_t: Taken/Given track how much of a fixed resource
/// remains. Used here for the PreAllocPool's used/capacity invariant
/// (§3 PreAllocPool, §8 "PreAllocPool.used ≤ PreAllocPool.capacity").
type Budget struct {
	remaining int64
}

/// NewBudget returns a Budget initialised with the given capacity.
func NewBudget(capacity int) *Budget {
	return &Budget{remaining: int64(capacity)}
}

/// Taken tries to consume n units of the budget, returning false without
/// effect if that would drive it negative.
func (b *Budget) Taken(n uint) bool {
	v := int64(n)
	if atomic.AddInt64(&b.remaining, -v) >= 0 {
		return true
	}
	atomic.AddInt64(&b.remaining, v)
	return false
}

/// Take consumes one unit, reporting whether it succeeded.
func (b *Budget) Take() bool {
	return b.Taken(1)
}

/// Given returns n units to the budget.
func (b *Budget) Given(n uint) {
	atomic.AddInt64(&b.remaining, int64(n))
}

/// Give returns one unit to the budget.
func (b *Budget) Give() {
	b.Given(1)
}

/// Remaining reports the number of unconsumed units.
func (b *Budget) Remaining() int {
	return int(atomic.LoadInt64(&b.remaining))
}

// Defaults per §9 "Pool sizing" (~50 entries, dimensioned for the
// worst-case MMIO fault burst observed during boot) and §3 HookEntry.
const (
	/// DefaultPoolCapacity is the default PreAllocPool size.
	DefaultPoolCapacity = 50
	/// DefaultMaxHooks caps the bucket count hook.CoreInit sizes the
	/// registry with. It does not limit how many descriptors are
	/// registered: descriptors beyond it still load, sharing buckets.
	DefaultMaxHooks = 256
)
