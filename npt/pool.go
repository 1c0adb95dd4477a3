package npt

import (
	"github.com/svmhook/svmhook/host"
	"github.com/svmhook/svmhook/limits"
	"github.com/svmhook/svmhook/mem"
)

/// Pool is the per-processor PreAllocPool (§3): a small fixed-size set of
/// zeroed 4 KiB pages reserved for on-demand NPT sub-table construction
/// during NPF handling. Exhaustion is fatal (§7 ResourceExhaustion at
/// runtime) — there is no safe way to suspend a faulting guest
/// instruction, so the engine does not attempt to grow the pool lazily.
type Pool struct {
	pas    []mem.Pa
	budget *limits.Budget
	next   int
}

/// NewPool draws `capacity` zeroed pages from alloc up front.
func NewPool(alloc host.PageAllocator, capacity int) (*Pool, bool) {
	pas := make([]mem.Pa, 0, capacity)
	for i := 0; i < capacity; i++ {
		_, pa, ok := alloc.AllocatePage()
		if !ok {
			return nil, false
		}
		pas = append(pas, pa)
	}
	return &Pool{pas: pas, budget: limits.NewBudget(capacity)}, true
}

/// Take draws one pre-allocated page, satisfying the PageSource
/// interface so Build can be driven from either a Pool (NPF time) or a
/// fresh allocation (initial construction).
func (p *Pool) Take() (mem.Pa, bool) {
	if !p.budget.Take() {
		return 0, false
	}
	pa := p.pas[p.next]
	p.next++
	return pa, true
}

/// Used reports how many pool entries have been consumed.
func (p *Pool) Used() int {
	return p.next
}

/// Capacity reports the pool's total size.
func (p *Pool) Capacity() int {
	return len(p.pas)
}
