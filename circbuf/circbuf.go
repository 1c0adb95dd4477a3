// Package circbuf is a small fixed-capacity ring buffer of exit-trace
// records — the most recent N VM-exits, kept in memory for post-mortem
// inspection when a runtime-fatal condition fires (§7, §9 "no safe way
// to suspend the faulting instruction" means the next best thing is a
// trail of what led up to it).
//
// Adapted from biscuit/src/circbuf/circbuf.go's head/tail/bufsz
// index arithmetic, simplified from its page-backed, lazily-allocated,
// variable-length-byte design (built for pipe/socket I/O, driven by a
// mem.Page_i allocator and fdops.Userio_i copy-in/copy-out) down to a
// fixed-size array of small fixed-size records, since an exit-trace
// entry is a handful of fields, not an arbitrary byte stream, and
// doesn't need an allocator hook at all.
package circbuf

import "github.com/svmhook/svmhook/svm"

/// Record is one traced VM-exit: the field set useful for post-mortem
/// reconstruction of a failure.
type Record struct {
	ExitCode svm.ExitCode
	RIP      uint64
	Info1    uint64
	Info2    uint64
}

/// Ring is a fixed-capacity, overwrite-oldest circular buffer of Record.
/// Not safe for concurrent use — callers own one Ring per logical
/// processor, consistent with HookData's per-CPU exclusivity (§5).
type Ring struct {
	buf  []Record
	head int
	size int
}

/// New allocates a Ring holding up to capacity records.
func New(capacity int) *Ring {
	return &Ring{buf: make([]Record, capacity)}
}

/// Push appends rec, overwriting the oldest record once the ring is full.
func (r *Ring) Push(rec Record) {
	r.buf[r.head] = rec
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

/// Len reports how many records are currently stored.
func (r *Ring) Len() int {
	return r.size
}

/// Records returns the stored records in oldest-to-newest order.
func (r *Ring) Records() []Record {
	out := make([]Record, r.size)
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}
