// Package perf exports the engine's stats.EngineCounters as a
// github.com/google/pprof/profile.Profile sample, so the same counters
// stats.Dump renders as text can be opened with `go tool pprof` or
// uploaded to a profiling UI. This is a domain-stack addition: nothing
// in the teacher repository profiles itself this way, but
// github.com/google/pprof is already in the teacher's own go.mod
// (pulled in by its vendored toolchain), and a driver this
// performance-sensitive (§5 "wait-free and... bounded time") is exactly
// the kind of component that would want exit-rate profiling in
// production.
package perf

import (
	"io"

	"github.com/google/pprof/profile"

	"github.com/svmhook/svmhook/stats"
)

// counterField names every stats.Counter and stats.Cycles field of
// stats.EngineCounters, in declaration order, paired with an accessor.
// Reflection would also
// work (stats.Dump uses it), but a profile.Profile's sample types are
// few and fixed, so listing them directly is clearer than a generic
// walk for this one exporter.
type counterField struct {
	name string
	get  func(*stats.EngineCounters) int64
}

var counterFields = []counterField{
	{"cpuid_exits", func(c *stats.EngineCounters) int64 { return int64(c.CPUIDExits) }},
	{"msr_exits", func(c *stats.EngineCounters) int64 { return int64(c.MSRExits) }},
	{"bp_exits", func(c *stats.EngineCounters) int64 { return int64(c.BPExits) }},
	{"npf_exits", func(c *stats.EngineCounters) int64 { return int64(c.NPFExits) }},
	{"mmio_faults", func(c *stats.EngineCounters) int64 { return int64(c.MMIOFaults) }},
	{"transitions_1_to_2", func(c *stats.EngineCounters) int64 { return int64(c.Transitions1to2) }},
	{"transitions_2_to_1", func(c *stats.EngineCounters) int64 { return int64(c.Transitions2to1) }},
	{"bulk_toggle_ns", func(c *stats.EngineCounters) int64 { return int64(c.BulkToggleTime) }},
}

/// Export builds a profile.Profile with one sample type per counter
/// field and a single sample carrying their current values.
func Export(c *stats.EngineCounters) *profile.Profile {
	p := &profile.Profile{
		SampleType: make([]*profile.ValueType, len(counterFields)),
	}
	values := make([]int64, len(counterFields))
	for i, f := range counterFields {
		p.SampleType[i] = &profile.ValueType{Type: f.name, Unit: "count"}
		values[i] = f.get(c)
	}
	p.Sample = []*profile.Sample{{Value: values}}
	return p
}

/// Write exports c and serializes it in pprof's gzip-compressed wire
/// format to w.
func Write(w io.Writer, c *stats.EngineCounters) error {
	return Export(c).Write(w)
}
