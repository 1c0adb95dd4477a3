// Package stats holds the engine's exit/transition counters, dumped via
// reflection the same way biscuit's stats package renders any
// Counter_t/Cycles_t-tagged struct.
//
// Adapted from biscuit/src/stats/stats.go: its Stats/Timing compile-time
// switches are folded into the single Enabled const here, and its
// Counter_t/Cycles_t atomic-field convention carries over as Counter and
// Cycles. biscuit's Rdtsc relies on a method (runtime.Rdtsc) only
// present in its vendored runtime fork; since this module targets the
// stock Go runtime, Cycles measures elapsed nanoseconds via time.Since
// instead of a cycle counter — the nearest stdlib equivalent with the
// same "cheap, monotonic, enable-at-compile-time" shape.
package stats

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unsafe"
)

// Enabled gates every counter/timing update; change this constant to
// true for a debug build.
const Enabled = false

// epoch is the reference point Now measures from; time.Since uses the
// monotonic clock reading it carries.
var epoch = time.Now()

/// Now returns a monotonic timestamp (nanoseconds since package
/// initialisation) for Cycles.Add when Enabled, and 0 otherwise.
func Now() uint64 {
	if Enabled {
		return uint64(time.Since(epoch))
	}
	return 0
}

/// Counter is a statistical counter, e.g. "number of NPF exits handled".
type Counter int64

/// Cycles holds an elapsed-nanosecond accumulation, e.g. time spent in
/// bulk_toggle.
type Cycles int64

/// Inc increments the counter by one.
func (c *Counter) Inc() {
	if Enabled {
		atomic.AddInt64((*int64)(unsafe.Pointer(c)), 1)
	}
}

/// Add adds the elapsed time since start (as returned by Now) to the
/// accumulator.
func (c *Cycles) Add(start uint64) {
	if Enabled {
		atomic.AddInt64((*int64)(unsafe.Pointer(c)), int64(Now()-start))
	}
}

/// Dump renders every Counter/Cycles field of st as a string, mirroring
/// biscuit's Stats2String.
func Dump(st interface{}) string {
	if !Enabled {
		return ""
	}
	v := reflect.ValueOf(st)
	var s strings.Builder
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		switch {
		case strings.HasSuffix(t, "Counter"):
			n := v.Field(i).Interface().(Counter)
			s.WriteString("\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10))
		case strings.HasSuffix(t, "Cycles"):
			n := v.Field(i).Interface().(Cycles)
			s.WriteString("\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10))
		}
	}
	s.WriteString("\n")
	return s.String()
}

/// EngineCounters are the per-processor exit/transition counters the
/// dispatcher and hook engine update.
type EngineCounters struct {
	CPUIDExits Counter
	MSRExits   Counter
	BPExits    Counter
	NPFExits   Counter
	MMIOFaults Counter
	Transitions1to2 Counter
	Transitions2to1 Counter
	BulkToggleTime  Cycles
}
