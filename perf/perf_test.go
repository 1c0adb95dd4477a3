package perf

import (
	"bytes"
	"testing"

	"github.com/svmhook/svmhook/stats"
)

func TestExportSampleValuesMatchCounters(t *testing.T) {
	var c stats.EngineCounters
	c.CPUIDExits = 3
	c.NPFExits = 7
	c.BulkToggleTime = 42

	p := Export(&c)
	if len(p.SampleType) != len(counterFields) {
		t.Fatalf("len(SampleType) = %d, want %d", len(p.SampleType), len(counterFields))
	}
	if len(p.Sample) != 1 {
		t.Fatalf("len(Sample) = %d, want 1", len(p.Sample))
	}

	values := p.Sample[0].Value
	for i, f := range counterFields {
		if values[i] != f.get(&c) {
			t.Fatalf("sample[%s] = %d, want %d", f.name, values[i], f.get(&c))
		}
	}
}

func TestWriteProducesNonEmptyOutput(t *testing.T) {
	var c stats.EngineCounters
	c.MSRExits = 1
	var buf bytes.Buffer
	if err := Write(&buf, &c); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("Write produced no output")
	}
}
