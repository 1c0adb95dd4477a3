package circbuf

import (
	"testing"

	"github.com/svmhook/svmhook/svm"
)

func TestPushAndLenBelowCapacity(t *testing.T) {
	r := New(4)
	r.Push(Record{ExitCode: svm.ExitCodeNPF, RIP: 1})
	r.Push(Record{ExitCode: svm.ExitCodeBP, RIP: 2})

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	got := r.Records()
	if got[0].RIP != 1 || got[1].RIP != 2 {
		t.Fatalf("Records() = %+v, want RIP order [1,2]", got)
	}
}

func TestPushOverwritesOldestPastCapacity(t *testing.T) {
	r := New(3)
	for i := uint64(1); i <= 5; i++ {
		r.Push(Record{RIP: i})
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	got := r.Records()
	want := []uint64{3, 4, 5}
	for i, rec := range got {
		if rec.RIP != want[i] {
			t.Fatalf("Records()[%d].RIP = %d, want %d", i, rec.RIP, want[i])
		}
	}
}
