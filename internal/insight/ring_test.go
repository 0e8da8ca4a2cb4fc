package insight

import "testing"

func TestRingOverwritesOldest(t *testing.T) {
	r := newRing(3)
	for i := 1; i <= 5; i++ {
		r.push(float64(i))
	}
	got := r.values()
	want := []float64{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("values = %v, want %v", got, want)
		}
	}
	last := r.last(2)
	if len(last) != 2 || last[0] != 4 || last[1] != 5 {
		t.Fatalf("last(2) = %v", last)
	}
	if r.len() != 3 {
		t.Fatalf("len = %d", r.len())
	}
	r.reset()
	if r.len() != 0 || len(r.values()) != 0 {
		t.Fatalf("expected empty ring after reset")
	}
}

func TestThresholdGrades(t *testing.T) {
	th := DefaultThresholds
	if th.THD(12) != "critical" || th.THD(6) != "warning" || th.THD(2) != "info" {
		t.Fatalf("unexpected THD grading")
	}
	if th.Frequency(59.3, 60) != "warning" || th.Frequency(58, 60) != "critical" {
		t.Fatalf("unexpected frequency grading")
	}
	if th.Unbalance(-16) != "critical" {
		t.Fatalf("unexpected unbalance grading")
	}
}
