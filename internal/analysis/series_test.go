package analysis

import (
	"math"
	"testing"
)

func TestFrequencyFromZeroCrossings(t *testing.T) {
	tm, x := sine(1000, 1000, 50, 1, 0.3)
	got := FrequencyFromZeroCrossings(tm, x)
	if math.Abs(got-50) > 0.1 {
		t.Fatalf("frequency = %v, want ~50", got)
	}
}

func TestFrequencyFromZeroCrossingsInsufficient(t *testing.T) {
	if got := FrequencyFromZeroCrossings([]float64{0, 1, 2}, []float64{-1, 1, -1}); got != 0 {
		t.Fatalf("expected 0 for 3 samples, got %v", got)
	}
	if got := FrequencyFromZeroCrossings([]float64{0, 1, 2, 3}, []float64{1, 1, 1, 1}); got != 0 {
		t.Fatalf("expected 0 without crossings, got %v", got)
	}
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{1, 2, 3, 4, 5}, 2)
	want := []float64{1.5, 2.5, 3.5, 4.5}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	short := MovingAverage([]float64{1, 2}, 5)
	if len(short) != 2 || short[0] != 1 || short[1] != 2 {
		t.Fatalf("short input should be copied, got %v", short)
	}
}

func TestCompareSeries(t *testing.T) {
	c := CompareSeries([]float64{1, 2, 3}, []float64{1, 3, 5, 7})
	if len(c.Deltas) != 3 {
		t.Fatalf("expected truncation to 3, got %d", len(c.Deltas))
	}
	if c.MaxDelta != 2 {
		t.Fatalf("max delta = %v", c.MaxDelta)
	}
	if math.Abs(c.RMSE-math.Sqrt(5.0/3.0)) > 1e-12 {
		t.Fatalf("rmse = %v", c.RMSE)
	}

	empty := CompareSeries(nil, []float64{1})
	if empty.RMSE != 0 || len(empty.Deltas) != 0 {
		t.Fatalf("expected empty comparison, got %+v", empty)
	}
}
