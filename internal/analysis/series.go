package analysis

import (
	"math"
)

// FrequencyFromZeroCrossings estimates frequency from positive-going zero
// crossings, interpolating each crossing linearly and using the median
// period. It returns 0 for fewer than 4 samples or fewer than 2 crossings.
func FrequencyFromZeroCrossings(time, samples []float64) float64 {
	n := len(samples)
	if n < 4 || len(time) != n {
		return 0
	}
	var crossings []float64
	for i := 0; i < n-1; i++ {
		if samples[i] < 0 && samples[i+1] >= 0 {
			frac := -samples[i] / (samples[i+1] - samples[i])
			crossings = append(crossings, time[i]+frac*(time[i+1]-time[i]))
		}
	}
	if len(crossings) < 2 {
		return 0
	}
	periods := make([]float64, len(crossings)-1)
	for i := 1; i < len(crossings); i++ {
		periods[i-1] = crossings[i] - crossings[i-1]
	}
	p := median(periods)
	if p <= 0 {
		return 0
	}
	return 1 / p
}

// MovingAverage is the valid-mode box filter of the given window. Inputs
// shorter than the window, or a window below 2, are returned as a copy.
func MovingAverage(data []float64, window int) []float64 {
	if window < 2 || len(data) < window {
		out := make([]float64, len(data))
		copy(out, data)
		return out
	}
	out := make([]float64, len(data)-window+1)
	var sum float64
	for i := 0; i < window; i++ {
		sum += data[i]
	}
	out[0] = sum / float64(window)
	for i := window; i < len(data); i++ {
		sum += data[i] - data[i-window]
		out[i-window+1] = sum / float64(window)
	}
	return out
}

// Comparison summarises the point-wise difference test - ref.
type Comparison struct {
	RMSE     float64   `json:"rmse"`
	MaxDelta float64   `json:"max_delta"`
	Deltas   []float64 `json:"deltas"`
}

// CompareSeries truncates both series to the shorter length and reports
// RMSE and the largest absolute difference.
func CompareSeries(ref, test []float64) Comparison {
	n := min(len(ref), len(test))
	if n == 0 {
		return Comparison{Deltas: []float64{}}
	}
	deltas := make([]float64, n)
	var sumSq, maxAbs float64
	for i := 0; i < n; i++ {
		d := test[i] - ref[i]
		deltas[i] = d
		sumSq += d * d
		maxAbs = math.Max(maxAbs, math.Abs(d))
	}
	return Comparison{
		RMSE:     math.Sqrt(sumSq / float64(n)),
		MaxDelta: maxAbs,
		Deltas:   deltas,
	}
}
