package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	minStepSamples  = 10
	minStepHeight   = 1e-3
	settlingBandPct = 0.02
)

// StepMetrics characterises a step response.
type StepMetrics struct {
	RiseTime     float64 `json:"rise_time"`
	OvershootPct float64 `json:"overshoot_pct"`
	SettlingTime float64 `json:"settling_time"`
	StartValue   float64 `json:"start_value"`
	FinalValue   float64 `json:"final_value"`
}

// StepResponse measures 10–90 % rise time, overshoot and 2 % settling time.
// Start and final values are the means of the first and last tenth of the
// record (at least one sample). ok is false for fewer than 10 samples,
// mismatched lengths or a step smaller than 1e-3.
func StepResponse(time, samples []float64) (StepMetrics, bool) {
	n := len(samples)
	if n < minStepSamples || len(time) != n {
		return StepMetrics{}, false
	}

	steady := max(1, n/10)
	start := stat.Mean(samples[:steady], nil)
	final := stat.Mean(samples[n-steady:], nil)
	height := final - start
	if math.Abs(height) < minStepHeight {
		return StepMetrics{}, false
	}
	rising := height > 0

	lowThresh := start + 0.1*height
	highThresh := start + 0.9*height
	lo := firstCrossing(samples, lowThresh, rising)
	hi := firstCrossing(samples, highThresh, rising)
	var rise float64
	if lo >= 0 && hi >= 0 {
		rise = math.Abs(time[hi] - time[lo])
	}

	var peak float64
	if rising {
		peak = floats.Max(samples)
	} else {
		peak = floats.Min(samples)
	}
	overshoot := (peak - final) / math.Abs(height) * 100

	band := settlingBandPct * math.Abs(height)
	var settling float64
	for i := n - 1; i >= 0; i-- {
		if math.Abs(samples[i]-final) > band {
			settling = time[i] - time[0]
			break
		}
	}

	return StepMetrics{
		RiseTime:     rise,
		OvershootPct: overshoot,
		SettlingTime: settling,
		StartValue:   start,
		FinalValue:   final,
	}, true
}

// firstCrossing returns the first index at or beyond thresh in the step
// direction, or -1.
func firstCrossing(x []float64, thresh float64, rising bool) int {
	for i, v := range x {
		if (rising && v >= thresh) || (!rising && v <= thresh) {
			return i
		}
	}
	return -1
}
